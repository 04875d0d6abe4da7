package deploy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/cloudformation"
	"github.com/aws/aws-sdk-go/service/cloudformation/cloudformationiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stackpilot/internal/config"
)

type mockCloudFormationAPI struct {
	cloudformationiface.CloudFormationAPI
	mock.Mock
}

func (m *mockCloudFormationAPI) DescribeStacksWithContext(ctx aws.Context, input *cloudformation.DescribeStacksInput, opts ...request.Option) (*cloudformation.DescribeStacksOutput, error) {
	args := m.Called(input)
	if output, ok := args.Get(0).(*cloudformation.DescribeStacksOutput); ok {
		return output, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCloudFormationAPI) CreateStackWithContext(ctx aws.Context, input *cloudformation.CreateStackInput, opts ...request.Option) (*cloudformation.CreateStackOutput, error) {
	args := m.Called(input)
	return &cloudformation.CreateStackOutput{}, args.Error(1)
}

func (m *mockCloudFormationAPI) UpdateStackWithContext(ctx aws.Context, input *cloudformation.UpdateStackInput, opts ...request.Option) (*cloudformation.UpdateStackOutput, error) {
	args := m.Called(input)
	return &cloudformation.UpdateStackOutput{}, args.Error(1)
}

func (m *mockCloudFormationAPI) CreateChangeSetWithContext(ctx aws.Context, input *cloudformation.CreateChangeSetInput, opts ...request.Option) (*cloudformation.CreateChangeSetOutput, error) {
	args := m.Called(input)
	return &cloudformation.CreateChangeSetOutput{}, args.Error(1)
}

func (m *mockCloudFormationAPI) ExecuteChangeSetWithContext(ctx aws.Context, input *cloudformation.ExecuteChangeSetInput, opts ...request.Option) (*cloudformation.ExecuteChangeSetOutput, error) {
	args := m.Called(input)
	return &cloudformation.ExecuteChangeSetOutput{}, args.Error(1)
}

func (m *mockCloudFormationAPI) WaitUntilChangeSetCreateCompleteWithContext(ctx aws.Context, input *cloudformation.DescribeChangeSetInput, opts ...request.WaiterOption) error {
	args := m.Called(input)
	return args.Error(0)
}

func (m *mockCloudFormationAPI) WaitUntilStackCreateCompleteWithContext(ctx aws.Context, input *cloudformation.DescribeStacksInput, opts ...request.WaiterOption) error {
	args := m.Called(input)
	return args.Error(0)
}

func (m *mockCloudFormationAPI) WaitUntilStackUpdateCompleteWithContext(ctx aws.Context, input *cloudformation.DescribeStacksInput, opts ...request.WaiterOption) error {
	args := m.Called(input)
	return args.Error(0)
}

func (m *mockCloudFormationAPI) GetTemplateWithContext(ctx aws.Context, input *cloudformation.GetTemplateInput, opts ...request.Option) (*cloudformation.GetTemplateOutput, error) {
	args := m.Called(input)
	if output, ok := args.Get(0).(*cloudformation.GetTemplateOutput); ok {
		return output, args.Error(1)
	}
	return nil, args.Error(1)
}

func writeTemplate(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

const templateWithRegion = `AWSTemplateFormatVersion: "2010-09-09"
Parameters:
  AwsRegion:
    Type: String
  BucketNamePrefix:
    Type: String
Resources:
  SiteBucket:
    Type: AWS::S3::Bucket
`

const templateWithoutRegion = `AWSTemplateFormatVersion: "2010-09-09"
Resources:
  SiteBucket:
    Type: AWS::S3::Bucket
  S3BucketPolicy:
    Type: AWS::S3::BucketPolicy
`

func describeStacksOutput(stackName string, outputs map[string]string) *cloudformation.DescribeStacksOutput {
	stack := &cloudformation.Stack{
		StackName: aws.String(stackName),
	}
	for key, value := range outputs {
		stack.Outputs = append(stack.Outputs, &cloudformation.Output{
			OutputKey:   aws.String(key),
			OutputValue: aws.String(value),
		})
	}
	return &cloudformation.DescribeStacksOutput{
		Stacks: []*cloudformation.Stack{stack},
	}
}

func noUpdatesError() error {
	return awserr.New("ValidationError", "No updates are to be performed.", nil)
}

func stackMissingError() error {
	return awserr.New("ValidationError", "Stack with id test-stack does not exist", nil)
}

func TestDeployDryRun(t *testing.T) {
	cfn := &mockCloudFormationAPI{}
	deployer := NewDeployer(cfn)

	result := deployer.Deploy(context.Background(), Options{
		SolutionName: "static_website",
		StackName:    "test-stack",
		Region:       "us-west-2",
		Solution: config.Solution{
			TemplatePath: writeTemplate(t, templateWithRegion),
			Parameters:   map[string]string{"BucketNamePrefix": "my-bucket"},
		},
		DryRun: true,
	})

	assert.Equal(t, "success", result.Status)
	require.Len(t, result.Parameters, 2)
	assert.Equal(t, "BucketNamePrefix", aws.StringValue(result.Parameters[0].ParameterKey))
	assert.Equal(t, "AwsRegion", aws.StringValue(result.Parameters[1].ParameterKey))
	assert.Equal(t, "us-west-2", aws.StringValue(result.Parameters[1].ParameterValue))

	// Dry run never reaches AWS
	cfn.AssertNotCalled(t, "DescribeStacksWithContext", mock.Anything)
	cfn.AssertNotCalled(t, "CreateStackWithContext", mock.Anything)
}

func TestDeployCreatesMissingStack(t *testing.T) {
	cfn := &mockCloudFormationAPI{}
	cfn.On("DescribeStacksWithContext", mock.Anything).Return(nil, stackMissingError()).Once()
	cfn.On("CreateStackWithContext", mock.MatchedBy(func(input *cloudformation.CreateStackInput) bool {
		return aws.StringValue(input.StackName) == "test-stack" && len(input.Capabilities) == 3
	})).Return(nil, nil)
	cfn.On("WaitUntilStackCreateCompleteWithContext", mock.Anything).Return(nil)
	cfn.On("DescribeStacksWithContext", mock.Anything).Return(
		describeStacksOutput("test-stack", map[string]string{"S3BucketName": "my-bucket"}), nil)

	deployer := NewDeployer(cfn)
	result := deployer.Deploy(context.Background(), Options{
		StackName: "test-stack",
		Region:    "us-west-2",
		Solution: config.Solution{
			TemplatePath: writeTemplate(t, templateWithRegion),
		},
	})

	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "my-bucket", result.Outputs["S3BucketName"])
	cfn.AssertExpectations(t)
}

func TestDeployNoUpdatesShortCircuits(t *testing.T) {
	cfn := &mockCloudFormationAPI{}
	cfn.On("DescribeStacksWithContext", mock.Anything).Return(
		describeStacksOutput("test-stack", map[string]string{"S3BucketName": "my-bucket"}), nil)
	cfn.On("UpdateStackWithContext", mock.Anything).Return(nil, noUpdatesError())

	deployer := NewDeployer(cfn)
	result := deployer.Deploy(context.Background(), Options{
		StackName: "test-stack",
		Region:    "us-west-2",
		Solution: config.Solution{
			TemplatePath: writeTemplate(t, templateWithRegion),
		},
	})

	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "No updates were performed on the stack.", result.Message)
	assert.Equal(t, "my-bucket", result.Outputs["S3BucketName"])
	cfn.AssertNotCalled(t, "CreateChangeSetWithContext", mock.Anything)
}

func TestDeployForceUpdateUsesChangeSet(t *testing.T) {
	cfn := &mockCloudFormationAPI{}
	cfn.On("DescribeStacksWithContext", mock.Anything).Return(
		describeStacksOutput("test-stack", map[string]string{"S3BucketName": "my-bucket"}), nil)
	cfn.On("UpdateStackWithContext", mock.Anything).Return(nil, noUpdatesError())
	cfn.On("CreateChangeSetWithContext", mock.MatchedBy(func(input *cloudformation.CreateChangeSetInput) bool {
		name := aws.StringValue(input.ChangeSetName)
		return assert.Regexp(t, `^test-stack-change-set-\d{14}$`, name)
	})).Return(nil, nil)
	cfn.On("WaitUntilChangeSetCreateCompleteWithContext", mock.Anything).Return(nil)
	cfn.On("ExecuteChangeSetWithContext", mock.Anything).Return(nil, nil)
	cfn.On("WaitUntilStackUpdateCompleteWithContext", mock.Anything).Return(nil)

	deployer := NewDeployer(cfn)
	result := deployer.Deploy(context.Background(), Options{
		StackName: "test-stack",
		Region:    "us-west-2",
		Solution: config.Solution{
			TemplatePath: writeTemplate(t, templateWithRegion),
		},
		ForceUpdate: true,
	})

	assert.Equal(t, "success", result.Status)
	cfn.AssertExpectations(t)
}

func TestDeployForceUpdateEmptyChangeSet(t *testing.T) {
	cfn := &mockCloudFormationAPI{}
	cfn.On("DescribeStacksWithContext", mock.Anything).Return(
		describeStacksOutput("test-stack", nil), nil)
	cfn.On("UpdateStackWithContext", mock.Anything).Return(nil, noUpdatesError())
	cfn.On("CreateChangeSetWithContext", mock.Anything).Return(nil, nil)
	cfn.On("WaitUntilChangeSetCreateCompleteWithContext", mock.Anything).Return(assert.AnError)

	deployer := NewDeployer(cfn)
	result := deployer.Deploy(context.Background(), Options{
		StackName: "test-stack",
		Region:    "us-west-2",
		Solution: config.Solution{
			TemplatePath: writeTemplate(t, templateWithRegion),
		},
		ForceUpdate: true,
	})

	// A change set that fails its create wait has no changes to apply
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "No updates were performed on the stack.", result.Message)
	cfn.AssertNotCalled(t, "ExecuteChangeSetWithContext", mock.Anything)
}

func TestDeployMissingTemplate(t *testing.T) {
	deployer := NewDeployer(&mockCloudFormationAPI{})
	result := deployer.Deploy(context.Background(), Options{
		StackName: "test-stack",
		Solution: config.Solution{
			TemplatePath: filepath.Join(t.TempDir(), "missing.yaml"),
		},
	})

	assert.Equal(t, "error", result.Status)
	assert.Contains(t, result.Message, "not found")
}

func TestTemplateHasBucketPolicy(t *testing.T) {
	with := writeTemplate(t, templateWithoutRegion)
	without := writeTemplate(t, templateWithRegion)

	has, err := TemplateHasBucketPolicy(with)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = TemplateHasBucketPolicy(without)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestStackOutputs(t *testing.T) {
	cfn := &mockCloudFormationAPI{}
	cfn.On("DescribeStacksWithContext", mock.Anything).Return(
		describeStacksOutput("test-stack", map[string]string{
			"ApiEndpoint": "https://api.example.com",
		}), nil)

	outputs, err := NewDeployer(cfn).StackOutputs(context.Background(), "test-stack")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", outputs["ApiEndpoint"])
}
