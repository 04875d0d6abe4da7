// Package deploy creates and updates CloudFormation stacks for the
// solutions named in the configuration file.
package deploy

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/cloudformation"
	"github.com/aws/aws-sdk-go/service/cloudformation/cloudformationiface"
	"github.com/briandowns/spinner"

	"stackpilot/internal/config"
	"stackpilot/internal/logging"
)

const (
	// CloudFront propagation can take most of an hour
	waiterDelay       = 30 * time.Second
	waiterMaxAttempts = 120
)

var capabilities = []*string{
	aws.String(cloudformation.CapabilityCapabilityIam),
	aws.String(cloudformation.CapabilityCapabilityNamedIam),
	aws.String(cloudformation.CapabilityCapabilityAutoExpand),
}

// Result reports the outcome of a deployment
type Result struct {
	Status     string                      `json:"status"`
	Message    string                      `json:"message"`
	Outputs    map[string]string           `json:"outputs,omitempty"`
	Parameters []*cloudformation.Parameter `json:"parameters,omitempty"`
}

// Options control a single deployment
type Options struct {
	SolutionName string
	StackName    string
	Region       string
	Solution     config.Solution
	Tags         map[string]string
	Messaging    config.MessagingSettings
	// Extra parameters injected by the CLI, e.g. StaticWebsiteStackName
	Extra map[string]string

	ForceUpdate bool
	DryRun      bool
}

// Deployer drives CloudFormation stack operations
type Deployer struct {
	cfn cloudformationiface.CloudFormationAPI
}

// NewDeployer creates a deployer on the given CloudFormation client
func NewDeployer(cfn cloudformationiface.CloudFormationAPI) *Deployer {
	return &Deployer{cfn: cfn}
}

func errorResult(err error) Result {
	return Result{Status: "error", Message: err.Error()}
}

// Deploy creates or updates the stack for a solution. On "no updates"
// without ForceUpdate it short-circuits to success with the existing
// outputs; with ForceUpdate it pushes a change set instead.
func (d *Deployer) Deploy(ctx context.Context, opts Options) Result {
	body, err := os.ReadFile(opts.Solution.TemplatePath)
	if err != nil {
		return errorResult(fmt.Errorf("template file %q not found: %w", opts.Solution.TemplatePath, err))
	}
	templateBody := string(body)

	tmpl, err := parseTemplate(templateBody)
	if err != nil {
		return errorResult(err)
	}

	parameters := buildParameters(tmpl, opts.Solution, opts.Region, opts.Tags, opts.Messaging, opts.Extra)

	if opts.DryRun {
		return Result{
			Status:     "success",
			Message:    "Dry run: no changes applied.",
			Parameters: parameters,
		}
	}

	exists, err := d.stackExists(ctx, opts.StackName)
	if err != nil {
		return errorResult(err)
	}

	operation := "create"
	if exists {
		operation = "update"
		_, err = d.cfn.UpdateStackWithContext(ctx, &cloudformation.UpdateStackInput{
			StackName:    aws.String(opts.StackName),
			TemplateBody: aws.String(templateBody),
			Parameters:   parameters,
			Capabilities: capabilities,
		})
		if err != nil {
			if !isNoUpdates(err) {
				return errorResult(fmt.Errorf("failed to update stack: %w", err))
			}
			if !opts.ForceUpdate {
				logging.Info("No updates are to be performed on the stack")
				outputs, err := d.StackOutputs(ctx, opts.StackName)
				if err != nil {
					return errorResult(err)
				}
				return Result{
					Status:  "success",
					Message: "No updates were performed on the stack.",
					Outputs: outputs,
				}
			}
			return d.forceUpdate(ctx, opts, templateBody, parameters)
		}
	} else {
		_, err = d.cfn.CreateStackWithContext(ctx, &cloudformation.CreateStackInput{
			StackName:    aws.String(opts.StackName),
			TemplateBody: aws.String(templateBody),
			Parameters:   parameters,
			Capabilities: capabilities,
		})
		if err != nil {
			return errorResult(fmt.Errorf("failed to create stack: %w", err))
		}
	}

	if err := d.waitForStack(ctx, opts.StackName, operation); err != nil {
		return errorResult(err)
	}

	outputs, err := d.StackOutputs(ctx, opts.StackName)
	if err != nil {
		return errorResult(err)
	}

	logging.Info("Stack operation completed", map[string]interface{}{
		"stack":     opts.StackName,
		"operation": operation,
	})

	return Result{
		Status:  "success",
		Message: fmt.Sprintf("Stack %s completed successfully.", operation),
		Outputs: outputs,
	}
}

// forceUpdate pushes a change set when a plain update reports no changes
func (d *Deployer) forceUpdate(ctx context.Context, opts Options, templateBody string, parameters []*cloudformation.Parameter) Result {
	changeSetName := fmt.Sprintf("%s-change-set-%s", opts.StackName, time.Now().Format("20060102150405"))
	logging.Info("No changes detected, forcing update via change set", map[string]interface{}{
		"change_set": changeSetName,
	})

	_, err := d.cfn.CreateChangeSetWithContext(ctx, &cloudformation.CreateChangeSetInput{
		StackName:     aws.String(opts.StackName),
		ChangeSetName: aws.String(changeSetName),
		TemplateBody:  aws.String(templateBody),
		Parameters:    parameters,
		Capabilities:  capabilities,
		ChangeSetType: aws.String(cloudformation.ChangeSetTypeUpdate),
	})
	if err != nil {
		return errorResult(fmt.Errorf("failed to create change set: %w", err))
	}

	describeInput := &cloudformation.DescribeChangeSetInput{
		StackName:     aws.String(opts.StackName),
		ChangeSetName: aws.String(changeSetName),
	}
	if err := d.cfn.WaitUntilChangeSetCreateCompleteWithContext(ctx, describeInput); err != nil {
		// A change set with no changes fails its create wait
		logging.Info("Change set has no changes, stack is already up to date")
		outputs, err := d.StackOutputs(ctx, opts.StackName)
		if err != nil {
			return errorResult(err)
		}
		return Result{
			Status:  "success",
			Message: "No updates were performed on the stack.",
			Outputs: outputs,
		}
	}

	_, err = d.cfn.ExecuteChangeSetWithContext(ctx, &cloudformation.ExecuteChangeSetInput{
		StackName:     aws.String(opts.StackName),
		ChangeSetName: aws.String(changeSetName),
	})
	if err != nil {
		return errorResult(fmt.Errorf("failed to execute change set: %w", err))
	}

	if err := d.waitForStack(ctx, opts.StackName, "update"); err != nil {
		return errorResult(err)
	}

	outputs, err := d.StackOutputs(ctx, opts.StackName)
	if err != nil {
		return errorResult(err)
	}

	return Result{
		Status:  "success",
		Message: "Stack update completed successfully.",
		Outputs: outputs,
	}
}

// TemplateHasBucketPolicy reports whether the solution template ships
// its own S3BucketPolicy resource.
func TemplateHasBucketPolicy(templatePath string) (bool, error) {
	body, err := os.ReadFile(templatePath)
	if err != nil {
		return false, fmt.Errorf("failed to read template: %w", err)
	}
	tmpl, err := parseTemplate(string(body))
	if err != nil {
		return false, err
	}
	return tmpl.HasResource("S3BucketPolicy"), nil
}

func (d *Deployer) stackExists(ctx context.Context, stackName string) (bool, error) {
	_, err := d.cfn.DescribeStacksWithContext(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if isStackMissing(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to describe stack: %w", err)
	}
	return true, nil
}

// StackOutputs returns the stack's outputs as a key/value map
func (d *Deployer) StackOutputs(ctx context.Context, stackName string) (map[string]string, error) {
	output, err := d.cfn.DescribeStacksWithContext(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe stack %s: %w", stackName, err)
	}
	if len(output.Stacks) == 0 {
		return nil, fmt.Errorf("stack %s not found", stackName)
	}

	outputs := make(map[string]string)
	for _, o := range output.Stacks[0].Outputs {
		outputs[aws.StringValue(o.OutputKey)] = aws.StringValue(o.OutputValue)
	}
	return outputs, nil
}

// waitForStack blocks until the create/update settles, with the extended
// poll configuration needed for CloudFront-backed stacks.
func (d *Deployer) waitForStack(ctx context.Context, stackName, operation string) error {
	sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	sp.Suffix = fmt.Sprintf(" Waiting for stack %s to complete...", operation)
	sp.Start()
	defer sp.Stop()

	input := &cloudformation.DescribeStacksInput{StackName: aws.String(stackName)}
	waiterOpts := []request.WaiterOption{
		request.WithWaiterDelay(request.ConstantWaiterDelay(waiterDelay)),
		request.WithWaiterMaxAttempts(waiterMaxAttempts),
	}

	var err error
	if operation == "create" {
		err = d.cfn.WaitUntilStackCreateCompleteWithContext(ctx, input, waiterOpts...)
	} else {
		err = d.cfn.WaitUntilStackUpdateCompleteWithContext(ctx, input, waiterOpts...)
	}
	if err != nil {
		return fmt.Errorf("stack %s did not complete: %w", operation, err)
	}
	return nil
}

func isNoUpdates(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		return strings.Contains(aerr.Message(), "No updates are to be performed")
	}
	return strings.Contains(err.Error(), "No updates are to be performed")
}

func isStackMissing(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		return strings.Contains(aerr.Message(), "does not exist")
	}
	return strings.Contains(err.Error(), "does not exist")
}
