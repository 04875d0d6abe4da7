package report

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stackpilot/internal/worker"
)

type mockEC2API struct {
	ec2iface.EC2API
	mock.Mock
}

func (m *mockEC2API) DescribeInstancesPages(input *ec2.DescribeInstancesInput, fn func(*ec2.DescribeInstancesOutput, bool) bool) error {
	args := m.Called(input, fn)
	if pages, ok := args.Get(0).([]*ec2.DescribeInstancesOutput); ok {
		for i, page := range pages {
			if !fn(page, i == len(pages)-1) {
				break
			}
		}
	}
	return args.Error(1)
}

func (m *mockEC2API) DescribeInstances(input *ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
	args := m.Called(input)
	if output, ok := args.Get(0).(*ec2.DescribeInstancesOutput); ok {
		return output, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEC2API) DescribeSpotPriceHistory(input *ec2.DescribeSpotPriceHistoryInput) (*ec2.DescribeSpotPriceHistoryOutput, error) {
	args := m.Called(input)
	if output, ok := args.Get(0).(*ec2.DescribeSpotPriceHistoryOutput); ok {
		return output, args.Error(1)
	}
	return nil, args.Error(1)
}

func describeOutput(instance *ec2.Instance) *ec2.DescribeInstancesOutput {
	return &ec2.DescribeInstancesOutput{
		Reservations: []*ec2.Reservation{
			{Instances: []*ec2.Instance{instance}},
		},
	}
}

func testInstance(id string) *ec2.Instance {
	return &ec2.Instance{
		InstanceId:   aws.String(id),
		InstanceType: aws.String("t3.micro"),
		State:        &ec2.InstanceState{Name: aws.String("running")},
		Placement:    &ec2.Placement{AvailabilityZone: aws.String("us-west-2a")},
		LaunchTime:   aws.Time(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
}

func TestListInstanceIDs(t *testing.T) {
	client := &mockEC2API{}
	pages := []*ec2.DescribeInstancesOutput{
		{
			Reservations: []*ec2.Reservation{
				{Instances: []*ec2.Instance{testInstance("i-aaa"), testInstance("i-bbb")}},
			},
		},
		{
			Reservations: []*ec2.Reservation{
				{Instances: []*ec2.Instance{testInstance("i-ccc")}},
			},
		},
	}
	client.On("DescribeInstancesPages", mock.Anything, mock.Anything).Return(pages, nil)

	ids, err := NewScanner(client, nil).ListInstanceIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"i-aaa", "i-bbb", "i-ccc"}, ids)
}

func TestInstanceDetailsTagMerge(t *testing.T) {
	instance := testInstance("i-tagged")
	instance.Tags = []*ec2.Tag{
		{Key: aws.String("environment"), Value: aws.String("prod")},
		{Key: aws.String("owner"), Value: aws.String("me")},
	}

	client := &mockEC2API{}
	client.On("DescribeInstances", mock.Anything).Return(describeOutput(instance), nil)

	scanner := NewScanner(client, map[string]string{
		"environment": "dev",
		"team":        "infra",
	})

	detail, err := scanner.InstanceDetails("i-tagged")
	require.NoError(t, err)

	// Instance tags win, config defaults only fill gaps
	assert.Equal(t, map[string]string{
		"environment": "prod",
		"owner":       "me",
		"team":        "infra",
	}, detail.Tags)
	assert.Equal(t, "t3.micro", detail.InstanceType)
	assert.Equal(t, "running", detail.State)
	assert.Equal(t, "2026-03-01T12:00:00Z", detail.LaunchTime)
}

func TestInstanceDetailsNotFound(t *testing.T) {
	client := &mockEC2API{}
	client.On("DescribeInstances", mock.Anything).Return(&ec2.DescribeInstancesOutput{}, nil)

	_, err := NewScanner(client, nil).InstanceDetails("i-missing")
	assert.ErrorContains(t, err, "not found")
}

func TestSpotPrice(t *testing.T) {
	client := &mockEC2API{}
	client.On("DescribeSpotPriceHistory", mock.MatchedBy(func(input *ec2.DescribeSpotPriceHistoryInput) bool {
		return aws.StringValue(input.AvailabilityZone) == "us-west-2a" &&
			aws.StringValue(input.ProductDescriptions[0]) == "Linux/UNIX"
	})).Return(&ec2.DescribeSpotPriceHistoryOutput{
		SpotPriceHistory: []*ec2.SpotPrice{
			{SpotPrice: aws.String("0.0416")},
		},
	}, nil)

	price, err := NewScanner(client, nil).SpotPrice("t3.micro", "us-west-2a")
	require.NoError(t, err)
	require.NotNil(t, price)
	assert.InDelta(t, 0.0416, *price, 1e-9)
}

func TestSpotPriceNoHistory(t *testing.T) {
	client := &mockEC2API{}
	client.On("DescribeSpotPriceHistory", mock.Anything).Return(&ec2.DescribeSpotPriceHistoryOutput{}, nil)

	price, err := NewScanner(client, nil).SpotPrice("t3.micro", "us-west-2a")
	require.NoError(t, err)
	assert.Nil(t, price)
}

func TestScan(t *testing.T) {
	client := &mockEC2API{}
	pages := []*ec2.DescribeInstancesOutput{
		{
			Reservations: []*ec2.Reservation{
				{Instances: []*ec2.Instance{testInstance("i-bbb"), testInstance("i-aaa")}},
			},
		},
	}
	client.On("DescribeInstancesPages", mock.Anything, mock.Anything).Return(pages, nil)
	client.On("DescribeInstances", mock.MatchedBy(func(input *ec2.DescribeInstancesInput) bool {
		return aws.StringValue(input.InstanceIds[0]) == "i-aaa"
	})).Return(describeOutput(testInstance("i-aaa")), nil)
	client.On("DescribeInstances", mock.MatchedBy(func(input *ec2.DescribeInstancesInput) bool {
		return aws.StringValue(input.InstanceIds[0]) == "i-bbb"
	})).Return(describeOutput(testInstance("i-bbb")), nil)
	client.On("DescribeSpotPriceHistory", mock.Anything).Return(&ec2.DescribeSpotPriceHistoryOutput{
		SpotPriceHistory: []*ec2.SpotPrice{
			{SpotPrice: aws.String("0.0500")},
		},
	}, nil)

	pool := worker.NewPool(2)
	pool.Start()
	defer pool.Stop()

	instances, err := NewScanner(client, nil).Scan(pool)
	require.NoError(t, err)
	require.Len(t, instances, 2)

	// Sorted by instance ID regardless of completion order
	assert.Equal(t, "i-aaa", instances[0].InstanceID)
	assert.Equal(t, "i-bbb", instances[1].InstanceID)
	require.NotNil(t, instances[0].Costs.Hourly)
	assert.InDelta(t, 0.05, *instances[0].Costs.Hourly, 1e-9)
}

func TestScanDropsFailedDetails(t *testing.T) {
	client := &mockEC2API{}
	pages := []*ec2.DescribeInstancesOutput{
		{
			Reservations: []*ec2.Reservation{
				{Instances: []*ec2.Instance{testInstance("i-good"), testInstance("i-bad")}},
			},
		},
	}
	client.On("DescribeInstancesPages", mock.Anything, mock.Anything).Return(pages, nil)
	client.On("DescribeInstances", mock.MatchedBy(func(input *ec2.DescribeInstancesInput) bool {
		return aws.StringValue(input.InstanceIds[0]) == "i-good"
	})).Return(describeOutput(testInstance("i-good")), nil)
	client.On("DescribeInstances", mock.MatchedBy(func(input *ec2.DescribeInstancesInput) bool {
		return aws.StringValue(input.InstanceIds[0]) == "i-bad"
	})).Return(nil, assert.AnError)
	client.On("DescribeSpotPriceHistory", mock.Anything).Return(nil, assert.AnError)

	pool := worker.NewPool(2)
	pool.Start()
	defer pool.Stop()

	instances, err := NewScanner(client, nil).Scan(pool)
	require.NoError(t, err)

	// The failed detail lookup drops the instance, the failed price
	// lookup only leaves the surviving instance without costs
	require.Len(t, instances, 1)
	assert.Equal(t, "i-good", instances[0].InstanceID)
	assert.Nil(t, instances[0].SpotPrice)
	assert.Nil(t, instances[0].Costs.Hourly)
}
