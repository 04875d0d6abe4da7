package report

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instanceWithCosts(id, state string, hourly float64) Instance {
	return Instance{
		InstanceID: id,
		State:      state,
		SpotPrice:  aws.Float64(hourly),
		Costs:      CalculateCosts(aws.Float64(hourly)),
	}
}

func TestGenerate(t *testing.T) {
	instances := []Instance{
		instanceWithCosts("i-running", "running", 0.05),
		instanceWithCosts("i-stopped", "stopped", 0.10),
		instanceWithCosts("i-gone", "terminated", 1.00),
	}

	report := Generate("us-west-2", instances)

	assert.Equal(t, "us-west-2", report.Region)
	assert.Equal(t, instances, report.Instances)

	// Terminated instances count but contribute no cost
	assert.Equal(t, 3, report.Summary.TotalInstances)
	assert.Equal(t, 1, report.Summary.RunningInstances)
	assert.InDelta(t, 0.15, report.Summary.TotalHourlyCost, 1e-9)
	assert.InDelta(t, 36.53+73.06, report.Summary.TotalMonthlyCost, 1e-9)
}

func TestGenerateTimestamp(t *testing.T) {
	report := Generate("us-west-2", nil)

	parsed, err := time.Parse(time.RFC3339, report.Timestamp)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), parsed, time.Minute)
}

func TestGenerateInstanceWithoutPrice(t *testing.T) {
	instances := []Instance{
		{InstanceID: "i-nopricedata", State: "running"},
	}

	report := Generate("us-west-2", instances)

	assert.Equal(t, 1, report.Summary.TotalInstances)
	assert.Equal(t, 1, report.Summary.RunningInstances)
	assert.Zero(t, report.Summary.TotalHourlyCost)
	assert.Zero(t, report.Summary.TotalMonthlyCost)
}
