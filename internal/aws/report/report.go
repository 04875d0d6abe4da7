// Package report builds spot-price cost reports for EC2 instances.
package report

import (
	"time"
)

// Costs holds the derived hourly and monthly cost estimates for an
// instance. Nil values mean no spot price was available.
type Costs struct {
	Hourly  *float64 `json:"hourly"`
	Monthly *float64 `json:"monthly"`
}

// Instance is one scanned EC2 instance
type Instance struct {
	InstanceID       string            `json:"InstanceId"`
	InstanceType     string            `json:"InstanceType"`
	State            string            `json:"State"`
	AvailabilityZone string            `json:"AvailabilityZone"`
	LaunchTime       string            `json:"LaunchTime"`
	Tags             map[string]string `json:"Tags"`
	SpotPrice        *float64          `json:"SpotPrice"`
	Costs            Costs             `json:"Costs"`
}

// Summary aggregates the scanned instances
type Summary struct {
	TotalInstances   int     `json:"total_instances"`
	RunningInstances int     `json:"running_instances"`
	TotalHourlyCost  float64 `json:"total_hourly_cost"`
	TotalMonthlyCost float64 `json:"total_monthly_cost"`
}

// Report is the persisted cost report document
type Report struct {
	Timestamp string     `json:"timestamp"`
	Region    string     `json:"region"`
	Instances []Instance `json:"instances"`
	Summary   Summary    `json:"summary"`
}

// Generate builds a report from scanned instances. Terminated instances
// count towards the totals but are excluded from the cost sums.
func Generate(region string, instances []Instance) Report {
	summary := Summary{
		TotalInstances: len(instances),
	}

	for _, instance := range instances {
		if instance.State == "running" {
			summary.RunningInstances++
		}
		if instance.State == "terminated" {
			continue
		}
		if instance.Costs.Hourly != nil {
			summary.TotalHourlyCost += *instance.Costs.Hourly
		}
		if instance.Costs.Monthly != nil {
			summary.TotalMonthlyCost += *instance.Costs.Monthly
		}
	}

	return Report{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Region:    region,
		Instances: instances,
		Summary:   summary,
	}
}
