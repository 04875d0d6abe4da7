package report

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"

	"stackpilot/internal/logging"
	"stackpilot/internal/worker"
)

// Scanner collects instance details and spot prices for a region
type Scanner struct {
	ec2         ec2iface.EC2API
	defaultTags map[string]string
}

// NewScanner creates a scanner. defaultTags are merged into each
// instance's tags without overriding tags set on the instance.
func NewScanner(client ec2iface.EC2API, defaultTags map[string]string) *Scanner {
	return &Scanner{
		ec2:         client,
		defaultTags: defaultTags,
	}
}

// ListInstanceIDs enumerates every instance in the region
func (s *Scanner) ListInstanceIDs() ([]string, error) {
	var ids []string
	err := s.ec2.DescribeInstancesPages(&ec2.DescribeInstancesInput{},
		func(page *ec2.DescribeInstancesOutput, lastPage bool) bool {
			for _, reservation := range page.Reservations {
				for _, instance := range reservation.Instances {
					ids = append(ids, aws.StringValue(instance.InstanceId))
				}
			}
			return true
		})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instances: %w", err)
	}
	return ids, nil
}

// InstanceDetails fetches the detail record for a single instance and
// merges in the configured default tags
func (s *Scanner) InstanceDetails(instanceID string) (*Instance, error) {
	output, err := s.ec2.DescribeInstances(&ec2.DescribeInstancesInput{
		InstanceIds: []*string{aws.String(instanceID)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instance %s: %w", instanceID, err)
	}
	if len(output.Reservations) == 0 || len(output.Reservations[0].Instances) == 0 {
		return nil, fmt.Errorf("instance %s not found", instanceID)
	}

	instance := output.Reservations[0].Instances[0]

	tags := make(map[string]string)
	for _, tag := range instance.Tags {
		tags[aws.StringValue(tag.Key)] = aws.StringValue(tag.Value)
	}
	// Instance tags win over config defaults
	for key, value := range s.defaultTags {
		if _, ok := tags[key]; !ok {
			tags[key] = value
		}
	}

	return &Instance{
		InstanceID:       instanceID,
		InstanceType:     aws.StringValue(instance.InstanceType),
		State:            aws.StringValue(instance.State.Name),
		AvailabilityZone: aws.StringValue(instance.Placement.AvailabilityZone),
		LaunchTime:       aws.TimeValue(instance.LaunchTime).Format(time.RFC3339),
		Tags:             tags,
	}, nil
}

// SpotPrice returns the most recent Linux/UNIX spot price for the
// instance type in the availability zone, or nil when no history exists
func (s *Scanner) SpotPrice(instanceType, availabilityZone string) (*float64, error) {
	output, err := s.ec2.DescribeSpotPriceHistory(&ec2.DescribeSpotPriceHistoryInput{
		InstanceTypes:       []*string{aws.String(instanceType)},
		AvailabilityZone:    aws.String(availabilityZone),
		ProductDescriptions: []*string{aws.String("Linux/UNIX")},
		StartTime:           aws.Time(time.Now().UTC()),
		MaxResults:          aws.Int64(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get spot price history: %w", err)
	}
	if len(output.SpotPriceHistory) == 0 {
		return nil, nil
	}

	price, err := strconv.ParseFloat(aws.StringValue(output.SpotPriceHistory[0].SpotPrice), 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse spot price: %w", err)
	}
	return &price, nil
}

// Scan fetches details and spot prices for all instances, fanning the
// per-instance lookups out over the worker pool. Instances whose detail
// lookup fails are dropped; a failed price lookup only leaves the cost
// fields empty.
func (s *Scanner) Scan(pool *worker.Pool) ([]Instance, error) {
	ids, err := s.ListInstanceIDs()
	if err != nil {
		return nil, err
	}

	logging.Info("Found instances", map[string]interface{}{
		"count": len(ids),
	})

	var mu sync.Mutex
	instances := make([]Instance, 0, len(ids))

	tasks := make([]worker.Task, 0, len(ids))
	for _, id := range ids {
		instanceID := id
		tasks = append(tasks, func(ctx context.Context) error {
			detail, err := s.InstanceDetails(instanceID)
			if err != nil {
				logging.Warn("Skipping instance", map[string]interface{}{
					"instance_id": instanceID,
					"error":       err.Error(),
				})
				return err
			}

			price, err := s.SpotPrice(detail.InstanceType, detail.AvailabilityZone)
			if err != nil {
				logging.Warn("No spot price for instance", map[string]interface{}{
					"instance_id": instanceID,
					"error":       err.Error(),
				})
				price = nil
			}
			detail.SpotPrice = price
			detail.Costs = CalculateCosts(price)

			mu.Lock()
			instances = append(instances, *detail)
			mu.Unlock()
			return nil
		})
	}

	pool.ExecuteTasks(tasks)

	// Pool completion order is nondeterministic
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].InstanceID < instances[j].InstanceID
	})

	return instances, nil
}
