package deploy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/cloudformation"
)

// UpdateStackParameters updates a live stack in place, overlaying
// newParams on the stack's current parameter values and reusing the
// deployed template. "No updates are to be performed" counts as success.
func (d *Deployer) UpdateStackParameters(ctx context.Context, stackName string, newParams map[string]string) Result {
	output, err := d.cfn.DescribeStacksWithContext(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return errorResult(fmt.Errorf("failed to describe stack %s: %w", stackName, err))
	}
	if len(output.Stacks) == 0 {
		return errorResult(fmt.Errorf("stack %s not found", stackName))
	}

	var parameters []*cloudformation.Parameter
	seen := make(map[string]bool)
	for _, p := range output.Stacks[0].Parameters {
		key := aws.StringValue(p.ParameterKey)
		seen[key] = true
		if value, ok := newParams[key]; ok {
			parameters = append(parameters, &cloudformation.Parameter{
				ParameterKey:   aws.String(key),
				ParameterValue: aws.String(value),
			})
			continue
		}
		parameters = append(parameters, &cloudformation.Parameter{
			ParameterKey:   aws.String(key),
			ParameterValue: p.ParameterValue,
		})
	}
	// Parameters the stack has never seen are passed through as-is
	for _, key := range sortedKeys(newParams) {
		if !seen[key] {
			parameters = append(parameters, &cloudformation.Parameter{
				ParameterKey:   aws.String(key),
				ParameterValue: aws.String(newParams[key]),
			})
		}
	}

	_, err = d.cfn.UpdateStackWithContext(ctx, &cloudformation.UpdateStackInput{
		StackName:           aws.String(stackName),
		UsePreviousTemplate: aws.Bool(true),
		Parameters:          parameters,
		Capabilities:        capabilities,
	})
	if err != nil {
		if isNoUpdates(err) {
			return Result{
				Status:  "success",
				Message: "No updates needed, stack parameters already current.",
			}
		}
		return errorResult(fmt.Errorf("failed to update stack parameters: %w", err))
	}

	if err := d.waitForStack(ctx, stackName, "update"); err != nil {
		return errorResult(err)
	}

	return Result{
		Status:  "success",
		Message: "Stack updated successfully with new parameters.",
	}
}
