package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/cloudformation"

	"stackpilot/internal/logging"
)

// ExportTemplate fetches the live template for a stack and writes it to
// the solution's deployed directory, returning the path written.
func (d *Deployer) ExportTemplate(ctx context.Context, stackName, deployedDir string) (string, error) {
	if deployedDir == "" {
		deployedDir = "iac/deployed"
	}

	output, err := d.cfn.GetTemplateWithContext(ctx, &cloudformation.GetTemplateInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get template for stack %s: %w", stackName, err)
	}

	if err := os.MkdirAll(deployedDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create deployed directory: %w", err)
	}

	path := filepath.Join(deployedDir, stackName+".yaml")
	if err := os.WriteFile(path, []byte(aws.StringValue(output.TemplateBody)), 0644); err != nil {
		return "", fmt.Errorf("failed to write deployed template: %w", err)
	}

	logging.Info("Exported deployed template", map[string]interface{}{
		"stack": stackName,
		"path":  path,
	})

	return path, nil
}
