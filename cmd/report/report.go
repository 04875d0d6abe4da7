package report

import (
	"fmt"

	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/spf13/cobra"

	awsinternal "stackpilot/internal/aws"
	"stackpilot/internal/aws/report"
	"stackpilot/internal/config"
	"stackpilot/internal/logging"
	"stackpilot/internal/output"
	"stackpilot/internal/worker"
)

type reportOptions struct {
	output string // filesystem or s3
	bucket string
}

// NewReportCmd creates the report command
func NewReportCmd() *cobra.Command {
	opts := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate an EC2 spot cost report",
		Long: `Scan EC2 instances in the configured region, estimate hourly and
monthly costs from spot price history, write a timestamped JSON report
and print a summary table.

Examples:
  # Report on the configured region
  stackpilot report

  # Report on another region and upload the JSON to S3
  stackpilot report --region us-east-1 --output s3 --bucket my-bucket`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case "filesystem", "s3":
				// Valid output types
			default:
				return fmt.Errorf("invalid output type: %s", opts.output)
			}
			if opts.output == "s3" && opts.bucket == "" && config.Bucket() == "" {
				return fmt.Errorf("--bucket is required when --output=s3")
			}
			return runReport(opts)
		},
	}

	cmd.Flags().StringVar(&opts.output, "output", "filesystem", "Output type (filesystem, s3)")
	cmd.Flags().StringVar(&opts.bucket, "bucket", "", "S3 bucket for the report (defaults to s3.bucket from config)")

	return cmd
}

func runReport(opts *reportOptions) error {
	region := config.Region()

	sess, err := awsinternal.GetSession(region)
	if err != nil {
		return fmt.Errorf("failed to create AWS session: %w", err)
	}

	if accountID, _, err := awsinternal.CallerIdentity(sess); err == nil {
		logging.Info("Scanning account", map[string]interface{}{
			"account": accountID,
			"region":  region,
		})
	}

	scanner := report.NewScanner(ec2.New(sess), config.Tags())

	pool := worker.NewPool(config.Config.MaxWorkers)
	pool.Start()
	defer pool.Stop()

	instances, err := scanner.Scan(pool)
	if err != nil {
		return fmt.Errorf("failed to scan instances: %w", err)
	}

	rep := report.Generate(region, instances)
	report.Display(rep)

	bucket := opts.bucket
	if bucket == "" {
		bucket = config.Bucket()
	}

	writerConfig := output.Config{
		Type:   output.FileSystem,
		Dir:    config.ReportDir(),
		Prefix: config.ReportPrefix(),
	}
	if opts.output == "s3" {
		writerConfig.Type = output.S3
		writerConfig.S3Bucket = bucket
		writerConfig.S3Region = region
	}

	path, err := output.NewWriter(writerConfig).Write(rep)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	logging.Info("Report written", map[string]interface{}{
		"path":      path,
		"instances": rep.Summary.TotalInstances,
	})
	return nil
}
