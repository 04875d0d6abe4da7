package upload

import (
	"fmt"

	"github.com/aws/aws-sdk-go/service/cloudfront"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/spf13/cobra"

	awsinternal "stackpilot/internal/aws"
	"stackpilot/internal/config"
	"stackpilot/internal/logging"
	"stackpilot/internal/site"
)

type uploadOptions struct {
	bucket         string
	distributionID string
}

// NewUploadCmd creates the upload command
func NewUploadCmd() *cobra.Command {
	opts := &uploadOptions{}

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload the static website content to S3",
		Long: `Walk the static website content directory and upload index.html,
stylesheets and images to the configured S3 bucket. Other files,
CloudFormation templates included, are skipped.

Examples:
  # Upload using the bucket from config.yaml
  stackpilot upload

  # Upload to another bucket and invalidate the CloudFront cache
  stackpilot upload --bucket my-bucket --distribution-id E2ABCDEF123456`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket := opts.bucket
			if bucket == "" {
				bucket = config.Bucket()
			}
			if bucket == "" {
				return fmt.Errorf("no S3 bucket configured, set s3.bucket or pass --bucket")
			}
			return runUpload(cmd, bucket, opts)
		},
	}

	cmd.Flags().StringVar(&opts.bucket, "bucket", "", "S3 bucket (defaults to s3.bucket from config)")
	cmd.Flags().StringVar(&opts.distributionID, "distribution-id", "", "CloudFront distribution to invalidate after upload")

	return cmd
}

func runUpload(cmd *cobra.Command, bucket string, opts *uploadOptions) error {
	ctx := cmd.Context()

	var contentDir string
	if solution, err := config.GetSolution("static_website"); err == nil {
		contentDir = solution.ContentDir
	}
	dir, err := site.ResolveContentDir(contentDir)
	if err != nil {
		return err
	}

	sess, err := awsinternal.GetSession(config.Region())
	if err != nil {
		return fmt.Errorf("failed to create AWS session: %w", err)
	}

	publisher := site.NewPublisher(s3.New(sess), s3manager.NewUploader(sess))
	stats, err := publisher.Publish(ctx, bucket, config.KeyPrefix(), dir)
	if err != nil {
		return err
	}
	fmt.Printf("Uploaded %d files to s3://%s/%s\n", stats.Files, bucket, config.KeyPrefix())

	if opts.distributionID != "" {
		if err := awsinternal.InvalidateDistribution(ctx, cloudfront.New(sess), opts.distributionID); err != nil {
			return fmt.Errorf("failed to invalidate distribution: %w", err)
		}
		logging.Info("Invalidated CloudFront distribution", map[string]interface{}{
			"distribution_id": opts.distributionID,
		})
	}
	return nil
}
