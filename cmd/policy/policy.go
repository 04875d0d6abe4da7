package policy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/service/cloudfront"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/spf13/cobra"

	awsinternal "stackpilot/internal/aws"
	"stackpilot/internal/aws/policy"
	"stackpilot/internal/config"
	"stackpilot/internal/logging"
)

// NewPolicyCmd creates the policy command
func NewPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage S3 bucket policies",
	}

	cmd.AddCommand(newAttachCmd())

	return cmd
}

type attachOptions struct {
	bucket          string
	distributionID  string
	distributionARN string
}

func newAttachCmd() *cobra.Command {
	opts := &attachOptions{}

	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Grant a CloudFront distribution read access to a bucket",
		Long: `Add or merge a CloudFront service-principal statement into the
bucket policy. Without --distribution-id or --distribution-arn the
distribution is found by matching its origin against the bucket.

Examples:
  # Find the distribution serving the bucket and attach the policy
  stackpilot policy attach --bucket my-resume-bucket

  # Attach for a specific distribution
  stackpilot policy attach --bucket my-resume-bucket --distribution-id E2ABCDEF123456`,
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket := opts.bucket
			if bucket == "" {
				bucket = config.Bucket()
			}
			if bucket == "" {
				return fmt.Errorf("no S3 bucket configured, set s3.bucket or pass --bucket")
			}
			return runAttach(cmd.Context(), bucket, opts)
		},
	}

	cmd.Flags().StringVar(&opts.bucket, "bucket", "", "S3 bucket (defaults to s3.bucket from config)")
	cmd.Flags().StringVar(&opts.distributionID, "distribution-id", "", "CloudFront distribution ID")
	cmd.Flags().StringVar(&opts.distributionARN, "distribution-arn", "", "CloudFront distribution ARN")

	return cmd
}

func runAttach(ctx context.Context, bucket string, opts *attachOptions) error {
	sess, err := awsinternal.GetSession(config.Region())
	if err != nil {
		return fmt.Errorf("failed to create AWS session: %w", err)
	}

	arn := opts.distributionARN
	if arn == "" {
		cf := cloudfront.New(sess)
		if opts.distributionID != "" {
			arn, err = awsinternal.DistributionARN(ctx, cf, opts.distributionID)
		} else {
			arn, err = awsinternal.FindDistributionARN(ctx, cf, bucket)
		}
		if err != nil {
			return err
		}
	}

	changed, err := policy.NewPatcher(s3.New(sess)).Attach(ctx, bucket, arn)
	if err != nil {
		return err
	}
	if changed {
		fmt.Printf("Bucket policy on %s now grants access to %s\n", bucket, arn)
	} else {
		logging.Info("Bucket policy already up to date", map[string]interface{}{
			"bucket": bucket,
		})
	}
	return nil
}
