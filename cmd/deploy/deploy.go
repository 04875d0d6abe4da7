package deploy

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudformation"
	"github.com/aws/aws-sdk-go/service/cloudfront"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/spf13/cobra"

	awsinternal "stackpilot/internal/aws"
	"stackpilot/internal/aws/deploy"
	"stackpilot/internal/aws/policy"
	"stackpilot/internal/config"
	"stackpilot/internal/logging"
	"stackpilot/internal/site"
)

type deployOptions struct {
	stackName          string
	staticWebsiteStack string
	update             bool
	exportTemplate     bool
	dryRun             bool
}

// NewDeployCmd creates the deploy command
func NewDeployCmd() *cobra.Command {
	opts := &deployOptions{}

	cmd := &cobra.Command{
		Use:   "deploy <solution>",
		Short: "Deploy a CloudFormation solution",
		Long: `Deploy one of the configured solutions (static_website, messaging,
streaming_media) as a CloudFormation stack, wait for completion, and
run the solution's post-deploy steps.

Examples:
  # Deploy the static website
  stackpilot deploy static_website --stack-name resume-site

  # Deploy messaging and wire it into the website stack
  stackpilot deploy messaging --stack-name resume-messaging --static-website-stack resume-site

  # Force an update through a change set
  stackpilot deploy static_website --stack-name resume-site --update`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			solutionName := args[0]
			if solutionName == "messaging" || solutionName == "streaming_media" {
				if opts.staticWebsiteStack == "" {
					return fmt.Errorf("--static-website-stack is required when deploying %s", solutionName)
				}
			}
			return runDeploy(cmd.Context(), solutionName, opts)
		},
	}

	cmd.Flags().StringVar(&opts.stackName, "stack-name", "", "CloudFormation stack name")
	cmd.Flags().StringVar(&opts.staticWebsiteStack, "static-website-stack", "", "Name of the deployed static website stack")
	cmd.Flags().BoolVar(&opts.update, "update", false, "Force an update through a change set when no changes are detected")
	cmd.Flags().BoolVar(&opts.exportTemplate, "export-template", false, "Export the deployed template to the solution's deployed dir")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Compute parameters without touching AWS")
	_ = cmd.MarkFlagRequired("stack-name")

	return cmd
}

func runDeploy(ctx context.Context, solutionName string, opts *deployOptions) error {
	solution, err := config.GetSolution(solutionName)
	if err != nil {
		return err
	}
	region := config.Region()

	messaging, err := config.Messaging()
	if err != nil {
		logging.Warn("Failed to read messaging settings", map[string]interface{}{
			"error": err.Error(),
		})
	}

	extra := map[string]string{}
	if opts.staticWebsiteStack != "" {
		extra["StaticWebsiteStackName"] = opts.staticWebsiteStack
	}

	sess, err := awsinternal.GetSession(region)
	if err != nil {
		return fmt.Errorf("failed to create AWS session: %w", err)
	}
	deployer := deploy.NewDeployer(cloudformation.New(sess))

	result := deployer.Deploy(ctx, deploy.Options{
		SolutionName: solutionName,
		StackName:    opts.stackName,
		Region:       region,
		Solution:     solution,
		Tags:         config.Tags(),
		Messaging:    messaging,
		Extra:        extra,
		ForceUpdate:  opts.update,
		DryRun:       opts.dryRun,
	})
	if result.Status != "success" {
		return fmt.Errorf("deployment failed: %s", result.Message)
	}

	if opts.dryRun {
		fmt.Println("Dry run, parameters that would be applied:")
		for _, p := range result.Parameters {
			fmt.Printf("  %s = %s\n", aws.StringValue(p.ParameterKey), aws.StringValue(p.ParameterValue))
		}
		return nil
	}

	logging.Info("Stack deployed", map[string]interface{}{
		"stack":    opts.stackName,
		"solution": solutionName,
		"message":  result.Message,
	})

	if opts.exportTemplate {
		path, err := deployer.ExportTemplate(ctx, opts.stackName, solution.DeployedDir)
		if err != nil {
			logging.Warn("Failed to export deployed template", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			logging.Info("Exported deployed template", map[string]interface{}{"path": path})
		}
	}

	switch solutionName {
	case "static_website":
		postDeployStaticWebsite(ctx, sess, deployer, solution, result.Outputs)
	case "messaging":
		postDeployMessaging(ctx, sess, deployer, opts, messaging, result.Outputs)
	case "streaming_media":
		postDeployStreaming(ctx, sess, deployer, opts, result.Outputs)
	}

	if domain := result.Outputs["CloudFrontDistributionDomainName"]; domain != "" {
		fmt.Printf("Website available at: https://%s\n", domain)
	}
	return nil
}

// postDeployStaticWebsite uploads the site content and, for templates
// that manage no bucket policy of their own, grants the distribution
// read access to the bucket.
func postDeployStaticWebsite(ctx context.Context, sess *session.Session, deployer *deploy.Deployer, solution config.Solution, outputs map[string]string) {
	bucket := outputs["S3BucketName"]
	if bucket == "" {
		logging.Warn("S3BucketName missing from stack outputs, skipping site upload")
		return
	}

	if err := publishSite(ctx, sess, solution, bucket); err != nil {
		logging.Warn("Failed to upload site content", map[string]interface{}{
			"error": err.Error(),
		})
	}

	hasPolicy, err := deploy.TemplateHasBucketPolicy(solution.TemplatePath)
	if err != nil {
		logging.Warn("Failed to inspect template for a bucket policy", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if hasPolicy {
		return
	}

	distributionID := outputs["CloudFrontDistributionId"]
	if distributionID == "" {
		logging.Warn("CloudFrontDistributionId missing from stack outputs, skipping bucket policy")
		return
	}

	arn, err := awsinternal.DistributionARN(ctx, cloudfront.New(sess), distributionID)
	if err != nil {
		logging.Warn("Failed to resolve distribution ARN", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if _, err := policy.NewPatcher(s3.New(sess)).Attach(ctx, bucket, arn); err != nil {
		logging.Warn("Failed to attach bucket policy", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// postDeployMessaging points the website stack at the messaging stack,
// patches the API endpoint into index.html and republishes the site.
// Failures here are warnings, the messaging stack itself deployed fine.
func postDeployMessaging(ctx context.Context, sess *session.Session, deployer *deploy.Deployer, opts *deployOptions, messaging config.MessagingSettings, outputs map[string]string) {
	endpoint := outputs["ApiEndpoint"]
	if endpoint == "" {
		logging.Warn("ApiEndpoint missing from stack outputs, skipping website update")
		return
	}

	result := deployer.UpdateStackParameters(ctx, opts.staticWebsiteStack, map[string]string{
		"MessagingStackName": opts.stackName,
	})
	if result.Status != "success" {
		logging.Warn("Failed to update static website stack parameters", map[string]interface{}{
			"message": result.Message,
		})
	}

	solution, err := config.GetSolution("static_website")
	if err != nil {
		logging.Warn("static_website solution not configured, skipping website update")
		return
	}

	indexPath, err := site.IndexPath(solution.ContentDir)
	if err != nil {
		logging.Warn("Failed to locate index.html", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if err := site.UpdateIndexHTML(indexPath, endpoint, messaging.Email.Destination); err != nil {
		logging.Warn("Failed to patch API endpoint into index.html", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if err := site.AddMessagingDemo(indexPath); err != nil {
		logging.Warn("Failed to add messaging demo to index.html", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	republishSite(ctx, sess, deployer, opts.staticWebsiteStack, solution)
}

// postDeployStreaming mirrors postDeployMessaging for the streaming
// media stack.
func postDeployStreaming(ctx context.Context, sess *session.Session, deployer *deploy.Deployer, opts *deployOptions, outputs map[string]string) {
	endpoints := site.StreamingEndpoints{
		HLS:                outputs["HlsEndpointUrl"],
		Dash:               outputs["DashEndpointUrl"],
		MediaLiveInput:     outputs["MediaLiveInputUrl"],
		VodBucket:          outputs["VodBucketName"],
		DistributionID:     outputs["CloudFrontDistributionId"],
		DistributionDomain: outputs["CloudFrontDistributionDomainName"],
	}
	if endpoints.HLS == "" && endpoints.Dash == "" {
		logging.Warn("Streaming endpoints missing from stack outputs, skipping website update")
		return
	}

	result := deployer.UpdateStackParameters(ctx, opts.staticWebsiteStack, map[string]string{
		"StreamingMediaStackName": opts.stackName,
	})
	if result.Status != "success" {
		logging.Warn("Failed to update static website stack parameters", map[string]interface{}{
			"message": result.Message,
		})
	}

	solution, err := config.GetSolution("static_website")
	if err != nil {
		logging.Warn("static_website solution not configured, skipping website update")
		return
	}

	indexPath, err := site.IndexPath(solution.ContentDir)
	if err != nil {
		logging.Warn("Failed to locate index.html", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	if err := site.AddStreamingDemo(indexPath); err != nil {
		logging.Warn("Failed to add streaming demo to index.html", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if err := site.AddStreamingButtons(indexPath, endpoints); err != nil {
		logging.Warn("Failed to add streaming buttons to index.html", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	republishSite(ctx, sess, deployer, opts.staticWebsiteStack, solution)
}

// republishSite re-uploads the site after index.html was patched
func republishSite(ctx context.Context, sess *session.Session, deployer *deploy.Deployer, websiteStack string, solution config.Solution) {
	outputs, err := deployer.StackOutputs(ctx, websiteStack)
	if err != nil {
		logging.Warn("Failed to read static website stack outputs", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	bucket := outputs["S3BucketName"]
	if bucket == "" {
		bucket = config.Bucket()
	}
	if bucket == "" {
		logging.Warn("No S3 bucket known for the static website, skipping re-upload")
		return
	}

	if err := publishSite(ctx, sess, solution, bucket); err != nil {
		logging.Warn("Failed to re-upload site content", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func publishSite(ctx context.Context, sess *session.Session, solution config.Solution, bucket string) error {
	dir, err := site.ResolveContentDir(solution.ContentDir)
	if err != nil {
		return err
	}
	publisher := site.NewPublisher(s3.New(sess), s3manager.NewUploader(sess))
	_, err = publisher.Publish(ctx, bucket, config.KeyPrefix(), dir)
	return err
}
