package website

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/service/cloudformation"
	"github.com/spf13/cobra"

	awsinternal "stackpilot/internal/aws"
	"stackpilot/internal/aws/deploy"
	"stackpilot/internal/config"
	"stackpilot/internal/logging"
	"stackpilot/internal/site"
)

// NewWebsiteCmd creates the website command
func NewWebsiteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "website",
		Short: "Patch deployed endpoints into the static website",
	}

	cmd.AddCommand(newUpdateCmd())

	return cmd
}

type updateOptions struct {
	messagingStack     string
	streamingStack     string
	staticWebsiteStack string
}

func newUpdateCmd() *cobra.Command {
	opts := &updateOptions{}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Patch stack outputs into index.html",
		Long: `Read outputs from deployed messaging or streaming stacks and patch
the API endpoint, demo entries and streaming buttons into the site's
index.html.

Examples:
  # Patch the messaging API endpoint into the site
  stackpilot website update --messaging-stack resume-messaging --static-website-stack resume-site

  # Patch the streaming endpoints into the site
  stackpilot website update --streaming-stack resume-streaming`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.messagingStack == "" && opts.streamingStack == "" {
				return fmt.Errorf("at least one of --messaging-stack or --streaming-stack is required")
			}
			return runUpdate(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.messagingStack, "messaging-stack", "", "Messaging stack to read the API endpoint from")
	cmd.Flags().StringVar(&opts.streamingStack, "streaming-stack", "", "Streaming media stack to read endpoints from")
	cmd.Flags().StringVar(&opts.staticWebsiteStack, "static-website-stack", "", "Static website stack to point at the messaging stack")

	return cmd
}

func runUpdate(ctx context.Context, opts *updateOptions) error {
	sess, err := awsinternal.GetSession(config.Region())
	if err != nil {
		return fmt.Errorf("failed to create AWS session: %w", err)
	}
	deployer := deploy.NewDeployer(cloudformation.New(sess))

	var contentDir string
	if solution, err := config.GetSolution("static_website"); err == nil {
		contentDir = solution.ContentDir
	}
	indexPath, err := site.IndexPath(contentDir)
	if err != nil {
		return err
	}

	if opts.messagingStack != "" {
		if err := updateFromMessaging(ctx, deployer, indexPath, opts); err != nil {
			return err
		}
	}
	if opts.streamingStack != "" {
		if err := updateFromStreaming(ctx, deployer, indexPath, opts.streamingStack); err != nil {
			return err
		}
	}
	return nil
}

func updateFromMessaging(ctx context.Context, deployer *deploy.Deployer, indexPath string, opts *updateOptions) error {
	outputs, err := deployer.StackOutputs(ctx, opts.messagingStack)
	if err != nil {
		return fmt.Errorf("failed to read outputs of %s: %w", opts.messagingStack, err)
	}
	endpoint := outputs["ApiEndpoint"]
	if endpoint == "" {
		return fmt.Errorf("ApiEndpoint not found in outputs of %s", opts.messagingStack)
	}

	if opts.staticWebsiteStack != "" {
		result := deployer.UpdateStackParameters(ctx, opts.staticWebsiteStack, map[string]string{
			"MessagingStackName": opts.messagingStack,
		})
		if result.Status != "success" {
			logging.Warn("Failed to update static website stack parameters", map[string]interface{}{
				"message": result.Message,
			})
		}
	}

	messaging, err := config.Messaging()
	if err != nil {
		logging.Warn("Failed to read messaging settings", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if err := site.UpdateIndexHTML(indexPath, endpoint, messaging.Email.Destination); err != nil {
		return err
	}
	return site.AddMessagingDemo(indexPath)
}

func updateFromStreaming(ctx context.Context, deployer *deploy.Deployer, indexPath, stackName string) error {
	outputs, err := deployer.StackOutputs(ctx, stackName)
	if err != nil {
		return fmt.Errorf("failed to read outputs of %s: %w", stackName, err)
	}

	endpoints := site.StreamingEndpoints{
		HLS:                outputs["HlsEndpointUrl"],
		Dash:               outputs["DashEndpointUrl"],
		MediaLiveInput:     outputs["MediaLiveInputUrl"],
		VodBucket:          outputs["VodBucketName"],
		DistributionID:     outputs["CloudFrontDistributionId"],
		DistributionDomain: outputs["CloudFrontDistributionDomainName"],
	}
	if endpoints.HLS == "" && endpoints.Dash == "" {
		return fmt.Errorf("streaming endpoints not found in outputs of %s", stackName)
	}

	if err := site.AddStreamingDemo(indexPath); err != nil {
		return err
	}
	return site.AddStreamingButtons(indexPath, endpoints)
}
