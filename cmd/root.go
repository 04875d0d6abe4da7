package cmd

import (
	"runtime"

	"github.com/spf13/cobra"

	deployCmd "stackpilot/cmd/deploy"
	initCmd "stackpilot/cmd/init"
	"stackpilot/cmd/list"
	policyCmd "stackpilot/cmd/policy"
	reportCmd "stackpilot/cmd/report"
	uploadCmd "stackpilot/cmd/upload"
	versionCmd "stackpilot/cmd/version"
	websiteCmd "stackpilot/cmd/website"
	"stackpilot/internal/config"
	"stackpilot/internal/logging"
)

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	var (
		logLevel   string
		configFile string
	)

	// Initialize config
	if err := config.InitConfig(); err != nil {
		return err
	}

	rootCmd := &cobra.Command{
		Use:   "stackpilot",
		Short: "stackpilot - personal AWS infrastructure automation",
		Long: `stackpilot deploys CloudFormation solutions, publishes a static
website to S3, wires CloudFront access policies, and reports EC2 spot
costs, all driven by a single config.yaml.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Set config file if specified
			if configFile != "" {
				if err := config.SetConfigFile(configFile); err != nil {
					logging.Error("Failed to load config file", err)
				}
			}

			// Configure logging based on flags
			logFormat := logging.Text
			if config.Config.LogFormat == "json" {
				logFormat = logging.JSON
			}

			logging.Configure(logging.LogConfig{
				Level:  logging.ParseLevel(logLevel),
				Format: logFormat,
			})
		},
	}

	// Add global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVarP(&config.Config.Profile, "profile", "p", "default", "AWS profile to use (supports SSO profiles)")
	rootCmd.PersistentFlags().StringVarP(&config.Config.Region, "region", "r", "", "AWS region (overrides config file)")
	rootCmd.PersistentFlags().IntVar(&config.Config.MaxWorkers, "max-workers", runtime.NumCPU(), "Maximum number of concurrent workers")
	rootCmd.PersistentFlags().StringVar(&config.Config.LogFormat, "log-format", "text", "Log output format (text or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO",
		"Set logging level (DEBUG, INFO, WARN, ERROR)")

	// Add commands
	rootCmd.AddCommand(reportCmd.NewReportCmd())
	rootCmd.AddCommand(deployCmd.NewDeployCmd())
	rootCmd.AddCommand(uploadCmd.NewUploadCmd())
	rootCmd.AddCommand(policyCmd.NewPolicyCmd())
	rootCmd.AddCommand(websiteCmd.NewWebsiteCmd())
	rootCmd.AddCommand(list.NewListCmd())
	rootCmd.AddCommand(initCmd.NewInitCmd())
	rootCmd.AddCommand(versionCmd.NewVersionCmd())

	return rootCmd.Execute()
}
