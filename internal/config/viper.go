package config

import (
	"fmt"
	"os"
	"strings"

	"stackpilot/internal/logging"

	"github.com/spf13/viper"
)

// InitConfig initializes the Viper configuration
func InitConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("STACKPILOT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault("region", "us-east-1")
	viper.SetDefault("output.report_dir", "reports")
	viper.SetDefault("output.report_prefix", "aws_infra_report")
	viper.SetDefault("s3.bucket", "")
	viper.SetDefault("s3.key_prefix", "static_website")

	// Config file is optional, defaults and env vars cover the rest
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		logging.Debug("No config file found, using defaults and environment variables")
	} else {
		logging.Debug("Loaded config file", map[string]interface{}{
			"path": viper.ConfigFileUsed(),
		})
	}

	return nil
}

// SetConfigFile sets a custom config file path and reloads the configuration
func SetConfigFile(configFile string) error {
	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// WriteDefaultConfig writes a commented default config file to the given path.
// Refuses to overwrite an existing file.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}

	defaultConfig := []byte(`# stackpilot configuration file

# AWS region used for scanning and deployments
region: us-east-1

# Cost report output settings
output:
  report_dir: reports
  report_prefix: aws_infra_report

# Static website bucket and key prefix for uploaded content
s3:
  bucket: ""
  key_prefix: static_website

# Default tags merged into instance reports and passed to stacks
tags:
  organization: ""
  business_unit: ""
  environment: ""

# Messaging solution destinations
messaging:
  email:
    destination: ""
  sms:
    destination: ""
    country: US

# Deployable solutions: CloudFormation template plus parameters
solutions:
  static_website:
    template_path: iac/static_website/template.yaml
    deployed_dir: iac/deployed
    content_dir: iac/static_website/content
    parameters:
      BucketNamePrefix: ""
  messaging:
    template_path: iac/messaging/template.yaml
    parameters: {}
  streaming_media:
    template_path: iac/streaming_media/template.yaml
    parameters: {}
`)

	if err := os.WriteFile(path, defaultConfig, 0644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}
	return nil
}
