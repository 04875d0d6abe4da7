package config

import (
	"fmt"
	"runtime"

	"github.com/spf13/viper"
)

// GlobalConfig holds the global configuration for the application
type GlobalConfig struct {
	// Profile is the AWS profile to use
	Profile string

	// Region is the AWS region, CLI flag overrides the config file
	Region string

	// MaxWorkers defines the maximum number of concurrent workers
	MaxWorkers int

	// LogFormat is the format for logging
	LogFormat string
}

// Config is the global configuration instance
var Config = &GlobalConfig{
	Profile:    "default",
	MaxWorkers: runtime.NumCPU() * 4, // I/O bound work
}

// Solution describes one deployable solution from the config file
type Solution struct {
	TemplatePath string            `mapstructure:"template_path"`
	DeployedDir  string            `mapstructure:"deployed_dir"`
	ContentDir   string            `mapstructure:"content_dir"`
	Parameters   map[string]string `mapstructure:"parameters"`
}

// EmailSettings holds the messaging email destination
type EmailSettings struct {
	Destination string `mapstructure:"destination"`
}

// SMSSettings holds the messaging SMS destination and country
type SMSSettings struct {
	Destination string `mapstructure:"destination"`
	Country     string `mapstructure:"country"`
}

// MessagingSettings holds the messaging solution defaults
type MessagingSettings struct {
	Email EmailSettings `mapstructure:"email"`
	SMS   SMSSettings   `mapstructure:"sms"`
}

// Region returns the effective region, flag value first
func Region() string {
	if Config.Region != "" {
		return Config.Region
	}
	if r := viper.GetString("region"); r != "" {
		return r
	}
	return "us-east-1"
}

// ReportDir returns the directory cost reports are written to
func ReportDir() string {
	return viper.GetString("output.report_dir")
}

// ReportPrefix returns the filename prefix for cost reports
func ReportPrefix() string {
	return viper.GetString("output.report_prefix")
}

// Bucket returns the configured static website bucket
func Bucket() string {
	return viper.GetString("s3.bucket")
}

// KeyPrefix returns the S3 key prefix for uploaded site content
func KeyPrefix() string {
	return viper.GetString("s3.key_prefix")
}

// Tags returns the default resource tags from the config file
func Tags() map[string]string {
	return viper.GetStringMapString("tags")
}

// Messaging returns the messaging solution defaults
func Messaging() (MessagingSettings, error) {
	var m MessagingSettings
	if err := viper.UnmarshalKey("messaging", &m); err != nil {
		return m, fmt.Errorf("failed to parse messaging config: %w", err)
	}
	return m, nil
}

// Solutions returns all configured solutions keyed by name
func Solutions() (map[string]Solution, error) {
	solutions := make(map[string]Solution)
	if err := viper.UnmarshalKey("solutions", &solutions); err != nil {
		return nil, fmt.Errorf("failed to parse solutions config: %w", err)
	}
	return solutions, nil
}

// GetSolution looks up a single solution by name
func GetSolution(name string) (Solution, error) {
	solutions, err := Solutions()
	if err != nil {
		return Solution{}, err
	}
	solution, ok := solutions[name]
	if !ok {
		return Solution{}, fmt.Errorf("solution %q not found in configuration", name)
	}
	return solution, nil
}
