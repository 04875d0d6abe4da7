package aws

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws/defaults"
	"gopkg.in/ini.v1"
)

// ListProfiles returns the AWS profiles declared in the shared credentials
// and config files
func ListProfiles() ([]string, error) {
	credsPath := os.Getenv("AWS_SHARED_CREDENTIALS_FILE")
	if credsPath == "" {
		credsPath = defaults.SharedCredentialsFilename()
	}

	configPath := os.Getenv("AWS_CONFIG_FILE")
	if configPath == "" {
		configPath = defaults.SharedConfigFilename()
	}

	profiles := make(map[string]struct{})

	for _, path := range []string{credsPath, configPath} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		file, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		for _, section := range file.Sections() {
			name := section.Name()
			if name == "DEFAULT" || name == ini.DefaultSection {
				continue
			}
			// Config file sections are named "profile <name>"
			profiles[strings.TrimPrefix(name, "profile ")] = struct{}{}
		}
	}

	result := make([]string, 0, len(profiles))
	for profile := range profiles {
		result = append(result, profile)
	}
	sort.Strings(result)

	return result, nil
}
