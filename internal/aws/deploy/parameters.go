package deploy

import (
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/cloudformation"
	"gopkg.in/yaml.v3"

	"stackpilot/internal/config"
)

// template is the subset of a CloudFormation template we inspect
type template struct {
	Parameters map[string]interface{} `yaml:"Parameters"`
	Resources  map[string]interface{} `yaml:"Resources"`
}

func parseTemplate(body string) (*template, error) {
	var t template
	if err := yaml.Unmarshal([]byte(body), &t); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &t, nil
}

// DeclaresParameter reports whether the template declares the named parameter
func (t *template) DeclaresParameter(name string) bool {
	_, ok := t.Parameters[name]
	return ok
}

// HasResource reports whether the template declares the named resource
func (t *template) HasResource(name string) bool {
	_, ok := t.Resources[name]
	return ok
}

// buildParameters assembles the CloudFormation parameter list for a
// deployment: solution parameters, AwsRegion (only when the template
// declares it), tag parameters, messaging parameters, and any extra
// parameters such as StaticWebsiteStackName.
func buildParameters(tmpl *template, solution config.Solution, region string,
	tags map[string]string, messaging config.MessagingSettings,
	extra map[string]string) []*cloudformation.Parameter {

	var parameters []*cloudformation.Parameter

	add := func(key, value string) {
		parameters = append(parameters, &cloudformation.Parameter{
			ParameterKey:   aws.String(key),
			ParameterValue: aws.String(value),
		})
	}

	for _, key := range sortedKeys(solution.Parameters) {
		add(key, solution.Parameters[key])
	}

	// Templates without an AwsRegion parameter reject it during validation
	if tmpl.DeclaresParameter("AwsRegion") {
		add("AwsRegion", region)
	}

	if v, ok := tags["organization"]; ok {
		add("OrganizationTag", v)
	}
	if v, ok := tags["business_unit"]; ok {
		add("BusinessUnitTag", v)
	}
	if v, ok := tags["environment"]; ok {
		add("EnvironmentTag", v)
	}

	if messaging.Email.Destination != "" {
		add("EmailDestination", messaging.Email.Destination)
	}
	if messaging.SMS.Destination != "" {
		add("SmsDestination", messaging.SMS.Destination)
	}
	if messaging.SMS.Country != "" {
		add("SmsCountry", messaging.SMS.Country)
	}

	for _, key := range sortedKeys(extra) {
		add(key, extra[key])
	}

	return parameters
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
