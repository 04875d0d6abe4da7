package aws

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sts"

	"stackpilot/internal/config"
	"stackpilot/internal/logging"
)

// NewSession creates a new AWS session with the specified profile and region
func NewSession(profile string, region string) (*session.Session, error) {
	cfg := aws.NewConfig()
	if region != "" {
		cfg = cfg.WithRegion(region)
	}

	opts := session.Options{
		Config:            *cfg,
		Profile:           profile,
		SharedConfigState: session.SharedConfigEnable,
	}

	sess, err := session.NewSessionWithOptions(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return sess, nil
}

// GetSession creates a session for the configured profile in the given region
func GetSession(region string) (*session.Session, error) {
	sess, err := NewSession(config.Config.Profile, region)
	if err != nil {
		return nil, err
	}
	logging.Debug("Created AWS session", map[string]interface{}{
		"profile": config.Config.Profile,
		"region":  region,
	})
	return sess, nil
}

// CallerIdentity returns the account ID and ARN for the session credentials
func CallerIdentity(sess *session.Session) (accountID, arn string, err error) {
	svc := sts.New(sess)
	identity, err := svc.GetCallerIdentity(&sts.GetCallerIdentityInput{})
	if err != nil {
		return "", "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	return aws.StringValue(identity.Account), aws.StringValue(identity.Arn), nil
}
