package aws

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/cloudfront"
	"github.com/aws/aws-sdk-go/service/cloudfront/cloudfrontiface"

	"stackpilot/internal/logging"
)

// DistributionARN resolves a distribution ID to its ARN
func DistributionARN(ctx context.Context, cf cloudfrontiface.CloudFrontAPI, distributionID string) (string, error) {
	output, err := cf.GetDistributionWithContext(ctx, &cloudfront.GetDistributionInput{
		Id: aws.String(distributionID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get distribution %s: %w", distributionID, err)
	}
	return aws.StringValue(output.Distribution.ARN), nil
}

// FindDistributionARN scans all distributions for one whose origin
// points at the given S3 bucket and returns its ARN.
func FindDistributionARN(ctx context.Context, cf cloudfrontiface.CloudFrontAPI, bucket string) (string, error) {
	originPrefix := bucket + ".s3"

	var arn string
	err := cf.ListDistributionsPagesWithContext(ctx, &cloudfront.ListDistributionsInput{},
		func(page *cloudfront.ListDistributionsOutput, lastPage bool) bool {
			if page.DistributionList == nil {
				return true
			}
			for _, dist := range page.DistributionList.Items {
				if dist.Origins == nil {
					continue
				}
				for _, origin := range dist.Origins.Items {
					if strings.HasPrefix(aws.StringValue(origin.DomainName), originPrefix) {
						arn = aws.StringValue(dist.ARN)
						return false
					}
				}
			}
			return true
		})
	if err != nil {
		return "", fmt.Errorf("failed to list distributions: %w", err)
	}
	if arn == "" {
		return "", fmt.Errorf("no distribution found with origin bucket %s", bucket)
	}

	logging.Debug("Resolved distribution for bucket", map[string]interface{}{
		"bucket": bucket,
		"arn":    arn,
	})
	return arn, nil
}

// InvalidateDistribution creates a full-path invalidation so refreshed
// site content is served immediately.
func InvalidateDistribution(ctx context.Context, cf cloudfrontiface.CloudFrontAPI, distributionID string) error {
	_, err := cf.CreateInvalidationWithContext(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(distributionID),
		InvalidationBatch: &cloudfront.InvalidationBatch{
			CallerReference: aws.String(fmt.Sprintf("stackpilot-%d", time.Now().Unix())),
			Paths: &cloudfront.Paths{
				Quantity: aws.Int64(1),
				Items:    []*string{aws.String("/*")},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create invalidation for %s: %w", distributionID, err)
	}
	return nil
}
