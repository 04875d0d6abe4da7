// Package policy patches S3 bucket policies so CloudFront distributions
// can read site content through Origin Access Control.
package policy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"stackpilot/internal/logging"
)

const (
	cloudFrontService = "cloudfront.amazonaws.com"
	sourceArnKey      = "AWS:SourceArn"
)

// Document is an IAM bucket policy document
type Document struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Statement is a single policy statement. Principal, Action, Resource
// and condition values are loosely typed because existing policies may
// carry either scalars or lists.
type Statement struct {
	Sid       string                            `json:"Sid,omitempty"`
	Effect    string                            `json:"Effect"`
	Principal map[string]interface{}            `json:"Principal,omitempty"`
	Action    interface{}                       `json:"Action,omitempty"`
	Resource  interface{}                       `json:"Resource,omitempty"`
	Condition map[string]map[string]interface{} `json:"Condition,omitempty"`
}

// Patcher attaches CloudFront access statements to bucket policies
type Patcher struct {
	s3 s3iface.S3API
}

// NewPatcher creates a patcher on the given S3 client
func NewPatcher(client s3iface.S3API) *Patcher {
	return &Patcher{s3: client}
}

// Attach ensures the bucket policy allows the CloudFront distribution
// identified by arn to read objects. A policy already covering the ARN
// is left untouched; an existing CloudFront statement for the bucket is
// upgraded to a StringLike ARN list; otherwise a fresh statement is
// appended. Returns true when the policy was modified.
func (p *Patcher) Attach(ctx context.Context, bucket, arn string) (bool, error) {
	doc, err := p.fetchPolicy(ctx, bucket)
	if err != nil {
		return false, err
	}

	resource := fmt.Sprintf("arn:aws:s3:::%s/*", bucket)

	for i := range doc.Statement {
		stmt := &doc.Statement[i]
		if !isCloudFrontStatement(stmt, resource) {
			continue
		}

		arns := conditionARNs(stmt)
		for _, existing := range arns {
			if existing == arn {
				logging.Info("Distribution already covered by bucket policy", map[string]interface{}{
					"bucket": bucket,
					"arn":    arn,
				})
				return false, nil
			}
		}

		// Second distribution: upgrade to a StringLike ARN list
		merged := append(arns, arn)
		stmt.Condition = map[string]map[string]interface{}{
			"StringLike": {sourceArnKey: toInterfaceSlice(merged)},
		}
		return true, p.putPolicy(ctx, bucket, doc)
	}

	doc.Statement = append(doc.Statement, Statement{
		Sid:       "AllowCloudFrontServicePrincipal",
		Effect:    "Allow",
		Principal: map[string]interface{}{"Service": cloudFrontService},
		Action:    "s3:GetObject",
		Resource:  resource,
		Condition: map[string]map[string]interface{}{
			"StringEquals": {sourceArnKey: arn},
		},
	})
	return true, p.putPolicy(ctx, bucket, doc)
}

func (p *Patcher) fetchPolicy(ctx context.Context, bucket string) (*Document, error) {
	output, err := p.s3.GetBucketPolicyWithContext(ctx, &s3.GetBucketPolicyInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == "NoSuchBucketPolicy" {
			return &Document{Version: "2012-10-17"}, nil
		}
		return nil, fmt.Errorf("failed to get bucket policy: %w", err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(aws.StringValue(output.Policy)), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse bucket policy: %w", err)
	}
	return &doc, nil
}

func (p *Patcher) putPolicy(ctx context.Context, bucket string, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal bucket policy: %w", err)
	}

	_, err = p.s3.PutBucketPolicyWithContext(ctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(bucket),
		Policy: aws.String(string(data)),
	})
	if err != nil {
		return fmt.Errorf("failed to put bucket policy: %w", err)
	}

	logging.Info("Attached bucket policy", map[string]interface{}{
		"bucket": bucket,
	})
	return nil
}

// isCloudFrontStatement matches the service-principal GetObject
// statement this tool manages for the bucket
func isCloudFrontStatement(stmt *Statement, resource string) bool {
	service, ok := stmt.Principal["Service"]
	if !ok || service != cloudFrontService {
		return false
	}
	if !valueContains(stmt.Action, "s3:GetObject") {
		return false
	}
	return valueContains(stmt.Resource, resource)
}

// conditionARNs collects source ARNs from StringEquals and StringLike
func conditionARNs(stmt *Statement) []string {
	var arns []string
	for _, operator := range []string{"StringEquals", "StringLike"} {
		cond, ok := stmt.Condition[operator]
		if !ok {
			continue
		}
		arns = append(arns, stringValues(cond[sourceArnKey])...)
	}
	return arns
}

// stringValues flattens a JSON string-or-list value
func stringValues(v interface{}) []string {
	switch value := v.(type) {
	case string:
		return []string{value}
	case []interface{}:
		var result []string
		for _, item := range value {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	case []string:
		return value
	}
	return nil
}

func valueContains(v interface{}, want string) bool {
	for _, s := range stringValues(v) {
		if s == want {
			return true
		}
	}
	return false
}

func toInterfaceSlice(values []string) []interface{} {
	result := make([]interface{}, len(values))
	for i, v := range values {
		result[i] = v
	}
	return result
}
