package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/inconshreveable/log15"

	"github.com/opsgrove/snapsweep/internal/models"
)

// SNSNotifier publishes run reports to an SNS topic. Publishing is
// best-effort; the caller logs failures and the run succeeds anyway.
type SNSNotifier struct {
	client   *sns.Client
	topicARN string
	log      log15.Logger
}

// NewSNSNotifier creates a notifier for the given topic.
func NewSNSNotifier(ctx context.Context, region, topicARN string, log log15.Logger) (*SNSNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}
	return &SNSNotifier{
		client:   sns.NewFromConfig(cfg),
		topicARN: topicARN,
		log:      log,
	}, nil
}

// Publish sends the report as a JSON message.
func (n *SNSNotifier) Publish(ctx context.Context, report *models.RunReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("error encoding run report: %w", err)
	}
	subject := "snapsweep: EBS snapshot cleanup report"
	if report.DryRun {
		subject = "snapsweep: EBS snapshot cleanup report (dry run)"
	}
	_, err = n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("error publishing to %s: %w", n.topicARN, err)
	}
	n.log.Debug("published run report", "topic", n.topicARN, "bytes", len(body))
	return nil
}
