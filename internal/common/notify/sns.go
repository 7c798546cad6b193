// internal/common/notify/sns.go
package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/nonstopautomation/service-fusion/internal/common/errors"
	"github.com/nonstopautomation/service-fusion/internal/common/logger"
)

// snsAPI is the subset of the SNS client used by the notifier.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes alerts to an SNS topic. Used in deployments where
// operators subscribe email or SMS to the topic instead of a chat webhook.
type SNSNotifier struct {
	client   snsAPI
	topicARN string
	logger   logger.Logger
}

func NewSNSNotifier(ctx context.Context, region, topicARN string, log logger.Logger) (*SNSNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SNSNotifier{
		client:   sns.NewFromConfig(cfg),
		topicARN: topicARN,
		logger:   log,
	}, nil
}

func (n *SNSNotifier) Report(ctx context.Context, severity errors.Severity, source, message string, contextFields map[string]interface{}) {
	text := FormatAlert(severity, source, message, contextFields)

	n.logger.Error(message, map[string]interface{}{
		"severity": string(severity),
		"source":   source,
	})

	_, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(fmt.Sprintf("[%s] Service Fusion Sync Alert", severity)),
		Message:  aws.String(text),
	})
	if err != nil {
		sendErr := errors.NewNotificationSendFailedError("sns", err)
		n.logger.WithError(sendErr).Error("failed to deliver alert", map[string]interface{}{
			"severity": string(severity),
		})
	}
}
