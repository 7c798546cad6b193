package notify

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonstopautomation/service-fusion/internal/common/errors"
	"github.com/nonstopautomation/service-fusion/internal/common/logger"
)

type fakeSNS struct {
	inputs     []*sns.PublishInput
	publishErr error
}

func (f *fakeSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	return &sns.PublishOutput{}, nil
}

func TestSNSNotifier_PublishesAlert(t *testing.T) {
	fake := &fakeSNS{}
	notifier := &SNSNotifier{
		client:   fake,
		topicARN: "arn:aws:sns:us-east-1:123456789012:sync-alerts",
		logger:   logger.NewTestLogger(t),
	}

	notifier.Report(context.Background(), errors.SeverityMedium, "job-sync", "2 of 5 jobs failed to sync", map[string]interface{}{
		"record_kind": "jobs",
	})

	require.Len(t, fake.inputs, 1)
	input := fake.inputs[0]
	assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:sync-alerts", *input.TopicArn)
	assert.Equal(t, "[medium] Service Fusion Sync Alert", *input.Subject)
	assert.Contains(t, *input.Message, "2 of 5 jobs failed to sync")
	assert.Contains(t, *input.Message, "record_kind=jobs")
}

func TestSNSNotifier_SwallowsPublishFailure(t *testing.T) {
	fake := &fakeSNS{publishErr: stderrors.New("topic gone")}
	notifier := &SNSNotifier{
		client:   fake,
		topicARN: "arn:aws:sns:us-east-1:123456789012:sync-alerts",
		logger:   logger.NewTestLogger(t),
	}

	notifier.Report(context.Background(), errors.SeverityHigh, "job-sync", "pass failed", nil)
	assert.Len(t, fake.inputs, 1)
}
