// internal/common/notify/webhook.go
package notify

import (
	"context"
	"time"

	"github.com/nonstopautomation/service-fusion/internal/common/errors"
	httpclient "github.com/nonstopautomation/service-fusion/internal/common/http"
	"github.com/nonstopautomation/service-fusion/internal/common/logger"
)

// WebhookNotifier posts alerts to a Slack-compatible incoming webhook.
type WebhookNotifier struct {
	webhookURL string
	client     *httpclient.Client
	logger     logger.Logger
}

type webhookPayload struct {
	Text string `json:"service_fusion_error"`
}

func NewWebhookNotifier(webhookURL string, log logger.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		webhookURL: webhookURL,
		client:     httpclient.NewClient(10 * time.Second),
		logger:     log,
	}
}

// Report posts the alert. The alert text is always logged locally first so a
// broken webhook never loses information.
func (n *WebhookNotifier) Report(ctx context.Context, severity errors.Severity, source, message string, contextFields map[string]interface{}) {
	text := FormatAlert(severity, source, message, contextFields)

	logFields := map[string]interface{}{
		"severity": string(severity),
		"source":   source,
	}
	for k, v := range contextFields {
		logFields[k] = v
	}

	switch severity {
	case errors.SeverityLow:
		n.logger.Warn(message, logFields)
	default:
		n.logger.Error(message, logFields)
	}

	if n.webhookURL == "" {
		return
	}

	if err := n.client.PostJSON(ctx, n.webhookURL, webhookPayload{Text: text}); err != nil {
		sendErr := errors.NewNotificationSendFailedError("webhook", err)
		n.logger.WithError(sendErr).Error("failed to deliver alert", map[string]interface{}{
			"severity": string(severity),
		})
	}
}
