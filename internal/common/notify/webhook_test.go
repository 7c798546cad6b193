package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonstopautomation/service-fusion/internal/common/errors"
	"github.com/nonstopautomation/service-fusion/internal/common/logger"
)

func TestFormatAlert(t *testing.T) {
	got := FormatAlert(errors.SeverityMedium, "job-sync", "3 of 10 jobs failed to sync", map[string]interface{}{
		"record_kind":  "jobs",
		"failed_count": 3,
	})

	want := "Service Fusion Sync Alert\n" +
		"Severity: MEDIUM\n" +
		"Source: job-sync\n" +
		"Message: 3 of 10 jobs failed to sync\n" +
		"Context: failed_count=3, record_kind=jobs"
	assert.Equal(t, want, got)
}

func TestFormatAlert_NoContext(t *testing.T) {
	got := FormatAlert(errors.SeverityHigh, "customer-sync", "Sync pass panicked", nil)

	assert.Contains(t, got, "Severity: HIGH")
	assert.NotContains(t, got, "Context:")
}

func TestWebhookNotifier_PostsAlert(t *testing.T) {
	var received webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, logger.NewTestLogger(t))
	notifier.Report(context.Background(), errors.SeverityLow, "record-lister", "2 jobs skipped", map[string]interface{}{
		"record_kind": "jobs",
	})

	assert.Contains(t, received.Text, "Severity: LOW")
	assert.Contains(t, received.Text, "Source: record-lister")
	assert.Contains(t, received.Text, "2 jobs skipped")
}

func TestWebhookNotifier_SwallowsDeliveryFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, logger.NewTestLogger(t))

	// Must not panic or propagate; alerting failures never break a pass.
	notifier.Report(context.Background(), errors.SeverityHigh, "job-sync", "pass failed", nil)
}

func TestWebhookNotifier_NoURLOnlyLogs(t *testing.T) {
	notifier := NewWebhookNotifier("", logger.NewTestLogger(t))
	notifier.Report(context.Background(), errors.SeverityMedium, "job-sync", "pass degraded", nil)
}
