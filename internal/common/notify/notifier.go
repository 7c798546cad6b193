// Package notify delivers sync alerts to an external channel. Delivery
// failures are logged and swallowed so alerting can never take down a sync
// pass.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/nonstopautomation/service-fusion/internal/common/errors"
)

// Notifier sends a human-readable alert about a sync problem.
type Notifier interface {
	Report(ctx context.Context, severity errors.Severity, source, message string, context map[string]interface{})
}

// FormatAlert renders a severity-tagged alert message. Context keys are
// sorted so messages are stable across runs.
func FormatAlert(severity errors.Severity, source, message string, contextFields map[string]interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Service Fusion Sync Alert\n")
	fmt.Fprintf(&b, "Severity: %s\n", strings.ToUpper(string(severity)))
	fmt.Fprintf(&b, "Source: %s\n", source)
	fmt.Fprintf(&b, "Message: %s", message)

	if len(contextFields) > 0 {
		keys := make([]string, 0, len(contextFields))
		for k := range contextFields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, contextFields[k]))
		}
		fmt.Fprintf(&b, "\nContext: %s", strings.Join(parts, ", "))
	}

	return b.String()
}

// NopNotifier discards all alerts.
type NopNotifier struct{}

func NewNopNotifier() *NopNotifier {
	return &NopNotifier{}
}

func (n *NopNotifier) Report(ctx context.Context, severity errors.Severity, source, message string, contextFields map[string]interface{}) {
}
