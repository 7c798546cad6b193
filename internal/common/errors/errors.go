// Package errors provides standardized error handling for the sync service.
package errors

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeSourceAuthFailed    ErrorCode = "SOURCE_AUTH_FAILED"
	ErrCodeSourceRequestFailed ErrorCode = "SOURCE_REQUEST_FAILED"
	ErrCodeTargetAuthFailed    ErrorCode = "TARGET_AUTH_FAILED"
	ErrCodeTargetRequestFailed ErrorCode = "TARGET_REQUEST_FAILED"

	ErrCodeBadRecordTimestamp ErrorCode = "BAD_RECORD_TIMESTAMP"
	ErrCodeCustomerNotFound   ErrorCode = "CUSTOMER_NOT_FOUND"
	ErrCodeContactCreateFail  ErrorCode = "CONTACT_CREATE_FAILED"
	ErrCodeOpportunitySync    ErrorCode = "OPPORTUNITY_SYNC_FAILED"

	ErrCodeStateReadFailed  ErrorCode = "STATE_READ_FAILED"
	ErrCodeStateWriteFailed ErrorCode = "STATE_WRITE_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeWebhookPayloadInvalid  ErrorCode = "WEBHOOK_PAYLOAD_INVALID"
)

// Severity grades an error for alerting purposes.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Severity  Severity               `json:"severity"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches context for alert messages and returns the error.
func (e *StandardError) WithMetadata(meta map[string]interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{}, len(meta))
	}
	for k, v := range meta {
		e.Metadata[k] = v
	}
	return e
}

// FormatContext renders the metadata map as "k=v" pairs for notifications.
// Keys are sorted so repeated alerts render identically.
func (e *StandardError) FormatContext() string {
	if len(e.Metadata) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Metadata[k]))
	}
	return strings.Join(parts, ", ")
}

// ==========================
// 2. Error Constructors
// ==========================

// NewSourceAuthError creates a retryable authentication error for the field service API.
func NewSourceAuthError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSourceAuthFailed,
		Message:   "Service Fusion authentication failed",
		Details:   err.Error(),
		Severity:  SeverityHigh,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSourceRequestError creates a retryable transport error for the field service API.
func NewSourceRequestError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSourceRequestFailed,
		Message:   "Service Fusion request failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Severity:  SeverityMedium,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTargetAuthError creates a non-retryable CRM authentication error.
func NewTargetAuthError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTargetAuthFailed,
		Message:   "GoHighLevel authentication failed",
		Details:   details,
		Severity:  SeverityCritical,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTargetRequestError creates a retryable CRM transport error.
func NewTargetRequestError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTargetRequestFailed,
		Message:   "GoHighLevel request failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Severity:  SeverityMedium,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBadRecordTimestampError flags a record whose updated_at could not be parsed.
// These are data quality notices, not sync failures.
func NewBadRecordTimestampError(recordID, raw string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBadRecordTimestamp,
		Message:   "Record has unparseable updated_at",
		Details:   fmt.Sprintf("raw: %q, error: %s", raw, err.Error()),
		Severity:  SeverityLow,
		Retryable: false,
		Metadata:  map[string]interface{}{"record_id": recordID},
		Timestamp: time.Now().UTC(),
	}
}

// NewCustomerNotFoundError is raised when a work order references a customer
// the source API cannot return.
func NewCustomerNotFoundError(workOrderID, workOrderNumber, customerID string) *StandardError {
	return &StandardError{
		Code:     ErrCodeCustomerNotFound,
		Message:  "Customer referenced by work order not found",
		Severity: SeverityMedium,
		Metadata: map[string]interface{}{
			"work_order_id":     workOrderID,
			"work_order_number": workOrderNumber,
			"customer_id":       customerID,
		},
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewContactCreateFailedError creates a retryable contact upsert error.
func NewContactCreateFailedError(customerID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeContactCreateFail,
		Message:   "Contact create/update failed",
		Details:   err.Error(),
		Severity:  SeverityMedium,
		Retryable: true,
		Metadata:  map[string]interface{}{"customer_id": customerID},
		Timestamp: time.Now().UTC(),
	}
}

// NewOpportunitySyncError wraps a per-work-order sync failure with its context.
func NewOpportunitySyncError(workOrderID, workOrderNumber string, err error) *StandardError {
	return &StandardError{
		Code:     ErrCodeOpportunitySync,
		Message:  "Opportunity sync failed",
		Details:  err.Error(),
		Severity: SeverityMedium,
		Metadata: map[string]interface{}{
			"work_order_id":     workOrderID,
			"work_order_number": workOrderNumber,
		},
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStateReadError creates a low severity cursor store read error. Callers
// fall back to the lookback window rather than abort.
func NewStateReadError(key string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStateReadFailed,
		Message:   "Cursor state read failed",
		Details:   err.Error(),
		Severity:  SeverityLow,
		Retryable: true,
		Metadata:  map[string]interface{}{"key": key},
		Timestamp: time.Now().UTC(),
	}
}

// NewStateWriteError creates a cursor store write error.
func NewStateWriteError(key string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStateWriteFailed,
		Message:   "Cursor state write failed",
		Details:   err.Error(),
		Severity:  SeverityHigh,
		Retryable: true,
		Metadata:  map[string]interface{}{"key": key},
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a notification delivery error. These
// are logged locally and never propagated.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Severity:  SeverityLow,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewWebhookPayloadError creates a non-retryable inbound payload error.
func NewWebhookPayloadError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeWebhookPayloadInvalid,
		Message:   "Webhook payload validation failed",
		Details:   details,
		Severity:  SeverityLow,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// IsRetryable reports whether err is a retryable StandardError.
func IsRetryable(err error) bool {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr.Retryable
	}
	return false
}

// GetErrorCategory returns the coarse category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SOURCE"):
		return "SOURCE_API"
	case strings.Contains(codeStr, "TARGET") || strings.Contains(codeStr, "CONTACT") || strings.Contains(codeStr, "OPPORTUNITY"):
		return "TARGET_API"
	case strings.Contains(codeStr, "STATE"):
		return "STATE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "RECORD") || strings.Contains(codeStr, "WEBHOOK") || strings.Contains(codeStr, "VALIDATION"):
		return "DATA_QUALITY"
	default:
		return "OTHER"
	}
}
