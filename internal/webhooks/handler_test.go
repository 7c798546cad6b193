package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonstopautomation/service-fusion/internal/common/errors"
	"github.com/nonstopautomation/service-fusion/internal/common/logger"
	"github.com/nonstopautomation/service-fusion/internal/models"
	"github.com/nonstopautomation/service-fusion/internal/servicefusion"
)

// ==========================
// Fakes
// ==========================

type fakeSourceAPI struct {
	existing *models.Customer

	findErr      error
	createErr    error
	createJobErr error

	createdCustomers []*models.Customer
	createdJobs      []*servicefusion.JobCreateRequest
}

func (f *fakeSourceAPI) FindCustomer(ctx context.Context, email, phone string) (*models.Customer, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.existing, nil
}

func (f *fakeSourceAPI) CreateCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createdCustomers = append(f.createdCustomers, customer)
	created := *customer
	created.ID = 500
	return &created, nil
}

func (f *fakeSourceAPI) CreateJob(ctx context.Context, req *servicefusion.JobCreateRequest) (*models.Job, error) {
	if f.createJobErr != nil {
		return nil, f.createJobErr
	}
	f.createdJobs = append(f.createdJobs, req)
	return &models.Job{ID: 900, Number: "J-900", Status: req.Status}, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	reports []string
}

func (r *recordingNotifier) Report(ctx context.Context, severity errors.Severity, source, message string, contextFields map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, fmt.Sprintf("[%s] %s: %s", severity, source, message))
}

// ==========================
// Test Helpers
// ==========================

func newTestHandler(t *testing.T, source *fakeSourceAPI, notifier *recordingNotifier) *Handler {
	t.Helper()
	return NewHandler(source, notifier, logger.NewTestLogger(t))
}

func createValidPayload() map[string]interface{} {
	return map[string]interface{}{
		"first_name":  "Jane",
		"last_name":   "Doe",
		"phone":       "+1 (555) 123-4567",
		"email":       "jane@example.com",
		"address1":    "12 Main St",
		"city":        "Albany",
		"state":       "NY",
		"postal_code": "12207",
		"customData": map[string]interface{}{
			"service_needed":   "Water heater replacement",
			"appointment_date": "2025-01-20",
		},
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) intakeResponse {
	t.Helper()
	var resp intakeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// ==========================
// Contact Intake Tests
// ==========================

func TestHandler_CreatesCustomer(t *testing.T) {
	source := &fakeSourceAPI{}
	handler := newTestHandler(t, source, &recordingNotifier{})

	rec := postJSON(t, handler.HandleContact, "/webhooks/contact", createValidPayload())
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.CustomerCreated)
	assert.Equal(t, int64(500), resp.CustomerID)
	assert.NotEmpty(t, resp.RequestID)
	assert.Zero(t, resp.JobID, "contact endpoint never creates jobs")

	require.Len(t, source.createdCustomers, 1)
	created := source.createdCustomers[0]
	assert.Equal(t, "Jane Doe", created.CustomerName)
	require.Len(t, created.Contacts, 1)
	assert.Equal(t, "5551234567", created.Contacts[0].Phones[0].Phone)
	assert.Equal(t, "Mobile", created.Contacts[0].Phones[0].Type)
	require.Len(t, created.Contacts[0].Emails, 1)
	require.Len(t, created.Locations, 1)
	assert.Equal(t, "12 Main St", created.Locations[0].StreetOne)
	assert.True(t, created.Locations[0].IsPrimary)
}

func TestHandler_MatchesExistingCustomer(t *testing.T) {
	source := &fakeSourceAPI{existing: &models.Customer{ID: 42, CustomerName: "Jane Doe"}}
	handler := newTestHandler(t, source, &recordingNotifier{})

	rec := postJSON(t, handler.HandleContact, "/webhooks/contact", createValidPayload())
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.Equal(t, int64(42), resp.CustomerID)
	assert.False(t, resp.CustomerCreated)
	assert.Empty(t, source.createdCustomers)
}

func TestHandler_RejectsInvalidPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]interface{}
	}{
		{
			name:    "missing first_name",
			payload: map[string]interface{}{"phone": "5551234567"},
		},
		{
			name:    "missing phone",
			payload: map[string]interface{}{"first_name": "Jane"},
		},
		{
			name:    "wrong type",
			payload: map[string]interface{}{"first_name": 12, "phone": "5551234567"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSourceAPI{}
			handler := newTestHandler(t, source, &recordingNotifier{})

			rec := postJSON(t, handler.HandleContact, "/webhooks/contact", tt.payload)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, source.createdCustomers)
		})
	}
}

func TestHandler_RejectsNonJSONBody(t *testing.T) {
	handler := newTestHandler(t, &fakeSourceAPI{}, &recordingNotifier{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/contact", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	handler.HandleContact(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t, &fakeSourceAPI{}, &recordingNotifier{})

	req := httptest.NewRequest(http.MethodGet, "/webhooks/contact", nil)
	rec := httptest.NewRecorder()
	handler.HandleContact(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandler_CustomerFailureAlerts(t *testing.T) {
	source := &fakeSourceAPI{createErr: stderrors.New("source api down")}
	notifier := &recordingNotifier{}
	handler := newTestHandler(t, source, notifier)

	rec := postJSON(t, handler.HandleContact, "/webhooks/contact", createValidPayload())
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	require.Len(t, notifier.reports, 1)
	assert.Contains(t, notifier.reports[0], "[high] webhook-intake")
	assert.Contains(t, notifier.reports[0], "Customer intake failed")
}

// ==========================
// Contact With Job Tests
// ==========================

func TestHandler_CreatesCustomerAndJob(t *testing.T) {
	source := &fakeSourceAPI{}
	handler := newTestHandler(t, source, &recordingNotifier{})

	rec := postJSON(t, handler.HandleContactWithJob, "/webhooks/contact-with-job", createValidPayload())
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeResponse(t, rec)
	assert.Equal(t, int64(900), resp.JobID)
	assert.Empty(t, resp.JobError)

	require.Len(t, source.createdJobs, 1)
	job := source.createdJobs[0]
	assert.Equal(t, int64(500), job.CustomerID)
	assert.Equal(t, "Scheduled", job.Status)
	assert.Contains(t, job.Description, "Service Needed: Water heater replacement")
	assert.Contains(t, job.Description, "Appointment Date: 2025-01-20")
}

func TestHandler_JobFailureStillReturnsOK(t *testing.T) {
	source := &fakeSourceAPI{createJobErr: stderrors.New("jobs endpoint down")}
	notifier := &recordingNotifier{}
	handler := newTestHandler(t, source, notifier)

	rec := postJSON(t, handler.HandleContactWithJob, "/webhooks/contact-with-job", createValidPayload())
	require.Equal(t, http.StatusOK, rec.Code, "customer intake succeeded, the job failure is reported out of band")

	resp := decodeResponse(t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(500), resp.CustomerID)
	assert.Zero(t, resp.JobID)
	assert.Equal(t, "job creation failed", resp.JobError)

	require.Len(t, notifier.reports, 1)
	assert.Contains(t, notifier.reports[0], "Job creation failed after customer intake")
}

// ==========================
// Helper Tests
// ==========================

func TestCleanPhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"formatted with country code", "+1 (555) 123-4567", "5551234567"},
		{"bare digits", "5551234567", "5551234567"},
		{"leading one without plus", "15551234567", "5551234567"},
		{"eleven digits not starting with one", "25551234567", "25551234567"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanPhone(tt.input))
		})
	}
}

func TestBuildJobDescription(t *testing.T) {
	t.Run("includes only filled fields in order", func(t *testing.T) {
		got := buildJobDescription(map[string]interface{}{
			"note":           "gate code 1234",
			"service_needed": "Drain cleaning",
			"ignored_key":    "nope",
			"caller_inquiry": "   ",
		})
		assert.Equal(t, "Service Needed: Drain cleaning\nNote: gate code 1234", got)
	})

	t.Run("defaults when nothing usable", func(t *testing.T) {
		assert.Equal(t, "Created from CRM webhook", buildJobDescription(nil))
	})
}
