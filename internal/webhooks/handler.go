// Package webhooks receives CRM workflow callbacks and mirrors them back
// into the field service API: new leads become customers, and booked calls
// become customers with a scheduled job.
package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/nonstopautomation/service-fusion/internal/common/errors"
	"github.com/nonstopautomation/service-fusion/internal/common/logger"
	"github.com/nonstopautomation/service-fusion/internal/common/metrics"
	"github.com/nonstopautomation/service-fusion/internal/common/notify"
	"github.com/nonstopautomation/service-fusion/internal/common/validation"
	"github.com/nonstopautomation/service-fusion/internal/models"
	"github.com/nonstopautomation/service-fusion/internal/servicefusion"
)

// jobIntakeStatus is the status new jobs created from booked calls start in.
const jobIntakeStatus = "Scheduled"

var webhookDigits = regexp.MustCompile(`\D`)

// SourceAPI is the customer/job surface of the field service client used by
// the intake endpoints.
type SourceAPI interface {
	FindCustomer(ctx context.Context, email, phone string) (*models.Customer, error)
	CreateCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error)
	CreateJob(ctx context.Context, req *servicefusion.JobCreateRequest) (*models.Job, error)
}

// ContactPayload is the CRM workflow webhook body.
type ContactPayload struct {
	FirstName  string                 `json:"first_name"`
	LastName   string                 `json:"last_name"`
	Phone      string                 `json:"phone"`
	Email      string                 `json:"email"`
	Address1   string                 `json:"address1"`
	City       string                 `json:"city"`
	State      string                 `json:"state"`
	PostalCode string                 `json:"postal_code"`
	CustomData map[string]interface{} `json:"customData"`
}

// contactSchema validates the decoded payload before any API calls happen.
var contactSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"first_name":  {Type: "string"},
		"last_name":   {Type: "string"},
		"phone":       {Type: "string"},
		"email":       {Type: "string"},
		"address1":    {Type: "string"},
		"city":        {Type: "string"},
		"state":       {Type: "string"},
		"postal_code": {Type: "string"},
		"customData":  {Type: "object"},
	},
	Required:             []string{"first_name", "phone"},
	AdditionalProperties: true,
}

// Handler serves the intake endpoints.
type Handler struct {
	source   SourceAPI
	notifier notify.Notifier
	logger   logger.Logger
}

func NewHandler(source SourceAPI, notifier notify.Notifier, log logger.Logger) *Handler {
	return &Handler{
		source:   source,
		notifier: notifier,
		logger:   log,
	}
}

// Register mounts the intake routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/webhooks/contact", h.HandleContact)
	mux.HandleFunc("/webhooks/contact-with-job", h.HandleContactWithJob)
}

// HandleContact finds or creates the customer for an inbound lead.
func (h *Handler) HandleContact(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "contact", false)
}

// HandleContactWithJob finds or creates the customer, then always creates a
// scheduled job from the call details.
func (h *Handler) HandleContactWithJob(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "contact-with-job", true)
}

type intakeResponse struct {
	Status          string `json:"status"`
	RequestID       string `json:"request_id"`
	CustomerID      int64  `json:"customer_id,omitempty"`
	CustomerCreated bool   `json:"customer_created"`
	JobID           int64  `json:"job_id,omitempty"`
	JobError        string `json:"job_error,omitempty"`
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request, endpoint string, withJob bool) {
	if r.Method != http.MethodPost {
		metrics.WebhookRequests.WithLabelValues(endpoint, "method_not_allowed").Inc()
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := uuid.New().String()
	log := h.logger.WithFields(map[string]interface{}{
		"request_id": requestID,
		"endpoint":   endpoint,
	})

	payload, valErr := decodePayload(r)
	if valErr != nil {
		metrics.WebhookRequests.WithLabelValues(endpoint, "invalid").Inc()
		log.WithError(valErr).Warn("rejected webhook payload", nil)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status":     "error",
			"request_id": requestID,
			"error":      valErr.Details,
		})
		return
	}

	ctx := r.Context()

	customer, created, err := h.findOrCreateCustomer(ctx, payload, log)
	if err != nil {
		metrics.WebhookRequests.WithLabelValues(endpoint, "error").Inc()
		log.WithError(err).Error("customer intake failed", nil)
		h.notifier.Report(ctx, errors.SeverityHigh, "webhook-intake",
			fmt.Sprintf("Customer intake failed: %v", err),
			map[string]interface{}{"request_id": requestID})
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"status":     "error",
			"request_id": requestID,
			"error":      "customer intake failed",
		})
		return
	}

	resp := intakeResponse{
		Status:          "ok",
		RequestID:       requestID,
		CustomerID:      customer.ID,
		CustomerCreated: created,
	}

	if withJob {
		job, err := h.createIntakeJob(ctx, customer, payload)
		if err != nil {
			// The customer part succeeded; report the job failure but do not
			// fail the request.
			log.WithError(err).Error("job intake failed", nil)
			h.notifier.Report(ctx, errors.SeverityHigh, "webhook-intake",
				fmt.Sprintf("Job creation failed after customer intake: %v", err),
				map[string]interface{}{
					"request_id":  requestID,
					"customer_id": customer.ID,
				})
			resp.JobError = "job creation failed"
		} else {
			resp.JobID = job.ID
		}
	}

	metrics.WebhookRequests.WithLabelValues(endpoint, "ok").Inc()
	log.Info("webhook processed", map[string]interface{}{
		"customer_id":      customer.ID,
		"customer_created": created,
	})
	writeJSON(w, http.StatusOK, resp)
}

func decodePayload(r *http.Request) (*ContactPayload, *errors.StandardError) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, errors.NewWebhookPayloadError("body is not valid JSON: " + err.Error())
	}

	if result := validation.ValidateInput(raw, contactSchema); !result.Valid {
		return nil, errors.NewWebhookPayloadError(result.Summary())
	}

	data, _ := json.Marshal(raw)
	var payload ContactPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.NewWebhookPayloadError("payload does not match expected shape: " + err.Error())
	}
	return &payload, nil
}

func (h *Handler) findOrCreateCustomer(ctx context.Context, payload *ContactPayload, log logger.Logger) (*models.Customer, bool, error) {
	phone := CleanPhone(payload.Phone)

	existing, err := h.source.FindCustomer(ctx, payload.Email, phone)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		log.Debug("matched existing customer", map[string]interface{}{
			"customer_id": existing.ID,
		})
		return existing, false, nil
	}

	customer := &models.Customer{
		CustomerName: strings.TrimSpace(payload.FirstName + " " + payload.LastName),
		Contacts: []models.Contact{
			{
				FirstName: payload.FirstName,
				LastName:  payload.LastName,
				IsPrimary: true,
				Phones:    []models.Phone{{Phone: phone, Type: "Mobile"}},
			},
		},
	}
	if payload.Email != "" {
		customer.Contacts[0].Emails = []models.Email{{Email: payload.Email}}
	}
	if payload.Address1 != "" || payload.City != "" {
		customer.Locations = []models.Location{
			{
				StreetOne:  payload.Address1,
				City:       payload.City,
				StateProv:  payload.State,
				PostalCode: payload.PostalCode,
				IsPrimary:  true,
			},
		}
	}

	created, err := h.source.CreateCustomer(ctx, customer)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (h *Handler) createIntakeJob(ctx context.Context, customer *models.Customer, payload *ContactPayload) (*models.Job, error) {
	return h.source.CreateJob(ctx, &servicefusion.JobCreateRequest{
		CustomerID:   customer.ID,
		CustomerName: customer.CustomerName,
		Status:       jobIntakeStatus,
		Description:  buildJobDescription(payload.CustomData),
	})
}

// buildJobDescription assembles the job notes from the call's custom fields.
// Only fields the caller actually filled in are included.
func buildJobDescription(customData map[string]interface{}) string {
	fields := []struct {
		key   string
		label string
	}{
		{"service_needed", "Service Needed"},
		{"appointment_date", "Appointment Date"},
		{"appointment_time", "Appointment Time"},
		{"caller_inquiry", "Caller Inquiry"},
		{"note", "Note"},
		{"additional_details", "Additional Details"},
	}

	var lines []string
	for _, f := range fields {
		if v, ok := customData[f.key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				lines = append(lines, f.label+": "+strings.TrimSpace(s))
			}
		}
	}
	if len(lines) == 0 {
		return "Created from CRM webhook"
	}
	return strings.Join(lines, "\n")
}

// CleanPhone reduces a CRM phone number to the digits the field service API
// expects: no plus sign and no leading country code 1.
func CleanPhone(phone string) string {
	digits := webhookDigits.ReplaceAllString(phone, "")
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		digits = digits[1:]
	}
	return digits
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
