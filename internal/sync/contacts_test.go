package sync

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonstopautomation/service-fusion/internal/common/config"
	"github.com/nonstopautomation/service-fusion/internal/common/errors"
	"github.com/nonstopautomation/service-fusion/internal/common/logger"
	"github.com/nonstopautomation/service-fusion/internal/models"
)

// ==========================
// Fakes
// ==========================

type fakeContactAPI struct {
	byPhone map[string]*models.TargetContact
	byEmail map[string]*models.TargetContact

	searchErr error
	upsertErr error

	upserts      []*models.TargetContact
	fieldUpdates []string
}

func newFakeContactAPI() *fakeContactAPI {
	return &fakeContactAPI{
		byPhone: map[string]*models.TargetContact{},
		byEmail: map[string]*models.TargetContact{},
	}
}

func (f *fakeContactAPI) SearchContactByPhone(ctx context.Context, phone string) (*models.TargetContact, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.byPhone[phone], nil
}

func (f *fakeContactAPI) SearchContactByEmail(ctx context.Context, email string) (*models.TargetContact, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.byEmail[email], nil
}

func (f *fakeContactAPI) UpsertContact(ctx context.Context, contact *models.TargetContact) (*models.TargetContact, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.upserts = append(f.upserts, contact)
	created := *contact
	created.ID = fmt.Sprintf("contact-%d", len(f.upserts))
	return &created, nil
}

func (f *fakeContactAPI) UpdateContactCustomField(ctx context.Context, contactID, fieldID, value string) error {
	f.fieldUpdates = append(f.fieldUpdates, fmt.Sprintf("%s:%s=%s", contactID, fieldID, value))
	return nil
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

func createTestCustomer() *models.Customer {
	return &models.Customer{
		ID:           42,
		CustomerName: "Jane Doe",
		Contacts: []models.Contact{
			{
				FirstName: "Jane",
				LastName:  "Doe",
				IsPrimary: true,
				Phones:    []models.Phone{{Phone: "(555) 123-4567"}},
				Emails:    []models.Email{{Email: "jane@example.com"}},
			},
		},
	}
}

func newTestContactSyncer(t *testing.T, api *fakeContactAPI, notifier *recordingNotifier) *ContactSyncer {
	t.Helper()
	fields := config.CustomFieldsConfig{ContactCustomerID: "field-customer-id"}
	return NewContactSyncer(api, fields, notifier, logger.NewTestLogger(t))
}

// ==========================
// ResolveOrCreate Tests
// ==========================

func TestContactSyncer_PhoneMatchWins(t *testing.T) {
	api := newFakeContactAPI()
	api.byPhone["5551234567"] = &models.TargetContact{
		ID: "contact-phone",
		CustomFields: []models.CustomFieldValue{
			{ID: "field-customer-id", Value: "42"},
		},
	}
	api.byEmail["jane@example.com"] = &models.TargetContact{ID: "contact-email"}

	syncer := newTestContactSyncer(t, api, &recordingNotifier{})
	contact, outcome := syncer.ResolveOrCreate(context.Background(), createTestCustomer())

	require.Equal(t, ResultSynced, outcome.Result)
	assert.Equal(t, "contact-phone", contact.ID)
	assert.Empty(t, api.upserts)
	assert.Empty(t, api.fieldUpdates, "link field already correct, no write")
}

func TestContactSyncer_EmailFallback(t *testing.T) {
	api := newFakeContactAPI()
	api.byEmail["jane@example.com"] = &models.TargetContact{ID: "contact-email"}

	syncer := newTestContactSyncer(t, api, &recordingNotifier{})
	contact, outcome := syncer.ResolveOrCreate(context.Background(), createTestCustomer())

	require.Equal(t, ResultSynced, outcome.Result)
	assert.Equal(t, "contact-email", contact.ID)
	assert.Equal(t, "matched existing contact", outcome.Reason)
}

func TestContactSyncer_MatchLinksCustomerID(t *testing.T) {
	api := newFakeContactAPI()
	api.byPhone["5551234567"] = &models.TargetContact{ID: "contact-1"}

	syncer := newTestContactSyncer(t, api, &recordingNotifier{})
	_, outcome := syncer.ResolveOrCreate(context.Background(), createTestCustomer())

	require.Equal(t, ResultSynced, outcome.Result)
	require.Len(t, api.fieldUpdates, 1)
	assert.Equal(t, "contact-1:field-customer-id=42", api.fieldUpdates[0])
}

func TestContactSyncer_CreatesOnMiss(t *testing.T) {
	api := newFakeContactAPI()

	syncer := newTestContactSyncer(t, api, &recordingNotifier{})
	contact, outcome := syncer.ResolveOrCreate(context.Background(), createTestCustomer())

	require.Equal(t, ResultSynced, outcome.Result)
	assert.Equal(t, "created contact", outcome.Reason)
	require.NotNil(t, contact)

	require.Len(t, api.upserts, 1)
	created := api.upserts[0]
	assert.Equal(t, "Jane", created.FirstName)
	assert.Equal(t, "Doe", created.LastName)
	assert.Equal(t, "5551234567", created.Phone)
	assert.Equal(t, "jane@example.com", created.Email)
	assert.Equal(t, "Service Fusion", created.Source)
	require.Len(t, created.CustomFields, 1)
	assert.Equal(t, "field-customer-id", created.CustomFields[0].ID)
	assert.Equal(t, "42", created.CustomFields[0].Value)
}

func TestContactSyncer_SkipsWithoutContactInfo(t *testing.T) {
	api := newFakeContactAPI()
	notifier := &recordingNotifier{}

	customer := &models.Customer{ID: 7, CustomerName: "No Contact Info"}
	syncer := newTestContactSyncer(t, api, notifier)
	contact, outcome := syncer.ResolveOrCreate(context.Background(), customer)

	assert.Nil(t, contact)
	assert.Equal(t, ResultSkipped, outcome.Result)
	assert.Empty(t, api.upserts)

	require.Len(t, notifier.reports, 1)
	assert.Contains(t, notifier.reports[0], "[low] contact-sync")
}

func TestContactSyncer_SearchFailure(t *testing.T) {
	api := newFakeContactAPI()
	api.searchErr = stderrors.New("crm unreachable")

	syncer := newTestContactSyncer(t, api, &recordingNotifier{})
	contact, outcome := syncer.ResolveOrCreate(context.Background(), createTestCustomer())

	assert.Nil(t, contact)
	require.Equal(t, ResultFailed, outcome.Result)
	assert.Equal(t, errors.ErrCodeContactCreateFail, outcome.Err.Code)
}

// ==========================
// SyncCustomer Tests
// ==========================

func TestContactSyncer_SyncCustomerUpserts(t *testing.T) {
	api := newFakeContactAPI()

	syncer := newTestContactSyncer(t, api, &recordingNotifier{})
	outcome := syncer.SyncCustomer(context.Background(), createTestCustomer())

	assert.Equal(t, ResultSynced, outcome.Result)
	assert.Equal(t, "upserted contact", outcome.Reason)
	require.Len(t, api.upserts, 1)
}

func TestContactSyncer_SyncCustomerStampsSyncFields(t *testing.T) {
	api := newFakeContactAPI()
	fields := config.CustomFieldsConfig{
		ContactCustomerID: "field-customer-id",
		ContactLastSync:   "field-last-sync",
		ContactUpdatedAt:  "field-updated-at",
	}
	syncer := NewContactSyncer(api, fields, &recordingNotifier{}, logger.NewTestLogger(t))
	syncer.now = func() time.Time {
		return time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	}

	customer := createTestCustomer()
	customer.UpdatedAt = "2025-01-15 10:30:00"

	outcome := syncer.SyncCustomer(context.Background(), customer)

	require.Equal(t, ResultSynced, outcome.Result)
	require.Len(t, api.upserts, 1)

	got := map[string]any{}
	for _, f := range api.upserts[0].CustomFields {
		got[f.ID] = f.Value
	}
	assert.Equal(t, "42", got["field-customer-id"])
	assert.Equal(t, "2025-01-15T12:00:00Z", got["field-last-sync"])
	assert.Equal(t, "2025-01-15 10:30:00", got["field-updated-at"])
}

func TestContactSyncer_SyncCustomerSkipsUnconfiguredSyncFields(t *testing.T) {
	api := newFakeContactAPI()

	syncer := newTestContactSyncer(t, api, &recordingNotifier{})
	outcome := syncer.SyncCustomer(context.Background(), createTestCustomer())

	require.Equal(t, ResultSynced, outcome.Result)
	require.Len(t, api.upserts, 1)
	require.Len(t, api.upserts[0].CustomFields, 1, "only the link field when bookkeeping fields are unconfigured")
	assert.Equal(t, "field-customer-id", api.upserts[0].CustomFields[0].ID)
}

func TestContactSyncer_SyncCustomerSkipsWithoutContactInfo(t *testing.T) {
	api := newFakeContactAPI()
	notifier := &recordingNotifier{}

	syncer := newTestContactSyncer(t, api, notifier)
	outcome := syncer.SyncCustomer(context.Background(), &models.Customer{ID: 7})

	assert.Equal(t, ResultSkipped, outcome.Result)
	assert.Len(t, notifier.reports, 1)
}
