// internal/sync/contacts.go
package sync

import (
	"context"
	"strconv"
	"time"

	"github.com/nonstopautomation/service-fusion/internal/common/config"
	"github.com/nonstopautomation/service-fusion/internal/common/errors"
	"github.com/nonstopautomation/service-fusion/internal/common/logger"
	"github.com/nonstopautomation/service-fusion/internal/common/notify"
	"github.com/nonstopautomation/service-fusion/internal/models"
)

// contactSource identifies CRM contacts created by this sync.
const contactSource = "Service Fusion"

// ContactAPI is the contact surface of the CRM client.
type ContactAPI interface {
	SearchContactByPhone(ctx context.Context, phone string) (*models.TargetContact, error)
	SearchContactByEmail(ctx context.Context, email string) (*models.TargetContact, error)
	UpsertContact(ctx context.Context, contact *models.TargetContact) (*models.TargetContact, error)
	UpdateContactCustomField(ctx context.Context, contactID, fieldID, value string) error
}

// ContactSyncer matches customers to CRM contacts, creating them on miss and
// keeping the customer-id link field up to date.
type ContactSyncer struct {
	crm      ContactAPI
	fields   config.CustomFieldsConfig
	notifier notify.Notifier
	logger   logger.Logger

	now func() time.Time
}

func NewContactSyncer(crm ContactAPI, fields config.CustomFieldsConfig, notifier notify.Notifier, log logger.Logger) *ContactSyncer {
	return &ContactSyncer{
		crm:      crm,
		fields:   fields,
		notifier: notifier,
		logger:   log,
		now:      time.Now,
	}
}

// ResolveOrCreate finds the CRM contact for a customer, searching phone
// first then email, creating the contact when neither matches. On a match
// the customer-id link field is written if it is not already correct.
//
// A customer with neither phone nor email cannot be matched; the returned
// outcome is a skip and contact is nil.
func (s *ContactSyncer) ResolveOrCreate(ctx context.Context, customer *models.Customer) (*models.TargetContact, Outcome) {
	if !customer.HasContactInfo() {
		s.reportNoContactInfo(ctx, customer)
		return nil, Skipped("customer has no phone or email")
	}

	customerID := strconv.FormatInt(customer.ID, 10)

	contact, err := s.findExisting(ctx, customer)
	if err != nil {
		return nil, Failed(errors.NewContactCreateFailedError(customerID, err))
	}

	if contact != nil {
		if err := s.linkCustomerID(ctx, contact, customerID); err != nil {
			return nil, Failed(errors.NewContactCreateFailedError(customerID, err))
		}
		return contact, Synced("matched existing contact")
	}

	created, err := s.crm.UpsertContact(ctx, s.buildContact(customer, customerID))
	if err != nil {
		return nil, Failed(errors.NewContactCreateFailedError(customerID, err))
	}

	s.logger.Info("created contact", map[string]interface{}{
		"customer_id": customer.ID,
		"contact_id":  created.ID,
	})
	return created, Synced("created contact")
}

// SyncCustomer mirrors a customer into the CRM during the customer pass. The
// upsert carries the full name, phone, email and link field on every run.
func (s *ContactSyncer) SyncCustomer(ctx context.Context, customer *models.Customer) Outcome {
	if !customer.HasContactInfo() {
		s.reportNoContactInfo(ctx, customer)
		return Skipped("customer has no phone or email")
	}

	customerID := strconv.FormatInt(customer.ID, 10)

	payload := s.buildContact(customer, customerID)
	payload.CustomFields = s.stampSyncFields(payload.CustomFields, customer)

	contact, err := s.crm.UpsertContact(ctx, payload)
	if err != nil {
		return Failed(errors.NewContactCreateFailedError(customerID, err))
	}

	s.logger.Debug("upserted contact", map[string]interface{}{
		"customer_id": customer.ID,
		"contact_id":  contact.ID,
	})
	return Synced("upserted contact")
}

func (s *ContactSyncer) findExisting(ctx context.Context, customer *models.Customer) (*models.TargetContact, error) {
	if phone := customer.PrimaryPhone(); phone != "" {
		contact, err := s.crm.SearchContactByPhone(ctx, phone)
		if err != nil {
			return nil, err
		}
		if contact != nil {
			return contact, nil
		}
	}
	if email := customer.PrimaryEmail(); email != "" {
		contact, err := s.crm.SearchContactByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if contact != nil {
			return contact, nil
		}
	}
	return nil, nil
}

// linkCustomerID writes the customer id into the link field unless the
// contact already carries the right value.
func (s *ContactSyncer) linkCustomerID(ctx context.Context, contact *models.TargetContact, customerID string) error {
	if s.fields.ContactCustomerID == "" {
		return nil
	}
	for _, f := range contact.CustomFields {
		if f.ID == s.fields.ContactCustomerID && f.StringValue() == customerID {
			return nil
		}
	}
	return s.crm.UpdateContactCustomField(ctx, contact.ID, s.fields.ContactCustomerID, customerID)
}

func (s *ContactSyncer) buildContact(customer *models.Customer, customerID string) *models.TargetContact {
	contact := &models.TargetContact{
		FirstName: customer.FirstName(),
		LastName:  customer.LastName(),
		Phone:     customer.PrimaryPhone(),
		Email:     customer.PrimaryEmail(),
		Source:    contactSource,
	}
	if s.fields.ContactCustomerID != "" {
		contact.CustomFields = []models.CustomFieldValue{
			{ID: s.fields.ContactCustomerID, Value: customerID},
		}
	}
	return contact
}

// stampSyncFields appends the last-sync and source-updated-at bookkeeping
// fields to the upsert payload when they are configured.
func (s *ContactSyncer) stampSyncFields(fields []models.CustomFieldValue, customer *models.Customer) []models.CustomFieldValue {
	if s.fields.ContactLastSync != "" {
		fields = append(fields, models.CustomFieldValue{
			ID:    s.fields.ContactLastSync,
			Value: s.now().UTC().Format(time.RFC3339),
		})
	}
	if s.fields.ContactUpdatedAt != "" && customer.UpdatedAt != "" {
		fields = append(fields, models.CustomFieldValue{
			ID:    s.fields.ContactUpdatedAt,
			Value: customer.UpdatedAt,
		})
	}
	return fields
}

func (s *ContactSyncer) reportNoContactInfo(ctx context.Context, customer *models.Customer) {
	s.notifier.Report(ctx, errors.SeverityLow, "contact-sync",
		"Customer has no phone or email, cannot match in CRM",
		map[string]interface{}{
			"customer_id":   customer.ID,
			"customer_name": customer.CustomerName,
		})
}
