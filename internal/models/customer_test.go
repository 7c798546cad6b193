package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func createValidCustomer() *Customer {
	return &Customer{
		ID:           42,
		CustomerName: "Jane Doe",
		Contacts: []Contact{
			{
				FirstName: "Jane",
				LastName:  "Doe",
				IsPrimary: true,
				Phones:    []Phone{{Phone: "(555) 123-4567"}},
				Emails:    []Email{{Email: "jane@example.com"}},
			},
		},
	}
}

func TestCustomer_PrimaryContact(t *testing.T) {
	tests := []struct {
		name     string
		contacts []Contact
		want     string
	}{
		{
			name: "flagged primary wins over first",
			contacts: []Contact{
				{FirstName: "First"},
				{FirstName: "Primary", IsPrimary: true},
			},
			want: "Primary",
		},
		{
			name: "falls back to first contact",
			contacts: []Contact{
				{FirstName: "First"},
				{FirstName: "Second"},
			},
			want: "First",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Customer{Contacts: tt.contacts}
			contact := c.PrimaryContact()
			assert.NotNil(t, contact)
			assert.Equal(t, tt.want, contact.FirstName)
		})
	}

	t.Run("no contacts", func(t *testing.T) {
		c := &Customer{}
		assert.Nil(t, c.PrimaryContact())
	})
}

func TestCustomer_PrimaryPhone(t *testing.T) {
	c := createValidCustomer()
	assert.Equal(t, "5551234567", c.PrimaryPhone())

	c.Contacts[0].Phones = nil
	assert.Equal(t, "", c.PrimaryPhone())
}

func TestCustomer_PrimaryEmail(t *testing.T) {
	c := createValidCustomer()
	assert.Equal(t, "jane@example.com", c.PrimaryEmail())

	c.Contacts = nil
	assert.Equal(t, "", c.PrimaryEmail())
}

func TestCustomer_NameFallbacks(t *testing.T) {
	t.Run("contact name preferred", func(t *testing.T) {
		c := createValidCustomer()
		assert.Equal(t, "Jane", c.FirstName())
		assert.Equal(t, "Doe", c.LastName())
	})

	t.Run("account name split when contact name missing", func(t *testing.T) {
		c := &Customer{CustomerName: "Acme Plumbing Supply"}
		assert.Equal(t, "Acme", c.FirstName())
		assert.Equal(t, "Plumbing Supply", c.LastName())
	})

	t.Run("single word account name", func(t *testing.T) {
		c := &Customer{CustomerName: "Acme"}
		assert.Equal(t, "Acme", c.FirstName())
		assert.Equal(t, "", c.LastName())
	})
}

func TestCustomer_HasContactInfo(t *testing.T) {
	c := createValidCustomer()
	assert.True(t, c.HasContactInfo())

	c.Contacts[0].Phones = nil
	assert.True(t, c.HasContactInfo(), "email alone is enough")

	c.Contacts[0].Emails = nil
	assert.False(t, c.HasContactInfo())
}

func TestJob_IsFreshlyCreated(t *testing.T) {
	job := &Job{CreatedAt: "2025-01-15T10:00:00+00:00", UpdatedAt: "2025-01-15T10:00:00+00:00"}
	assert.True(t, job.IsFreshlyCreated())

	job.UpdatedAt = "2025-01-15T11:00:00+00:00"
	assert.False(t, job.IsFreshlyCreated())

	empty := &Job{}
	assert.False(t, empty.IsFreshlyCreated())
}

func TestCustomFieldValue_StringValue(t *testing.T) {
	assert.Equal(t, "123", CustomFieldValue{FieldValueString: "123"}.StringValue())
	assert.Equal(t, "456", CustomFieldValue{Value: "456"}.StringValue())
	assert.Equal(t, "", CustomFieldValue{Value: 789}.StringValue())

	// fieldValueString takes precedence when both are present
	both := CustomFieldValue{Value: "value", FieldValueString: "fvs"}
	assert.Equal(t, "fvs", both.StringValue())
}

func TestTargetOpportunity_CustomFieldString(t *testing.T) {
	opp := &TargetOpportunity{
		CustomFields: []CustomFieldValue{
			{ID: "field-a", Value: "100"},
			{ID: "field-b", FieldValueString: "200"},
		},
	}

	assert.Equal(t, "100", opp.CustomFieldString("field-a"))
	assert.Equal(t, "200", opp.CustomFieldString("field-b"))
	assert.Equal(t, "", opp.CustomFieldString("missing"))
}
