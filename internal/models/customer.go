// internal/models/customer.go
package models

import (
	"regexp"
	"strings"
	"time"
)

var nonDigits = regexp.MustCompile(`\D`)

// Phone is a phone number attached to a customer contact.
type Phone struct {
	Phone string `json:"phone"`
	Type  string `json:"type,omitempty"`
}

// Email is an email address attached to a customer contact.
type Email struct {
	Email string `json:"email"`
}

// Contact is a person on a customer account.
type Contact struct {
	FirstName string  `json:"fname"`
	LastName  string  `json:"lname"`
	IsPrimary bool    `json:"is_primary"`
	Phones    []Phone `json:"phones"`
	Emails    []Email `json:"emails"`
}

// Location is a service address on a customer account.
type Location struct {
	StreetOne  string `json:"street_1,omitempty"`
	StreetTwo  string `json:"street_2,omitempty"`
	City       string `json:"city,omitempty"`
	StateProv  string `json:"state_prov,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	IsPrimary  bool   `json:"is_primary,omitempty"`
}

// Customer is a customer account in the field service API.
type Customer struct {
	ID           int64      `json:"id"`
	CustomerName string     `json:"customer_name"`
	Contacts     []Contact  `json:"contacts"`
	Locations    []Location `json:"locations,omitempty"`
	CreatedAt    string     `json:"created_at,omitempty"`
	UpdatedAt    string     `json:"updated_at,omitempty"`
}

// PrimaryContact returns the contact flagged primary, or the first contact
// when none is flagged. Nil when the account has no contacts at all.
func (c *Customer) PrimaryContact() *Contact {
	for i := range c.Contacts {
		if c.Contacts[i].IsPrimary {
			return &c.Contacts[i]
		}
	}
	if len(c.Contacts) > 0 {
		return &c.Contacts[0]
	}
	return nil
}

// PrimaryPhone returns the primary contact's first phone number reduced to
// digits only, or "" when no phone exists.
func (c *Customer) PrimaryPhone() string {
	contact := c.PrimaryContact()
	if contact == nil {
		return ""
	}
	for _, p := range contact.Phones {
		if p.Phone != "" {
			return nonDigits.ReplaceAllString(p.Phone, "")
		}
	}
	return ""
}

// PrimaryEmail returns the primary contact's first email, or "".
func (c *Customer) PrimaryEmail() string {
	contact := c.PrimaryContact()
	if contact == nil {
		return ""
	}
	for _, e := range contact.Emails {
		if e.Email != "" {
			return e.Email
		}
	}
	return ""
}

// FirstName returns the primary contact's first name, falling back to the
// first word of the account name.
func (c *Customer) FirstName() string {
	if contact := c.PrimaryContact(); contact != nil && contact.FirstName != "" {
		return contact.FirstName
	}
	parts := strings.Fields(c.CustomerName)
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}

// LastName returns the primary contact's last name, falling back to the
// remainder of the account name.
func (c *Customer) LastName() string {
	if contact := c.PrimaryContact(); contact != nil && contact.LastName != "" {
		return contact.LastName
	}
	parts := strings.Fields(c.CustomerName)
	if len(parts) > 1 {
		return strings.Join(parts[1:], " ")
	}
	return ""
}

// HasContactInfo reports whether the customer can be matched in the CRM.
func (c *Customer) HasContactInfo() bool {
	return c.PrimaryPhone() != "" || c.PrimaryEmail() != ""
}

// UpdatedTime parses the customer's updated_at. Customer timestamps are
// genuine UTC, unlike work order timestamps.
func (c *Customer) UpdatedTime() (time.Time, error) {
	return ParseNaiveTime(c.UpdatedAt)
}

// PrimaryLocation returns the location flagged primary, or the first one.
func (c *Customer) PrimaryLocation() *Location {
	for i := range c.Locations {
		if c.Locations[i].IsPrimary {
			return &c.Locations[i]
		}
	}
	if len(c.Locations) > 0 {
		return &c.Locations[0]
	}
	return nil
}

// CustomerList is a page of customers with the API's paging envelope.
type CustomerList struct {
	Items []Customer `json:"items"`
	Meta  PageMeta   `json:"_meta"`
}

// PageMeta is the paging envelope returned by the field service API.
type PageMeta struct {
	TotalCount  int `json:"totalCount"`
	PageCount   int `json:"pageCount"`
	CurrentPage int `json:"currentPage"`
	PerPage     int `json:"perPage"`
}
