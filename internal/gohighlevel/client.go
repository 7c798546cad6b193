// internal/gohighlevel/client.go
package gohighlevel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nonstopautomation/service-fusion/internal/common/errors"
	"github.com/nonstopautomation/service-fusion/internal/common/logger"
	"github.com/nonstopautomation/service-fusion/internal/models"
)

// apiVersion is the date-pinned API version header GoHighLevel requires.
const apiVersion = "2021-07-28"

// Client talks to the GoHighLevel (LeadConnector) REST API.
type Client struct {
	baseURL    string
	apiKey     string
	locationID string
	httpClient *http.Client
	logger     logger.Logger
}

// NewClient creates a new GoHighLevel API client scoped to one location.
func NewClient(baseURL, apiKey, locationID string, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		locationID: locationID,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Version", apiVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewTargetRequestError(path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		respBody, _ := io.ReadAll(resp.Body)
		return errors.NewTargetAuthError(
			fmt.Sprintf("request to %s failed with status %d: %s", path, resp.StatusCode, string(respBody)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return errors.NewTargetRequestError(path,
			fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	return nil
}

type contactSearchResponse struct {
	Contacts []models.TargetContact `json:"contacts"`
}

// searchContacts runs the generic contact query search and returns the first
// hit, or nil when nothing matched.
func (c *Client) searchContacts(ctx context.Context, queryValue string) (*models.TargetContact, error) {
	query := url.Values{}
	query.Set("locationId", c.locationID)
	query.Set("query", queryValue)

	var resp contactSearchResponse
	if err := c.do(ctx, "GET", "/contacts/", query, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Contacts) == 0 {
		return nil, nil
	}
	return &resp.Contacts[0], nil
}

// SearchContactByPhone returns the first contact matching the phone number.
func (c *Client) SearchContactByPhone(ctx context.Context, phone string) (*models.TargetContact, error) {
	if phone == "" {
		return nil, nil
	}
	return c.searchContacts(ctx, phone)
}

// SearchContactByEmail returns the first contact matching the email address.
func (c *Client) SearchContactByEmail(ctx context.Context, email string) (*models.TargetContact, error) {
	if email == "" {
		return nil, nil
	}
	return c.searchContacts(ctx, email)
}

type upsertContactRequest struct {
	LocationID   string                    `json:"locationId"`
	FirstName    string                    `json:"firstName,omitempty"`
	LastName     string                    `json:"lastName,omitempty"`
	Phone        string                    `json:"phone,omitempty"`
	Email        string                    `json:"email,omitempty"`
	Source       string                    `json:"source,omitempty"`
	CustomFields []models.CustomFieldValue `json:"customFields,omitempty"`
}

type upsertContactResponse struct {
	Contact models.TargetContact `json:"contact"`
}

// UpsertContact creates or updates a contact keyed by phone/email.
func (c *Client) UpsertContact(ctx context.Context, contact *models.TargetContact) (*models.TargetContact, error) {
	req := upsertContactRequest{
		LocationID:   c.locationID,
		FirstName:    contact.FirstName,
		LastName:     contact.LastName,
		Phone:        contact.Phone,
		Email:        contact.Email,
		Source:       contact.Source,
		CustomFields: contact.CustomFields,
	}

	var resp upsertContactResponse
	if err := c.do(ctx, "POST", "/contacts/upsert", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Contact, nil
}

// UpdateContactCustomField sets a single custom field on an existing contact.
func (c *Client) UpdateContactCustomField(ctx context.Context, contactID, fieldID, value string) error {
	body := map[string]interface{}{
		"customFields": []models.CustomFieldValue{
			{ID: fieldID, Value: value},
		},
	}
	return c.do(ctx, "PUT", "/contacts/"+contactID, nil, body, nil)
}

type opportunitySearchResponse struct {
	Opportunities []models.TargetOpportunity `json:"opportunities"`
}

// SearchOpportunities returns every opportunity attached to a contact.
func (c *Client) SearchOpportunities(ctx context.Context, contactID string) ([]models.TargetOpportunity, error) {
	query := url.Values{}
	query.Set("location_id", c.locationID)
	query.Set("contact_id", contactID)

	var resp opportunitySearchResponse
	if err := c.do(ctx, "GET", "/opportunities/search", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Opportunities, nil
}

// FindOpportunityByWorkOrderID scans the contact's opportunities for one
// whose tracking custom field holds workOrderID. The search endpoint cannot
// filter on custom fields so the filter runs client-side.
func (c *Client) FindOpportunityByWorkOrderID(ctx context.Context, contactID, fieldID, workOrderID string) (*models.TargetOpportunity, error) {
	opportunities, err := c.SearchOpportunities(ctx, contactID)
	if err != nil {
		return nil, err
	}
	for i := range opportunities {
		if opportunities[i].CustomFieldString(fieldID) == workOrderID {
			return &opportunities[i], nil
		}
	}
	return nil, nil
}

// OpportunityCreateRequest is the payload for creating an opportunity.
type OpportunityCreateRequest struct {
	PipelineID      string                    `json:"pipelineId"`
	LocationID      string                    `json:"locationId"`
	ContactID       string                    `json:"contactId"`
	Name            string                    `json:"name"`
	Status          string                    `json:"status"`
	PipelineStageID string                    `json:"pipelineStageId"`
	CustomFields    []models.CustomFieldValue `json:"customFields,omitempty"`
}

type opportunityResponse struct {
	Opportunity models.TargetOpportunity `json:"opportunity"`
}

// CreateOpportunity creates a new pipeline opportunity.
func (c *Client) CreateOpportunity(ctx context.Context, req *OpportunityCreateRequest) (*models.TargetOpportunity, error) {
	req.LocationID = c.locationID

	var resp opportunityResponse
	if err := c.do(ctx, "POST", "/opportunities/", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp.Opportunity, nil
}

// UpdateOpportunityStage moves an opportunity to a different pipeline stage.
// The status is forced back to open so a closed opportunity re-enters the
// pipeline when its work order becomes active again.
func (c *Client) UpdateOpportunityStage(ctx context.Context, opportunityID, stageID string) error {
	body := map[string]interface{}{
		"pipelineStageId": stageID,
		"status":          "open",
	}
	return c.do(ctx, "PUT", "/opportunities/"+opportunityID, nil, body, nil)
}

// UpdateOpportunityCustomField rewrites a key-addressed custom field on an
// existing opportunity. Used to re-point a converted estimate's opportunity
// at its new job.
func (c *Client) UpdateOpportunityCustomField(ctx context.Context, opportunityID, fieldKey, value string) error {
	body := map[string]interface{}{
		"customFields": []models.CustomFieldValue{
			{Key: fieldKey, Value: value},
		},
	}
	return c.do(ctx, "PUT", "/opportunities/"+opportunityID, nil, body, nil)
}
