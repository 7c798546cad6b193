// internal/servicefusion/client.go
package servicefusion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nonstopautomation/service-fusion/internal/common/errors"
	"github.com/nonstopautomation/service-fusion/internal/common/logger"
	"github.com/nonstopautomation/service-fusion/internal/models"
)

// tokenExpirySlack refreshes the OAuth token this long before it expires.
const tokenExpirySlack = 5 * time.Minute

// Client talks to the Service Fusion REST API using the client credentials
// flow. The access token is cached until shortly before expiry. The client is
// shared between the scheduler and the webhook handlers, so the token cache
// is guarded by mu.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       logger.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// TokenResponse holds the response from the OAuth token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// NewClient creates a new Service Fusion API client.
func NewClient(baseURL, clientID, clientSecret string, timeout time.Duration, log logger.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       log,
	}
}

// getAccessToken returns a valid access token, fetching a new one via the
// client credentials flow when the cached token is missing or near expiry.
// Holding mu across the refresh means concurrent callers wait for one fetch
// instead of racing on the cache.
func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tokenExpiry.After(time.Now()) && c.accessToken != "" {
		return c.accessToken, nil
	}

	tokenURL := fmt.Sprintf("%s/oauth/access_token", c.baseURL)

	payload, err := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.NewSourceAuthError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", errors.NewSourceAuthError(
			fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body)))
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - tokenExpirySlack)

	c.logger.Debug("refreshed access token", map[string]interface{}{
		"expires_in": tokenResp.ExpiresIn,
	})

	return c.accessToken, nil
}

// get performs an authenticated GET and decodes the JSON response into out.
// A 404 is reported via the notFound return so callers can treat missing
// records as nil rather than failures.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) (notFound bool, err error) {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return false, err
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, errors.NewSourceRequestError(path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return true, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, errors.NewSourceRequestError(path,
			fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return false, nil
}

// post performs an authenticated POST with a JSON body and decodes the
// created resource into out.
func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	token, err := c.getAccessToken(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewSourceRequestError(path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return errors.NewSourceRequestError(path,
			fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	return nil
}

// ListCustomers fetches one page of customers sorted newest-updated first.
func (c *Client) ListCustomers(ctx context.Context, page, perPage int) (*models.CustomerList, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per-page", strconv.Itoa(perPage))
	query.Set("sort", "-updated_at")
	query.Set("expand", "contacts.phones,contacts.emails,locations")

	var list models.CustomerList
	if _, err := c.get(ctx, "/customers", query, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// ListJobs fetches one page of jobs sorted newest-updated first.
func (c *Client) ListJobs(ctx context.Context, page, perPage int) (*models.JobList, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per-page", strconv.Itoa(perPage))
	query.Set("sort", "-updated_at")

	var list models.JobList
	if _, err := c.get(ctx, "/jobs", query, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// ListEstimates fetches one page of estimates sorted newest-updated first.
func (c *Client) ListEstimates(ctx context.Context, page, perPage int) (*models.EstimateList, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per-page", strconv.Itoa(perPage))
	query.Set("sort", "-updated_at")

	var list models.EstimateList
	if _, err := c.get(ctx, "/estimates", query, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetCustomer fetches a customer by id. Returns nil when the customer does
// not exist.
func (c *Client) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	query := url.Values{}
	query.Set("expand", "contacts.phones,contacts.emails,locations")

	var customer models.Customer
	notFound, err := c.get(ctx, fmt.Sprintf("/customers/%d", id), query, &customer)
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, nil
	}
	return &customer, nil
}

// GetJob fetches a job by id. Returns nil when the job does not exist.
func (c *Client) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	var job models.Job
	notFound, err := c.get(ctx, fmt.Sprintf("/jobs/%d", id), nil, &job)
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, nil
	}
	return &job, nil
}

// GetEstimate fetches an estimate by id. Returns nil when it does not exist.
func (c *Client) GetEstimate(ctx context.Context, id int64) (*models.Estimate, error) {
	var estimate models.Estimate
	notFound, err := c.get(ctx, fmt.Sprintf("/estimates/%d", id), nil, &estimate)
	if err != nil {
		return nil, err
	}
	if notFound {
		return nil, nil
	}
	return &estimate, nil
}

// FindCustomer searches for a customer by email first, then by phone.
// Returns the first match or nil when neither filter matches.
func (c *Client) FindCustomer(ctx context.Context, email, phone string) (*models.Customer, error) {
	if email != "" {
		customer, err := c.findByFilter(ctx, "filters[email]", email)
		if err != nil {
			return nil, err
		}
		if customer != nil {
			return customer, nil
		}
	}
	if phone != "" {
		customer, err := c.findByFilter(ctx, "filters[phone]", phone)
		if err != nil {
			return nil, err
		}
		if customer != nil {
			return customer, nil
		}
	}
	return nil, nil
}

func (c *Client) findByFilter(ctx context.Context, filter, value string) (*models.Customer, error) {
	query := url.Values{}
	query.Set(filter, value)
	query.Set("expand", "contacts.phones,contacts.emails,locations")

	var list models.CustomerList
	if _, err := c.get(ctx, "/customers", query, &list); err != nil {
		return nil, err
	}
	if len(list.Items) == 0 {
		return nil, nil
	}
	return &list.Items[0], nil
}

// CreateCustomer creates a new customer account.
func (c *Client) CreateCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	var created models.Customer
	if err := c.post(ctx, "/customers", customer, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// JobCreateRequest is the payload for creating a job.
type JobCreateRequest struct {
	CustomerID   int64  `json:"customer_id,omitempty"`
	CustomerName string `json:"customer_name,omitempty"`
	Status       string `json:"status"`
	Description  string `json:"description,omitempty"`
	TechNotes    string `json:"tech_notes,omitempty"`
}

// CreateJob creates a new job for an existing customer.
func (c *Client) CreateJob(ctx context.Context, req *JobCreateRequest) (*models.Job, error) {
	var created models.Job
	if err := c.post(ctx, "/jobs", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}
