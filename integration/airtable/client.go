// Package airtable is the client for the external lead database. Leads
// are created through Airtable's records API with a server-held
// credential; the credential never appears in anything returned to a
// caller.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Destination constants applied to every created record.
const (
	LeadSource    = "Website Form"
	LeadStatus    = "New Lead"
	defaultAPIURL = "https://api.airtable.com/v0"
)

// Errors returned by the client. Check with errors.Is().
var (
	ErrInvalidConfig = errors.New("airtable: invalid configuration")
	ErrUpstream      = errors.New("airtable: upstream request failed")
)

// Config holds the Airtable destination settings, mapped from
// environment variables.
type Config struct {
	BaseID    string        `env:"AIRTABLE_BASE_ID,required"`
	APIKey    string        `env:"AIRTABLE_API_KEY,required"`
	TableName string        `env:"AIRTABLE_TABLE_NAME" envDefault:"Leads"`
	APIURL    string        `env:"AIRTABLE_API_URL" envDefault:"https://api.airtable.com/v0"`
	Timeout   time.Duration `env:"AIRTABLE_TIMEOUT" envDefault:"10s"`
}

// Lead is one record destined for the lead table. Optional fields are
// omitted from the API payload when empty.
type Lead struct {
	Name             string
	Email            string
	Company          string
	Phone            string
	FacilitySize     string
	PrimaryChallenge string
	FormID           string
	FormVariant      string
}

// Client creates lead records.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. Used by tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a Client from config.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseID == "" {
		return nil, fmt.Errorf("%w: BaseID is required", ErrInvalidConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: APIKey is required", ErrInvalidConfig)
	}

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	table := cfg.TableName
	if table == "" {
		table = "Leads"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		endpoint:   fmt.Sprintf("%s/%s/%s", apiURL, cfg.BaseID, url.PathEscape(table)),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

type createRequest struct {
	Records  []record `json:"records"`
	Typecast bool     `json:"typecast"`
}

type record struct {
	Fields map[string]string `json:"fields"`
}

// CreateLead inserts one record into the lead table. Empty optional
// fields are omitted rather than sent as empty strings.
func (c *Client) CreateLead(ctx context.Context, lead Lead) error {
	fields := map[string]string{
		"Name":    lead.Name,
		"Email":   lead.Email,
		"Company": lead.Company,
		"Source":  LeadSource,
		"Status":  LeadStatus,
	}

	optional := map[string]string{
		"Phone":             lead.Phone,
		"Facility Size":     lead.FacilitySize,
		"Primary Challenge": lead.PrimaryChallenge,
		"Form ID":           lead.FormID,
		"Form Variant":      lead.FormVariant,
	}
	for name, value := range optional {
		if value != "" {
			fields[name] = value
		}
	}

	body, err := json.Marshal(createRequest{
		Records:  []record{{Fields: fields}},
		Typecast: true,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unexpected status %d", ErrUpstream, resp.StatusCode)
	}

	return nil
}
