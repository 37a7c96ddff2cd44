// Package web3forms is the client for the primary forms backend. It
// submits the sanitized field map as multipart form data and treats
// anything but an HTTP 2xx with {"success": true} as a failure.
package web3forms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"
)

// DefaultEndpoint is Web3Forms' public submission endpoint.
const DefaultEndpoint = "https://api.web3forms.com/submit"

// Errors returned by the client. Check with errors.Is().
var (
	ErrInvalidConfig     = errors.New("web3forms: invalid configuration")
	ErrSubmissionFailed  = errors.New("web3forms: submission failed")
	ErrMalformedResponse = errors.New("web3forms: malformed response")
)

// Config holds the forms backend settings, mapped from environment
// variables.
type Config struct {
	AccessKey string        `env:"WEB3FORMS_ACCESS_KEY,required"`
	Endpoint  string        `env:"WEB3FORMS_ENDPOINT" envDefault:"https://api.web3forms.com/submit"`
	Timeout   time.Duration `env:"WEB3FORMS_TIMEOUT" envDefault:"15s"`
}

// Client submits forms to the Web3Forms API.
type Client struct {
	endpoint   string
	accessKey  string
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
	if cfg.AccessKey == "" {
		return nil, fmt.Errorf("%w: AccessKey is required", ErrInvalidConfig)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		endpoint:   endpoint,
		accessKey:  cfg.AccessKey,
		httpClient: &http.Client{Timeout: timeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// response is the subset of the Web3Forms reply the client cares about.
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Submit sends the field map as multipart form data. The access key is
// attached here so it never appears in the caller's field map.
func (c *Client) Submit(ctx context.Context, fields map[string]string) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if err := w.WriteField("access_key", c.accessKey); err != nil {
		return fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unexpected status %d", ErrSubmissionFailed, resp.StatusCode)
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !parsed.Success {
		msg := parsed.Message
		if msg == "" {
			msg = "backend reported failure"
		}
		return fmt.Errorf("%w: %s", ErrSubmissionFailed, msg)
	}

	return nil
}
