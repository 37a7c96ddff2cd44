package airtable_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbleresolve/leadgate/integration/airtable"
)

type capturedRequest struct {
	path    string
	auth    string
	payload struct {
		Records []struct {
			Fields map[string]string `json:"fields"`
		} `json:"records"`
		Typecast bool `json:"typecast"`
	}
}

func newClient(t *testing.T, status int, captured *capturedRequest) *airtable.Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			captured.path = r.URL.Path
			captured.auth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured.payload))
		}
		w.WriteHeader(status)
		w.Write([]byte(`{"records":[{"id":"rec123"}]}`))
	}))
	t.Cleanup(srv.Close)

	client, err := airtable.New(airtable.Config{
		BaseID:    "appBase",
		APIKey:    "secret-key",
		TableName: "Leads",
		APIURL:    srv.URL,
	})
	require.NoError(t, err)
	return client
}

func TestNew_ConfigValidation(t *testing.T) {
	t.Parallel()

	_, err := airtable.New(airtable.Config{APIKey: "k"})
	assert.ErrorIs(t, err, airtable.ErrInvalidConfig)

	_, err = airtable.New(airtable.Config{BaseID: "b"})
	assert.ErrorIs(t, err, airtable.ErrInvalidConfig)
}

func TestClient_CreateLead(t *testing.T) {
	t.Parallel()

	var captured capturedRequest
	client := newClient(t, http.StatusOK, &captured)

	err := client.CreateLead(context.Background(), airtable.Lead{
		Name:    "Jo Lee",
		Email:   "jo@acme.com",
		Company: "Acme",
		Phone:   "+1 555 010 0200",
		FormID:  "contact",
	})
	require.NoError(t, err)

	assert.Equal(t, "/appBase/Leads", captured.path)
	assert.Equal(t, "Bearer secret-key", captured.auth)
	assert.True(t, captured.payload.Typecast)

	require.Len(t, captured.payload.Records, 1)
	fields := captured.payload.Records[0].Fields
	assert.Equal(t, "Jo Lee", fields["Name"])
	assert.Equal(t, "jo@acme.com", fields["Email"])
	assert.Equal(t, "Acme", fields["Company"])
	assert.Equal(t, "+1 555 010 0200", fields["Phone"])
	assert.Equal(t, "contact", fields["Form ID"])
	assert.Equal(t, airtable.LeadSource, fields["Source"])
	assert.Equal(t, airtable.LeadStatus, fields["Status"])

	// Empty optionals are omitted entirely.
	assert.NotContains(t, fields, "Facility Size")
	assert.NotContains(t, fields, "Primary Challenge")
	assert.NotContains(t, fields, "Form Variant")
}

func TestClient_CreateLead_UpstreamError(t *testing.T) {
	t.Parallel()

	client := newClient(t, http.StatusUnprocessableEntity, nil)

	err := client.CreateLead(context.Background(), airtable.Lead{
		Name: "Jo", Email: "jo@acme.com", Company: "Acme",
	})
	assert.ErrorIs(t, err, airtable.ErrUpstream)
}

func TestForwarder_Forward(t *testing.T) {
	t.Parallel()

	var captured capturedRequest
	client := newClient(t, http.StatusOK, &captured)

	forwarder := airtable.NewForwarder(client)
	err := forwarder.Forward(context.Background(), map[string]string{
		"name":          "Jo Lee",
		"email":         "jo@acme.com",
		"company":       "Acme",
		"_form_id":      "contact",
		"_form_variant": "b",
	})
	require.NoError(t, err)

	fields := captured.payload.Records[0].Fields
	assert.Equal(t, "contact", fields["Form ID"])
	assert.Equal(t, "b", fields["Form Variant"])
}

func TestLeadFromFields(t *testing.T) {
	t.Parallel()

	lead := airtable.LeadFromFields(map[string]string{
		"name":              "Jo",
		"facility_size":     "200 beds",
		"primary_challenge": "coverage",
	})
	assert.Equal(t, "Jo", lead.Name)
	assert.Equal(t, "200 beds", lead.FacilitySize)
	assert.Equal(t, "coverage", lead.PrimaryChallenge)
	assert.Empty(t, lead.Email)
}
