package binder_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbleresolve/leadgate/core/binder"
)

type payload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func newJSONRequest(body, contentType string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	return r
}

func TestJSON(t *testing.T) {
	t.Parallel()

	bind := binder.JSON(0)

	t.Run("decodes valid body", func(t *testing.T) {
		t.Parallel()

		var p payload
		err := bind(newJSONRequest(`{"name":"Jo","email":"jo@acme.com"}`, "application/json"), &p)
		require.NoError(t, err)
		assert.Equal(t, "Jo", p.Name)
		assert.Equal(t, "jo@acme.com", p.Email)
	})

	t.Run("accepts charset parameter", func(t *testing.T) {
		t.Parallel()

		var p payload
		err := bind(newJSONRequest(`{"name":"Jo"}`, "application/json; charset=utf-8"), &p)
		require.NoError(t, err)
		assert.Equal(t, "Jo", p.Name)
	})

	t.Run("missing content type", func(t *testing.T) {
		t.Parallel()

		var p payload
		err := bind(newJSONRequest(`{}`, ""), &p)
		assert.ErrorIs(t, err, binder.ErrMissingContentType)
	})

	t.Run("wrong media type", func(t *testing.T) {
		t.Parallel()

		var p payload
		err := bind(newJSONRequest(`{}`, "text/plain"), &p)
		assert.ErrorIs(t, err, binder.ErrUnsupportedMediaType)
	})

	t.Run("malformed json", func(t *testing.T) {
		t.Parallel()

		var p payload
		err := bind(newJSONRequest(`{"name":`, "application/json"), &p)
		assert.ErrorIs(t, err, binder.ErrFailedToParseJSON)
	})

	t.Run("trailing data", func(t *testing.T) {
		t.Parallel()

		var p payload
		err := bind(newJSONRequest(`{"name":"Jo"}{"name":"Bo"}`, "application/json"), &p)
		assert.ErrorIs(t, err, binder.ErrFailedToParseJSON)
	})

	t.Run("oversized body", func(t *testing.T) {
		t.Parallel()

		var p payload
		big := `{"name":"` + strings.Repeat("a", 100) + `"}`
		err := binder.JSON(10)(newJSONRequest(big, "application/json"), &p)
		assert.ErrorIs(t, err, binder.ErrBodyTooLarge)
	})
}
