package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbleresolve/leadgate/core/handler"
	"github.com/nimbleresolve/leadgate/core/response"
	"github.com/nimbleresolve/leadgate/core/router"
	"github.com/nimbleresolve/leadgate/middleware"
)

const allowedOrigin = "https://nimbleresolve.com"

func newCORSRouter(cfg middleware.CORSConfig) *router.Router[*router.Context] {
	r := router.New[*router.Context]()
	r.Use(middleware.CORS[*router.Context](cfg))
	r.Post("/submit", func(ctx *router.Context) handler.Response {
		return response.String("ok")
	})
	r.Options("/submit", func(ctx *router.Context) handler.Response {
		return response.NoContent()
	})
	return r
}

func TestCORS_SameOriginPassthrough(t *testing.T) {
	t.Parallel()

	r := newCORSRouter(middleware.CORSConfig{AllowOrigins: []string{allowedOrigin}})

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_AllowedSimpleRequest(t *testing.T) {
	t.Parallel()

	r := newCORSRouter(middleware.CORSConfig{AllowOrigins: []string{allowedOrigin}})

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.Header.Set("Origin", allowedOrigin)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, allowedOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Values("Vary"), "Origin")
}

func TestCORS_DisallowedSimpleRequest(t *testing.T) {
	t.Parallel()

	handlerCalled := false
	r := router.New[*router.Context]()
	r.Use(middleware.CORS[*router.Context](middleware.CORSConfig{
		AllowOrigins: []string{allowedOrigin},
	}))
	r.Post("/submit", func(ctx *router.Context) handler.Response {
		handlerCalled = true
		return response.String("ok")
	})

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"), "no wildcard fallback")
	assert.False(t, handlerCalled, "handler must not run for rejected origins")
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	r := newCORSRouter(middleware.CORSConfig{
		AllowOrigins: []string{allowedOrigin},
		MaxAge:       3600,
	})

	req := httptest.NewRequest(http.MethodOptions, "/submit", nil)
	req.Header.Set("Origin", allowedOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, allowedOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_PreflightDisallowed(t *testing.T) {
	t.Parallel()

	r := newCORSRouter(middleware.CORSConfig{AllowOrigins: []string{allowedOrigin}})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/submit", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disallowed method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/submit", nil)
		req.Header.Set("Origin", allowedOrigin)
		req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestCORS_OptionsWithoutOrigin(t *testing.T) {
	t.Parallel()

	r := newCORSRouter(middleware.CORSConfig{AllowOrigins: []string{allowedOrigin}})

	req := httptest.NewRequest(http.MethodOptions, "/submit", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
