package handler

import (
	"context"
	"net/http"
)

// Context defines the contract for request contexts passed to handlers.
// The router package provides the default implementation.
type Context interface {
	context.Context
	Request() *http.Request
	ResponseWriter() http.ResponseWriter
	SetValue(key, val any)
}
