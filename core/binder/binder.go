// Package binder decodes request bodies into values. Only JSON is
// supported; payloads here are small lead maps, not file uploads.
package binder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// DefaultMaxJSONSize bounds accepted JSON bodies.
const DefaultMaxJSONSize = 64 << 10

// Binding errors. Check with errors.Is().
var (
	ErrMissingContentType   = errors.New("binder: missing content-type header")
	ErrUnsupportedMediaType = errors.New("binder: unsupported media type")
	ErrFailedToParseJSON    = errors.New("binder: failed to parse json")
	ErrBodyTooLarge         = errors.New("binder: request body too large")
)

// JSON returns a binder that decodes an application/json body into v.
// Unknown fields are tolerated; trailing garbage is not.
func JSON(maxSize int64) func(r *http.Request, v any) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxJSONSize
	}
	return func(r *http.Request, v any) error {
		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			return ErrMissingContentType
		}
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || mediaType != "application/json" {
			return fmt.Errorf("%w: got %q, expected application/json", ErrUnsupportedMediaType, contentType)
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxSize+1))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFailedToParseJSON, err)
		}
		if int64(len(body)) > maxSize {
			return ErrBodyTooLarge
		}

		dec := json.NewDecoder(bytes.NewReader(body))
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("%w: %v", ErrFailedToParseJSON, err)
		}
		// A second token means trailing content after the JSON value.
		if dec.More() {
			return fmt.Errorf("%w: unexpected trailing data", ErrFailedToParseJSON)
		}
		return nil
	}
}
