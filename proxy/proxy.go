// Package proxy is the edge lead forwarder. It accepts sanitized lead
// payloads from the landing page, checks mandatory fields, and forwards
// them to the external lead database with a server-held credential.
// Callers only ever see {"success":true} or a generic error body;
// upstream failure details and credentials never traverse back.
package proxy

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/nimbleresolve/leadgate/core/binder"
	"github.com/nimbleresolve/leadgate/core/dispatch"
	"github.com/nimbleresolve/leadgate/core/email"
	"github.com/nimbleresolve/leadgate/core/event"
	"github.com/nimbleresolve/leadgate/core/handler"
	"github.com/nimbleresolve/leadgate/core/logger"
	"github.com/nimbleresolve/leadgate/core/response"
	"github.com/nimbleresolve/leadgate/core/router"
)

// Error and success bodies are fixed. Field-level detail stays
// server-side.
var (
	genericError = map[string]string{"error": "Service error"}
	successBody  = map[string]bool{"success": true}
)

// maxBodySize bounds the accepted request body. Lead payloads are tiny.
const maxBodySize = 64 << 10

var bindJSON = binder.JSON(maxBodySize)

// Upstream forwards a lead field map to the external database.
type Upstream interface {
	Forward(ctx context.Context, lead map[string]string) error
}

// LeadRequest is the JSON body accepted from the landing page.
type LeadRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Company          string `json:"company"`
	Phone            string `json:"phone,omitempty"`
	FacilitySize     string `json:"facility_size,omitempty"`
	PrimaryChallenge string `json:"primary_challenge,omitempty"`
	FormID           string `json:"_form_id,omitempty"`
	FormVariant      string `json:"_form_variant,omitempty"`
}

// fields flattens the request into the forwarding map. Empty optionals
// are omitted rather than sent as empty strings.
func (r LeadRequest) fields() map[string]string {
	out := map[string]string{
		"name":    r.Name,
		"email":   r.Email,
		"company": r.Company,
	}
	optional := map[string]string{
		"phone":             r.Phone,
		"facility_size":     r.FacilitySize,
		"primary_challenge": r.PrimaryChallenge,
		"_form_id":          r.FormID,
		"_form_variant":     r.FormVariant,
	}
	for name, value := range optional {
		if value != "" {
			out[name] = value
		}
	}
	return out
}

// Service handles lead forwarding requests.
type Service struct {
	upstream   Upstream
	logger     *slog.Logger
	dispatcher *dispatch.Dispatcher
	tracker    *event.Tracker

	notifier    email.EmailSender
	notifyEmail string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithNotifier enables a best-effort lead notification email after a
// successful forward. Requires a dispatcher.
func WithNotifier(sender email.EmailSender, to string) ServiceOption {
	return func(s *Service) {
		s.notifier = sender
		s.notifyEmail = to
	}
}

// WithDispatcher sets the background task runner for notifications.
func WithDispatcher(d *dispatch.Dispatcher) ServiceOption {
	return func(s *Service) { s.dispatcher = d }
}

// WithTracker records forwarding failures as analytics events.
func WithTracker(t *event.Tracker) ServiceOption {
	return func(s *Service) { s.tracker = t }
}

// NewService creates a Service over the upstream lead database.
func NewService(upstream Upstream, opts ...ServiceOption) *Service {
	s := &Service{
		upstream: upstream,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SubmitLead handles POST requests carrying a lead payload.
func (s *Service) SubmitLead() handler.HandlerFunc[*router.Context] {
	return func(ctx *router.Context) handler.Response {
		r := ctx.Request()

		// An unparseable body counts as a handling failure, not a caller
		// error. Only the mandatory-field check below answers with 400.
		var lead LeadRequest
		if err := bindJSON(r, &lead); err != nil {
			s.logger.DebugContext(ctx, "malformed lead payload", logger.Error(err))
			return response.JSONWithStatus(genericError, http.StatusInternalServerError)
		}

		if lead.Name == "" || lead.Email == "" || lead.Company == "" {
			return response.JSONWithStatus(genericError, http.StatusBadRequest)
		}

		if err := s.upstream.Forward(ctx, lead.fields()); err != nil {
			s.logger.ErrorContext(ctx, "lead forward failed",
				logger.FormID(lead.FormID), logger.Error(err))
			if s.tracker != nil {
				s.tracker.Track(ctx, event.SecondarySyncError, map[string]any{
					"form_id": lead.FormID,
					"error":   err.Error(),
				})
			}
			return response.JSONWithStatus(genericError, http.StatusInternalServerError)
		}

		s.notify(lead)

		return response.JSON(successBody)
	}
}

// notify sends the lead notification email as a detached task. The
// forward already succeeded; a notification failure is logged and
// dropped.
func (s *Service) notify(lead LeadRequest) {
	if s.notifier == nil || s.dispatcher == nil || s.notifyEmail == "" {
		return
	}

	company := lead.Company
	if company == "" {
		company = "Unknown"
	}
	params := email.LeadNotification("WiFi Assessment Request - "+company, lead.fields())
	params.SendTo = s.notifyEmail

	s.dispatcher.Go("lead_notification", func(ctx context.Context) error {
		return s.notifier.SendEmail(ctx, params)
	})
}
