// Package queue defines message payloads exchanged over the message broker.
package queue

// EmailEvent is published whenever the core wants an email delivered.
// The mailer worker consumes these and renders Template with Context;
// the core does not track delivery beyond "accepted by the broker".
type EmailEvent struct {
	Recipients []string          `json:"recipients"`
	Subject    string            `json:"subject"`
	Template   string            `json:"template"`
	Context    map[string]string `json:"context"`
}

// Template names known to the mailer worker.
const (
	TemplateVerifyEmail      = "verify-email"
	TemplateResetPassword    = "reset-password"
	TemplateBookingCreated   = "booking-created"
	TemplateBookingCancelled = "booking-cancelled"
	TemplateBookingRejected  = "booking-rejected"
)
