package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/movenorth/booking-backend/internal/apperr"
)

// EventInvoicePaid is the only webhook event type acted upon; all
// others are acknowledged and ignored.
const EventInvoicePaid = "invoice.paid"

// HeaderName is the HTTP header carrying the webhook signature.
const HeaderName = "Stripe-Signature"

// DefaultTolerance bounds how stale a webhook timestamp may be before
// the signature is rejected, limiting replay of captured deliveries.
const DefaultTolerance = 5 * time.Minute

// Event is the webhook envelope posted by the processor.
type Event struct {
	Type string `json:"type"`
	Data struct {
		Object EventInvoice `json:"object"`
	} `json:"data"`
}

// EventInvoice is the invoice object embedded in an event.
type EventInvoice struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	StatusTransitions struct {
		PaidAt int64 `json:"paid_at"`
	} `json:"status_transitions"`
}

// PaidAt returns the payment timestamp carried by the event.
func (e EventInvoice) PaidAt() time.Time {
	return time.Unix(e.StatusTransitions.PaidAt, 0).UTC()
}

// Signature computes the hex HMAC-SHA256 over "<timestamp>.<payload>",
// the scheme the processor signs deliveries with. Exported for the
// webhook tests.
func Signature(secret string, t int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", t)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader renders the header value the processor sends:
// "t=<unix>,v1=<hex>".
func SignatureHeader(secret string, t int64, payload []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", t, Signature(secret, t, payload))
}

// VerifySignature checks the signature header against the raw payload.
// It must run before the body is parsed.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	var (
		timestamp int64
		sigs      []string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return apperr.New(apperr.KindInvalidSignature, "invalid signature timestamp")
			}
			timestamp = ts
		case "v1":
			sigs = append(sigs, value)
		}
	}
	if timestamp == 0 || len(sigs) == 0 {
		return apperr.New(apperr.KindInvalidSignature, "missing signature header")
	}
	if d := now.Sub(time.Unix(timestamp, 0)); d > tolerance || d < -tolerance {
		return apperr.New(apperr.KindInvalidSignature, "signature timestamp outside tolerance")
	}
	expected := Signature(secret, timestamp, payload)
	for _, sig := range sigs {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}
	return apperr.New(apperr.KindInvalidSignature, "signature mismatch")
}

// ParseEvent decodes a verified payload into an Event.
func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, apperr.Wrap(apperr.KindMalformedPayload, "unparsable webhook payload", err)
	}
	if event.Type == "" {
		return nil, apperr.New(apperr.KindMalformedPayload, "webhook event missing type")
	}
	return &event, nil
}
