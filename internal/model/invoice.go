package model

import "time"

// Invoice payment states. An invoice is created "unpaid" and flips to
// "paid" exactly once, driven by the processor's webhook.
const (
	InvoiceUnpaid = "unpaid"
	InvoicePaid   = "paid"
)

// Invoice mirrors the `invoices` table. ExternalID is the identifier
// assigned by the payment processor and is the key webhooks arrive
// with.
type Invoice struct {
	UID        string
	BookingUID string
	ExternalID string
	Amount     float64
	Status     string
	IssuedAt   time.Time
	PaidAt     *time.Time
}
