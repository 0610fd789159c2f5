package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/movenorth/booking-backend/internal/apperr"
	"github.com/movenorth/booking-backend/internal/model"
	"github.com/movenorth/booking-backend/internal/payment"
	"github.com/movenorth/booking-backend/internal/repository"
)

// Invoicing constants: the processor is asked for a short due period
// and immediate delivery; amounts are billed in Canadian dollars.
const (
	invoiceDaysUntilDue = 1
	invoiceCurrency     = "cad"
)

// InvoiceReceipt is the confirmation payload returned after a
// successful create-and-send.
type InvoiceReceipt struct {
	Message          string  `json:"message"`
	InvoiceID        string  `json:"invoice_id"`
	Amount           float64 `json:"amount"`
	Status           string  `json:"status"`
	HostedInvoiceURL string  `json:"hosted_invoice_url"`
}

// InvoiceService reconciles bookings with the external payment
// processor: it creates and sends invoices, and applies paid webhooks.
type InvoiceService struct {
	invoices      repository.InvoiceStore
	bookings      repository.BookingStore
	gateway       payment.Gateway
	webhookSecret string
	log           zerolog.Logger

	now func() time.Time // injectable clock for tests
}

func NewInvoiceService(
	invoices repository.InvoiceStore,
	bookings repository.BookingStore,
	gateway payment.Gateway,
	webhookSecret string,
	log zerolog.Logger,
) *InvoiceService {
	return &InvoiceService{
		invoices:      invoices,
		bookings:      bookings,
		gateway:       gateway,
		webhookSecret: webhookSecret,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Create runs the multi-step invoicing flow against the processor and,
// only after every external step succeeded, records the local invoice
// and moves the booking to Invoiced. A failure at any gateway step
// leaves local state untouched.
func (s *InvoiceService) Create(ctx context.Context, bookingUID string, amount float64) (*InvoiceReceipt, error) {
	booking, err := s.bookings.GetByUID(ctx, bookingUID)
	if err != nil {
		return nil, err
	}
	if booking.Email == "" {
		return nil, apperr.New(apperr.KindValidation, "client email is required for invoicing")
	}
	if amount <= 0 {
		return nil, apperr.New(apperr.KindValidation, "invoice amount must be greater than zero")
	}
	if !booking.Status.CanTransition(model.StatusInvoiced) {
		return nil, apperr.Newf(apperr.KindInvalidStateTransition,
			"booking in status %q cannot be invoiced", string(booking.Status))
	}

	// Reuse the processor's customer when one already exists for the
	// booking email; take the first match.
	customer, err := s.gateway.FindCustomerByEmail(ctx, booking.Email)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		customer, err = s.gateway.CreateCustomer(ctx, booking.Email, booking.FirstName+" "+booking.LastName)
		if err != nil {
			return nil, err
		}
	}

	external, err := s.gateway.CreateInvoice(ctx, customer.ID, invoiceDaysUntilDue)
	if err != nil {
		return nil, err
	}
	amountCents := int64(math.Round(amount * 100))
	description := fmt.Sprintf("Invoice for booking %s", booking.UID)
	if err := s.gateway.AddInvoiceItem(ctx, customer.ID, external.ID, amountCents, invoiceCurrency, description); err != nil {
		return nil, err
	}
	finalized, err := s.gateway.FinalizeInvoice(ctx, external.ID)
	if err != nil {
		return nil, err
	}
	// The invoice may survive upstream in a finalized-but-unsent state
	// when delivery fails; that gap is surfaced, not retried.
	if err := s.gateway.SendInvoice(ctx, finalized.ID); err != nil {
		return nil, err
	}

	if err := s.bookings.UpdateStatus(ctx, booking.UID, model.StatusInvoiced); err != nil {
		return nil, err
	}
	invoice := &model.Invoice{
		BookingUID: booking.UID,
		ExternalID: finalized.ID,
		Amount:     amount,
		Status:     model.InvoiceUnpaid,
		IssuedAt:   s.now(),
	}
	if err := s.invoices.Create(ctx, invoice); err != nil {
		return nil, err
	}

	s.log.Info().Str("booking_uid", booking.UID).Str("invoice_id", finalized.ID).
		Float64("amount", amount).Msg("invoice created and sent")

	return &InvoiceReceipt{
		Message:          "Invoice created and sent",
		InvoiceID:        finalized.ID,
		Amount:           amount,
		Status:           model.InvoiceUnpaid,
		HostedInvoiceURL: finalized.HostedInvoiceURL,
	}, nil
}

// HandleWebhook applies a webhook delivery. The signature is checked
// before the body is parsed. Only invoice.paid is acted upon; other
// event types, and paid events for invoices this system never created,
// are acknowledged without error. The handler is idempotent under
// at-least-once delivery: a redelivery re-asserts both the invoice and
// the booking state, so a failure between the two writes is repaired
// by the processor's retry.
func (s *InvoiceService) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	if err := payment.VerifySignature(payload, sigHeader, s.webhookSecret, payment.DefaultTolerance, s.now()); err != nil {
		return err
	}
	event, err := payment.ParseEvent(payload)
	if err != nil {
		return err
	}
	if event.Type != payment.EventInvoicePaid {
		s.log.Debug().Str("type", event.Type).Msg("ignoring webhook event")
		return nil
	}

	externalID := event.Data.Object.ID
	invoice, err := s.invoices.GetByExternalID(ctx, externalID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.Warn().Str("invoice_id", externalID).Msg("paid event for unknown invoice, acknowledging")
			return nil
		}
		return err
	}
	if invoice.Status != model.InvoicePaid {
		if err := s.invoices.MarkPaid(ctx, invoice.UID, event.Data.Object.PaidAt()); err != nil {
			return err
		}
	}
	booking, err := s.bookings.GetByUID(ctx, invoice.BookingUID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.Warn().Str("booking_uid", invoice.BookingUID).Msg("paid invoice references missing booking")
			return nil
		}
		return err
	}
	if booking.Status != model.StatusConfirmed {
		if err := s.bookings.UpdateStatus(ctx, booking.UID, model.StatusConfirmed); err != nil {
			return err
		}
		s.log.Info().Str("invoice_id", externalID).Str("booking_uid", booking.UID).
			Msg("invoice paid, booking confirmed")
	}
	return nil
}

// List returns all local invoices, newest first.
func (s *InvoiceService) List(ctx context.Context) ([]model.Invoice, error) {
	return s.invoices.List(ctx)
}
