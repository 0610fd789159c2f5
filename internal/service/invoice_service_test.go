package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movenorth/booking-backend/internal/apperr"
	"github.com/movenorth/booking-backend/internal/model"
	"github.com/movenorth/booking-backend/internal/payment"
)

const testWebhookSecret = "whsec_test"

func newInvoiceFixture() (*InvoiceService, *memInvoices, *memBookings, *fakeGateway) {
	invoices := newMemInvoices()
	bookings := newMemBookings()
	gateway := newFakeGateway()
	svc := NewInvoiceService(invoices, bookings, gateway, testWebhookSecret, zerolog.Nop())
	return svc, invoices, bookings, gateway
}

func TestCreateInvoiceHappyPath(t *testing.T) {
	svc, invoices, bookings, gateway := newInvoiceFixture()
	b := seedBooking(t, bookings, model.StatusPending, "")

	receipt, err := svc.Create(context.Background(), b.UID, 1250.50)
	require.NoError(t, err)
	assert.Equal(t, 1250.50, receipt.Amount)
	assert.Equal(t, model.InvoiceUnpaid, receipt.Status)
	assert.NotEmpty(t, receipt.InvoiceID)
	assert.Contains(t, receipt.HostedInvoiceURL, receipt.InvoiceID)

	assert.Equal(t, []string{
		"FindCustomerByEmail", "CreateCustomer", "CreateInvoice",
		"AddInvoiceItem", "FinalizeInvoice", "SendInvoice",
	}, gateway.calls)

	stored, err := bookings.GetByUID(context.Background(), b.UID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInvoiced, stored.Status)

	local, err := invoices.GetByExternalID(context.Background(), receipt.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, b.UID, local.BookingUID)
	assert.Equal(t, model.InvoiceUnpaid, local.Status)
	assert.Nil(t, local.PaidAt)
}

func TestCreateInvoiceReusesExistingCustomer(t *testing.T) {
	svc, _, bookings, gateway := newInvoiceFixture()
	_, err := gateway.CreateCustomer(context.Background(), "a@b.com", "John Doe")
	require.NoError(t, err)
	gateway.calls = nil

	b := seedBooking(t, bookings, model.StatusPending, "")
	_, err = svc.Create(context.Background(), b.UID, 500)
	require.NoError(t, err)
	assert.NotContains(t, gateway.calls, "CreateCustomer")
}

func TestCreateInvoiceValidationSkipsGateway(t *testing.T) {
	svc, invoices, bookings, gateway := newInvoiceFixture()

	b := seedBooking(t, bookings, model.StatusPending, "")
	_, err := svc.Create(context.Background(), b.UID, 0)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	noEmail := &model.Booking{
		FirstName: "John", DropoffAddress: "12 Oak St",
		Service: "full-move", Status: model.StatusPending, AgreedPrice: "0",
	}
	require.NoError(t, bookings.Create(context.Background(), noEmail))
	_, err = svc.Create(context.Background(), noEmail.UID, 100)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	assert.Empty(t, gateway.calls)
	rows, err := invoices.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCreateInvoiceRequiresInvoicableStatus(t *testing.T) {
	svc, _, bookings, gateway := newInvoiceFixture()

	for _, status := range []model.BookingStatus{
		model.StatusConfirmed, model.StatusCancelled,
		model.StatusRejected, model.StatusInvoiced,
	} {
		b := seedBooking(t, bookings, status, "")
		_, err := svc.Create(context.Background(), b.UID, 100)
		assert.True(t, apperr.Is(err, apperr.KindInvalidStateTransition), "status %s", status)
	}
	assert.Empty(t, gateway.calls)
}

func TestCreateInvoiceGatewayFailureLeavesStateUntouched(t *testing.T) {
	steps := []string{
		"customer lookup", "customer creation", "invoice creation",
		"invoice item attach", "invoice finalization", "invoice delivery",
	}
	for _, step := range steps {
		t.Run(step, func(t *testing.T) {
			svc, invoices, bookings, gateway := newInvoiceFixture()
			gateway.failStep = step
			b := seedBooking(t, bookings, model.StatusPending, "")

			_, err := svc.Create(context.Background(), b.UID, 100)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindPaymentGateway))

			stored, err := bookings.GetByUID(context.Background(), b.UID)
			require.NoError(t, err)
			assert.Equal(t, model.StatusPending, stored.Status)

			rows, err := invoices.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}

func paidPayload(externalID string, paidAt time.Time) []byte {
	return fmt.Appendf(nil,
		`{"type":"invoice.paid","data":{"object":{"id":%q,"status":"paid","status_transitions":{"paid_at":%d}}}}`,
		externalID, paidAt.Unix())
}

func signedHeader(payload []byte, at time.Time) string {
	return payment.SignatureHeader(testWebhookSecret, at.Unix(), payload)
}

func TestWebhookPaidConfirmsBooking(t *testing.T) {
	svc, invoices, bookings, _ := newInvoiceFixture()
	b := seedBooking(t, bookings, model.StatusPending, "")
	receipt, err := svc.Create(context.Background(), b.UID, 800)
	require.NoError(t, err)

	paidAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	now := paidAt.Add(time.Minute)
	svc.now = func() time.Time { return now }

	payload := paidPayload(receipt.InvoiceID, paidAt)
	require.NoError(t, svc.HandleWebhook(context.Background(), payload, signedHeader(payload, now)))

	local, err := invoices.GetByExternalID(context.Background(), receipt.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoicePaid, local.Status)
	require.NotNil(t, local.PaidAt)
	assert.True(t, local.PaidAt.Equal(paidAt))

	stored, err := bookings.GetByUID(context.Background(), b.UID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, stored.Status)
}

func TestWebhookReplayIsIdempotent(t *testing.T) {
	svc, invoices, bookings, _ := newInvoiceFixture()
	b := seedBooking(t, bookings, model.StatusPending, "")
	receipt, err := svc.Create(context.Background(), b.UID, 800)
	require.NoError(t, err)

	paidAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	now := paidAt.Add(time.Minute)
	svc.now = func() time.Time { return now }

	payload := paidPayload(receipt.InvoiceID, paidAt)
	header := signedHeader(payload, now)
	require.NoError(t, svc.HandleWebhook(context.Background(), payload, header))
	require.NoError(t, svc.HandleWebhook(context.Background(), payload, header))

	local, err := invoices.GetByExternalID(context.Background(), receipt.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoicePaid, local.Status)
}

// flakyBookings fails a configurable number of Confirmed writes before
// delegating, simulating a transient store outage mid-webhook.
type flakyBookings struct {
	*memBookings
	confirmFailures int
}

func (f *flakyBookings) UpdateStatus(ctx context.Context, uid string, status model.BookingStatus) error {
	if status == model.StatusConfirmed && f.confirmFailures > 0 {
		f.confirmFailures--
		return apperr.New(apperr.KindInternal, "connection reset")
	}
	return f.memBookings.UpdateStatus(ctx, uid, status)
}

func TestWebhookRedeliveryRepairsBooking(t *testing.T) {
	invoices := newMemInvoices()
	bookings := newMemBookings()
	flaky := &flakyBookings{memBookings: bookings, confirmFailures: 1}
	svc := NewInvoiceService(invoices, flaky, newFakeGateway(), testWebhookSecret, zerolog.Nop())

	b := seedBooking(t, bookings, model.StatusPending, "")
	receipt, err := svc.Create(context.Background(), b.UID, 800)
	require.NoError(t, err)

	paidAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	now := paidAt.Add(time.Minute)
	svc.now = func() time.Time { return now }

	payload := paidPayload(receipt.InvoiceID, paidAt)
	header := signedHeader(payload, now)

	// First delivery marks the invoice paid but the booking write fails;
	// the error makes the handler respond non-2xx so the processor retries.
	require.Error(t, svc.HandleWebhook(context.Background(), payload, header))

	local, err := invoices.GetByExternalID(context.Background(), receipt.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoicePaid, local.Status)
	stored, err := bookings.GetByUID(context.Background(), b.UID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInvoiced, stored.Status)

	// The redelivery must re-assert the booking even though the invoice
	// is already paid.
	require.NoError(t, svc.HandleWebhook(context.Background(), payload, header))
	stored, err = bookings.GetByUID(context.Background(), b.UID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, stored.Status)
}

func TestWebhookUnknownInvoiceAcknowledged(t *testing.T) {
	svc, _, _, _ := newInvoiceFixture()
	now := time.Now().UTC()
	svc.now = func() time.Time { return now }

	payload := paidPayload("in_unknown", now)
	assert.NoError(t, svc.HandleWebhook(context.Background(), payload, signedHeader(payload, now)))
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	svc, _, _, _ := newInvoiceFixture()
	now := time.Now().UTC()
	svc.now = func() time.Time { return now }

	payload := []byte(`{"type":"invoice.finalized","data":{"object":{"id":"in_1"}}}`)
	assert.NoError(t, svc.HandleWebhook(context.Background(), payload, signedHeader(payload, now)))
}

func TestWebhookBadSignatureRejectedBeforeParsing(t *testing.T) {
	svc, _, _, _ := newInvoiceFixture()
	now := time.Now().UTC()
	svc.now = func() time.Time { return now }

	payload := []byte(`not even json`)
	header := payment.SignatureHeader("wrong-secret", now.Unix(), payload)
	err := svc.HandleWebhook(context.Background(), payload, header)
	assert.True(t, apperr.Is(err, apperr.KindInvalidSignature))
}

func TestWebhookMalformedPayload(t *testing.T) {
	svc, _, _, _ := newInvoiceFixture()
	now := time.Now().UTC()
	svc.now = func() time.Time { return now }

	payload := []byte(`{"data":{}}`)
	err := svc.HandleWebhook(context.Background(), payload, signedHeader(payload, now))
	assert.True(t, apperr.Is(err, apperr.KindMalformedPayload))
}
