package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/movenorth/booking-backend/internal/apperr"
	"github.com/movenorth/booking-backend/internal/metrics"
	"github.com/movenorth/booking-backend/internal/payment"
	"github.com/movenorth/booking-backend/internal/service"
)

// maxWebhookBody caps the webhook payload read into memory.
const maxWebhookBody = 1 << 20

// gatewayTimeout bounds the multi-step invoicing flow.
const gatewayTimeout = 30 * time.Second

// InvoiceHandler exposes invoicing and the payment webhook.
type InvoiceHandler struct {
	invoices *service.InvoiceService
}

func NewInvoiceHandler(invoices *service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

type createInvoiceReq struct {
	BookingUID string  `json:"booking_uid"`
	Amount     float64 `json:"amount"`
}

// Create runs the invoicing flow for a booking; admin only.
func (h *InvoiceHandler) Create(c echo.Context) error {
	var req createInvoiceReq
	if err := c.Bind(&req); err != nil {
		return writeErr(c, apperr.New(apperr.KindValidation, "invalid request body"))
	}
	// Gateway round-trips can take longer than a DB call.
	ctx, cancel := context.WithTimeout(c.Request().Context(), gatewayTimeout)
	defer cancel()

	receipt, err := h.invoices.Create(ctx, req.BookingUID, req.Amount)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, receipt)
}

// List returns all local invoices; admin only.
func (h *InvoiceHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	invoices, err := h.invoices.List(ctx)
	if err != nil {
		return writeErr(c, err)
	}
	out := make([]invoiceView, len(invoices))
	for i := range invoices {
		out[i] = toInvoiceView(&invoices[i])
	}
	return c.JSON(http.StatusOK, out)
}

// Webhook receives processor deliveries. The raw body is read before
// any parsing so the signature covers exactly the bytes sent.
func (h *InvoiceHandler) Webhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		metrics.IncWebhookEvent("read_error")
		return writeErr(c, apperr.New(apperr.KindMalformedPayload, "unreadable webhook body"))
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.invoices.HandleWebhook(ctx, payload, c.Request().Header.Get(payment.HeaderName)); err != nil {
		metrics.IncWebhookEvent(apperr.KindName(err))
		return writeErr(c, err)
	}
	metrics.IncWebhookEvent("ok")
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
