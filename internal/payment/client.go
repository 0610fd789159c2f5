// Package payment talks to the external payment processor. The
// processor exposes Stripe-shaped customer and invoice objects over a
// form-encoded REST API and reports payments back through signed
// webhooks (see webhook.go).
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/movenorth/booking-backend/internal/apperr"
)

// Customer is the processor's customer object.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Invoice is the processor's invoice object.
type Invoice struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	HostedInvoiceURL string `json:"hosted_invoice_url"`
}

// Gateway is the processor contract consumed by the reconciliation
// service. The invoice flow is multi-step and non-atomic upstream;
// each method reports its own failure so callers can tell which step
// broke.
type Gateway interface {
	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	CreateCustomer(ctx context.Context, email, name string) (*Customer, error)
	CreateInvoice(ctx context.Context, customerID string, daysUntilDue int) (*Invoice, error)
	AddInvoiceItem(ctx context.Context, customerID, invoiceID string, amountCents int64, currency, description string) error
	FinalizeInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	SendInvoice(ctx context.Context, invoiceID string) error
}

// Client implements Gateway over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// FindCustomerByEmail returns the first customer matching the email,
// or nil when none exists.
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	q := url.Values{"email": {email}, "limit": {"1"}}
	var out struct {
		Data []Customer `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/customers?"+q.Encode(), nil, &out); err != nil {
		return nil, gatewayErr("customer lookup", err)
	}
	if len(out.Data) == 0 {
		return nil, nil
	}
	return &out.Data[0], nil
}

func (c *Client) CreateCustomer(ctx context.Context, email, name string) (*Customer, error) {
	form := url.Values{"email": {email}, "name": {name}}
	var cust Customer
	if err := c.do(ctx, http.MethodPost, "/customers", form, &cust); err != nil {
		return nil, gatewayErr("customer creation", err)
	}
	return &cust, nil
}

func (c *Client) CreateInvoice(ctx context.Context, customerID string, daysUntilDue int) (*Invoice, error) {
	form := url.Values{
		"customer":          {customerID},
		"collection_method": {"send_invoice"},
		"days_until_due":    {strconv.Itoa(daysUntilDue)},
	}
	var inv Invoice
	if err := c.do(ctx, http.MethodPost, "/invoices", form, &inv); err != nil {
		return nil, gatewayErr("invoice creation", err)
	}
	return &inv, nil
}

func (c *Client) AddInvoiceItem(ctx context.Context, customerID, invoiceID string, amountCents int64, currency, description string) error {
	form := url.Values{
		"customer":    {customerID},
		"invoice":     {invoiceID},
		"amount":      {strconv.FormatInt(amountCents, 10)},
		"currency":    {currency},
		"description": {description},
	}
	if err := c.do(ctx, http.MethodPost, "/invoiceitems", form, nil); err != nil {
		return gatewayErr("invoice item attach", err)
	}
	return nil
}

func (c *Client) FinalizeInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	form := url.Values{"auto_advance": {"true"}}
	var inv Invoice
	if err := c.do(ctx, http.MethodPost, "/invoices/"+invoiceID+"/finalize", form, &inv); err != nil {
		return nil, gatewayErr("invoice finalization", err)
	}
	return &inv, nil
}

// SendInvoice triggers immediate delivery. When this fails the invoice
// may remain finalized-but-unsent upstream; the caller surfaces the
// error instead of retrying.
func (c *Client) SendInvoice(ctx context.Context, invoiceID string) error {
	if err := c.do(ctx, http.MethodPost, "/invoices/"+invoiceID+"/send", url.Values{}, nil); err != nil {
		return gatewayErr("invoice delivery", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw, 256))
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

func gatewayErr(step string, err error) error {
	return apperr.Wrap(apperr.KindPaymentGateway, "payment gateway: "+step+" failed", err)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
