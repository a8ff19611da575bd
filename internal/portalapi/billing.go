package portalapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// ========== Billing / Invoices ==========

// ListInvoices retrieves all invoices for the organization.
func (c *Client) ListInvoices(ctx context.Context) ([]Invoice, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/billing/invoices", nil)
	if err != nil {
		return nil, err
	}
	return normalizeInvoiceList(respBody)
}

// CreateInvoiceRequest is the payload for creating an invoice.
type CreateInvoiceRequest struct {
	CustomerEmail string          `json:"customerEmail"`
	Amount        decimal.Decimal `json:"amount"`
	TaxAmount     decimal.Decimal `json:"taxAmount"`
	DueDate       time.Time       `json:"dueDate"`

	IsRecurring         bool       `json:"isRecurring,omitempty"`
	RecurringInterval   string     `json:"recurringInterval,omitempty"`
	RecurringDayOfMonth int        `json:"recurringDayOfMonth,omitempty"`
	RecurringEndDate    *time.Time `json:"recurringEndDate,omitempty"`
}

// CreateInvoice creates a draft invoice.
func (c *Client) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/billing/invoices", req)
	if err != nil {
		return nil, err
	}
	return normalizeInvoice(respBody)
}

// SendInvoice emails the invoice to the customer and returns the updated
// record (status sent, sentAt stamped, payment URL populated).
func (c *Client) SendInvoice(ctx context.Context, id ID) (*Invoice, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/billing/invoices/"+url.PathEscape(string(id))+"/send", nil)
	if err != nil {
		return nil, err
	}
	return normalizeInvoice(respBody)
}

// RemindInvoice sends a payment reminder. The backend enforces the reminder
// cap too; the client refuses before calling once the cap is reached.
func (c *Client) RemindInvoice(ctx context.Context, id ID) (*Invoice, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/billing/invoices/"+url.PathEscape(string(id))+"/remind", nil)
	if err != nil {
		return nil, err
	}
	return normalizeInvoice(respBody)
}

// PayInvoice charges a Square-tokenized card against the invoice.
func (c *Client) PayInvoice(ctx context.Context, id ID, card PaymentCard) (*Invoice, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/billing/invoices/"+url.PathEscape(string(id))+"/pay", card)
	if err != nil {
		return nil, err
	}
	return normalizeInvoice(respBody)
}

// UpdateInvoice applies a partial update (status or details).
func (c *Client) UpdateInvoice(ctx context.Context, id ID, patch InvoicePatch) (*Invoice, error) {
	respBody, err := c.doRequest(ctx, http.MethodPatch, "/billing/invoices/"+url.PathEscape(string(id)), patch)
	if err != nil {
		return nil, err
	}
	return normalizeInvoice(respBody)
}

// DeleteInvoice permanently removes an invoice.
func (c *Client) DeleteInvoice(ctx context.Context, id ID) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/billing/invoices/"+url.PathEscape(string(id)), nil)
	return err
}

// QuickInvoiceRequest is the payload of the one-shot invoice flow: create,
// send, and return a payment link in a single call.
type QuickInvoiceRequest struct {
	CustomerEmail string          `json:"customerEmail"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       time.Time       `json:"dueDate"`
	Memo          string          `json:"memo,omitempty"`
}

// QuickInvoiceResult carries the payment URL shown to the user.
type QuickInvoiceResult struct {
	InvoiceID  ID     `json:"invoiceId"`
	PaymentURL string `json:"paymentUrl"`
}

// QuickInvoice runs the quick-invoice flow.
func (c *Client) QuickInvoice(ctx context.Context, req QuickInvoiceRequest) (*QuickInvoiceResult, error) {
	respBody, err := c.doRequest(ctx, http.MethodPost, "/billing/invoices/quick", req)
	if err != nil {
		return nil, err
	}
	body := unwrapData(respBody)
	var result QuickInvoiceResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unexpected quick invoice shape: %w", err)
	}
	return &result, nil
}
