package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ignite/agency-portal/internal/portalapi"
	"github.com/shopspring/decimal"
)

// DefaultSuccessWindow is how long the quick-invoice success state (payment
// URL, copy affordance) stays visible before the form resets.
const DefaultSuccessWindow = 5 * time.Second

// QuickInvoiceForm is the state of the one-shot invoice form. Submission is
// blocked until the required fields validate, so a validation failure never
// reaches the server.
type QuickInvoiceForm struct {
	CustomerEmail string `validate:"required,email"`
	Amount        string `validate:"required"`
	DueDate       string `validate:"required,datetime=2006-01-02"`
	Memo          string
}

var formValidator = validator.New()

// Validate checks the form. A nil error means the submit control may enable.
func (f QuickInvoiceForm) Validate() error {
	if err := formValidator.Struct(f); err != nil {
		return fmt.Errorf("invalid quick invoice form: %w", err)
	}
	amount, err := decimal.NewFromString(f.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q", f.Amount)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}

// request converts a validated form into the API payload.
func (f QuickInvoiceForm) request() (portalapi.QuickInvoiceRequest, error) {
	amount, err := decimal.NewFromString(f.Amount)
	if err != nil {
		return portalapi.QuickInvoiceRequest{}, fmt.Errorf("invalid amount %q", f.Amount)
	}
	due, err := time.Parse("2006-01-02", f.DueDate)
	if err != nil {
		return portalapi.QuickInvoiceRequest{}, fmt.Errorf("invalid due date %q", f.DueDate)
	}
	return portalapi.QuickInvoiceRequest{
		CustomerEmail: f.CustomerEmail,
		Amount:        amount,
		DueDate:       due,
		Memo:          f.Memo,
	}, nil
}

// QuickInvoiceController runs the quick-invoice flow: validate, submit,
// show the returned payment URL for the success window, then reset the
// form fields to blank.
type QuickInvoiceController struct {
	service *Service

	successWindow time.Duration
	now           func() time.Time // injectable for tests

	mu          sync.Mutex
	form        QuickInvoiceForm
	paymentURL  string
	completedAt time.Time
	resetTimer  *time.Timer
}

// NewQuickInvoiceController wires the controller. window <= 0 uses the
// 5-second default.
func NewQuickInvoiceController(service *Service, window time.Duration) *QuickInvoiceController {
	if window <= 0 {
		window = DefaultSuccessWindow
	}
	return &QuickInvoiceController{
		service:       service,
		successWindow: window,
		now:           time.Now,
	}
}

// SetForm replaces the form state.
func (q *QuickInvoiceController) SetForm(form QuickInvoiceForm) {
	q.mu.Lock()
	q.form = form
	q.mu.Unlock()
}

// Form returns the current form state.
func (q *QuickInvoiceController) Form() QuickInvoiceForm {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.form
}

// CanSubmit reports whether the submit control is enabled.
func (q *QuickInvoiceController) CanSubmit() bool {
	return q.Form().Validate() == nil
}

// Submit validates and runs the flow. On success the payment URL becomes
// available through PaymentURL until the success window elapses and the
// form resets.
func (q *QuickInvoiceController) Submit(ctx context.Context) (*portalapi.QuickInvoiceResult, error) {
	form := q.Form()
	if err := form.Validate(); err != nil {
		return nil, err
	}
	req, err := form.request()
	if err != nil {
		return nil, err
	}

	if err := q.service.org.GuardBilling(); err != nil {
		return nil, err
	}
	result, err := q.service.api.QuickInvoice(ctx, req)
	if err != nil {
		q.service.notifyFailure("Could not create invoice")
		return nil, fmt.Errorf("quick invoice failed: %w", err)
	}

	q.mu.Lock()
	q.paymentURL = result.PaymentURL
	q.completedAt = q.now()
	if q.resetTimer != nil {
		q.resetTimer.Stop()
	}
	q.resetTimer = time.AfterFunc(q.successWindow, q.Reset)
	q.mu.Unlock()

	q.service.notifySuccess("Payment link ready")
	return result, nil
}

// PaymentURL returns the copyable payment URL while the success window is
// open.
func (q *QuickInvoiceController) PaymentURL() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.paymentURL == "" {
		return "", false
	}
	if q.now().Sub(q.completedAt) >= q.successWindow {
		return "", false
	}
	return q.paymentURL, true
}

// Reset clears the form fields and the success state.
func (q *QuickInvoiceController) Reset() {
	q.mu.Lock()
	q.form = QuickInvoiceForm{}
	q.paymentURL = ""
	q.completedAt = time.Time{}
	q.mu.Unlock()
}
