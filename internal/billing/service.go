package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/agency-portal/internal/authz"
	"github.com/ignite/agency-portal/internal/pkg/logger"
	"github.com/ignite/agency-portal/internal/portalapi"
)

// ErrConfirmRequired is returned when a destructive action is attempted
// without the explicit confirm step.
var ErrConfirmRequired = errors.New("confirmation required")

// ErrReminderLimit is returned when the reminder cap is reached. The call
// is refused client-side; no request is issued.
var ErrReminderLimit = errors.New("reminder limit reached")

// InvoiceAPI is the slice of the portal client the service needs.
type InvoiceAPI interface {
	ListInvoices(ctx context.Context) ([]portalapi.Invoice, error)
	CreateInvoice(ctx context.Context, req portalapi.CreateInvoiceRequest) (*portalapi.Invoice, error)
	SendInvoice(ctx context.Context, id portalapi.ID) (*portalapi.Invoice, error)
	RemindInvoice(ctx context.Context, id portalapi.ID) (*portalapi.Invoice, error)
	PayInvoice(ctx context.Context, id portalapi.ID, card portalapi.PaymentCard) (*portalapi.Invoice, error)
	UpdateInvoice(ctx context.Context, id portalapi.ID, patch portalapi.InvoicePatch) (*portalapi.Invoice, error)
	DeleteInvoice(ctx context.Context, id portalapi.ID) error
	QuickInvoice(ctx context.Context, req portalapi.QuickInvoiceRequest) (*portalapi.QuickInvoiceResult, error)
}

// Notifier receives user-facing notices for mutating actions.
type Notifier interface {
	Success(msg string)
	Failure(msg string)
}

// Service is the billing surface of the portal. Every entry point runs the
// org-level route guard before issuing a call: a restricted user gets an
// explicit access-restricted error and no request is made.
type Service struct {
	api      InvoiceAPI
	org      authz.OrgContext
	notifier Notifier
}

// NewService wires the billing service. notifier may be nil.
func NewService(api InvoiceAPI, org authz.OrgContext, notifier Notifier) *Service {
	return &Service{api: api, org: org, notifier: notifier}
}

func (s *Service) notifySuccess(msg string) {
	if s.notifier != nil {
		s.notifier.Success(msg)
	}
}

func (s *Service) notifyFailure(msg string) {
	if s.notifier != nil {
		s.notifier.Failure(msg)
	}
}

// List returns the organization's invoices.
func (s *Service) List(ctx context.Context) ([]portalapi.Invoice, error) {
	if err := s.org.GuardBilling(); err != nil {
		return nil, err
	}
	return s.api.ListInvoices(ctx)
}

// Create creates a draft invoice.
func (s *Service) Create(ctx context.Context, req portalapi.CreateInvoiceRequest) (*portalapi.Invoice, error) {
	if err := s.org.GuardBilling(); err != nil {
		return nil, err
	}
	inv, err := s.api.CreateInvoice(ctx, req)
	if err != nil {
		s.notifyFailure("Could not create invoice")
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	s.notifySuccess("Invoice " + inv.InvoiceNumber + " created")
	return inv, nil
}

// Send emails the invoice to the customer.
func (s *Service) Send(ctx context.Context, id portalapi.ID) (*portalapi.Invoice, error) {
	if err := s.org.GuardBilling(); err != nil {
		return nil, err
	}
	inv, err := s.api.SendInvoice(ctx, id)
	if err != nil {
		s.notifyFailure("Could not send invoice")
		return nil, fmt.Errorf("failed to send invoice: %w", err)
	}
	s.notifySuccess("Invoice " + inv.InvoiceNumber + " sent")
	return inv, nil
}

// Remind sends a payment reminder, refusing client-side once the cap of
// MaxReminders is reached.
func (s *Service) Remind(ctx context.Context, inv portalapi.Invoice) (*portalapi.Invoice, error) {
	if err := s.org.GuardBilling(); err != nil {
		return nil, err
	}
	if !CanRemind(inv) {
		return nil, ErrReminderLimit
	}
	updated, err := s.api.RemindInvoice(ctx, inv.ID)
	if err != nil {
		s.notifyFailure("Could not send reminder")
		return nil, fmt.Errorf("failed to send reminder: %w", err)
	}
	s.notifySuccess("Reminder sent for " + updated.InvoiceNumber)
	return updated, nil
}

// Pay charges a Square-tokenized card against the invoice.
func (s *Service) Pay(ctx context.Context, id portalapi.ID, card portalapi.PaymentCard) (*portalapi.Invoice, error) {
	if err := s.org.GuardBilling(); err != nil {
		return nil, err
	}
	if card.Nonce == "" {
		return nil, errors.New("payment card token required")
	}
	inv, err := s.api.PayInvoice(ctx, id, card)
	if err != nil {
		s.notifyFailure("Payment failed")
		return nil, fmt.Errorf("failed to pay invoice: %w", err)
	}
	s.notifySuccess("Invoice " + inv.InvoiceNumber + " paid")
	return inv, nil
}

// MarkPaid explicitly transitions a sent invoice to paid.
func (s *Service) MarkPaid(ctx context.Context, id portalapi.ID) (*portalapi.Invoice, error) {
	if err := s.org.GuardBilling(); err != nil {
		return nil, err
	}
	status := StatusPaid
	inv, err := s.api.UpdateInvoice(ctx, id, portalapi.InvoicePatch{Status: &status})
	if err != nil {
		s.notifyFailure("Could not mark invoice paid")
		return nil, fmt.Errorf("failed to mark invoice paid: %w", err)
	}
	s.notifySuccess("Invoice " + inv.InvoiceNumber + " marked paid")
	return inv, nil
}

// Cancel explicitly cancels an invoice.
func (s *Service) Cancel(ctx context.Context, id portalapi.ID) (*portalapi.Invoice, error) {
	if err := s.org.GuardBilling(); err != nil {
		return nil, err
	}
	status := StatusCancelled
	inv, err := s.api.UpdateInvoice(ctx, id, portalapi.InvoicePatch{Status: &status})
	if err != nil {
		s.notifyFailure("Could not cancel invoice")
		return nil, fmt.Errorf("failed to cancel invoice: %w", err)
	}
	s.notifySuccess("Invoice " + inv.InvoiceNumber + " cancelled")
	return inv, nil
}

// Delete permanently removes an invoice. Destructive: the caller must pass
// confirmed=true (the UI's explicit confirm step) or no call is issued.
func (s *Service) Delete(ctx context.Context, id portalapi.ID, confirmed bool) error {
	if err := s.org.GuardBilling(); err != nil {
		return err
	}
	if !confirmed {
		return ErrConfirmRequired
	}
	if err := s.api.DeleteInvoice(ctx, id); err != nil {
		s.notifyFailure("Could not delete invoice")
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	logger.Info("invoice deleted", "invoice_id", string(id))
	s.notifySuccess("Invoice deleted")
	return nil
}
