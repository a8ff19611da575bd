// Package billing presents invoices and drives the invoice actions (create,
// send, remind, pay, delete) through the portal backend. All computation —
// tax, payment processing, email sending — lives server-side; this package
// only derives display state and validates before submission.
package billing

import (
	"time"

	"github.com/ignite/agency-portal/internal/portalapi"
)

// Stored invoice statuses. "overdue" is intentionally absent: it is a
// derived display state, never stored.
const (
	StatusDraft     = "draft"
	StatusSent      = "sent"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

// DisplayStatusOverdue is the derived display state of a sent invoice whose
// due date has passed.
const DisplayStatusOverdue = "overdue"

// DisplayStatus returns the status to render. A sent invoice with
// due_date < now renders as overdue while its stored status remains sent
// until an explicit mark-paid or cancel changes it.
func DisplayStatus(inv portalapi.Invoice, now time.Time) string {
	if inv.Status == StatusSent && inv.DueDate.Before(now) {
		return DisplayStatusOverdue
	}
	return inv.Status
}

// IsOverdue reports whether the invoice renders as overdue.
func IsOverdue(inv portalapi.Invoice, now time.Time) bool {
	return DisplayStatus(inv, now) == DisplayStatusOverdue
}

// MaxReminders caps payment reminders per invoice.
const MaxReminders = 3

// CanRemind reports whether another reminder may be sent.
func CanRemind(inv portalapi.Invoice) bool {
	return inv.Status == StatusSent && inv.ReminderCount < MaxReminders
}
