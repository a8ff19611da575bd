package billing

import (
	"testing"
	"time"

	"github.com/ignite/agency-portal/internal/portalapi"
)

func TestDisplayStatus(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	tests := []struct {
		name string
		inv  portalapi.Invoice
		want string
	}{
		{"draft stays draft", portalapi.Invoice{Status: StatusDraft, DueDate: past}, StatusDraft},
		{"sent before due", portalapi.Invoice{Status: StatusSent, DueDate: future}, StatusSent},
		{"sent past due renders overdue", portalapi.Invoice{Status: StatusSent, DueDate: past}, DisplayStatusOverdue},
		{"paid past due stays paid", portalapi.Invoice{Status: StatusPaid, DueDate: past}, StatusPaid},
		{"cancelled past due stays cancelled", portalapi.Invoice{Status: StatusCancelled, DueDate: past}, StatusCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayStatus(tt.inv, now); got != tt.want {
				t.Errorf("DisplayStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsOverdue(t *testing.T) {
	now := time.Now()
	inv := portalapi.Invoice{Status: StatusSent, DueDate: now.Add(-time.Hour)}
	if !IsOverdue(inv, now) {
		t.Error("sent invoice past due should be overdue")
	}
	inv.Status = StatusPaid
	if IsOverdue(inv, now) {
		t.Error("paid invoice should never be overdue")
	}
}

func TestCanRemind(t *testing.T) {
	tests := []struct {
		name string
		inv  portalapi.Invoice
		want bool
	}{
		{"sent under cap", portalapi.Invoice{Status: StatusSent, ReminderCount: 2}, true},
		{"sent at cap", portalapi.Invoice{Status: StatusSent, ReminderCount: MaxReminders}, false},
		{"draft", portalapi.Invoice{Status: StatusDraft, ReminderCount: 0}, false},
		{"paid", portalapi.Invoice{Status: StatusPaid, ReminderCount: 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanRemind(tt.inv); got != tt.want {
				t.Errorf("CanRemind() = %v, want %v", got, tt.want)
			}
		})
	}
}
