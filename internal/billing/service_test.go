package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/agency-portal/internal/authz"
	"github.com/ignite/agency-portal/internal/portalapi"
)

type fakeInvoiceAPI struct {
	invoices []portalapi.Invoice

	err error

	createCalls int
	sendCalls   int
	remindCalls int
	payCalls    int
	updateCalls int
	deleteCalls int
	quickCalls  int

	lastPatch portalapi.InvoicePatch
	lastQuick portalapi.QuickInvoiceRequest
}

func (f *fakeInvoiceAPI) ListInvoices(ctx context.Context) ([]portalapi.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.invoices, nil
}

func (f *fakeInvoiceAPI) CreateInvoice(ctx context.Context, req portalapi.CreateInvoiceRequest) (*portalapi.Invoice, error) {
	f.createCalls++
	if f.err != nil {
		return nil, f.err
	}
	return &portalapi.Invoice{ID: "inv-new", InvoiceNumber: "INV-0009", Status: StatusDraft,
		CustomerEmail: req.CustomerEmail, Amount: req.Amount}, nil
}

func (f *fakeInvoiceAPI) SendInvoice(ctx context.Context, id portalapi.ID) (*portalapi.Invoice, error) {
	f.sendCalls++
	if f.err != nil {
		return nil, f.err
	}
	return &portalapi.Invoice{ID: id, InvoiceNumber: "INV-0009", Status: StatusSent}, nil
}

func (f *fakeInvoiceAPI) RemindInvoice(ctx context.Context, id portalapi.ID) (*portalapi.Invoice, error) {
	f.remindCalls++
	if f.err != nil {
		return nil, f.err
	}
	return &portalapi.Invoice{ID: id, InvoiceNumber: "INV-0009", Status: StatusSent, ReminderCount: 2}, nil
}

func (f *fakeInvoiceAPI) PayInvoice(ctx context.Context, id portalapi.ID, card portalapi.PaymentCard) (*portalapi.Invoice, error) {
	f.payCalls++
	if f.err != nil {
		return nil, f.err
	}
	return &portalapi.Invoice{ID: id, InvoiceNumber: "INV-0009", Status: StatusPaid}, nil
}

func (f *fakeInvoiceAPI) UpdateInvoice(ctx context.Context, id portalapi.ID, patch portalapi.InvoicePatch) (*portalapi.Invoice, error) {
	f.updateCalls++
	f.lastPatch = patch
	if f.err != nil {
		return nil, f.err
	}
	inv := portalapi.Invoice{ID: id, InvoiceNumber: "INV-0009"}
	if patch.Status != nil {
		inv.Status = *patch.Status
	}
	return &inv, nil
}

func (f *fakeInvoiceAPI) DeleteInvoice(ctx context.Context, id portalapi.ID) error {
	f.deleteCalls++
	return f.err
}

func (f *fakeInvoiceAPI) QuickInvoice(ctx context.Context, req portalapi.QuickInvoiceRequest) (*portalapi.QuickInvoiceResult, error) {
	f.quickCalls++
	f.lastQuick = req
	if f.err != nil {
		return nil, f.err
	}
	return &portalapi.QuickInvoiceResult{InvoiceID: "inv-q", PaymentURL: "https://pay.example.com/inv-q"}, nil
}

type captureNotifier struct {
	successes []string
	failures  []string
}

func (n *captureNotifier) Success(msg string) { n.successes = append(n.successes, msg) }
func (n *captureNotifier) Failure(msg string) { n.failures = append(n.failures, msg) }

func adminOrg() authz.OrgContext {
	return authz.OrgContext{OrgID: "org-1", OrgType: "agency", Role: authz.RoleOrgAdmin}
}

func memberOrg() authz.OrgContext {
	return authz.OrgContext{OrgID: "org-1", OrgType: "agency", Role: authz.RoleMember}
}

func TestBillingGuardBlocksNonAdmins(t *testing.T) {
	api := &fakeInvoiceAPI{}
	svc := NewService(api, memberOrg(), nil)

	_, err := svc.List(context.Background())
	assert.ErrorIs(t, err, authz.ErrAccessRestricted)

	_, err = svc.Send(context.Background(), "inv-1")
	assert.ErrorIs(t, err, authz.ErrAccessRestricted)

	err = svc.Delete(context.Background(), "inv-1", true)
	assert.ErrorIs(t, err, authz.ErrAccessRestricted)

	// The guard fires before any request is issued.
	assert.Equal(t, 0, api.sendCalls)
	assert.Equal(t, 0, api.deleteCalls)
}

func TestRemindRefusesAtCap(t *testing.T) {
	api := &fakeInvoiceAPI{}
	svc := NewService(api, adminOrg(), nil)

	_, err := svc.Remind(context.Background(), portalapi.Invoice{
		ID: "inv-1", Status: StatusSent, ReminderCount: MaxReminders,
	})
	assert.ErrorIs(t, err, ErrReminderLimit)
	assert.Equal(t, 0, api.remindCalls)

	_, err = svc.Remind(context.Background(), portalapi.Invoice{
		ID: "inv-1", Status: StatusSent, ReminderCount: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, api.remindCalls)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	api := &fakeInvoiceAPI{}
	svc := NewService(api, adminOrg(), nil)

	err := svc.Delete(context.Background(), "inv-1", false)
	assert.ErrorIs(t, err, ErrConfirmRequired)
	assert.Equal(t, 0, api.deleteCalls)

	require.NoError(t, svc.Delete(context.Background(), "inv-1", true))
	assert.Equal(t, 1, api.deleteCalls)
}

func TestPayRequiresCardToken(t *testing.T) {
	api := &fakeInvoiceAPI{}
	svc := NewService(api, adminOrg(), nil)

	_, err := svc.Pay(context.Background(), "inv-1", portalapi.PaymentCard{})
	require.Error(t, err)
	assert.Equal(t, 0, api.payCalls)

	inv, err := svc.Pay(context.Background(), "inv-1", portalapi.PaymentCard{Nonce: "cnon:ok"})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, inv.Status)
}

func TestMarkPaidAndCancelSendStatusPatch(t *testing.T) {
	api := &fakeInvoiceAPI{}
	svc := NewService(api, adminOrg(), nil)

	inv, err := svc.MarkPaid(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, inv.Status)
	require.NotNil(t, api.lastPatch.Status)
	assert.Equal(t, StatusPaid, *api.lastPatch.Status)

	inv, err = svc.Cancel(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, inv.Status)
	assert.Equal(t, StatusCancelled, *api.lastPatch.Status)
}

func TestMutationsNotify(t *testing.T) {
	api := &fakeInvoiceAPI{}
	notifier := &captureNotifier{}
	svc := NewService(api, adminOrg(), notifier)

	_, err := svc.Send(context.Background(), "inv-1")
	require.NoError(t, err)
	require.Len(t, notifier.successes, 1)
	assert.Contains(t, notifier.successes[0], "INV-0009")

	api.err = errors.New("backend down")
	_, err = svc.Send(context.Background(), "inv-1")
	require.Error(t, err)
	require.Len(t, notifier.failures, 1)
}

func TestQuickInvoiceFormValidation(t *testing.T) {
	valid := QuickInvoiceForm{
		CustomerEmail: "client@example.com",
		Amount:        "250.00",
		DueDate:       "2026-04-01",
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*QuickInvoiceForm)
	}{
		{"missing email", func(f *QuickInvoiceForm) { f.CustomerEmail = "" }},
		{"bad email", func(f *QuickInvoiceForm) { f.CustomerEmail = "not-an-email" }},
		{"missing amount", func(f *QuickInvoiceForm) { f.Amount = "" }},
		{"non-numeric amount", func(f *QuickInvoiceForm) { f.Amount = "abc" }},
		{"negative amount", func(f *QuickInvoiceForm) { f.Amount = "-5" }},
		{"zero amount", func(f *QuickInvoiceForm) { f.Amount = "0" }},
		{"bad date", func(f *QuickInvoiceForm) { f.DueDate = "04/01/2026" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := valid
			tt.mutate(&form)
			assert.Error(t, form.Validate())
		})
	}
}

func TestQuickInvoiceSuccessWindow(t *testing.T) {
	api := &fakeInvoiceAPI{}
	svc := NewService(api, adminOrg(), nil)
	ctrl := NewQuickInvoiceController(svc, time.Minute)

	clock := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	ctrl.now = func() time.Time { return clock }

	ctrl.SetForm(QuickInvoiceForm{
		CustomerEmail: "client@example.com",
		Amount:        "99.50",
		DueDate:       "2026-04-01",
		Memo:          "March retainer",
	})
	require.True(t, ctrl.CanSubmit())

	result, err := ctrl.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/inv-q", result.PaymentURL)
	assert.Equal(t, "March retainer", api.lastQuick.Memo)
	assert.True(t, api.lastQuick.Amount.Equal(decimal.RequireFromString("99.50")))

	url, ok := ctrl.PaymentURL()
	require.True(t, ok)
	assert.Equal(t, "https://pay.example.com/inv-q", url)

	// Advance past the success window: the URL is no longer offered.
	clock = clock.Add(2 * time.Minute)
	_, ok = ctrl.PaymentURL()
	assert.False(t, ok)
}

func TestQuickInvoiceInvalidFormNeverReachesServer(t *testing.T) {
	api := &fakeInvoiceAPI{}
	svc := NewService(api, adminOrg(), nil)
	ctrl := NewQuickInvoiceController(svc, 0)

	ctrl.SetForm(QuickInvoiceForm{CustomerEmail: "nope", Amount: "10", DueDate: "2026-04-01"})
	assert.False(t, ctrl.CanSubmit())

	_, err := ctrl.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, api.quickCalls)
}

func TestQuickInvoiceResetClearsForm(t *testing.T) {
	svc := NewService(&fakeInvoiceAPI{}, adminOrg(), nil)
	ctrl := NewQuickInvoiceController(svc, time.Minute)
	ctrl.SetForm(QuickInvoiceForm{CustomerEmail: "a@b.com", Amount: "1", DueDate: "2026-04-01"})

	ctrl.Reset()
	assert.Equal(t, QuickInvoiceForm{}, ctrl.Form())
	_, ok := ctrl.PaymentURL()
	assert.False(t, ok)
}
