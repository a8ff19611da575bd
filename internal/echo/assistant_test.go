package echo

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/agency-portal/internal/billing"
	"github.com/ignite/agency-portal/internal/crm"
	"github.com/ignite/agency-portal/internal/portalapi"
)

func dv(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func tp(t time.Time) *time.Time { return &t }

func testSnapshot() Snapshot {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	return Snapshot{
		Now: now,
		Stages: []crm.PipelineStage{
			{Key: "new_lead", Label: "New Leads"},
			{Key: "contacted", Label: "Contacted"},
			{Key: crm.StageClosedWon, Label: "Closed Won", IsClosed: true},
			{Key: crm.StageClosedLost, Label: "Closed Lost", IsClosed: true},
		},
		Prospects: []portalapi.Prospect{
			{ID: "p1", Name: "Maria Santos", Email: "maria@example.com", PipelineStage: "new_lead",
				DealValue: dv("1500"), Probability: 50, LastContactAt: tp(now.Add(-2 * 24 * time.Hour))},
			{ID: "p2", Name: "Tom Chen", PipelineStage: "contacted",
				DealValue: dv("3000"), Probability: 60, LastContactAt: tp(now.Add(-20 * 24 * time.Hour))},
			{ID: "p3", Name: "Lisa Park", PipelineStage: crm.StageClosedWon,
				DealValue: dv("5000"), Probability: 100, LastContactAt: tp(now.Add(-40 * 24 * time.Hour))},
			{ID: "p4", Name: "Raj Patel", PipelineStage: crm.StageClosedLost,
				DealValue: dv("800"), Probability: 0, CreatedAt: now.Add(-60 * 24 * time.Hour)},
		},
		Invoices: []portalapi.Invoice{
			{ID: "i1", InvoiceNumber: "INV-0001", Status: billing.StatusPaid,
				TotalAmount: decimal.RequireFromString("1100"), DueDate: now.Add(-10 * 24 * time.Hour)},
			{ID: "i2", InvoiceNumber: "INV-0002", Status: billing.StatusSent, CustomerEmail: "tom@example.com",
				TotalAmount: decimal.RequireFromString("2200"), DueDate: now.Add(-5 * 24 * time.Hour)},
			{ID: "i3", InvoiceNumber: "INV-0003", Status: billing.StatusSent,
				TotalAmount: decimal.RequireFromString("550"), DueDate: now.Add(5 * 24 * time.Hour)},
		},
	}
}

func TestPipelineQuery(t *testing.T) {
	a := NewAssistant()
	resp := a.Chat("How is the pipeline doing?", testSnapshot())

	assert.Contains(t, resp.Message, "Pipeline Overview")
	assert.Contains(t, resp.Message, "New Leads: 1 prospects, $1500.00")
	assert.Contains(t, resp.Message, "Contacted: 1 prospects, $3000.00")
	// Closed stages stay out of the overview.
	assert.NotContains(t, resp.Message, "Closed Won:")
	assert.Contains(t, resp.Message, "**Active prospects:** 2")
	// 1500*0.5 + 3000*0.6 + 5000*1.0 (closed_lost excluded).
	assert.Contains(t, resp.Message, "$7550.00")
	assert.NotEmpty(t, resp.Suggestions)
}

func TestStaleQueryFlagsIdleActiveProspects(t *testing.T) {
	a := NewAssistant()
	resp := a.Chat("Which prospects are going stale?", testSnapshot())

	assert.Contains(t, resp.Message, "1 prospects need a follow-up")
	assert.Contains(t, resp.Message, "Tom Chen")
	assert.Contains(t, resp.Message, "20 days idle")
	// Closed prospects never count as stale, however old.
	assert.NotContains(t, resp.Message, "Lisa Park")
	assert.NotContains(t, resp.Message, "Raj Patel")

	stale := resp.Data.([]portalapi.Prospect)
	require.Len(t, stale, 1)
	assert.Equal(t, portalapi.ID("p2"), stale[0].ID)
}

func TestStaleQueryAllFresh(t *testing.T) {
	snap := testSnapshot()
	fresh := snap.Now.Add(-24 * time.Hour)
	for i := range snap.Prospects {
		snap.Prospects[i].LastContactAt = tp(fresh)
	}

	a := NewAssistant()
	resp := a.Chat("anything stuck?", snap)
	assert.Contains(t, resp.Message, "Nothing is going stale")
}

func TestBillingQuery(t *testing.T) {
	a := NewAssistant()
	resp := a.Chat("Any overdue invoices?", testSnapshot())

	assert.Contains(t, resp.Message, "**Collected:** $1100.00")
	assert.Contains(t, resp.Message, "**Outstanding:** $2750.00")
	assert.Contains(t, resp.Message, "1 overdue")
	assert.Contains(t, resp.Message, "INV-0002 to tom@example.com: $2200.00, 5 days past due")

	overdue := resp.Data.([]portalapi.Invoice)
	require.Len(t, overdue, 1)
	assert.Equal(t, portalapi.ID("i2"), overdue[0].ID)
}

func TestBillingQueryNoInvoices(t *testing.T) {
	snap := testSnapshot()
	snap.Invoices = nil
	a := NewAssistant()
	resp := a.Chat("billing status", snap)
	assert.Contains(t, resp.Message, "No invoices yet")
}

func TestConversionQuery(t *testing.T) {
	a := NewAssistant()
	resp := a.Chat("What's my close rate?", testSnapshot())

	assert.Contains(t, resp.Message, "50%")
	assert.Contains(t, resp.Message, "1 won, 1 lost")
	assert.Contains(t, resp.Message, "$5000.00")
}

func TestConversionQueryNoClosedDeals(t *testing.T) {
	snap := testSnapshot()
	snap.Prospects = snap.Prospects[:2]
	a := NewAssistant()
	resp := a.Chat("how many deals have we won?", snap)
	assert.Contains(t, resp.Message, "No closed deals yet")
}

func TestLookupQuery(t *testing.T) {
	a := NewAssistant()
	resp := a.Chat("Who is Maria Santos?", testSnapshot())

	assert.Contains(t, resp.Message, "**Maria Santos**")
	assert.Contains(t, resp.Message, "Stage: New Leads")
	assert.Contains(t, resp.Message, "$1500.00 at 50% probability")
	assert.Contains(t, resp.Message, "maria@example.com")

	found := resp.Data.(portalapi.Prospect)
	assert.Equal(t, portalapi.ID("p1"), found.ID)
}

func TestLookupQueryUnknownName(t *testing.T) {
	a := NewAssistant()
	resp := a.Chat("who is Bruce Wayne?", testSnapshot())
	assert.Contains(t, resp.Message, "couldn't find")
}

func TestGeneralQueryOffersSuggestions(t *testing.T) {
	a := NewAssistant()
	resp := a.Chat("hello", testSnapshot())
	assert.Contains(t, resp.Message, "4 prospects")
	assert.Contains(t, resp.Message, "3 invoices")
	assert.Len(t, resp.Suggestions, 4)
}

func TestChatRecordsTranscript(t *testing.T) {
	a := NewAssistant()
	a.Chat("hello", testSnapshot())
	a.Chat("What's my close rate?", testSnapshot())

	history := a.History()
	require.Len(t, history, 4)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, "user", history[2].Role)
	assert.True(t, strings.Contains(history[3].Content, "Close rate"))
}
