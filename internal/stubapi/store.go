// Package stubapi is the local development backend: a chi server that keeps
// the whole dataset in memory and serves the same wire shapes as production.
// All writes are lost on restart.
package stubapi

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignite/agency-portal/internal/portalapi"
)

// Store holds the seeded in-memory dataset.
type Store struct {
	mu sync.RWMutex

	stages    map[string][]portalapi.StageRecord // keyed by project id
	prospects map[portalapi.ID]*portalapi.Prospect
	projectOf map[portalapi.ID]string
	invoices  map[portalapi.ID]*portalapi.Invoice
	notes     map[portalapi.ID][]portalapi.Note
	timeline  map[portalapi.ID][]portalapi.TimelineEvent
	emails    map[portalapi.ID][]portalapi.EmailThread
	calls     map[portalapi.ID][]portalapi.CallRecord
	proposals map[portalapi.ID][]portalapi.Proposal
	audits    map[portalapi.ID][]portalapi.Audit
	fields    []portalapi.CustomFieldDef

	invoiceSeq int
}

// SeedProjectID is the project every seeded prospect belongs to.
const SeedProjectID = "proj-demo"

// NewStore returns a Store seeded with a realistic demo dataset.
func NewStore() *Store {
	s := &Store{
		stages:    make(map[string][]portalapi.StageRecord),
		prospects: make(map[portalapi.ID]*portalapi.Prospect),
		projectOf: make(map[portalapi.ID]string),
		invoices:  make(map[portalapi.ID]*portalapi.Invoice),
		notes:     make(map[portalapi.ID][]portalapi.Note),
		timeline:  make(map[portalapi.ID][]portalapi.TimelineEvent),
		emails:    make(map[portalapi.ID][]portalapi.EmailThread),
		calls:     make(map[portalapi.ID][]portalapi.CallRecord),
		proposals: make(map[portalapi.ID][]portalapi.Proposal),
		audits:    make(map[portalapi.ID][]portalapi.Audit),
	}
	s.seed()
	return s
}

func money(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func (s *Store) seed() {
	now := time.Now().UTC()
	daysAgo := func(n int) time.Time { return now.AddDate(0, 0, -n) }

	seedProspects := []*portalapi.Prospect{
		{
			ID: "p-1001", Name: "Maria Santos", Email: "maria@coastalroofing.example",
			Company: "Coastal Roofing", Phone: "+15550142309",
			PipelineStage: "new_lead", Source: "website",
			DealValue: money("8500"), Probability: 50,
			Tags:      portalapi.TagSet{"roofing", "storm-damage"},
			LeadScore: 72, CreatedAt: daysAgo(2),
		},
		{
			ID: "p-1002", Name: "James Okafor", Email: "james@okaforlegal.example",
			Company: "Okafor Legal", PipelineStage: "contacted", Source: "referral",
			DealValue: money("24000"), Probability: 40,
			Tags:      portalapi.TagSet{"legal", "retainer"},
			LeadScore: 81, CreatedAt: daysAgo(9), LastContactAt: ptrTime(daysAgo(3)),
		},
		{
			ID: "p-1003", Name: "Priya Raman", Email: "priya@brightsmiles.example",
			Company: "Bright Smiles Dental", PipelineStage: "qualified", Source: "google_ads",
			DealValue: money("12750.50"), Probability: 65,
			CustomFields: map[string]any{"locations": float64(3)},
			CreatedAt:    daysAgo(21), LastContactAt: ptrTime(daysAgo(1)),
		},
		{
			ID: "p-1004", Name: "Tom Whitfield", Email: "tom@whitfieldhvac.example",
			Company: "Whitfield HVAC", PipelineStage: "proposal_sent", Source: "cold_outreach",
			DealValue: money("31000"), Probability: 70,
			CreatedAt: daysAgo(35), LastContactAt: ptrTime(daysAgo(6)),
		},
		{
			ID: "p-1005", Name: "Elena Vasquez", Email: "elena@vasquezrealty.example",
			Company: "Vasquez Realty", PipelineStage: "negotiating", Source: "referral",
			DealValue: money("18200"), Probability: 85,
			CreatedAt: daysAgo(48), LastContactAt: ptrTime(daysAgo(2)),
		},
		{
			ID: "p-1006", Name: "Derek Liu", Email: "derek@liulandscaping.example",
			Company: "Liu Landscaping", PipelineStage: "closed_won", Source: "website",
			DealValue: money("9600"), Probability: 100,
			CreatedAt: daysAgo(60), LastContactAt: ptrTime(daysAgo(20)),
		},
		{
			ID: "p-1007", Name: "Sandra Pool", Email: "sandra@poolplumbing.example",
			Company: "Pool Plumbing Co", PipelineStage: "closed_lost", Source: "google_ads",
			DealValue: money("5400"), Probability: 0,
			CreatedAt: daysAgo(70), LastContactAt: ptrTime(daysAgo(40)),
		},
	}
	for _, p := range seedProspects {
		s.prospects[p.ID] = p
		s.projectOf[p.ID] = SeedProjectID
	}

	s.notes["p-1003"] = []portalapi.Note{
		{ID: "n-1", Body: "Wants the proposal split per location.", Author: "alex@agency.example", CreatedAt: daysAgo(4)},
	}
	s.timeline["p-1003"] = []portalapi.TimelineEvent{
		{ID: "t-1", Type: "stage_change", Title: "Moved to Qualified", ActorType: "User", ActorName: "Alex", OccurredAt: daysAgo(5)},
		{ID: "t-2", Type: "note", Title: "Note added", Body: "Wants the proposal split per location.", ActorType: "User", ActorName: "Alex", OccurredAt: daysAgo(4)},
	}
	s.emails["p-1003"] = []portalapi.EmailThread{
		{ID: "e-1", Subject: "Re: Marketing for Bright Smiles", Snippet: "Thanks for the breakdown, the per-location numbers look...", MessageCnt: 6, LastMessage: daysAgo(1), Sentiment: "positive"},
	}
	s.calls["p-1004"] = []portalapi.CallRecord{
		{ID: "c-1", Outcome: "connected", Duration: 840, Notes: "Walked through the proposal. Decision by end of month.", CalledAt: daysAgo(6)},
	}
	s.proposals["p-1004"] = []portalapi.Proposal{
		{ID: "pr-1", Title: "HVAC Lead Engine", Status: "sent", Amount: decimal.RequireFromString("31000"), CreatedAt: daysAgo(8)},
	}
	s.audits["p-1003"] = []portalapi.Audit{
		{ID: "a-1", Kind: "seo", Score: 64, CreatedAt: daysAgo(12)},
	}

	s.fields = []portalapi.CustomFieldDef{
		{Key: "locations", Label: "Locations", Type: "number"},
		{Key: "contract_term", Label: "Contract Term", Type: "select", Options: []string{"monthly", "6_months", "12_months"}},
	}

	s.invoiceSeq = 3
	seedInvoices := []*portalapi.Invoice{
		{
			ID: "inv-1", InvoiceNumber: "INV-0001", Status: "paid",
			CustomerEmail: "derek@liulandscaping.example",
			Amount:        decimal.RequireFromString("4800"),
			TaxAmount:     decimal.RequireFromString("396"),
			TotalAmount:   decimal.RequireFromString("5196"),
			DueDate:       daysAgo(10), SentAt: ptrTime(daysAgo(25)), ViewCount: 4,
		},
		{
			ID: "inv-2", InvoiceNumber: "INV-0002", Status: "sent",
			CustomerEmail: "elena@vasquezrealty.example",
			Amount:        decimal.RequireFromString("1500"),
			TaxAmount:     decimal.Zero,
			TotalAmount:   decimal.RequireFromString("1500"),
			DueDate:       daysAgo(5), SentAt: ptrTime(daysAgo(20)),
			ViewCount: 2, ReminderCount: 1,
			PaymentURL: "https://pay.example/inv-2",
		},
		{
			ID: "inv-3", InvoiceNumber: "INV-0003", Status: "draft",
			CustomerEmail: "priya@brightsmiles.example",
			Amount:        decimal.RequireFromString("3200"),
			TaxAmount:     decimal.RequireFromString("264"),
			TotalAmount:   decimal.RequireFromString("3464"),
			DueDate:       now.AddDate(0, 0, 14),
		},
	}
	for _, inv := range seedInvoices {
		s.invoices[inv.ID] = inv
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

// ========== Stages ==========

// StagesFor returns the stored stage configuration for a project; nil when
// the project has never saved one (clients fall back to their defaults).
func (s *Store) StagesFor(projectID string) []portalapi.StageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stages[projectID]
}

// SaveStages replaces a project's stage configuration.
func (s *Store) SaveStages(projectID string, stages []portalapi.StageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages[projectID] = stages
}

// ========== Prospects ==========

// ListProspects applies the list filters and returns the project's matching
// prospects. A different project sees an empty list, never another
// project's data.
func (s *Store) ListProspects(projectID, search, source string, stages []string) []portalapi.Prospect {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stageSet := make(map[string]bool, len(stages))
	for _, st := range stages {
		stageSet[st] = true
	}
	searchLower := strings.ToLower(search)

	var out []portalapi.Prospect
	for _, p := range s.prospects {
		if projectID != "" && s.projectOf[p.ID] != projectID {
			continue
		}
		if source != "" && p.Source != source {
			continue
		}
		if len(stageSet) > 0 && !stageSet[p.PipelineStage] {
			continue
		}
		if searchLower != "" {
			hay := strings.ToLower(p.Name + " " + p.Email + " " + p.Company)
			if !strings.Contains(hay, searchLower) {
				continue
			}
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// GetProspect looks a prospect up by id.
func (s *Store) GetProspect(id portalapi.ID) (portalapi.Prospect, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prospects[id]
	if !ok {
		return portalapi.Prospect{}, false
	}
	return *p, true
}

// PatchProspect applies a partial update and returns the updated record.
func (s *Store) PatchProspect(id portalapi.ID, patch portalapi.ProspectPatch) (portalapi.Prospect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prospects[id]
	if !ok {
		return portalapi.Prospect{}, false
	}
	if patch.PipelineStage != nil {
		p.PipelineStage = *patch.PipelineStage
	}
	if patch.Notes != nil {
		p.Notes = *patch.Notes
	}
	if patch.DealValue != nil {
		p.DealValue = patch.DealValue
	}
	if patch.Probability != nil {
		p.Probability = *patch.Probability
	}
	if patch.AssignedTo != nil {
		p.AssignedTo = *patch.AssignedTo
	}
	if patch.CustomFields != nil {
		if p.CustomFields == nil {
			p.CustomFields = make(map[string]any)
		}
		for k, v := range patch.CustomFields {
			p.CustomFields[k] = v
		}
	}
	now := time.Now().UTC()
	p.LastContactAt = &now
	return *p, true
}

// ConvertProspect marks a prospect converted, idempotently.
func (s *Store) ConvertProspect(id portalapi.ID) (portalapi.ConversionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.prospects[id]
	if !ok {
		return portalapi.ConversionResult{}, false
	}
	if p.ConvertedToContactID == "" {
		p.ConvertedToContactID = portalapi.ID("contact-" + uuid.New().String()[:8])
		p.ConvertedToCustomerID = portalapi.ID("customer-" + uuid.New().String()[:8])
	}
	return portalapi.ConversionResult{
		ContactID:  p.ConvertedToContactID,
		CustomerID: p.ConvertedToCustomerID,
	}, true
}

// UnassignedLeadCount counts prospects with no assignee.
func (s *Store) UnassignedLeadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, p := range s.prospects {
		if p.AssignedTo == "" {
			count++
		}
	}
	return count
}

// ========== Detail sub-resources ==========

func (s *Store) Timeline(id portalapi.ID) []portalapi.TimelineEvent { return copyOf(s, s.timeline, id) }
func (s *Store) Emails(id portalapi.ID) []portalapi.EmailThread     { return copyOf(s, s.emails, id) }
func (s *Store) Calls(id portalapi.ID) []portalapi.CallRecord       { return copyOf(s, s.calls, id) }
func (s *Store) Notes(id portalapi.ID) []portalapi.Note             { return copyOf(s, s.notes, id) }
func (s *Store) Proposals(id portalapi.ID) []portalapi.Proposal     { return copyOf(s, s.proposals, id) }
func (s *Store) Audits(id portalapi.ID) []portalapi.Audit           { return copyOf(s, s.audits, id) }

func copyOf[T any](s *Store, m map[portalapi.ID][]T, id portalapi.ID) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(m[id]))
	copy(out, m[id])
	return out
}

// CustomFieldDefs returns the org's field definitions.
func (s *Store) CustomFieldDefs() []portalapi.CustomFieldDef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]portalapi.CustomFieldDef, len(s.fields))
	copy(out, s.fields)
	return out
}

// AddNote appends a note and a matching timeline event.
func (s *Store) AddNote(id portalapi.ID, body, author string) (portalapi.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prospects[id]; !ok {
		return portalapi.Note{}, false
	}
	note := portalapi.Note{
		ID:        portalapi.ID(uuid.New().String()),
		Body:      body,
		Author:    author,
		CreatedAt: time.Now().UTC(),
	}
	s.notes[id] = append([]portalapi.Note{note}, s.notes[id]...)
	s.timeline[id] = append([]portalapi.TimelineEvent{{
		ID:         portalapi.ID(uuid.New().String()),
		Type:       "note",
		Title:      "Note added",
		Body:       body,
		ActorType:  "User",
		ActorName:  author,
		OccurredAt: note.CreatedAt,
	}}, s.timeline[id]...)
	return note, true
}

// ========== Invoices ==========

// ListInvoices returns every invoice, newest number first.
func (s *Store) ListInvoices() []portalapi.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]portalapi.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		out = append(out, *inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceNumber > out[j].InvoiceNumber })
	return out
}

// CreateInvoice stores a new draft invoice.
func (s *Store) CreateInvoice(req portalapi.CreateInvoiceRequest) portalapi.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invoiceSeq++
	inv := &portalapi.Invoice{
		ID:                  portalapi.ID("inv-" + uuid.New().String()[:8]),
		InvoiceNumber:       fmt.Sprintf("INV-%04d", s.invoiceSeq),
		Status:              "draft",
		CustomerEmail:       req.CustomerEmail,
		Amount:              req.Amount,
		TaxAmount:           req.TaxAmount,
		TotalAmount:         req.Amount.Add(req.TaxAmount),
		DueDate:             req.DueDate,
		IsRecurring:         req.IsRecurring,
		RecurringInterval:   req.RecurringInterval,
		RecurringDayOfMonth: req.RecurringDayOfMonth,
		RecurringEndDate:    req.RecurringEndDate,
	}
	s.invoices[inv.ID] = inv
	return *inv
}

// SendInvoice transitions draft -> sent and mints a payment URL.
func (s *Store) SendInvoice(id portalapi.ID) (portalapi.Invoice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[id]
	if !ok {
		return portalapi.Invoice{}, false
	}
	if inv.Status == "draft" {
		inv.Status = "sent"
		now := time.Now().UTC()
		inv.SentAt = &now
		inv.PaymentURL = "https://pay.example/" + string(inv.ID)
	}
	return *inv, true
}

// RemindInvoice bumps the reminder counter on a sent invoice.
func (s *Store) RemindInvoice(id portalapi.ID) (portalapi.Invoice, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[id]
	if !ok {
		return portalapi.Invoice{}, false, nil
	}
	if inv.Status != "sent" {
		return portalapi.Invoice{}, true, fmt.Errorf("invoice %s is not sent", inv.InvoiceNumber)
	}
	if inv.ReminderCount >= 3 {
		return portalapi.Invoice{}, true, fmt.Errorf("reminder limit reached for %s", inv.InvoiceNumber)
	}
	inv.ReminderCount++
	return *inv, true, nil
}

// PayInvoice marks a sent invoice paid.
func (s *Store) PayInvoice(id portalapi.ID, card portalapi.PaymentCard) (portalapi.Invoice, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[id]
	if !ok {
		return portalapi.Invoice{}, false, nil
	}
	if card.Nonce == "" {
		return portalapi.Invoice{}, true, fmt.Errorf("missing card nonce")
	}
	if inv.Status != "sent" {
		return portalapi.Invoice{}, true, fmt.Errorf("invoice %s cannot be paid from status %s", inv.InvoiceNumber, inv.Status)
	}
	inv.Status = "paid"
	return *inv, true, nil
}

// PatchInvoice applies a partial update.
func (s *Store) PatchInvoice(id portalapi.ID, patch portalapi.InvoicePatch) (portalapi.Invoice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[id]
	if !ok {
		return portalapi.Invoice{}, false
	}
	if patch.Status != nil {
		inv.Status = *patch.Status
	}
	if patch.Amount != nil {
		inv.Amount = *patch.Amount
		inv.TotalAmount = inv.Amount.Add(inv.TaxAmount)
	}
	if patch.DueDate != nil {
		inv.DueDate = *patch.DueDate
	}
	return *inv, true
}

// DeleteInvoice removes an invoice.
func (s *Store) DeleteInvoice(id portalapi.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[id]; !ok {
		return false
	}
	delete(s.invoices, id)
	return true
}

// QuickInvoice creates and sends in one step.
func (s *Store) QuickInvoice(req portalapi.QuickInvoiceRequest) portalapi.QuickInvoiceResult {
	inv := s.CreateInvoice(portalapi.CreateInvoiceRequest{
		CustomerEmail: req.CustomerEmail,
		Amount:        req.Amount,
		DueDate:       req.DueDate,
	})
	sent, _ := s.SendInvoice(inv.ID)
	return portalapi.QuickInvoiceResult{InvoiceID: sent.ID, PaymentURL: sent.PaymentURL}
}
