// Package echo implements the portal's built-in chat assistant. Queries are
// routed by keyword intent and answered from the pipeline and billing data
// already loaded in the portal, no external model required.
package echo

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ignite/agency-portal/internal/billing"
	"github.com/ignite/agency-portal/internal/crm"
	"github.com/ignite/agency-portal/internal/portalapi"
)

// ChatMessage is one entry in the conversation transcript.
type ChatMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatResponse is the assistant's answer to a query.
type ChatResponse struct {
	Message     string      `json:"message"`
	Data        interface{} `json:"data,omitempty"`
	Suggestions []string    `json:"suggestions,omitempty"`
}

// Snapshot is the portal data the assistant answers from.
type Snapshot struct {
	Prospects []portalapi.Prospect
	Stages    []crm.PipelineStage
	Invoices  []portalapi.Invoice
	Now       time.Time
}

// staleAfter is how long a prospect can sit untouched in an active stage
// before the assistant flags it.
const staleAfter = 14 * 24 * time.Hour

// Assistant answers pipeline and billing questions from in-memory data.
type Assistant struct {
	mu      sync.RWMutex
	history []ChatMessage
}

// NewAssistant creates an Assistant with an empty transcript.
func NewAssistant() *Assistant {
	return &Assistant{}
}

// History returns a copy of the conversation transcript.
func (a *Assistant) History() []ChatMessage {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]ChatMessage, len(a.history))
	copy(out, a.history)
	return out
}

// Chat routes a user query to the matching intent handler and records both
// sides in the transcript. Order matters for priority.
func (a *Assistant) Chat(query string, snap Snapshot) ChatResponse {
	if snap.Now.IsZero() {
		snap.Now = time.Now()
	}
	lower := strings.ToLower(query)

	var resp ChatResponse
	switch {
	case containsAny(lower, []string{"stale", "stuck", "follow up", "follow-up", "concern", "forgotten"}):
		resp = a.handleStaleQuery(snap)
	case containsAny(lower, []string{"invoice", "overdue", "unpaid", "billing", "revenue", "collected"}):
		resp = a.handleBillingQuery(snap)
	case containsAny(lower, []string{"won", "lost", "conversion", "close rate", "closed"}):
		resp = a.handleConversionQuery(snap)
	case containsAny(lower, []string{"who is", "find", "look up", "lookup", "about"}):
		resp = a.handleLookupQuery(lower, snap)
	case containsAny(lower, []string{"pipeline", "how is", "status", "doing", "summary", "value"}):
		resp = a.handlePipelineQuery(snap)
	default:
		resp = a.handleGeneralQuery(snap)
	}

	a.mu.Lock()
	a.history = append(a.history,
		ChatMessage{Role: "user", Content: query, Timestamp: snap.Now},
		ChatMessage{Role: "assistant", Content: resp.Message, Timestamp: snap.Now},
	)
	a.mu.Unlock()
	return resp
}

func (a *Assistant) handlePipelineQuery(snap Snapshot) ChatResponse {
	if len(snap.Prospects) == 0 {
		return ChatResponse{
			Message:     "The pipeline is empty right now. Import leads or add a prospect to get started.",
			Suggestions: []string{"Any overdue invoices?", "What's my close rate?"},
		}
	}

	keys := make([]string, 0, len(snap.Stages))
	for _, s := range snap.Stages {
		keys = append(keys, s.Key)
	}
	groups := crm.GroupByStage(snap.Prospects, keys)
	weighted := crm.WeightedPipelineValue(snap.Prospects)

	var sb strings.Builder
	sb.WriteString("**Pipeline Overview**\n\n")
	active := 0
	for _, stage := range snap.Stages {
		if stage.IsClosed {
			continue
		}
		bucket := groups[stage.Key]
		active += len(bucket)
		total := decimal.Zero
		for _, p := range bucket {
			total = total.Add(dealValue(p))
		}
		sb.WriteString(fmt.Sprintf("- %s: %d prospects, $%s\n", stage.Label, len(bucket), total.StringFixed(2)))
	}
	sb.WriteString(fmt.Sprintf("\n**Active prospects:** %d\n", active))
	sb.WriteString(fmt.Sprintf("**Weighted pipeline value:** $%s\n", weighted.StringFixed(2)))

	return ChatResponse{
		Message: sb.String(),
		Suggestions: []string{
			"Which prospects are going stale?",
			"What's my close rate?",
			"Any overdue invoices?",
		},
	}
}

func (a *Assistant) handleStaleQuery(snap Snapshot) ChatResponse {
	byKey := make(map[string]crm.PipelineStage, len(snap.Stages))
	for _, s := range snap.Stages {
		byKey[s.Key] = s
	}

	var stale []portalapi.Prospect
	for _, p := range snap.Prospects {
		stage, ok := byKey[p.PipelineStage]
		if ok && stage.IsClosed {
			continue
		}
		touched := lastTouch(p)
		if !touched.IsZero() && snap.Now.Sub(touched) > staleAfter {
			stale = append(stale, p)
		}
	}
	if len(stale) == 0 {
		return ChatResponse{
			Message:     "Nothing is going stale. Every active prospect has been touched in the last two weeks.",
			Suggestions: []string{"How is the pipeline doing?"},
		}
	}

	sort.Slice(stale, func(i, j int) bool {
		return lastTouch(stale[i]).Before(lastTouch(stale[j]))
	})

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**%d prospects need a follow-up** (no activity in 14+ days):\n\n", len(stale)))
	for i, p := range stale {
		if i >= 10 {
			sb.WriteString(fmt.Sprintf("...and %d more\n", len(stale)-i))
			break
		}
		days := int(snap.Now.Sub(lastTouch(p)).Hours() / 24)
		label := p.PipelineStage
		if stage, ok := byKey[p.PipelineStage]; ok {
			label = stage.Label
		}
		sb.WriteString(fmt.Sprintf("- %s (%s) - %d days idle\n", p.Name, label, days))
	}

	return ChatResponse{
		Message:     sb.String(),
		Data:        stale,
		Suggestions: []string{"How is the pipeline doing?", "What's my close rate?"},
	}
}

func (a *Assistant) handleBillingQuery(snap Snapshot) ChatResponse {
	if len(snap.Invoices) == 0 {
		return ChatResponse{
			Message:     "No invoices yet. Use Quick Invoice to bill a client in one step.",
			Suggestions: []string{"How is the pipeline doing?"},
		}
	}

	outstanding := decimal.Zero
	collected := decimal.Zero
	var overdue []portalapi.Invoice
	for _, inv := range snap.Invoices {
		switch billing.DisplayStatus(inv, snap.Now) {
		case billing.StatusPaid:
			collected = collected.Add(inv.TotalAmount)
		case billing.DisplayStatusOverdue:
			overdue = append(overdue, inv)
			outstanding = outstanding.Add(inv.TotalAmount)
		case billing.StatusSent:
			outstanding = outstanding.Add(inv.TotalAmount)
		}
	}

	var sb strings.Builder
	sb.WriteString("**Billing Summary**\n\n")
	sb.WriteString(fmt.Sprintf("**Collected:** $%s\n", collected.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("**Outstanding:** $%s\n", outstanding.StringFixed(2)))
	if len(overdue) > 0 {
		sb.WriteString(fmt.Sprintf("\n**%d overdue:**\n", len(overdue)))
		for _, inv := range overdue {
			days := int(snap.Now.Sub(inv.DueDate).Hours() / 24)
			sb.WriteString(fmt.Sprintf("- %s to %s: $%s, %d days past due\n",
				inv.InvoiceNumber, inv.CustomerEmail, inv.TotalAmount.StringFixed(2), days))
		}
		sb.WriteString("\nSend a reminder from the invoice list.")
	} else {
		sb.WriteString("\nNo overdue invoices.")
	}

	return ChatResponse{
		Message:     sb.String(),
		Data:        overdue,
		Suggestions: []string{"How is the pipeline doing?", "Which prospects are going stale?"},
	}
}

func (a *Assistant) handleConversionQuery(snap Snapshot) ChatResponse {
	var won, lost int
	wonValue := decimal.Zero
	for _, p := range snap.Prospects {
		switch p.PipelineStage {
		case crm.StageClosedWon:
			won++
			wonValue = wonValue.Add(dealValue(p))
		case crm.StageClosedLost:
			lost++
		}
	}
	closed := won + lost
	if closed == 0 {
		return ChatResponse{
			Message:     "No closed deals yet, so there's no close rate to report.",
			Suggestions: []string{"How is the pipeline doing?"},
		}
	}

	rate := float64(won) / float64(closed) * 100
	msg := fmt.Sprintf("**Close rate:** %.0f%% (%d won, %d lost)\n**Won deal value:** $%s",
		rate, won, lost, wonValue.StringFixed(2))
	return ChatResponse{
		Message:     msg,
		Suggestions: []string{"Which prospects are going stale?", "Any overdue invoices?"},
	}
}

func (a *Assistant) handleLookupQuery(lower string, snap Snapshot) ChatResponse {
	byKey := make(map[string]crm.PipelineStage, len(snap.Stages))
	for _, s := range snap.Stages {
		byKey[s.Key] = s
	}

	for _, p := range snap.Prospects {
		name := strings.ToLower(p.Name)
		if name == "" || !strings.Contains(lower, name) {
			continue
		}
		label := p.PipelineStage
		if stage, ok := byKey[p.PipelineStage]; ok {
			label = stage.Label
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("**%s**\n\n", p.Name))
		sb.WriteString(fmt.Sprintf("- Stage: %s\n", label))
		sb.WriteString(fmt.Sprintf("- Deal value: $%s at %d%% probability\n", dealValue(p).StringFixed(2), p.Probability))
		if p.Email != "" {
			sb.WriteString(fmt.Sprintf("- Email: %s\n", p.Email))
		}
		if len(p.Tags) > 0 {
			sb.WriteString(fmt.Sprintf("- Tags: %s\n", strings.Join(p.Tags, ", ")))
		}
		if touched := lastTouch(p); !touched.IsZero() {
			sb.WriteString(fmt.Sprintf("- Last activity: %s\n", touched.Format("Jan 2, 2006")))
		}
		return ChatResponse{Message: sb.String(), Data: p}
	}

	return ChatResponse{
		Message:     "I couldn't find that prospect. Try the full name as it appears on the board.",
		Suggestions: []string{"How is the pipeline doing?"},
	}
}

func (a *Assistant) handleGeneralQuery(snap Snapshot) ChatResponse {
	return ChatResponse{
		Message: fmt.Sprintf("I can answer questions about your %d prospects and %d invoices. Try one of the suggestions below.",
			len(snap.Prospects), len(snap.Invoices)),
		Suggestions: []string{
			"How is the pipeline doing?",
			"Which prospects are going stale?",
			"Any overdue invoices?",
			"What's my close rate?",
		},
	}
}

func dealValue(p portalapi.Prospect) decimal.Decimal {
	if p.DealValue == nil {
		return decimal.Zero
	}
	return *p.DealValue
}

func lastTouch(p portalapi.Prospect) time.Time {
	if p.LastContactAt != nil {
		return *p.LastContactAt
	}
	return p.CreatedAt
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
