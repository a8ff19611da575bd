package portalapi

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StageRecord is a pipeline stage definition as returned by the backend.
type StageRecord struct {
	StageKey   string `json:"stage_key"`
	StageLabel string `json:"stage_label"`
	Color      string `json:"color"`
	Icon       string `json:"icon"`
	SortOrder  int    `json:"sort_order"`
	IsWon      bool   `json:"is_won"`
	IsLost     bool   `json:"is_lost"`
}

// ID is a record identifier that the backend serializes sometimes as a JSON
// string and sometimes as a number.
type ID string

// UnmarshalJSON accepts both `"42"` and `42`.
func (id *ID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*id = ""
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*id = ID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// TagSet is the canonical tag representation: a sorted, de-duplicated set of
// strings. The backend sends tags either as a JSON array or as a
// JSON-encoded string containing an array, so parsing happens here and
// nowhere else.
type TagSet []string

// UnmarshalJSON normalizes every wire shape of tags into a canonical set.
func (t *TagSet) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		*t = nil
		return nil
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*t = NormalizeTags(arr)
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*t = nil
		return nil
	}
	// A string value is either a JSON-encoded array or a comma-joined list.
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			*t = NormalizeTags(arr)
			return nil
		}
	}
	*t = NormalizeTags(strings.Split(raw, ","))
	return nil
}

// Contains reports whether the set includes tag.
func (t TagSet) Contains(tag string) bool {
	for _, v := range t {
		if v == tag {
			return true
		}
	}
	return false
}

// NormalizeTags trims, drops empties, de-duplicates, and sorts.
func NormalizeTags(in []string) TagSet {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// DefaultStageKey is the stage assigned to prospects with a missing or
// unrecognized pipeline stage.
const DefaultStageKey = "new_lead"

// DefaultProbability is applied when the backend omits the field.
const DefaultProbability = 50

// Prospect is a CRM lead/opportunity record. All fields are server-owned;
// the client holds a working copy per fetch cycle.
type Prospect struct {
	ID            ID     `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Company       string `json:"company,omitempty"`
	Website       string `json:"website,omitempty"`
	PipelineStage string `json:"pipeline_stage"`
	Source        string `json:"source,omitempty"`

	DealValue   *decimal.Decimal `json:"deal_value,omitempty"`
	Probability int              `json:"probability"`

	Tags         TagSet         `json:"tags,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`

	LeadScore      float64 `json:"lead_score,omitempty"`
	AvgLeadQuality float64 `json:"avg_lead_quality,omitempty"`

	AssignedTo string `json:"assigned_to,omitempty"`
	Notes      string `json:"notes,omitempty"`

	CreatedAt     time.Time  `json:"created_at"`
	LastContactAt *time.Time `json:"last_contact_at,omitempty"`

	ConvertedToContactID  ID `json:"converted_to_contact_id,omitempty"`
	ConvertedToCustomerID ID `json:"converted_to_customer_id,omitempty"`
}

// UnmarshalJSON applies the client-side field defaults at the wire boundary:
// missing/null stage becomes new_lead and an omitted probability (as opposed
// to an explicit 0) becomes 50.
func (p *Prospect) UnmarshalJSON(data []byte) error {
	type alias Prospect
	aux := struct {
		Probability *int `json:"probability"`
		*alias
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Probability != nil {
		p.Probability = *aux.Probability
	} else {
		p.Probability = DefaultProbability
	}
	if p.PipelineStage == "" {
		p.PipelineStage = DefaultStageKey
	}
	return nil
}

// IsConverted reports whether the prospect has already been converted.
// Conversion is terminal and idempotent: a set converted_* id guards repeats.
func (p Prospect) IsConverted() bool {
	return p.ConvertedToContactID != "" || p.ConvertedToCustomerID != ""
}

// StageSummary is a per-stage aggregate returned with prospect lists.
type StageSummary struct {
	Count     int             `json:"count"`
	DealValue decimal.Decimal `json:"deal_value"`
}

// Summary aggregates the full prospect set. It is always computed from the
// unfiltered set — display filters never feed it.
type Summary struct {
	Total     int                     `json:"total"`
	ByStage   map[string]StageSummary `json:"by_stage"`
	DealValue decimal.Decimal         `json:"deal_value"`
}

// Pagination mirrors the backend's paging envelope.
type Pagination struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Pages   int `json:"pages"`
}

// ProspectList is the normalized result of the list endpoint.
type ProspectList struct {
	Prospects  []Prospect `json:"prospects"`
	Total      int        `json:"total"`
	Summary    *Summary   `json:"summary,omitempty"`
	Pagination Pagination `json:"pagination"`
}

// ProspectListParams are the query parameters of the list endpoint.
// ProjectID is always passed explicitly — never inferred from session state.
type ProspectListParams struct {
	ProjectID string
	Search    string
	Source    string
	Stages    []string
}

// ProspectPatch is a partial update. Nil fields are omitted from the request
// body. The stage field is camelCase on the wire; everything else is snake.
type ProspectPatch struct {
	PipelineStage *string          `json:"pipelineStage,omitempty"`
	DealValue     *decimal.Decimal `json:"deal_value,omitempty"`
	Probability   *int             `json:"probability,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
	CustomFields  map[string]any   `json:"custom_fields,omitempty"`
	AssignedTo    *string          `json:"assigned_to,omitempty"`
}

// TimelineEvent is one entry in a prospect's activity timeline.
type TimelineEvent struct {
	ID         ID        `json:"id"`
	Type       string    `json:"type"` // note, call_log, stage_change, ai, ...
	Title      string    `json:"title"`
	Body       string    `json:"body,omitempty"`
	ActorType  string    `json:"actor_type"` // User, AI, System, Lead
	ActorName  string    `json:"actor_name"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EmailThread is a summarized email conversation with the prospect.
type EmailThread struct {
	ID          ID        `json:"id"`
	Subject     string    `json:"subject"`
	Snippet     string    `json:"snippet"`
	MessageCnt  int       `json:"message_count"`
	LastMessage time.Time `json:"last_message_at"`
	Sentiment   string    `json:"sentiment,omitempty"` // optional AI enrichment
}

// CallRecord is one logged call.
type CallRecord struct {
	ID       ID        `json:"id"`
	Outcome  string    `json:"outcome"`
	Duration int       `json:"duration_seconds"`
	Notes    string    `json:"notes,omitempty"`
	CalledAt time.Time `json:"called_at"`
}

// Note is a free-form note on a prospect.
type Note struct {
	ID        ID        `json:"id"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// CustomFieldDef is an organization-defined prospect field.
type CustomFieldDef struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Type     string   `json:"type"` // text, number, date, select, textarea
	Options  []string `json:"options,omitempty"`
	Required bool     `json:"required"`
}

// Proposal is an agency-tier deliverable attached to a prospect.
type Proposal struct {
	ID        ID              `json:"id"`
	Title     string          `json:"title"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// Audit is an agency-tier site audit attached to a prospect.
type Audit struct {
	ID        ID        `json:"id"`
	Kind      string    `json:"kind"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversionResult reports the contact/customer created from a prospect.
type ConversionResult struct {
	ContactID  ID `json:"contact_id,omitempty"`
	CustomerID ID `json:"customer_id,omitempty"`
}

// Invoice is a billing invoice. `overdue` is never a stored status — it is
// derived for display from a sent invoice with a past due date.
type Invoice struct {
	ID            ID              `json:"id"`
	InvoiceNumber string          `json:"invoiceNumber"`
	Status        string          `json:"status"` // draft, sent, paid, cancelled
	CustomerEmail string          `json:"customerEmail"`
	Amount        decimal.Decimal `json:"amount"`
	TaxAmount     decimal.Decimal `json:"taxAmount"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	DueDate       time.Time       `json:"dueDate"`

	IsRecurring         bool       `json:"isRecurring,omitempty"`
	RecurringInterval   string     `json:"recurringInterval,omitempty"` // monthly, quarterly, yearly
	RecurringDayOfMonth int        `json:"recurringDayOfMonth,omitempty"`
	RecurringEndDate    *time.Time `json:"recurringEndDate,omitempty"`
	RecurringCount      int        `json:"recurringCount,omitempty"`

	SentAt        *time.Time `json:"sentAt,omitempty"`
	ViewCount     int        `json:"viewCount"`
	ReminderCount int        `json:"reminderCount"`

	PaymentURL string `json:"paymentUrl,omitempty"`
}

// InvoicePatch is a partial invoice update.
type InvoicePatch struct {
	Status  *string          `json:"status,omitempty"`
	Amount  *decimal.Decimal `json:"amount,omitempty"`
	DueDate *time.Time       `json:"dueDate,omitempty"`
}

// PaymentCard is a Square-tokenized card reference; the raw card never
// touches this codebase.
type PaymentCard struct {
	Nonce string `json:"nonce"`
}

// apiError is the backend's error envelope.
type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
