package crm

import (
	"context"
	"sync"
	"time"

	"github.com/ignite/agency-portal/internal/authz"
	"github.com/ignite/agency-portal/internal/pkg/logger"
	"github.com/ignite/agency-portal/internal/portalapi"
	"github.com/shopspring/decimal"
)

// Section identifies one independently loaded region of the detail panel.
type Section string

const (
	SectionTimeline     Section = "timeline"
	SectionEmails       Section = "emails"
	SectionCalls        Section = "calls"
	SectionNotes        Section = "notes"
	SectionCustomFields Section = "custom_fields"
	SectionProposals    Section = "proposals" // agency tier only
	SectionAudits       Section = "audits"    // agency tier only
)

// SectionState is the load state of one panel region. A failure in one
// section never blanks or blocks its siblings.
type SectionState struct {
	Loading bool
	Err     error
	Data    any
}

// DetailAPI is the slice of the portal client the detail panel needs.
type DetailAPI interface {
	Timeline(ctx context.Context, id portalapi.ID) ([]portalapi.TimelineEvent, error)
	EmailThreads(ctx context.Context, id portalapi.ID) ([]portalapi.EmailThread, error)
	Calls(ctx context.Context, id portalapi.ID) ([]portalapi.CallRecord, error)
	Notes(ctx context.Context, id portalapi.ID) ([]portalapi.Note, error)
	AddNote(ctx context.Context, id portalapi.ID, body string) (*portalapi.Note, error)
	CustomFieldDefs(ctx context.Context, projectID string) ([]portalapi.CustomFieldDef, error)
	Proposals(ctx context.Context, id portalapi.ID) ([]portalapi.Proposal, error)
	Audits(ctx context.Context, id portalapi.ID) ([]portalapi.Audit, error)
	UpdateProspect(ctx context.Context, id portalapi.ID, patch portalapi.ProspectPatch) (*portalapi.Prospect, error)
	ConvertProspect(ctx context.Context, id portalapi.ID) (*portalapi.ConversionResult, error)
}

// DefaultDetailLoadTimeout bounds each sub-resource load.
const DefaultDetailLoadTimeout = 30 * time.Second

// DetailPanel lazily loads and presents the extended record for exactly one
// selected prospect at a time. Sub-loads run in parallel and carry
// independent load/error state; selection changes cancel loads for the
// previously selected prospect, and late results for a superseded selection
// are discarded.
type DetailPanel struct {
	api      DetailAPI
	store    *ProspectStore
	org      authz.OrgContext
	notifier Notifier

	loadTimeout time.Duration

	mu       sync.Mutex
	current  portalapi.ID
	cancel   context.CancelFunc
	sections map[Section]*SectionState
	loadWG   *sync.WaitGroup
}

// NewDetailPanel wires the panel. notifier may be nil.
func NewDetailPanel(api DetailAPI, store *ProspectStore, org authz.OrgContext, notifier Notifier) *DetailPanel {
	return &DetailPanel{
		api:         api,
		store:       store,
		org:         org,
		notifier:    notifier,
		loadTimeout: DefaultDetailLoadTimeout,
		sections:    make(map[Section]*SectionState),
	}
}

// SetLoadTimeout overrides the per-section load timeout.
func (d *DetailPanel) SetLoadTimeout(t time.Duration) {
	if t > 0 {
		d.loadTimeout = t
	}
}

// Sections visible for the current org tier. Proposals and audits are
// agency only.
func (d *DetailPanel) visibleSections() []Section {
	sections := []Section{
		SectionTimeline, SectionEmails, SectionCalls,
		SectionNotes, SectionCustomFields,
	}
	if d.org.IsAgency() {
		sections = append(sections, SectionProposals, SectionAudits)
	}
	return sections
}

// Select loads the panel for a prospect. Any loads still in flight for a
// previously selected prospect are cancelled.
func (d *DetailPanel) Select(ctx context.Context, id portalapi.ID) {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.current = id

	sections := d.visibleSections()
	d.sections = make(map[Section]*SectionState, len(sections))
	for _, sec := range sections {
		d.sections[sec] = &SectionState{Loading: true}
	}
	wg := &sync.WaitGroup{}
	d.loadWG = wg
	d.mu.Unlock()

	for _, sec := range sections {
		wg.Add(1)
		go func(sec Section) {
			defer wg.Done()
			secCtx, secCancel := context.WithTimeout(loadCtx, d.loadTimeout)
			defer secCancel()
			data, err := d.loadSection(secCtx, sec, id)
			d.commit(id, sec, data, err)
		}(sec)
	}
}

// Deselect closes the panel and cancels in-flight loads.
func (d *DetailPanel) Deselect() {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.current = ""
	d.sections = make(map[Section]*SectionState)
	d.mu.Unlock()
}

// Wait blocks until the current selection's sub-loads finish. Test hook.
func (d *DetailPanel) Wait() {
	d.mu.Lock()
	wg := d.loadWG
	d.mu.Unlock()
	if wg != nil {
		wg.Wait()
	}
}

// Current returns the selected prospect id.
func (d *DetailPanel) Current() (portalapi.ID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current, d.current != ""
}

// Section returns a snapshot of one region's load state.
func (d *DetailPanel) Section(sec Section) (SectionState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	state, ok := d.sections[sec]
	if !ok {
		return SectionState{}, false
	}
	return *state, true
}

func (d *DetailPanel) loadSection(ctx context.Context, sec Section, id portalapi.ID) (any, error) {
	switch sec {
	case SectionTimeline:
		return d.api.Timeline(ctx, id)
	case SectionEmails:
		return d.api.EmailThreads(ctx, id)
	case SectionCalls:
		return d.api.Calls(ctx, id)
	case SectionNotes:
		return d.api.Notes(ctx, id)
	case SectionCustomFields:
		return d.api.CustomFieldDefs(ctx, d.org.ProjectID)
	case SectionProposals:
		return d.api.Proposals(ctx, id)
	case SectionAudits:
		return d.api.Audits(ctx, id)
	}
	return nil, nil
}

// commit installs a sub-load result, unless the selection moved on while the
// load was in flight.
func (d *DetailPanel) commit(id portalapi.ID, sec Section, data any, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current != id {
		return
	}
	state, ok := d.sections[sec]
	if !ok {
		return
	}
	state.Loading = false
	state.Err = err
	if err == nil {
		state.Data = data
	}
	if err != nil {
		logger.Warn("detail section load failed",
			"section", string(sec), "prospect_id", string(id), "error", err.Error())
	}
}

// ========== Field-level saves ==========
//
// Edits are saved individually, not as one bulk form submit. Each save
// echoes the server's returned record back into the store so the kanban
// view stays consistent with the detail view without a re-fetch.

func (d *DetailPanel) saveField(ctx context.Context, id portalapi.ID, patch portalapi.ProspectPatch, what string) error {
	updated, err := d.api.UpdateProspect(ctx, id, patch)
	if err != nil {
		logger.Error("field save failed", "prospect_id", string(id), "field", what, "error", err.Error())
		if d.notifier != nil {
			d.notifier.Failure("Could not save " + what)
		}
		return err
	}
	d.store.ApplyUpdate(*updated)
	if d.notifier != nil {
		d.notifier.Success("Saved " + what)
	}
	return nil
}

// SaveNotes saves the notes field.
func (d *DetailPanel) SaveNotes(ctx context.Context, id portalapi.ID, notes string) error {
	return d.saveField(ctx, id, portalapi.ProspectPatch{Notes: &notes}, "notes")
}

// SaveDealValue saves the deal value.
func (d *DetailPanel) SaveDealValue(ctx context.Context, id portalapi.ID, value decimal.Decimal) error {
	return d.saveField(ctx, id, portalapi.ProspectPatch{DealValue: &value}, "deal value")
}

// SaveProbability saves the win probability (clamped to 0–100).
func (d *DetailPanel) SaveProbability(ctx context.Context, id portalapi.ID, probability int) error {
	if probability < 0 {
		probability = 0
	}
	if probability > 100 {
		probability = 100
	}
	return d.saveField(ctx, id, portalapi.ProspectPatch{Probability: &probability}, "probability")
}

// SaveStage saves a stage change made from the panel's stage selector. It
// goes through the same store write path as the kanban drag-drop.
func (d *DetailPanel) SaveStage(ctx context.Context, id portalapi.ID, stageKey string) error {
	return d.saveField(ctx, id, portalapi.ProspectPatch{PipelineStage: &stageKey}, "stage")
}

// SaveCustomField saves one organization-defined field value.
func (d *DetailPanel) SaveCustomField(ctx context.Context, id portalapi.ID, key string, value any) error {
	return d.saveField(ctx, id, portalapi.ProspectPatch{
		CustomFields: map[string]any{key: value},
	}, "custom field")
}

// AddNote appends a note and refreshes the notes section in place.
func (d *DetailPanel) AddNote(ctx context.Context, id portalapi.ID, body string) error {
	note, err := d.api.AddNote(ctx, id, body)
	if err != nil {
		if d.notifier != nil {
			d.notifier.Failure("Could not add note")
		}
		return err
	}

	d.mu.Lock()
	if d.current == id {
		if state, ok := d.sections[SectionNotes]; ok {
			if notes, ok := state.Data.([]portalapi.Note); ok {
				state.Data = append(notes, *note)
			}
		}
	}
	d.mu.Unlock()

	if d.notifier != nil {
		d.notifier.Success("Note added")
	}
	return nil
}

// Convert converts a prospect into a contact/customer. Conversion is
// terminal and idempotent: a prospect that already carries a converted_* id
// is left untouched.
func (d *DetailPanel) Convert(ctx context.Context, id portalapi.ID) error {
	p, ok := d.store.Get(id)
	if ok && p.IsConverted() {
		return nil
	}

	result, err := d.api.ConvertProspect(ctx, id)
	if err != nil {
		if d.notifier != nil {
			d.notifier.Failure("Conversion failed")
		}
		return err
	}

	if ok {
		p.ConvertedToContactID = result.ContactID
		p.ConvertedToCustomerID = result.CustomerID
		d.store.ApplyUpdate(p)
	}
	if d.notifier != nil {
		d.notifier.Success("Prospect converted")
	}
	return nil
}
