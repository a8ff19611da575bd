package crm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/agency-portal/internal/pkg/logger"
	"github.com/ignite/agency-portal/internal/portalapi"
)

// DragController abstracts the platform drag events so the move logic is
// testable without pointer wiring. The kanban controller implements it.
type DragController interface {
	OnDragStart(id portalapi.ID)
	OnDragOverTarget(stageKey string)
	OnDrop(ctx context.Context, id portalapi.ID, stageKey string) error
	OnDragEnd()
}

// Notifier receives user-facing success/failure notices for mutations.
type Notifier interface {
	Success(msg string)
	Failure(msg string)
}

// DefaultStageUpdateTimeout bounds each remote stage-update call so a card
// is never left indefinitely in a state the server hasn't confirmed.
const DefaultStageUpdateTimeout = 15 * time.Second

// KanbanController orchestrates drag start/drop over the stage columns and
// reconciles stage transitions with the server. Moves are optimistic: local
// state changes immediately, then one update call per affected prospect
// confirms it. A failed call reverts that prospect to its previous stage —
// the user's intent is surfaced through a failure notice, never silently
// lost or silently left diverged from the server.
type KanbanController struct {
	store    *ProspectStore
	registry *StageRegistry
	api      ProspectAPI
	notifier Notifier

	updateTimeout time.Duration

	mu             sync.Mutex
	dragging       portalapi.ID
	hoverStage     string
	selection      map[portalapi.ID]struct{}
	showClosed     bool
	closedExpanded bool
}

// NewKanbanController wires the controller. notifier may be nil.
func NewKanbanController(store *ProspectStore, registry *StageRegistry, api ProspectAPI, notifier Notifier) *KanbanController {
	return &KanbanController{
		store:         store,
		registry:      registry,
		api:           api,
		notifier:      notifier,
		updateTimeout: DefaultStageUpdateTimeout,
		selection:     make(map[portalapi.ID]struct{}),
	}
}

// SetUpdateTimeout overrides the per-call stage update timeout.
func (k *KanbanController) SetUpdateTimeout(d time.Duration) {
	if d > 0 {
		k.updateTimeout = d
	}
}

// OnDragStart records the dragged prospect. The dragging flag dims the
// source card and distinguishes a genuine drop from an accidental click.
func (k *KanbanController) OnDragStart(id portalapi.ID) {
	k.mu.Lock()
	k.dragging = id
	k.mu.Unlock()
}

// OnDragOverTarget marks the hovered column. Hover acceptance is signaled
// regardless of whether the drop would be a no-op.
func (k *KanbanController) OnDragOverTarget(stageKey string) {
	k.mu.Lock()
	k.hoverStage = stageKey
	k.mu.Unlock()
}

// OnDragEnd clears the transient drag state without dropping.
func (k *KanbanController) OnDragEnd() {
	k.mu.Lock()
	k.dragging = ""
	k.hoverStage = ""
	k.mu.Unlock()
}

// Dragging returns the id currently being dragged, if any.
func (k *KanbanController) Dragging() (portalapi.ID, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.dragging, k.dragging != ""
}

// HoverStage returns the column currently signaling hover acceptance.
func (k *KanbanController) HoverStage() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.hoverStage
}

// ToggleSelect adds or removes a prospect from the multi-select.
func (k *KanbanController) ToggleSelect(id portalapi.ID) {
	k.mu.Lock()
	if _, ok := k.selection[id]; ok {
		delete(k.selection, id)
	} else {
		k.selection[id] = struct{}{}
	}
	k.mu.Unlock()
}

// ClearSelection empties the multi-select.
func (k *KanbanController) ClearSelection() {
	k.mu.Lock()
	k.selection = make(map[portalapi.ID]struct{})
	k.mu.Unlock()
}

// Selected reports whether a prospect is in the multi-select.
func (k *KanbanController) Selected(id portalapi.ID) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.selection[id]
	return ok
}

// SelectionSize returns the number of selected prospects.
func (k *KanbanController) SelectionSize() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.selection)
}

// ShowClosed reports the closed-stage visibility toggle (off by default).
func (k *KanbanController) ShowClosed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.showClosed
}

// ToggleShowClosed flips closed-stage visibility and returns the new value.
// Closed stages come back collapsed: hiding them also resets the expansion.
func (k *KanbanController) ToggleShowClosed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.showClosed = !k.showClosed
	if !k.showClosed {
		k.closedExpanded = false
	}
	return k.showClosed
}

// ClosedExpanded reports whether closed stages render as full columns
// instead of the collapsed count summaries.
func (k *KanbanController) ClosedExpanded() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.showClosed && k.closedExpanded
}

// ToggleClosedExpanded flips between the collapsed summaries and full
// closed columns. It has no effect while closed stages are hidden.
func (k *KanbanController) ToggleClosedExpanded() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.showClosed {
		return false
	}
	k.closedExpanded = !k.closedExpanded
	return k.closedExpanded
}

// OnDrop resolves the drop: when the dragged id is part of a multi-select of
// more than one prospect, the entire selection moves; otherwise only the
// dragged prospect does. Prospects already in the target stage are skipped,
// so a same-stage drop issues no remote call. Any stage may transition to
// any other — the server is the authority on validity, and closed stages
// are not terminal locks (deals reopen).
func (k *KanbanController) OnDrop(ctx context.Context, id portalapi.ID, stageKey string) error {
	k.mu.Lock()
	affected := []portalapi.ID{id}
	if _, inSelection := k.selection[id]; inSelection && len(k.selection) > 1 {
		affected = affected[:0]
		for sid := range k.selection {
			affected = append(affected, sid)
		}
	}
	k.dragging = ""
	k.hoverStage = ""
	k.mu.Unlock()

	var failures int
	for _, pid := range affected {
		if err := k.moveOne(ctx, pid, stageKey); err != nil {
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d prospect move(s) failed", failures, len(affected))
	}
	return nil
}

// MoveToNextStage advances a single prospect to the stage immediately after
// its current one in the active ordering. It is a no-op error when the
// prospect is already in the last active stage.
func (k *KanbanController) MoveToNextStage(ctx context.Context, id portalapi.ID) error {
	p, ok := k.store.Get(id)
	if !ok {
		return fmt.Errorf("prospect not found: %s", id)
	}
	next, ok := k.registry.NextActive(p.PipelineStage)
	if !ok {
		return errors.New("no next stage")
	}
	return k.moveOne(ctx, id, next.Key)
}

// HasNextStage reports whether the move-to-next affordance applies.
func (k *KanbanController) HasNextStage(id portalapi.ID) bool {
	p, ok := k.store.Get(id)
	if !ok {
		return false
	}
	_, ok = k.registry.NextActive(p.PipelineStage)
	return ok
}

// moveOne performs the optimistic transition for a single prospect:
// immediate local mutation, then a remote update. On failure the local
// stage reverts and a failure notice is published.
func (k *KanbanController) moveOne(ctx context.Context, id portalapi.ID, stageKey string) error {
	p, ok := k.store.Get(id)
	if !ok {
		return fmt.Errorf("prospect not found: %s", id)
	}
	if p.PipelineStage == stageKey {
		return nil
	}

	prev, ok := k.store.SetStage(id, stageKey)
	if !ok {
		return fmt.Errorf("prospect not found: %s", id)
	}

	callCtx, cancel := context.WithTimeout(ctx, k.updateTimeout)
	defer cancel()

	updated, err := k.api.UpdateProspect(callCtx, id, portalapi.ProspectPatch{
		PipelineStage: &stageKey,
	})
	if err != nil {
		// Revert the optimistic move: a card must not sit in a column the
		// server never confirmed.
		k.store.SetStage(id, prev)
		logger.Error("stage update failed",
			"prospect_id", string(id), "from", prev, "to", stageKey, "error", err.Error())
		if k.notifier != nil {
			k.notifier.Failure(fmt.Sprintf("Could not move %s to %s", p.Name, stageKey))
		}
		return fmt.Errorf("failed to update stage: %w", err)
	}

	// Echo the server's record; the optimistic state is kept (idempotent).
	k.store.ApplyUpdate(*updated)
	if k.notifier != nil {
		k.notifier.Success(fmt.Sprintf("Moved %s to %s", p.Name, stageKey))
	}
	return nil
}

// ClosedSummary is the collapsed rendering of the two closed stages: counts
// with an expand affordance instead of full card lists.
type ClosedSummary struct {
	Stage PipelineStage
	Count int
}

// ClosedSummaries returns per-closed-stage counts over the full working set.
func (k *KanbanController) ClosedSummaries() []ClosedSummary {
	summary := k.store.Summary()
	closed := k.registry.Closed()
	out := make([]ClosedSummary, 0, len(closed))
	for _, stage := range closed {
		out = append(out, ClosedSummary{Stage: stage, Count: summary.ByStage[stage.Key].Count})
	}
	return out
}

// Columns returns the board's full-card columns: active stages always,
// closed stages only once the user expands them. While closed stages are
// merely visible they render through ClosedSummaries instead.
func (k *KanbanController) Columns() []PipelineStage {
	if k.ClosedExpanded() {
		return k.registry.Stages()
	}
	return k.registry.Active()
}
