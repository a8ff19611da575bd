package crm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ignite/agency-portal/internal/pkg/logger"
	"github.com/ignite/agency-portal/internal/portalapi"
	"github.com/shopspring/decimal"
)

// ErrStaleResponse marks a fetch result that arrived after its subject
// (project, search token) was superseded. The result is discarded.
var ErrStaleResponse = errors.New("stale response discarded")

// ErrNoProject is returned when a fetch is attempted without a project id.
// Project scoping is always explicit — never inferred from session state.
var ErrNoProject = errors.New("project id required")

// ProspectAPI is the slice of the portal client the store and the
// controllers need.
type ProspectAPI interface {
	ListProspects(ctx context.Context, p portalapi.ProspectListParams) (*portalapi.ProspectList, error)
	UpdateProspect(ctx context.Context, id portalapi.ID, patch portalapi.ProspectPatch) (*portalapi.Prospect, error)
}

// DefaultSearchDebounce is the keystroke debounce applied to text search.
const DefaultSearchDebounce = 300 * time.Millisecond

// ProspectStore holds the fetched prospect list for the current project and
// computes derived views. It is the single mutation point for prospect
// state: the kanban drag-drop path and the detail-panel edit path both write
// through applyLocked, so neither can silently diverge from the other.
type ProspectStore struct {
	api      ProspectAPI
	debounce time.Duration

	mu          sync.Mutex
	projectID   string
	search      string
	source      string
	prospects   []portalapi.Prospect
	summary     portalapi.Summary
	gen         uint64
	cancelFetch context.CancelFunc
	searchTimer *time.Timer

	subscribers []func()
}

// NewProspectStore creates a store. debounce <= 0 uses the default 300ms.
func NewProspectStore(api ProspectAPI, debounce time.Duration) *ProspectStore {
	if debounce <= 0 {
		debounce = DefaultSearchDebounce
	}
	return &ProspectStore{api: api, debounce: debounce}
}

// Subscribe registers a callback invoked after every committed change.
func (s *ProspectStore) Subscribe(fn func()) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}

func (s *ProspectStore) notify() {
	s.mu.Lock()
	subs := make([]func(), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// Fetch issues the remote list call and commits the result. The project id
// must be passed explicitly. A result whose generation was superseded while
// in flight — project switch, newer keystroke — is discarded with
// ErrStaleResponse, so a late project-A response can never overwrite
// project-B's list.
func (s *ProspectStore) Fetch(ctx context.Context, params portalapi.ProspectListParams) error {
	if params.ProjectID == "" {
		return ErrNoProject
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancelFetch = cancel
	s.projectID = params.ProjectID
	s.search = params.Search
	s.source = params.Source
	s.mu.Unlock()

	list, err := s.api.ListProspects(fetchCtx, params)

	s.mu.Lock()
	if gen != s.gen || s.projectID != params.ProjectID {
		s.mu.Unlock()
		return ErrStaleResponse
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.prospects = list.Prospects
	if list.Summary != nil {
		s.summary = *list.Summary
	} else {
		s.summary = ComputeSummary(list.Prospects)
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// SetProject switches the active project: any in-flight fetch for the old
// project is superseded, then the new project's list is fetched.
func (s *ProspectStore) SetProject(ctx context.Context, projectID string) error {
	return s.Fetch(ctx, portalapi.ProspectListParams{ProjectID: projectID})
}

// SearchDebounced schedules a list fetch for the given search term after the
// debounce interval, cancelling any pending scheduled fetch from earlier
// keystrokes. The eventual fetch also supersedes any in-flight one.
func (s *ProspectStore) SearchDebounced(query string) {
	s.mu.Lock()
	s.search = query
	projectID := s.projectID
	source := s.source
	if s.searchTimer != nil {
		s.searchTimer.Stop()
	}
	s.searchTimer = time.AfterFunc(s.debounce, func() {
		if err := s.Fetch(context.Background(), portalapi.ProspectListParams{
			ProjectID: projectID,
			Search:    query,
			Source:    source,
		}); err != nil && !errors.Is(err, ErrStaleResponse) {
			logger.Warn("debounced search fetch failed", "error", err.Error())
		}
	})
	s.mu.Unlock()
}

// ProjectID returns the active project.
func (s *ProspectStore) ProjectID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectID
}

// Prospects returns a copy of the current working set.
func (s *ProspectStore) Prospects() []portalapi.Prospect {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]portalapi.Prospect, len(s.prospects))
	copy(out, s.prospects)
	return out
}

// Get returns the prospect with the given id.
func (s *ProspectStore) Get(id portalapi.ID) (portalapi.Prospect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.prospects {
		if p.ID == id {
			return p, true
		}
	}
	return portalapi.Prospect{}, false
}

// Summary returns the aggregate over the full working set. Display filters
// (closed-stage visibility, search highlighting) never feed this value.
func (s *ProspectStore) Summary() portalapi.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// ApplyUpdate writes a server-returned record into the working set so every
// view (kanban, detail panel) observes the same state. Records for
// prospects outside the current working set are ignored.
func (s *ProspectStore) ApplyUpdate(updated portalapi.Prospect) {
	s.mu.Lock()
	changed := s.applyLocked(updated)
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// SetStage mutates a prospect's stage locally (the optimistic half of a
// drag-drop move). It returns the previous stage so a failed remote update
// can revert.
func (s *ProspectStore) SetStage(id portalapi.ID, stageKey string) (prev string, ok bool) {
	s.mu.Lock()
	for i := range s.prospects {
		if s.prospects[i].ID == id {
			prev = s.prospects[i].PipelineStage
			p := s.prospects[i]
			p.PipelineStage = stageKey
			s.applyLocked(p)
			s.mu.Unlock()
			s.notify()
			return prev, true
		}
	}
	s.mu.Unlock()
	return "", false
}

// applyLocked is the single write path for prospect records.
func (s *ProspectStore) applyLocked(updated portalapi.Prospect) bool {
	for i := range s.prospects {
		if s.prospects[i].ID == updated.ID {
			s.prospects[i] = updated
			s.summary = ComputeSummary(s.prospects)
			return true
		}
	}
	return false
}

// GroupByStage buckets prospects by stage key. Every prospect lands in
// exactly one bucket; an unrecognized or missing stage buckets into
// new_lead. The union of the buckets always equals the input set.
func GroupByStage(prospects []portalapi.Prospect, stageKeys []string) map[string][]portalapi.Prospect {
	known := make(map[string]struct{}, len(stageKeys))
	groups := make(map[string][]portalapi.Prospect, len(stageKeys)+1)
	for _, key := range stageKeys {
		known[key] = struct{}{}
		groups[key] = nil
	}

	for _, p := range prospects {
		key := p.PipelineStage
		if _, ok := known[key]; !ok {
			key = portalapi.DefaultStageKey
		}
		groups[key] = append(groups[key], p)
	}
	return groups
}

// FilterActive returns the prospects to display. With showClosed false,
// prospects sitting in a closed stage are excluded. This is a display filter
// only: aggregate counts and statistics always come from the full set.
func FilterActive(prospects []portalapi.Prospect, registry *StageRegistry, showClosed bool) []portalapi.Prospect {
	if showClosed {
		out := make([]portalapi.Prospect, len(prospects))
		copy(out, prospects)
		return out
	}
	out := make([]portalapi.Prospect, 0, len(prospects))
	for _, p := range prospects {
		if stage, ok := registry.ByKey(p.PipelineStage); ok && stage.IsClosed {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ComputeSummary aggregates the full prospect set: totals and per-stage
// counts and deal value.
func ComputeSummary(prospects []portalapi.Prospect) portalapi.Summary {
	summary := portalapi.Summary{
		Total:   len(prospects),
		ByStage: make(map[string]portalapi.StageSummary),
	}
	for _, p := range prospects {
		entry := summary.ByStage[p.PipelineStage]
		entry.Count++
		if p.DealValue != nil {
			entry.DealValue = entry.DealValue.Add(*p.DealValue)
			summary.DealValue = summary.DealValue.Add(*p.DealValue)
		}
		summary.ByStage[p.PipelineStage] = entry
	}
	return summary
}

// WeightedPipelineValue returns the probability-weighted deal value over the
// full set, excluding closed-lost prospects.
func WeightedPipelineValue(prospects []portalapi.Prospect) decimal.Decimal {
	total := decimal.Zero
	for _, p := range prospects {
		if p.DealValue == nil || p.PipelineStage == StageClosedLost {
			continue
		}
		weight := decimal.NewFromInt(int64(p.Probability)).Div(decimal.NewFromInt(100))
		total = total.Add(p.DealValue.Mul(weight))
	}
	return total
}
