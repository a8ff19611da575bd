// Package crm holds the pipeline core: the stage registry, the prospect
// store, the kanban controller, and the detail panel controller. All remote
// state is owned by the backend; this package keeps the working copy.
package crm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ignite/agency-portal/internal/pkg/logger"
	"github.com/ignite/agency-portal/internal/portalapi"
)

// Icon is a symbolic reference into the fixed icon set the front-end ships.
type Icon string

// The closed icon set. Unrecognized backend icon names resolve to IconTarget.
const (
	IconSparkles  Icon = "sparkles"
	IconPhone     Icon = "phone"
	IconBadge     Icon = "badge-check"
	IconFileText  Icon = "file-text"
	IconHandshake Icon = "handshake"
	IconTrophy    Icon = "trophy"
	IconXCircle   Icon = "x-circle"
	IconTarget    Icon = "target"
	IconMail      Icon = "mail"
	IconCalendar  Icon = "calendar"
	IconDollar    Icon = "dollar-sign"
)

var iconsByName = map[string]Icon{
	"sparkles":    IconSparkles,
	"phone":       IconPhone,
	"badge-check": IconBadge,
	"badge_check": IconBadge,
	"file-text":   IconFileText,
	"file_text":   IconFileText,
	"handshake":   IconHandshake,
	"trophy":      IconTrophy,
	"x-circle":    IconXCircle,
	"x_circle":    IconXCircle,
	"target":      IconTarget,
	"mail":        IconMail,
	"calendar":    IconCalendar,
	"dollar-sign": IconDollar,
	"dollar_sign": IconDollar,
}

// resolveIcon maps a backend icon name into the closed set.
func resolveIcon(name string) Icon {
	if icon, ok := iconsByName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return icon
	}
	return IconTarget
}

// Stage keys with special meaning. Exactly these two keys classify a stage
// as closed; every other stage is active.
const (
	StageClosedWon  = "closed_won"
	StageClosedLost = "closed_lost"
)

// PipelineStage is one named phase of the sales funnel.
type PipelineStage struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Color       string `json:"color"`
	BgLight     string `json:"bg_light"`
	TextColor   string `json:"text_color"`
	BorderColor string `json:"border_color"`
	Icon        Icon   `json:"icon"`
	Order       int    `json:"order"`
	IsClosed    bool   `json:"is_closed"`
}

// Fixed alphas for the derived presentation tokens.
const (
	bgLightAlpha = 0.1
	borderAlpha  = 0.2
)

// fallbackColor is used when a backend color fails to parse, keeping the
// derived tokens stable.
const fallbackColor = "#6b7280"

// hexToRGBA converts "#rrggbb" (or "#rgb") into an rgba() token at the given
// alpha. Invalid input falls back to the neutral gray so derived tokens
// never vary between reloads.
func hexToRGBA(hex string, alpha float64) string {
	r, g, b, ok := parseHexColor(hex)
	if !ok {
		r, g, b, _ = parseHexColor(fallbackColor)
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", r, g, b,
		strconv.FormatFloat(alpha, 'f', -1, 64))
}

func parseHexColor(s string) (r, g, b uint8, ok bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	case 6:
	default:
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return uint8(v >> 16), uint8(v >> 8 & 0xff), uint8(v & 0xff), true
}

// normalizeStageKey lower-cases a backend stage key and collapses separators
// to underscores: "Proposal Sent" → "proposal_sent".
func normalizeStageKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.':
			return '_'
		}
		return r
	}, key)
	return key
}

// newStage builds a PipelineStage from a backend record, deriving the
// presentation tokens and classification.
func newStage(rec portalapi.StageRecord) PipelineStage {
	key := normalizeStageKey(rec.StageKey)
	color := rec.Color
	if _, _, _, ok := parseHexColor(color); !ok {
		color = fallbackColor
	}
	return PipelineStage{
		Key:         key,
		Label:       rec.StageLabel,
		Color:       color,
		BgLight:     hexToRGBA(color, bgLightAlpha),
		TextColor:   color,
		BorderColor: hexToRGBA(color, borderAlpha),
		Icon:        resolveIcon(rec.Icon),
		Order:       rec.SortOrder,
		IsClosed:    key == StageClosedWon || key == StageClosedLost,
	}
}

// defaultStageDefs is the hardcoded 7-stage fallback. The derived slice must
// be byte-for-byte stable across reloads: components cache stage keys and
// must never observe a mismatch.
var defaultStageDefs = []portalapi.StageRecord{
	{StageKey: "new_lead", StageLabel: "New Lead", Color: "#3b82f6", Icon: "sparkles", SortOrder: 1},
	{StageKey: "contacted", StageLabel: "Contacted", Color: "#8b5cf6", Icon: "phone", SortOrder: 2},
	{StageKey: "qualified", StageLabel: "Qualified", Color: "#06b6d4", Icon: "badge-check", SortOrder: 3},
	{StageKey: "proposal_sent", StageLabel: "Proposal Sent", Color: "#f59e0b", Icon: "file-text", SortOrder: 4},
	{StageKey: "negotiating", StageLabel: "Negotiating", Color: "#f97316", Icon: "handshake", SortOrder: 5},
	{StageKey: "closed_won", StageLabel: "Closed Won", Color: "#22c55e", Icon: "trophy", SortOrder: 6},
	{StageKey: "closed_lost", StageLabel: "Closed Lost", Color: "#ef4444", Icon: "x-circle", SortOrder: 7},
}

// DefaultStages returns a fresh copy of the fallback stage set.
func DefaultStages() []PipelineStage {
	stages := make([]PipelineStage, len(defaultStageDefs))
	for i, rec := range defaultStageDefs {
		stages[i] = newStage(rec)
	}
	return stages
}

// StageAPI is the slice of the portal client the registry needs.
type StageAPI interface {
	PipelineStages(ctx context.Context, projectID string) ([]portalapi.StageRecord, error)
	SavePipelineStages(ctx context.Context, projectID string, stages []portalapi.StageRecord) error
}

// StageCache is an optional read-through cache for stage configuration.
type StageCache interface {
	Get(ctx context.Context, projectID string) ([]portalapi.StageRecord, bool)
	Put(ctx context.Context, projectID string, stages []portalapi.StageRecord)
	Invalidate(ctx context.Context, projectID string)
}

// SaveLock guards a configure-pipeline save. Acquire reports false when
// another portal process is saving the same project right now.
type SaveLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// SaveLockFactory builds the lock for one project's configuration.
type SaveLockFactory func(projectID string) SaveLock

// ErrConfigBusy is returned by Save when another process holds the
// configuration lock for the project.
var ErrConfigBusy = errors.New("pipeline configuration is being edited elsewhere")

// StageRegistry produces the ordered stage configuration used by every view
// from a single source of truth.
type StageRegistry struct {
	api     StageAPI
	cache   StageCache      // may be nil
	lockFor SaveLockFactory // may be nil

	mu        sync.RWMutex
	projectID string
	stages    []PipelineStage
}

// NewStageRegistry creates a registry preloaded with the default stage set.
// cache may be nil.
func NewStageRegistry(api StageAPI, cache StageCache) *StageRegistry {
	return &StageRegistry{
		api:    api,
		cache:  cache,
		stages: DefaultStages(),
	}
}

// Load fetches and installs the stage configuration for a project. A fetch
// failure, an absent project, or an empty result installs the default set.
// Load never returns an error for those cases: callers always get a usable
// registry.
func (r *StageRegistry) Load(ctx context.Context, projectID string) []PipelineStage {
	stages := r.resolve(ctx, projectID)

	r.mu.Lock()
	r.projectID = projectID
	r.stages = stages
	r.mu.Unlock()

	return r.Stages()
}

func (r *StageRegistry) resolve(ctx context.Context, projectID string) []PipelineStage {
	if projectID == "" || r.api == nil {
		return DefaultStages()
	}

	if r.cache != nil {
		if records, ok := r.cache.Get(ctx, projectID); ok && len(records) > 0 {
			return buildStages(records)
		}
	}

	records, err := r.api.PipelineStages(ctx, projectID)
	if err != nil {
		logger.Warn("stage config fetch failed, using defaults",
			"project_id", projectID, "error", err.Error())
		return DefaultStages()
	}
	if len(records) == 0 {
		return DefaultStages()
	}

	if r.cache != nil {
		r.cache.Put(ctx, projectID, records)
	}
	return buildStages(records)
}

func buildStages(records []portalapi.StageRecord) []PipelineStage {
	stages := make([]PipelineStage, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		stage := newStage(rec)
		if stage.Key == "" {
			continue
		}
		// Stage keys are unique within the registry; the first wins.
		if _, dup := seen[stage.Key]; dup {
			continue
		}
		seen[stage.Key] = struct{}{}
		stages = append(stages, stage)
	}
	sort.SliceStable(stages, func(i, j int) bool {
		return stages[i].Order < stages[j].Order
	})
	if len(stages) == 0 {
		return DefaultStages()
	}
	return stages
}

// SetSaveLockFactory enables cross-process serialization of Save. Without
// a factory, saves race on last-write-wins like any other backend write.
func (r *StageRegistry) SetSaveLockFactory(f SaveLockFactory) {
	r.lockFor = f
}

// Save persists an edited stage configuration and re-fetches it, so the
// registry reflects exactly what the server stored.
func (r *StageRegistry) Save(ctx context.Context, projectID string, records []portalapi.StageRecord) error {
	if r.lockFor != nil {
		lock := r.lockFor(projectID)
		ok, err := lock.Acquire(ctx)
		if err != nil {
			// Lock backend down; proceed rather than block editing.
			logger.Warn("stage save lock unavailable",
				"project_id", projectID, "error", err.Error())
		} else if !ok {
			return ErrConfigBusy
		} else {
			defer lock.Release(ctx)
		}
	}
	if err := r.api.SavePipelineStages(ctx, projectID, records); err != nil {
		return fmt.Errorf("failed to save pipeline stages: %w", err)
	}
	if r.cache != nil {
		r.cache.Invalidate(ctx, projectID)
	}
	r.Load(ctx, projectID)
	return nil
}

// ProjectID returns the project the registry was last loaded for.
func (r *StageRegistry) ProjectID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.projectID
}

// Stages returns a copy of the ordered stage set.
func (r *StageRegistry) Stages() []PipelineStage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PipelineStage, len(r.stages))
	copy(out, r.stages)
	return out
}

// Active returns the ordered non-closed stages. These drive default
// visibility and the move-to-next ordering.
func (r *StageRegistry) Active() []PipelineStage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PipelineStage, 0, len(r.stages))
	for _, s := range r.stages {
		if !s.IsClosed {
			out = append(out, s)
		}
	}
	return out
}

// Closed returns the ordered closed stages.
func (r *StageRegistry) Closed() []PipelineStage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PipelineStage, 0, 2)
	for _, s := range r.stages {
		if s.IsClosed {
			out = append(out, s)
		}
	}
	return out
}

// ByKey looks up a stage by key.
func (r *StageRegistry) ByKey(key string) (PipelineStage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.stages {
		if s.Key == key {
			return s, true
		}
	}
	return PipelineStage{}, false
}

// NextActive returns the active stage immediately following key in the
// active ordering. ok is false when key is the last active stage, a closed
// stage, or unknown — the "move to next" affordance is absent then.
func (r *StageRegistry) NextActive(key string) (PipelineStage, bool) {
	active := r.Active()
	for i, s := range active {
		if s.Key == key {
			if i+1 < len(active) {
				return active[i+1], true
			}
			return PipelineStage{}, false
		}
	}
	return PipelineStage{}, false
}

// Keys returns the ordered stage keys.
func (r *StageRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, len(r.stages))
	for i, s := range r.stages {
		keys[i] = s.Key
	}
	return keys
}
