package crm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/agency-portal/internal/authz"
	"github.com/ignite/agency-portal/internal/portalapi"
)

type fakeDetailAPI struct {
	*fakeProspectAPI

	mu sync.Mutex

	timelines map[portalapi.ID][]portalapi.TimelineEvent
	notes     map[portalapi.ID][]portalapi.Note

	timelineErr error
	convertErr  error

	// holdTimeline delays timeline loads until released, to simulate a slow
	// sub-resource while the user switches prospects.
	holdTimeline chan struct{}

	converted map[portalapi.ID]int
}

func newFakeDetailAPI() *fakeDetailAPI {
	return &fakeDetailAPI{
		fakeProspectAPI: newFakeProspectAPI(),
		timelines:       make(map[portalapi.ID][]portalapi.TimelineEvent),
		notes:           make(map[portalapi.ID][]portalapi.Note),
		converted:       make(map[portalapi.ID]int),
	}
}

func (f *fakeDetailAPI) Timeline(ctx context.Context, id portalapi.ID) ([]portalapi.TimelineEvent, error) {
	f.mu.Lock()
	hold := f.holdTimeline
	err := f.timelineErr
	events := f.timelines[id]
	f.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (f *fakeDetailAPI) EmailThreads(ctx context.Context, id portalapi.ID) ([]portalapi.EmailThread, error) {
	return []portalapi.EmailThread{{ID: "e-" + id, Subject: "hello"}}, nil
}

func (f *fakeDetailAPI) Calls(ctx context.Context, id portalapi.ID) ([]portalapi.CallRecord, error) {
	return nil, nil
}

func (f *fakeDetailAPI) Notes(ctx context.Context, id portalapi.ID) ([]portalapi.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]portalapi.Note(nil), f.notes[id]...), nil
}

func (f *fakeDetailAPI) AddNote(ctx context.Context, id portalapi.ID, body string) (*portalapi.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	note := portalapi.Note{ID: "note-new", Body: body, Author: "tester"}
	f.notes[id] = append(f.notes[id], note)
	return &note, nil
}

func (f *fakeDetailAPI) CustomFieldDefs(ctx context.Context, projectID string) ([]portalapi.CustomFieldDef, error) {
	return []portalapi.CustomFieldDef{{Key: "budget", Label: "Budget", Type: "number"}}, nil
}

func (f *fakeDetailAPI) Proposals(ctx context.Context, id portalapi.ID) ([]portalapi.Proposal, error) {
	return nil, nil
}

func (f *fakeDetailAPI) Audits(ctx context.Context, id portalapi.ID) ([]portalapi.Audit, error) {
	return nil, nil
}

func (f *fakeDetailAPI) ConvertProspect(ctx context.Context, id portalapi.ID) (*portalapi.ConversionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.convertErr != nil {
		return nil, f.convertErr
	}
	f.converted[id]++
	return &portalapi.ConversionResult{ContactID: "contact-1", CustomerID: "customer-1"}, nil
}

func agencyOrg() authz.OrgContext {
	return authz.OrgContext{OrgID: "org-1", OrgType: "agency", ProjectID: "proj-a", Role: "org_admin"}
}

func clientOrg() authz.OrgContext {
	return authz.OrgContext{OrgID: "org-2", OrgType: "client", ProjectID: "proj-a", Role: "member"}
}

func newPanel(t *testing.T, org authz.OrgContext) (*DetailPanel, *ProspectStore, *fakeDetailAPI, *recordingNotifier) {
	t.Helper()
	api := newFakeDetailAPI()
	api.lists["proj-a"] = sampleProspects()
	store := NewProspectStore(api, time.Millisecond)
	require.NoError(t, store.SetProject(context.Background(), "proj-a"))

	notifier := &recordingNotifier{}
	panel := NewDetailPanel(api, store, org, notifier)
	return panel, store, api, notifier
}

func TestSelectLoadsAllSections(t *testing.T) {
	panel, _, api, _ := newPanel(t, agencyOrg())
	api.timelines["p1"] = []portalapi.TimelineEvent{{ID: "t1", Type: "note", Title: "created"}}

	panel.Select(context.Background(), "p1")
	panel.Wait()

	state, ok := panel.Section(SectionTimeline)
	require.True(t, ok)
	assert.False(t, state.Loading)
	require.NoError(t, state.Err)
	events := state.Data.([]portalapi.TimelineEvent)
	require.Len(t, events, 1)
	assert.Equal(t, "created", events[0].Title)

	// Agency tier sees proposals and audits.
	_, ok = panel.Section(SectionProposals)
	assert.True(t, ok)
	_, ok = panel.Section(SectionAudits)
	assert.True(t, ok)
}

func TestClientTierHidesAgencySections(t *testing.T) {
	panel, _, _, _ := newPanel(t, clientOrg())

	panel.Select(context.Background(), "p1")
	panel.Wait()

	_, ok := panel.Section(SectionProposals)
	assert.False(t, ok)
	_, ok = panel.Section(SectionAudits)
	assert.False(t, ok)
	_, ok = panel.Section(SectionTimeline)
	assert.True(t, ok)
}

func TestSectionFailureIsIsolated(t *testing.T) {
	panel, _, api, _ := newPanel(t, clientOrg())
	api.timelineErr = errors.New("timeline backend down")

	panel.Select(context.Background(), "p1")
	panel.Wait()

	timeline, _ := panel.Section(SectionTimeline)
	assert.Error(t, timeline.Err)

	emails, _ := panel.Section(SectionEmails)
	require.NoError(t, emails.Err)
	assert.NotNil(t, emails.Data)
}

func TestLateLoadForSupersededSelectionIsDiscarded(t *testing.T) {
	panel, _, api, _ := newPanel(t, clientOrg())
	api.timelines["p1"] = []portalapi.TimelineEvent{{ID: "t-old", Title: "for p1"}}
	api.timelines["p2"] = []portalapi.TimelineEvent{{ID: "t-new", Title: "for p2"}}

	hold := make(chan struct{})
	api.mu.Lock()
	api.holdTimeline = hold
	api.mu.Unlock()

	panel.Select(context.Background(), "p1")

	// Switch selection while p1's timeline is still loading.
	api.mu.Lock()
	api.holdTimeline = nil
	api.mu.Unlock()
	panel.Select(context.Background(), "p2")
	panel.Wait()
	close(hold)

	current, ok := panel.Current()
	require.True(t, ok)
	assert.Equal(t, portalapi.ID("p2"), current)

	state, ok := panel.Section(SectionTimeline)
	require.True(t, ok)
	require.NoError(t, state.Err)
	events := state.Data.([]portalapi.TimelineEvent)
	require.Len(t, events, 1)
	assert.Equal(t, "for p2", events[0].Title)
}

func TestDeselectClearsState(t *testing.T) {
	panel, _, _, _ := newPanel(t, clientOrg())
	panel.Select(context.Background(), "p1")
	panel.Wait()
	panel.Deselect()

	_, ok := panel.Current()
	assert.False(t, ok)
	_, ok = panel.Section(SectionTimeline)
	assert.False(t, ok)
}

func TestSaveProbabilityClamps(t *testing.T) {
	panel, store, api, _ := newPanel(t, clientOrg())

	require.NoError(t, panel.SaveProbability(context.Background(), "p1", 150))
	p, _ := store.Get("p1")
	assert.Equal(t, 100, p.Probability)

	require.NoError(t, panel.SaveProbability(context.Background(), "p1", -5))
	p, _ = store.Get("p1")
	assert.Equal(t, 0, p.Probability)

	assert.Equal(t, 2, api.updateCalls)
}

func TestSaveNotesEchoesIntoStore(t *testing.T) {
	panel, store, _, notifier := newPanel(t, clientOrg())

	require.NoError(t, panel.SaveNotes(context.Background(), "p1", "call back tuesday"))
	p, _ := store.Get("p1")
	assert.Equal(t, "call back tuesday", p.Notes)
	require.Len(t, notifier.successes, 1)
}

func TestSaveFieldFailureNotifies(t *testing.T) {
	panel, store, api, notifier := newPanel(t, clientOrg())
	api.updateErr = errors.New("rejected")

	err := panel.SaveNotes(context.Background(), "p1", "x")
	require.Error(t, err)
	require.Len(t, notifier.failures, 1)

	p, _ := store.Get("p1")
	assert.Empty(t, p.Notes)
}

func TestSaveStageUsesStoreWritePath(t *testing.T) {
	panel, store, _, _ := newPanel(t, clientOrg())

	require.NoError(t, panel.SaveStage(context.Background(), "p1", "qualified"))
	p, _ := store.Get("p1")
	assert.Equal(t, "qualified", p.PipelineStage)
}

func TestAddNoteAppendsToLoadedSection(t *testing.T) {
	panel, _, _, _ := newPanel(t, clientOrg())
	panel.Select(context.Background(), "p1")
	panel.Wait()

	require.NoError(t, panel.AddNote(context.Background(), "p1", "meeting recap"))

	state, _ := panel.Section(SectionNotes)
	notes := state.Data.([]portalapi.Note)
	require.Len(t, notes, 1)
	assert.Equal(t, "meeting recap", notes[0].Body)
}

func TestConvertIsIdempotent(t *testing.T) {
	panel, store, api, _ := newPanel(t, clientOrg())

	require.NoError(t, panel.Convert(context.Background(), "p3"))
	assert.Equal(t, 1, api.converted["p3"])

	p, _ := store.Get("p3")
	assert.True(t, p.IsConverted())

	// Second conversion is a guarded no-op.
	require.NoError(t, panel.Convert(context.Background(), "p3"))
	assert.Equal(t, 1, api.converted["p3"])
}
