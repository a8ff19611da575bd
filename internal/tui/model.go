package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ignite/agency-portal/internal/crm"
	"github.com/ignite/agency-portal/internal/notify"
	"github.com/ignite/agency-portal/internal/portalapi"
)

// refreshMsg is sent whenever the prospect store's data changed.
type refreshMsg struct{}

// toastMsg delivers a notification through the bubbletea loop.
type toastMsg struct {
	toast notify.Toast
}

// moveDoneMsg is sent when an asynchronous stage move completes. On failure
// the store has already reverted and the notifier carries the error toast.
type moveDoneMsg struct {
	err error
}

// fetchDoneMsg is sent when the initial prospect fetch completes.
type fetchDoneMsg struct {
	err error
}

// detailDoneMsg is sent when every detail section for a selection settled.
type detailDoneMsg struct {
	id portalapi.ID
}

// Model is the kanban board TUI.
type Model struct {
	store    *crm.ProspectStore
	registry *crm.StageRegistry
	kanban   *crm.KanbanController
	detail   *crm.DetailPanel
	center   *notify.Center

	theme Theme
	keys  KeyMap

	width  int
	height int

	col int
	row int

	grabbed    bool
	showDetail bool

	searching bool
	search    textinput.Model

	lastToast *notify.Toast

	refreshCh chan struct{}
	toastCh   chan notify.Toast
}

// NewModel builds the board model and hooks the store and notification
// center into the bubbletea message loop.
func NewModel(store *crm.ProspectStore, registry *crm.StageRegistry, kanban *crm.KanbanController, detail *crm.DetailPanel, center *notify.Center) *Model {
	search := textinput.New()
	search.Placeholder = "name, email, company..."
	search.CharLimit = 80
	search.Width = 32

	m := &Model{
		store:     store,
		registry:  registry,
		kanban:    kanban,
		detail:    detail,
		center:    center,
		theme:     DefaultTheme(),
		keys:      DefaultKeyMap(),
		search:    search,
		refreshCh: make(chan struct{}, 1),
		toastCh:   make(chan notify.Toast, 8),
	}

	store.Subscribe(func() {
		select {
		case m.refreshCh <- struct{}{}:
		default:
		}
	})
	center.OnToast(func(t notify.Toast) {
		select {
		case m.toastCh <- t:
		default:
		}
	})
	return m
}

// Init fetches the initial prospect list and starts the channel pumps.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchCmd(), m.waitRefresh(), m.waitToast())
}

func (m *Model) fetchCmd() tea.Cmd {
	projectID := m.store.ProjectID()
	return func() tea.Msg {
		err := m.store.Fetch(context.Background(), portalapi.ProspectListParams{ProjectID: projectID})
		return fetchDoneMsg{err: err}
	}
}

func (m *Model) waitRefresh() tea.Cmd {
	return func() tea.Msg {
		<-m.refreshCh
		return refreshMsg{}
	}
}

func (m *Model) waitToast() tea.Cmd {
	return func() tea.Msg {
		return toastMsg{toast: <-m.toastCh}
	}
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case fetchDoneMsg:
		if msg.err != nil && msg.err != crm.ErrStaleResponse {
			m.center.Failure("Failed to load prospects: " + msg.err.Error())
		}
		m.clampCursor()
		return m, nil

	case refreshMsg:
		m.clampCursor()
		return m, m.waitRefresh()

	case toastMsg:
		t := msg.toast
		m.lastToast = &t
		return m, m.waitToast()

	case moveDoneMsg:
		m.grabbed = false
		m.clampCursor()
		return m, nil

	case detailDoneMsg:
		// Sections are read straight off the panel at render time; the
		// message only forces a repaint once they settled.
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateBoard(msg)
	}
	return m, nil
}

func (m *Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.store.SearchDebounced("")
		return m, nil
	case msg.Type == tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.store.SearchDebounced(m.search.Value())
	return m, cmd
}

func (m *Model) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Left):
		m.moveColumn(-1)
	case key.Matches(msg, m.keys.Right):
		m.moveColumn(1)
	case key.Matches(msg, m.keys.Up):
		if m.row > 0 {
			m.row--
		}
	case key.Matches(msg, m.keys.Down):
		m.row++
		m.clampCursor()

	case key.Matches(msg, m.keys.Grab):
		return m.toggleGrab()

	case key.Matches(msg, m.keys.Advance):
		if p, ok := m.cursorProspect(); ok && m.kanban.HasNextStage(p.ID) {
			id := p.ID
			return m, func() tea.Msg {
				return moveDoneMsg{err: m.kanban.MoveToNextStage(context.Background(), id)}
			}
		}

	case key.Matches(msg, m.keys.Select):
		if p, ok := m.cursorProspect(); ok {
			m.kanban.ToggleSelect(p.ID)
		}

	case key.Matches(msg, m.keys.Detail):
		return m.toggleDetail()

	case key.Matches(msg, m.keys.ShowClosed):
		m.kanban.ToggleShowClosed()
		m.col = 0
		m.row = 0

	case key.Matches(msg, m.keys.ExpandClosed):
		m.kanban.ToggleClosedExpanded()
		m.clampCursor()

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.search.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetchCmd()

	case key.Matches(msg, m.keys.Cancel):
		switch {
		case m.grabbed:
			m.kanban.OnDragEnd()
			m.grabbed = false
		case m.showDetail:
			m.showDetail = false
			m.detail.Deselect()
		default:
			m.kanban.ClearSelection()
		}
	}
	return m, nil
}

func (m *Model) toggleDetail() (tea.Model, tea.Cmd) {
	if m.showDetail {
		m.showDetail = false
		m.detail.Deselect()
		return m, nil
	}
	p, ok := m.cursorProspect()
	if !ok {
		return m, nil
	}
	m.showDetail = true
	id := p.ID
	return m, func() tea.Msg {
		m.detail.Select(context.Background(), id)
		m.detail.Wait()
		return detailDoneMsg{id: id}
	}
}

func (m *Model) toggleGrab() (tea.Model, tea.Cmd) {
	if !m.grabbed {
		if p, ok := m.cursorProspect(); ok {
			m.kanban.OnDragStart(p.ID)
			m.grabbed = true
		}
		return m, nil
	}

	cols := m.columns()
	if m.col >= len(cols) {
		m.kanban.OnDragEnd()
		m.grabbed = false
		return m, nil
	}
	target := cols[m.col].Key
	id, ok := m.kanban.Dragging()
	if !ok {
		m.grabbed = false
		return m, nil
	}
	return m, func() tea.Msg {
		return moveDoneMsg{err: m.kanban.OnDrop(context.Background(), id, target)}
	}
}

func (m *Model) moveColumn(delta int) {
	cols := m.columns()
	if len(cols) == 0 {
		return
	}
	m.col += delta
	if m.col < 0 {
		m.col = 0
	}
	if m.col >= len(cols) {
		m.col = len(cols) - 1
	}
	if m.grabbed {
		m.kanban.OnDragOverTarget(cols[m.col].Key)
	}
	m.clampCursor()
}

func (m *Model) columns() []crm.PipelineStage {
	return m.kanban.Columns()
}

func (m *Model) grouped() map[string][]portalapi.Prospect {
	visible := crm.FilterActive(m.store.Prospects(), m.registry, m.kanban.ShowClosed())
	return crm.GroupByStage(visible, m.registry.Keys())
}

func (m *Model) cursorProspect() (portalapi.Prospect, bool) {
	cols := m.columns()
	if m.col >= len(cols) {
		return portalapi.Prospect{}, false
	}
	bucket := m.grouped()[cols[m.col].Key]
	if m.row >= len(bucket) {
		return portalapi.Prospect{}, false
	}
	return bucket[m.row], true
}

func (m *Model) clampCursor() {
	cols := m.columns()
	if len(cols) == 0 {
		m.col, m.row = 0, 0
		return
	}
	if m.col >= len(cols) {
		m.col = len(cols) - 1
	}
	bucket := m.grouped()[cols[m.col].Key]
	if m.row >= len(bucket) {
		m.row = len(bucket) - 1
	}
	if m.row < 0 {
		m.row = 0
	}
}

// View renders the board.
func (m *Model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	cols := m.columns()
	grouped := m.grouped()
	summary := m.store.Summary()

	header := m.theme.Header.Render(fmt.Sprintf(
		"Pipeline — %d prospects, $%s weighted",
		summary.Total,
		crm.WeightedPipelineValue(m.store.Prospects()).StringFixed(0),
	))
	if m.searching || m.search.Value() != "" {
		header += m.theme.StatusBar.Render(" search: " + m.search.View())
	}

	colWidth := m.width/max(len(cols), 1) - 4
	if colWidth < 18 {
		colWidth = 18
	}

	rendered := make([]string, 0, len(cols))
	for ci, stage := range cols {
		bucket := grouped[stage.Key]

		title := m.theme.ColumnTitle.
			Foreground(stageColor(stage.Color)).
			Render(fmt.Sprintf("%s %s (%d)", iconGlyph(stage.Icon), stage.Label, len(bucket)))

		lines := []string{title}
		for ri, p := range bucket {
			style := m.theme.Card
			switch {
			case m.grabbed && ci == m.col && ri == m.row:
				style = m.theme.CardDragging
			case ci == m.col && ri == m.row:
				style = m.theme.CardCursor
			case m.kanban.Selected(p.ID):
				style = m.theme.CardSelected
			}
			lines = append(lines, style.Width(colWidth).Render(cardLine(p, colWidth)))
		}

		colStyle := m.theme.Column
		if m.grabbed && m.kanban.HoverStage() == stage.Key {
			colStyle = m.theme.ColumnHover
		}
		rendered = append(rendered, colStyle.Width(colWidth).Render(strings.Join(lines, "\n")))
	}

	if m.kanban.ShowClosed() && !m.kanban.ClosedExpanded() {
		rendered = append(rendered, m.closedStrip(colWidth))
	}

	board := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
	if m.showDetail {
		board = lipgloss.JoinHorizontal(lipgloss.Top, board, m.detailPane())
	}

	var footer string
	if m.lastToast != nil {
		style := m.theme.ToastInfo
		switch m.lastToast.Kind {
		case notify.KindSuccess:
			style = m.theme.ToastSuccess
		case notify.KindError:
			style = m.theme.ToastError
		}
		footer = style.Render(m.lastToast.Message)
	}
	help := m.theme.Help.Render("space grab/drop · enter advance · x select · d detail · c closed · / search · r refresh · q quit")

	return strings.Join([]string{header, board, footer, help}, "\n")
}

// closedStrip renders the collapsed closed stages: one count line each,
// with the expand hint instead of card lists.
func (m *Model) closedStrip(width int) string {
	lines := []string{m.theme.ColumnTitle.Render("Closed")}
	for _, s := range m.kanban.ClosedSummaries() {
		lines = append(lines, m.theme.Card.Render(fmt.Sprintf(
			"%s %s (%d)", iconGlyph(s.Stage.Icon), s.Stage.Label, s.Count)))
	}
	lines = append(lines, m.theme.Help.Render("e expand"))
	return m.theme.Column.Width(width).Render(strings.Join(lines, "\n"))
}

func cardLine(p portalapi.Prospect, width int) string {
	name := p.Name
	if name == "" {
		name = p.Company
	}
	line := name
	if p.DealValue != nil && !p.DealValue.IsZero() {
		line += " $" + p.DealValue.StringFixed(0)
	}
	if runes := []rune(line); len(runes) > width {
		line = string(runes[:width-1]) + "…"
	}
	return line
}
