package tui

import (
	"fmt"
	"strings"

	"github.com/ignite/agency-portal/internal/crm"
	"github.com/ignite/agency-portal/internal/portalapi"
)

// detailSections is the render order of the pane. Sections the panel never
// loaded (agency tier, or not yet selected) are skipped.
var detailSections = []struct {
	sec   crm.Section
	title string
}{
	{crm.SectionTimeline, "Timeline"},
	{crm.SectionEmails, "Emails"},
	{crm.SectionCalls, "Calls"},
	{crm.SectionNotes, "Notes"},
	{crm.SectionCustomFields, "Fields"},
	{crm.SectionProposals, "Proposals"},
	{crm.SectionAudits, "Audits"},
}

const detailWidth = 44

// detailPane renders the selected prospect's side panel. Each section shows
// its own load state, so one failed sub-resource never blanks the rest.
func (m *Model) detailPane() string {
	id, ok := m.detail.Current()
	if !ok {
		return ""
	}

	var b strings.Builder
	if p, found := m.store.Get(id); found {
		b.WriteString(m.theme.DetailTitle.Render(cardLine(p, detailWidth)))
		b.WriteString("\n")
		if p.Email != "" {
			b.WriteString(p.Email + "\n")
		}
		if stage, known := m.registry.ByKey(p.PipelineStage); known {
			b.WriteString(fmt.Sprintf("%s %s · %d%%\n", iconGlyph(stage.Icon), stage.Label, p.Probability))
		}
	}

	for _, entry := range detailSections {
		state, loaded := m.detail.Section(entry.sec)
		if !loaded {
			continue
		}
		b.WriteString("\n" + m.theme.DetailTitle.Render(entry.title) + "\n")
		switch {
		case state.Loading:
			b.WriteString("  loading...\n")
		case state.Err != nil:
			b.WriteString(m.theme.ToastError.Render("unavailable") + "\n")
		default:
			b.WriteString(sectionLines(state.Data))
		}
	}

	return m.theme.Detail.Width(detailWidth).Render(strings.TrimRight(b.String(), "\n"))
}

// sectionLines formats a settled section's records, a line per record.
func sectionLines(data any) string {
	var b strings.Builder
	switch items := data.(type) {
	case []portalapi.TimelineEvent:
		for _, e := range firstN(items, 5) {
			b.WriteString(fmt.Sprintf("  %s %s — %s\n",
				e.OccurredAt.Format("Jan 2"), e.ActorName, e.Title))
		}
	case []portalapi.EmailThread:
		for _, e := range firstN(items, 5) {
			line := fmt.Sprintf("  %s (%d)", e.Subject, e.MessageCnt)
			if e.Sentiment != "" {
				line += " · " + e.Sentiment
			}
			b.WriteString(line + "\n")
		}
	case []portalapi.CallRecord:
		for _, c := range firstN(items, 5) {
			b.WriteString(fmt.Sprintf("  %s %s, %ds\n",
				c.CalledAt.Format("Jan 2"), c.Outcome, c.Duration))
		}
	case []portalapi.Note:
		for _, n := range firstN(items, 3) {
			b.WriteString(fmt.Sprintf("  %s: %s\n", n.Author, truncate(n.Body, 32)))
		}
	case []portalapi.CustomFieldDef:
		for _, f := range items {
			b.WriteString(fmt.Sprintf("  %s (%s)\n", f.Label, f.Type))
		}
	case []portalapi.Proposal:
		for _, p := range items {
			b.WriteString(fmt.Sprintf("  %s — %s $%s\n",
				p.Title, p.Status, p.Amount.StringFixed(0)))
		}
	case []portalapi.Audit:
		for _, a := range items {
			b.WriteString(fmt.Sprintf("  %s: %d/100\n", a.Kind, a.Score))
		}
	}
	if b.Len() == 0 {
		return "  none\n"
	}
	return b.String()
}

// firstN caps a newest-first list at n entries.
func firstN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
