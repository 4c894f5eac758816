package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/drylab-ai/drylab/internal/state"
)

// renderHeader renders the status bar: logo, job counts, gateway state and
// the latest notice.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < LayoutCompactWidth

	parts := []string{bg.Render("drylab", styles.Logo)}

	switch {
	case m.list.IsOffline():
		parts = append(parts,
			bg.Render("GATEWAY UNREACHABLE", styles.DangerText),
			bg.Render("Retrying...", styles.WarningText.Bold(true)))
	case m.list.LastError != nil:
		parts = append(parts, bg.Render("● DEGRADED", styles.WarningText))
	case m.list.Phase == state.PhaseIdle:
		parts = append(parts, bg.Render("Connecting...", styles.WarningText.Bold(true)))
	default:
		parts = append(parts, bg.Render("● ON", styles.SuccessText))
	}

	finished, running := m.countByClass()
	parts = append(parts,
		bg.Render("Jobs:", styles.MutedText)+bg.Space()+bg.Render(fmt.Sprintf("%d", len(m.list.Jobs)), styles.Text))
	if !compact {
		parts = append(parts,
			bg.Render("Running:", styles.MutedText)+bg.Space()+bg.Render(fmt.Sprintf("%d", running), styles.InfoText),
			bg.Render("Done:", styles.MutedText)+bg.Space()+bg.Render(fmt.Sprintf("%d", finished), styles.SuccessText))
	}

	if backend := m.backendLabel(); backend != "" {
		parts = append(parts, bg.Render("backend", styles.FaintText)+bg.Space()+
			bg.Render(truncateMiddle(backend, 40), styles.MutedText))
	}

	if m.pending > 0 {
		parts = append(parts, bg.Render(m.spinner.View(), styles.AccentText))
	}

	if m.notice != "" {
		parts = append(parts, bg.Render(truncate(m.notice, max(m.width/2, 20)), styles.InfoText))
	} else if !m.list.LastUpdated.IsZero() && !compact {
		parts = append(parts, bg.Render("updated", styles.FaintText)+bg.Space()+
			bg.Render(m.list.LastUpdated.Format("15:04:05"), styles.MutedText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

// renderCommandBar renders the key hints for the active screen.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles()
	h := m.help
	h.Styles.ShortKey = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Warning)).Background(lipgloss.Color(m.theme.Surface))
	h.Styles.ShortDesc = styles.MutedText.Background(lipgloss.Color(m.theme.Surface))
	h.Styles.ShortSeparator = styles.FaintText.Background(lipgloss.Color(m.theme.Surface))

	var content string
	if m.filtering {
		content = m.filter.View()
	} else {
		content = h.View(screenKeys{keys: m.keys, detail: m.screen == screenDetail})
	}
	return styles.Footer.Width(m.width).Render(content)
}

// countByClass counts finished and running jobs in the current list.
func (m Model) countByClass() (finished, running int) {
	for _, job := range m.list.Jobs {
		switch classifyStatus(job.Status) {
		case statusFinished:
			finished++
		case statusRunning:
			running++
		}
	}
	return finished, running
}

func (m Model) backendLabel() string {
	if m.client == nil {
		return ""
	}
	return strings.TrimSpace(m.client.Backend())
}
