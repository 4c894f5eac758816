package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/drylab-ai/drylab/internal/drylab"
	"github.com/drylab-ai/drylab/internal/state"
)

// visibleJobs returns the jobs matching the filter, in list order.
func (m Model) visibleJobs() []drylab.Job {
	query := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	if query == "" {
		return m.list.Jobs
	}
	out := make([]drylab.Job, 0, len(m.list.Jobs))
	for _, job := range m.list.Jobs {
		if strings.Contains(strings.ToLower(job.DisplayName()), query) ||
			strings.Contains(strings.ToLower(job.ID), query) {
			out = append(out, job)
		}
	}
	return out
}

// selectedJob returns the job under the cursor.
func (m Model) selectedJob() (drylab.Job, bool) {
	jobs := m.visibleJobs()
	if m.selected < 0 || m.selected >= len(jobs) {
		return drylab.Job{}, false
	}
	return jobs[m.selected], true
}

// clampSelection keeps the cursor on the same job id across refreshes.
func (m *Model) clampSelection() {
	jobs := m.visibleJobs()
	if len(jobs) == 0 {
		m.selected = 0
		return
	}
	if m.selectedID != "" {
		for i, job := range jobs {
			if job.ID == m.selectedID {
				m.selected = i
				return
			}
		}
	}
	if m.selected >= len(jobs) {
		m.selected = len(jobs) - 1
	}
	m.selectedID = jobs[m.selected].ID
}

func (m *Model) moveSelection(to int) {
	jobs := m.visibleJobs()
	if len(jobs) == 0 {
		return
	}
	m.selected = min(max(to, 0), len(jobs)-1)
	m.selectedID = jobs[m.selected].ID
}

// handleJobsKey processes keyboard input for the jobs screen.
func (m Model) handleJobsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.moveSelection(m.selected - 1)
	case key.Matches(msg, m.keys.Down):
		m.moveSelection(m.selected + 1)
	case key.Matches(msg, m.keys.Top):
		m.moveSelection(0)
	case key.Matches(msg, m.keys.Bottom):
		m.moveSelection(len(m.visibleJobs()) - 1)

	case key.Matches(msg, m.keys.Open):
		job, ok := m.selectedJob()
		if !ok {
			return m, nil
		}
		m.showJob(job.ID)
		return m, tea.Batch(m.reloadDetailCmd(), m.begin())

	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		return m, m.filter.Focus()

	case key.Matches(msg, m.keys.Reload):
		if m.jobs == nil || m.client == nil {
			return m, nil
		}
		return m, tea.Batch(reloadJobsCmd(m.ctx, m.jobs, m.client), m.begin())

	case key.Matches(msg, m.keys.Back):
		if m.filter.Value() != "" {
			m.filter.SetValue("")
			m.clampSelection()
		}
	}
	return m, nil
}

// handleFilterKey edits the job filter until enter or esc.
func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filtering = false
		m.filter.Blur()
		m.selected = 0
		m.clampSelection()
		return m, nil
	case tea.KeyEsc:
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.clampSelection()
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.selected = 0
	m.selectedID = ""
	m.clampSelection()
	return m, cmd
}

// renderJobs renders the job list screen.
func (m Model) renderJobs() string {
	styles := m.theme.Styles()
	contentHeight := m.height - chromeHeight

	jobs := m.visibleJobs()
	var content string
	switch {
	case len(m.list.Jobs) == 0 && m.list.Phase == state.PhaseError:
		content = styles.DangerText.Render("Gateway unreachable. Retrying...")
	case len(m.list.Jobs) == 0 && (m.list.Phase == state.PhaseIdle || m.list.Phase == state.PhaseLoading):
		content = styles.MutedText.Render(m.spinner.View() + " Loading jobs...")
	case len(m.list.Jobs) == 0:
		content = styles.MutedText.Render("No jobs yet")
	case len(jobs) == 0:
		content = styles.MutedText.Render("No jobs match the filter")
	default:
		content = m.renderJobRows(jobs, m.width-2, contentHeight-2)
	}

	return m.renderTitledBox(m.jobsTitle(len(jobs)), content, m.width, contentHeight, true)
}

// renderJobRows renders the rows around the cursor that fit in height.
func (m Model) renderJobRows(jobs []drylab.Job, width, height int) string {
	start := 0
	if height > 0 && m.selected >= height {
		start = m.selected - height + 1
	}
	end := len(jobs)
	if height > 0 {
		end = min(end, start+height)
	}

	now := time.Now()
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		selected := i == m.selected
		bgColor := m.theme.FocusBg
		if selected {
			bgColor = m.theme.SelectionBg
		}
		content := m.formatJobRow(jobs[i], width, bgColor, selected, now)
		lines = append(lines, lipgloss.NewStyle().
			Background(lipgloss.Color(bgColor)).
			Width(width).
			Render(content))
	}
	return strings.Join(lines, "\n")
}

// formatJobRow formats one row: "Status  Name  id · created".
func (m Model) formatJobRow(job drylab.Job, width int, bgColor string, selected bool, now time.Time) string {
	bg := NewBgStyle(bgColor)
	styles := m.theme.Styles()

	badge := styles.StatusStyle(job.Status).Width(12).Render(truncate(statusLabel(job.Status), 10))
	created := formatCreated(job.CreatedTime(), now)
	idStr := job.ID
	if job.DisplayName() == job.ID {
		idStr = ""
	}

	metaWidth := lipgloss.Width(created) + 3
	if idStr != "" {
		metaWidth += len(idStr) + 1
	}
	nameWidth := max(width-lipgloss.Width(badge)-metaWidth-2, 8)

	var nameStyle, metaStyle lipgloss.Style
	if selected {
		sel := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.SelectionText))
		nameStyle, metaStyle = sel.Bold(true), sel
	} else {
		nameStyle, metaStyle = styles.Text, styles.MutedText
	}

	parts := badge + bg.Space() + bg.Render(truncate(job.DisplayName(), nameWidth), nameStyle)
	if idStr != "" {
		parts += bg.Space() + bg.Render(idStr, metaStyle)
	}
	return parts + bg.Render(" · ", styles.FaintText) + bg.Render(created, metaStyle)
}

// jobsTitle returns the list pane title with an optional filter indicator.
func (m Model) jobsTitle(visible int) string {
	total := len(m.list.Jobs)
	if strings.TrimSpace(m.filter.Value()) == "" {
		return fmt.Sprintf("Jobs (%d)", total)
	}
	return fmt.Sprintf("Jobs (%d/%d) /%s", visible, total, m.filter.Value())
}
