package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/drylab-ai/drylab/internal/logtail"
	"github.com/drylab-ai/drylab/internal/state"
	"github.com/drylab-ai/drylab/internal/tree"
	"github.com/drylab-ai/drylab/internal/viewer"
)

// structureExts are previews that can be handed to the structure viewer.
var structureExts = map[string]bool{
	".pdb": true,
	".cif": true,
}

// showJob switches the detail screen to id. The caller issues the reload.
func (m *Model) showJob(id string) {
	m.closeViewer()
	if m.detail == nil {
		m.detail = state.NewJobDetail(id, m.treeOptions())
	} else {
		m.detail.Tree().ClosePreview()
		m.detail.SetJob(id)
	}
	m.screen = screenDetail
	m.focus = paneFiles
	m.treeCursor = 0
	m.detailSnap = m.detail.Snapshot()
	m.logContent = ""
	m.logView.SetContent("")
	m.previewKey = ""
	m.preview.SetContent("")
}

func (m Model) treeOptions() tree.Options {
	opts := tree.Options{KeepExpanded: m.prefs.KeepExpanded}
	if m.client != nil {
		opts.Files = m.client
	}
	if m.downloads != nil {
		opts.Downloads = m.downloads
	}
	return opts
}

// closeDetail returns to the job list, dropping the preview and any
// structure handed to the viewer.
func (m *Model) closeDetail() {
	if m.detail != nil {
		m.detail.Tree().ClosePreview()
	}
	m.closeViewer()
	m.screen = screenJobs
	m.focus = paneFiles
}

func (m *Model) closeViewer() {
	if m.viewer == nil {
		return
	}
	if err := m.viewer.Close(); err != nil {
		log.Warn().Err(err).Msg("release structure")
	}
}

func (m Model) reloadDetailCmd() tea.Cmd {
	d, client, ctx := m.detail, m.client, m.ctx
	id := d.JobID()
	return func() tea.Msg {
		if client != nil {
			ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
			defer cancel()
			d.Reload(ctx, client)
		}
		return detailLoadedMsg{jobID: id}
	}
}

func (m Model) reloadTreeCmd() tea.Cmd {
	d, client, ctx := m.detail, m.client, m.ctx
	id := d.JobID()
	return func() tea.Msg {
		if client == nil {
			return treeLoadedMsg{jobID: id}
		}
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		return treeLoadedMsg{jobID: id, err: d.ReloadTree(ctx, client)}
	}
}

func (m Model) openPreviewCmd(filePath string) tea.Cmd {
	model, ctx := m.detail.Tree(), m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		err := model.Open(ctx, filePath)
		return previewMsg{jobID: model.JobID(), path: filePath, err: err}
	}
}

func (m Model) viewerCmd(src viewer.Source) tea.Cmd {
	session, ctx := m.viewer, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		h, err := session.Show(ctx, src)
		var url string
		if h != nil {
			url = h.URL
		}
		return viewerMsg{url: url, err: err}
	}
}

// syncDetail pulls the latest detail state into the view.
func (m *Model) syncDetail() {
	if m.detail == nil {
		return
	}
	m.detailSnap = m.detail.Snapshot()
	m.clampTreeCursor()
	m.refreshLogView()
	m.syncPreview(false)
}

func (m *Model) clampTreeCursor() {
	rows := m.detail.Tree().Rows()
	if m.treeCursor >= len(rows) {
		m.treeCursor = len(rows) - 1
	}
	if m.treeCursor < 0 {
		m.treeCursor = 0
	}
}

// refreshLogView updates the log (or raw JSON) pane, following the tail
// when it was already at the bottom.
func (m *Model) refreshLogView() {
	text := m.logText()
	if text == m.logContent {
		return
	}
	follow := m.logView.AtBottom() && !m.showRaw
	m.logContent = text
	m.logView.SetContent(text)
	if follow {
		m.logView.GotoBottom()
	}
}

func (m Model) logText() string {
	job := m.detailSnap.Job
	if job == nil {
		return ""
	}
	if m.showRaw {
		return prettyJSON(job.Raw)
	}
	return strings.Join(logtail.Lines(job.Log(), LogBufferLimit), "\n")
}

// syncPreview mirrors the tree model's preview into the preview pane.
func (m *Model) syncPreview(focus bool) {
	p, ok := m.detail.Tree().Preview()
	if !ok {
		if m.focus == panePreview {
			m.focus = paneFiles
		}
		m.previewKey = ""
		return
	}
	if k := p.Path + "\x00" + p.Content; k != m.previewKey {
		m.previewKey = k
		m.preview.SetContent(p.Content)
		m.preview.GotoTop()
	}
	if focus {
		m.focus = panePreview
	}
}

// viewerSource picks what the viewer shows: the previewed structure file,
// otherwise the job's input structure.
func (m Model) viewerSource() (viewer.Source, bool) {
	if m.detail != nil {
		if p, ok := m.detail.Tree().Preview(); ok && isStructureFile(p.Path) && p.Content != "" {
			return viewer.Source{Text: p.Content}, true
		}
	}
	if job := m.detailSnap.Job; job != nil && strings.TrimSpace(job.PDBData) != "" {
		return viewer.Source{Text: job.PDBData}, true
	}
	return viewer.Source{}, false
}

func isStructureFile(p string) bool {
	return structureExts[strings.ToLower(path.Ext(p))]
}

func (m *Model) cycleFocus() {
	_, hasPreview := m.detail.Tree().Preview()
	switch m.focus {
	case paneFiles:
		if hasPreview {
			m.focus = panePreview
		} else {
			m.focus = paneLog
		}
	default:
		m.focus = paneFiles
	}
}

// handleDetailKey processes keyboard input for the job detail screen.
func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	model := m.detail.Tree()

	switch {
	case key.Matches(msg, m.keys.Back):
		m.closeDetail()
		if m.jobs != nil {
			return m, fetchSnapshotCmd(m.jobs)
		}
		return m, nil

	case key.Matches(msg, m.keys.NextPane):
		m.cycleFocus()
		return m, nil

	case key.Matches(msg, m.keys.Reload):
		return m, tea.Batch(m.reloadDetailCmd(), m.begin())

	case key.Matches(msg, m.keys.RefreshTree):
		return m, tea.Batch(m.reloadTreeCmd(), m.begin())

	case key.Matches(msg, m.keys.ToggleRaw):
		m.showRaw = !m.showRaw
		m.refreshLogView()
		if m.showRaw {
			m.logView.GotoTop()
		} else {
			m.logView.GotoBottom()
		}
		return m, nil

	case key.Matches(msg, m.keys.DownloadAll):
		model.Download(m.ctx, "")
		m.setNotice(fmt.Sprintf("Downloading %s to %s", model.JobID(), m.config.DownloadDir))
		return m, nil

	case key.Matches(msg, m.keys.ClosePreview):
		model.ClosePreview()
		m.closeViewer()
		m.syncPreview(false)
		return m, nil

	case key.Matches(msg, m.keys.View):
		src, ok := m.viewerSource()
		if !ok {
			m.setNotice("No structure to view")
			return m, nil
		}
		if m.viewer == nil {
			m.setNotice("No viewer configured")
			return m, nil
		}
		return m, tea.Batch(m.viewerCmd(src), m.begin())
	}

	var cmd tea.Cmd
	switch m.focus {
	case paneFiles:
		return m.handleFilesKey(msg, model)
	case paneLog:
		m.logView, cmd = m.logView.Update(msg)
	case panePreview:
		m.preview, cmd = m.preview.Update(msg)
	}
	return m, cmd
}

// handleFilesKey navigates the file tree.
func (m Model) handleFilesKey(msg tea.KeyMsg, model *tree.Model) (tea.Model, tea.Cmd) {
	rows := model.Rows()
	if len(rows) == 0 {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		m.treeCursor = max(m.treeCursor-1, 0)
	case key.Matches(msg, m.keys.Down):
		m.treeCursor = min(m.treeCursor+1, len(rows)-1)
	case key.Matches(msg, m.keys.Top):
		m.treeCursor = 0
	case key.Matches(msg, m.keys.Bottom):
		m.treeCursor = len(rows) - 1
	case key.Matches(msg, m.keys.Collapse):
		model.CollapseAll()
		m.clampTreeCursor()
	}

	if m.treeCursor >= len(rows) {
		return m, nil
	}
	node := rows[m.treeCursor].Node

	switch {
	case key.Matches(msg, m.keys.Open):
		if node.IsDir() {
			model.Toggle(node.Path)
			m.clampTreeCursor()
			return m, nil
		}
		return m, tea.Batch(m.openPreviewCmd(node.Path), m.begin())

	case key.Matches(msg, m.keys.Download):
		model.Download(m.ctx, node.Path)
		m.setNotice("Downloading " + truncateMiddle(node.Path, 60))

	case key.Matches(msg, m.keys.CopyPath):
		if err := clipboard.WriteAll(node.Path); err != nil {
			log.Debug().Err(err).Msg("clipboard write failed")
			m.setNotice("Clipboard unavailable")
			return m, nil
		}
		m.setNotice("Copied " + truncateMiddle(node.Path, 60))
	}
	return m, nil
}

type detailLayout struct {
	filesWidth   int
	rightWidth   int
	metaHeight   int
	bottomHeight int
}

func (m Model) layoutDetail() detailLayout {
	height := max(m.height-chromeHeight, 4)
	filesWidth := m.width * 40 / 100
	if m.width >= LayoutExtraWideWidth {
		filesWidth = m.width * 30 / 100
	}
	metaHeight := min(max(height*2/5, 6), 14)
	if metaHeight > height-2 {
		metaHeight = height / 2
	}
	return detailLayout{
		filesWidth:   filesWidth,
		rightWidth:   m.width - filesWidth,
		metaHeight:   metaHeight,
		bottomHeight: height - metaHeight,
	}
}

// resizePanes fits the scrollable panes to the current window.
func (m *Model) resizePanes() {
	l := m.layoutDetail()
	w, h := max(l.rightWidth-2, 0), max(l.bottomHeight-2, 0)
	m.logView.Width, m.logView.Height = w, h
	m.preview.Width, m.preview.Height = w, h
}

// renderDetail renders the job detail screen: files on the left, metadata
// above the log or preview on the right.
func (m Model) renderDetail() string {
	l := m.layoutDetail()
	height := l.metaHeight + l.bottomHeight

	files := m.renderTitledBox(m.filesTitle(), m.renderTree(l.filesWidth-2, height-2),
		l.filesWidth, height, m.focus == paneFiles)
	meta := m.renderTitledBox(m.detailTitle(), m.renderMetadata(l.rightWidth-2),
		l.rightWidth, l.metaHeight, false)

	var bottom string
	if p, ok := m.detail.Tree().Preview(); ok {
		title := "Preview " + truncateMiddle(p.Path, l.rightWidth/2) + " · " + formatBytes(p.Size)
		bottom = m.renderTitledBox(title, m.preview.View(), l.rightWidth, l.bottomHeight, m.focus == panePreview)
	} else {
		title, content := "Log", m.logView.View()
		if m.showRaw {
			title = "Raw JSON"
		}
		if m.logContent == "" {
			content = m.theme.Styles().MutedText.Render(m.emptyLogText())
		}
		bottom = m.renderTitledBox(title, content, l.rightWidth, l.bottomHeight, m.focus == paneLog)
	}

	right := lipgloss.JoinVertical(lipgloss.Left, meta, bottom)
	return lipgloss.JoinHorizontal(lipgloss.Top, files, right)
}

func (m Model) emptyLogText() string {
	switch m.detailSnap.Phase {
	case state.PhaseIdle, state.PhaseLoading:
		return m.spinner.View() + " Loading..."
	case state.PhaseError:
		return ""
	}
	return "No log yet"
}

func (m Model) detailTitle() string {
	if job := m.detailSnap.Job; job != nil {
		return job.DisplayName()
	}
	return m.detailSnap.JobID
}

func (m Model) filesTitle() string {
	files, dirs := m.detail.Tree().Count()
	if files == 0 && dirs == 0 {
		return "Files"
	}
	return fmt.Sprintf("Files (%d)", files)
}

// renderMetadata renders the job fields, or the inline load error.
func (m Model) renderMetadata(width int) string {
	styles := m.theme.Styles()
	snap := m.detailSnap

	if snap.Job == nil {
		switch snap.Phase {
		case state.PhaseError:
			return styles.DangerText.Render(snap.Error)
		default:
			return styles.MutedText.Render(m.spinner.View() + " Loading job...")
		}
	}
	job := snap.Job

	label := func(s string) string { return styles.MutedText.Width(10).Render(s) }
	value := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return styles.FaintText.Render("-")
		}
		return styles.Text.Render(truncate(s, max(width-11, 8)))
	}

	lines := []string{
		label("Status") + styles.StatusStyle(job.Status).Render(statusLabel(job.Status)),
		label("ID") + value(job.ID),
		label("Type") + value(job.JobType),
		label("Created") + value(formatCreated(job.CreatedTime(), time.Now())),
		label("Ligand") + value(job.Ligand),
		label("Contigs") + value(job.Contigs),
	}
	if job.PDBData != "" {
		lines = append(lines, label("Input")+value(fmt.Sprintf("%d lines (v to view)", strings.Count(job.PDBData, "\n")+1)))
	}
	for i, site := range job.ActiveSiteAtoms {
		name := ""
		if i == 0 {
			name = "Sites"
		}
		lines = append(lines, label(name)+value(site.Residue+": "+site.Atoms))
	}
	if snap.Phase == state.PhaseError {
		lines = append([]string{styles.DangerText.Render(snap.Error)}, lines...)
	}
	return strings.Join(lines, "\n")
}

// renderTree renders the visible tree rows around the cursor.
func (m Model) renderTree(width, height int) string {
	styles := m.theme.Styles()
	rows := m.detail.Tree().Rows()
	if len(rows) == 0 {
		switch m.detailSnap.TreePhase {
		case state.PhaseIdle, state.PhaseLoading:
			return styles.MutedText.Render(m.spinner.View() + " Loading files...")
		default:
			return styles.MutedText.Render("No files")
		}
	}

	start := 0
	if height > 0 && m.treeCursor >= height {
		start = m.treeCursor - height + 1
	}
	end := len(rows)
	if height > 0 {
		end = min(end, start+height)
	}

	focused := m.focus == paneFiles
	bgColor := m.theme.SurfaceAlt
	if focused {
		bgColor = m.theme.FocusBg
	}

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		r := rows[i]
		rowBg := bgColor
		if i == m.treeCursor {
			rowBg = m.theme.SelectionBg
		}
		bg := NewBgStyle(rowBg)

		icon := "  "
		name := r.Node.Name
		nameStyle := styles.Text
		switch {
		case r.Node.IsDir() && r.Expanded:
			icon, name, nameStyle = "▾ ", name+"/", styles.AccentText
		case r.Node.IsDir():
			icon, name, nameStyle = "▸ ", name+"/", styles.AccentText
		}
		if i == m.treeCursor {
			nameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.SelectionText)).Bold(true)
		}

		size := ""
		if r.Node.Size != nil {
			size = formatBytes(*r.Node.Size)
		}
		indent := strings.Repeat("  ", r.Depth)
		nameWidth := max(width-len(indent)-2-len(size)-1, 4)

		line := bg.Spaces(len(indent)+1) + bg.Render(icon, styles.FaintText) + bg.Render(truncate(name, nameWidth), nameStyle)
		if size != "" {
			line += bg.Space() + bg.Render(size, styles.FaintText)
		}
		lines = append(lines, lipgloss.NewStyle().Background(lipgloss.Color(rowBg)).Width(width).Render(line))
	}
	return strings.Join(lines, "\n")
}

func prettyJSON(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
