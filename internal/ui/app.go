package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/drylab-ai/drylab/internal/config"
	"github.com/drylab-ai/drylab/internal/drylab"
	"github.com/drylab-ai/drylab/internal/prefs"
	"github.com/drylab-ai/drylab/internal/state"
	"github.com/drylab-ai/drylab/internal/viewer"
)

// screen is the active top-level view.
type screen int

const (
	screenJobs screen = iota
	screenDetail
)

// pane is the focused pane of the job detail screen.
type pane int

const (
	paneFiles pane = iota
	paneLog
	panePreview
)

// Options configures the UI.
type Options struct {
	Context   context.Context
	Client    *drylab.Client
	Jobs      *state.JobList
	Config    config.Config
	Prefs     prefs.Prefs
	PrefsPath string
	Viewer    *viewer.Session
	// JobID opens the detail screen on start.
	JobID string
	// Tick overrides DefaultUIInterval.
	Tick time.Duration
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	client    *drylab.Client
	jobs      *state.JobList
	config    config.Config
	prefs     prefs.Prefs
	prefsPath string
	viewer    *viewer.Session
	downloads *downloadSink
	tick      time.Duration

	// UI state
	theme    Theme
	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	screen   screen
	width    int
	height   int
	ready    bool
	showHelp bool
	pending  int
	notice   string
	noticeAt time.Time

	// Jobs screen
	list       state.ListSnapshot
	selected   int
	selectedID string
	filter     textinput.Model
	filtering  bool

	// Detail screen
	detail     *state.JobDetail
	detailSnap state.DetailSnapshot
	focus      pane
	treeCursor int
	showRaw    bool
	logView    viewport.Model
	logContent string
	preview    viewport.Model
	previewKey string
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	tick := opts.Tick
	if tick <= 0 {
		tick = DefaultUIInterval
	}

	themeName := opts.Prefs.Theme
	if strings.TrimSpace(themeName) == "" {
		themeName = themeOrder[0]
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	filter := textinput.New()
	filter.Prompt = "/"
	filter.Placeholder = "name or id"
	filter.CharLimit = 128

	m := Model{
		ctx:       ctx,
		client:    opts.Client,
		jobs:      opts.Jobs,
		config:    opts.Config,
		prefs:     opts.Prefs,
		prefsPath: prefsPath,
		viewer:    opts.Viewer,
		tick:      tick,
		theme:     GetTheme(themeName),
		keys:      DefaultKeyMap(),
		help:      help.New(),
		spinner:   spinner.New(spinner.WithSpinner(spinner.MiniDot)),
		filter:    filter,
		showRaw:   opts.Prefs.ShowRaw,
		logView:   viewport.New(0, 0),
		preview:   viewport.New(0, 0),
	}
	if opts.Client != nil {
		m.downloads = &downloadSink{client: opts.Client, dir: opts.Config.DownloadDir}
	}
	if m.jobs != nil {
		m.list = m.jobs.Snapshot()
	}
	if id := strings.TrimSpace(opts.JobID); id != "" {
		m.showJob(id)
		m.pending = 1
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnterAltScreen,
		tickCmd(m.tick),
	}
	if m.jobs != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.jobs))
	}
	if m.screen == screenDetail {
		cmds = append(cmds, m.reloadDetailCmd(), m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		m.resizePanes()
		return m, nil

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		m.list = state.ListSnapshot(msg)
		m.clampSelection()
		return m, nil

	case jobsReloadedMsg:
		m.done()
		if m.jobs != nil {
			m.list = m.jobs.Snapshot()
		}
		m.clampSelection()
		return m, nil

	case detailLoadedMsg:
		m.done()
		if m.detail != nil && m.detail.JobID() == msg.jobID {
			m.syncDetail()
		}
		return m, nil

	case treeLoadedMsg:
		m.done()
		if m.detail != nil && m.detail.JobID() == msg.jobID {
			m.syncDetail()
		}
		return m, nil

	case previewMsg:
		m.done()
		if msg.err != nil {
			log.Debug().Err(msg.err).Str("job", msg.jobID).Str("path", msg.path).Msg("preview fetch failed")
			return m, nil
		}
		if m.detail != nil && m.detail.JobID() == msg.jobID {
			m.syncPreview(true)
		}
		return m, nil

	case viewerMsg:
		m.done()
		if msg.err != nil {
			log.Warn().Err(msg.err).Msg("viewer launch failed")
			m.setNotice("Viewer failed: " + msg.err.Error())
			return m, nil
		}
		m.setNotice("Viewer opened " + truncateMiddle(msg.url, 60))
		return m, nil

	case spinner.TickMsg:
		if m.pending == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.filtering {
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	if m.filtering {
		return m.handleFilterKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
			log.Warn().Err(err).Msg("save prefs")
		}
		return m, nil
	}

	switch m.screen {
	case screenDetail:
		return m.handleDetailKey(msg)
	default:
		return m.handleJobsKey(msg)
	}
}

// handleTick re-reads shared state and schedules the next tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{tickCmd(m.tick)}

	if m.jobs != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.jobs))
	}
	if m.screen == screenDetail && m.detail != nil {
		m.syncDetail()
	}
	if m.downloads != nil {
		if notices := m.downloads.drain(); len(notices) > 0 {
			m.setNotice(notices[len(notices)-1])
		}
	}
	if m.notice != "" && time.Since(m.noticeAt) > NoticeTTL {
		m.notice = ""
	}

	return m, tea.Batch(cmds...)
}

// begin marks one background fetch as outstanding and keeps the spinner alive.
func (m *Model) begin() tea.Cmd {
	m.pending++
	if m.pending == 1 {
		return m.spinner.Tick
	}
	return nil
}

func (m *Model) done() {
	if m.pending > 0 {
		m.pending--
	}
}

func (m *Model) setNotice(text string) {
	m.notice = text
	m.noticeAt = time.Now()
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")

	switch m.screen {
	case screenDetail:
		b.WriteString(m.renderDetail())
	default:
		b.WriteString(m.renderJobs())
	}

	return b.String()
}

// Messages

type tickMsg time.Time

type snapshotMsg state.ListSnapshot

type jobsReloadedMsg struct{ err error }

type detailLoadedMsg struct{ jobID string }

type treeLoadedMsg struct {
	jobID string
	err   error
}

type previewMsg struct {
	jobID string
	path  string
	err   error
}

type viewerMsg struct {
	url string
	err error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(jobs *state.JobList) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(jobs.Snapshot())
	}
}

func reloadJobsCmd(ctx context.Context, jobs *state.JobList, f state.JobsFetcher) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		return jobsReloadedMsg{err: jobs.Reload(ctx, f)}
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
