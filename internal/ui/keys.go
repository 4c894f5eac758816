package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Back       key.Binding

	// Navigation
	Up       key.Binding
	Down     key.Binding
	Top      key.Binding
	Bottom   key.Binding
	Open     key.Binding
	NextPane key.Binding

	// Jobs
	Filter key.Binding
	Reload key.Binding

	// Job detail
	RefreshTree  key.Binding
	Collapse     key.Binding
	Download     key.Binding
	DownloadAll  key.Binding
	CopyPath     key.Binding
	ToggleRaw    key.Binding
	View         key.Binding
	ClosePreview key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "e"),
			key.WithHelp("e", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "q"),
			key.WithHelp("esc", "Back to jobs"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter", "l", "right"),
			key.WithHelp("enter", "Open"),
		),
		NextPane: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Next pane"),
		),

		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "Filter"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Reload"),
		),

		RefreshTree: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "Refresh files"),
		),
		Collapse: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Collapse all"),
		),
		Download: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Download"),
		),
		DownloadAll: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "Download all"),
		),
		CopyPath: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "Copy path"),
		),
		ToggleRaw: key.NewBinding(
			key.WithKeys("J"),
			key.WithHelp("J", "Raw JSON"),
		),
		View: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "Open in viewer"),
		),
		ClosePreview: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Close preview"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.Open, k.NextPane, k.Back},
		{k.Filter, k.Reload},
		{k.RefreshTree, k.Collapse, k.Download, k.DownloadAll, k.CopyPath, k.ToggleRaw, k.View, k.ClosePreview},
		{k.CycleTheme, k.Help, k.Quit},
	}
}

// screenKeys narrows the command bar hints to the active screen.
type screenKeys struct {
	keys   keyMap
	detail bool
}

func (s screenKeys) ShortHelp() []key.Binding {
	k := s.keys
	if s.detail {
		return []key.Binding{k.Open, k.NextPane, k.Download, k.DownloadAll, k.View, k.ToggleRaw, k.RefreshTree, k.Back, k.Help}
	}
	return []key.Binding{k.Open, k.Filter, k.Reload, k.CycleTheme, k.Help, k.Quit}
}

func (s screenKeys) FullHelp() [][]key.Binding {
	return s.keys.FullHelp()
}
