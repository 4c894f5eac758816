package tree

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/drylab-ai/drylab/internal/drylab"
)

// FileFetcher loads the preview of one file. *drylab.Client implements it.
type FileFetcher interface {
	GetFile(ctx context.Context, jobID, path string) (drylab.FilePreview, error)
}

// Downloader saves one path of a job (empty path: the whole job).
type Downloader interface {
	Download(ctx context.Context, jobID, path string) error
}

// Preview is the file currently shown next to the tree.
type Preview struct {
	Path    string
	Content string
	Size    int64
}

// Row is one visible line of the flattened tree.
type Row struct {
	Node     Node
	Depth    int
	Expanded bool
}

// Options configure a Model.
type Options struct {
	JobID     string
	Files     FileFetcher
	Downloads Downloader
	// KeepExpanded carries expansion across Replace for paths that still
	// exist. By default a refresh collapses everything.
	KeepExpanded bool
}

// Model is the client-side tree for one job. It is safe for concurrent use;
// overlapping Open calls resolve last-writer-wins.
type Model struct {
	mu           sync.RWMutex
	jobID        string
	files        FileFetcher
	downloads    Downloader
	keepExpanded bool

	nodes    []Node
	expanded map[string]bool
	preview  *Preview
}

// New builds an empty Model.
func New(opts Options) *Model {
	return &Model{
		jobID:        opts.JobID,
		files:        opts.Files,
		downloads:    opts.Downloads,
		keepExpanded: opts.KeepExpanded,
		expanded:     map[string]bool{},
	}
}

// JobID is the job this tree belongs to.
func (m *Model) JobID() string {
	return m.jobID
}

// Replace swaps in a freshly fetched listing.
func (m *Model) Replace(nodes []Node) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nodes = nodes
	if !m.keepExpanded {
		m.expanded = map[string]bool{}
		return
	}
	present := map[string]Kind{}
	paths(nodes, present)
	kept := map[string]bool{}
	for p := range m.expanded {
		if kind, ok := present[p]; ok && kind == KindDir {
			kept[p] = true
		}
	}
	m.expanded = kept
}

// Nodes returns the top-level nodes.
func (m *Model) Nodes() []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nodes
}

// Empty reports whether the listing has no nodes.
func (m *Model) Empty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes) == 0
}

// Toggle flips expansion of the directory at path and reports whether it
// is now expanded. Files, unknown paths and directories without children
// are left alone. No network call is made.
func (m *Model) Toggle(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	node, ok := FindByPath(m.nodes, path)
	if !ok || !node.Expandable() {
		return false
	}
	if m.expanded[path] {
		delete(m.expanded, path)
		return false
	}
	m.expanded[path] = true
	return true
}

// Expanded reports whether path is expanded.
func (m *Model) Expanded(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expanded[path]
}

// CollapseAll clears all expansion state.
func (m *Model) CollapseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expanded = map[string]bool{}
}

// Rows flattens the visible part of the tree depth-first.
func (m *Model) Rows() []Row {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows []Row
	var walk func(nodes []Node, depth int)
	walk = func(nodes []Node, depth int) {
		for _, n := range nodes {
			open := m.expanded[n.Path]
			rows = append(rows, Row{Node: n, Depth: depth, Expanded: open})
			if open && n.Expandable() {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(m.nodes, 0)
	return rows
}

// Open fetches path and makes it the preview. On failure the current
// preview is kept and the error is returned for logging only.
func (m *Model) Open(ctx context.Context, path string) error {
	if m.files == nil {
		return nil
	}
	fp, err := m.files.GetFile(ctx, m.jobID, path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.preview = &Preview{Path: fp.Path, Content: fp.Content, Size: fp.Size}
	m.mu.Unlock()
	return nil
}

// Preview returns the current preview, if any.
func (m *Model) Preview() (Preview, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.preview == nil {
		return Preview{}, false
	}
	return *m.preview, true
}

// ClosePreview drops the current preview.
func (m *Model) ClosePreview() {
	m.mu.Lock()
	m.preview = nil
	m.mu.Unlock()
}

// Download hands path to the Downloader in the background. The model keeps
// no record of it; failures are only logged.
func (m *Model) Download(ctx context.Context, path string) {
	if m.downloads == nil {
		return
	}
	jobID := m.jobID
	go func() {
		if err := m.downloads.Download(ctx, jobID, path); err != nil {
			log.Warn().Err(err).Str("job", jobID).Str("path", path).Msg("download failed")
		}
	}()
}

// Find resolves path in the current listing.
func (m *Model) Find(path string) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return FindByPath(m.nodes, path)
}

// Count returns the number of files and directories in the listing.
func (m *Model) Count() (files, dirs int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return CountNodes(m.nodes)
}
