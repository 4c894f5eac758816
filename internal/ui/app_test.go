package ui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/drylab-ai/drylab/internal/drylab"
	"github.com/drylab-ai/drylab/internal/prefs"
	"github.com/drylab-ai/drylab/internal/state"
	"github.com/drylab-ai/drylab/internal/viewer"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return out, cmd
}

// newBackend serves the gateway routes the browser uses for job-1.
func newBackend(t *testing.T, treeStatus int) *drylab.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/jobs/job-1", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "job-1", "name": "alpha", "status": "completed", "job_type": "rfdiffusion",
			"pdb_data": "ATOM input", "results": map[string]any{"log": "step 1\nstep 2\n"},
		})
	})
	mux.HandleFunc("/api/jobs/job-1/tree", func(w http.ResponseWriter, _ *http.Request) {
		if treeStatus != http.StatusOK {
			http.Error(w, `{"error":"Upstream error"}`, treeStatus)
			return
		}
		_, _ = w.Write([]byte(`{"root":"/jobs/job-1","tree":[
			{"name":"outputs","path":"outputs","type":"dir","children":[
				{"name":"model.pdb","path":"outputs/model.pdb","type":"file","size":11}
			]},
			{"name":"params.json","path":"params.json","type":"file","size":2}
		]}`))
	})
	mux.HandleFunc("/api/jobs/job-1/file", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(drylab.FilePreview{
			Path: r.URL.Query().Get("path"), Size: 11, Content: "ATOM output",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := drylab.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

func TestNew_JobIDOpensDetail(t *testing.T) {
	m := New(Options{JobID: " job-1 "})
	if m.screen != screenDetail {
		t.Fatalf("screen = %v, want detail", m.screen)
	}
	if m.detail == nil || m.detail.JobID() != "job-1" {
		t.Fatalf("detail job = %v, want job-1", m.detail)
	}
	if m.theme.Name != "Nightfox" {
		t.Fatalf("theme = %q, want Nightfox", m.theme.Name)
	}
}

func TestJobsScreen_NavigationAndFilter(t *testing.T) {
	jobs := &state.JobList{}
	jobs.Update([]drylab.Job{
		{ID: "a", Name: "alpha", CreatedAt: 3},
		{ID: "b", Name: "beta", CreatedAt: 2},
		{ID: "c", CreatedAt: 1},
	}, nil)
	m := sized(New(Options{Jobs: jobs}))

	m, _ = press(t, m, runes("j"))
	m, _ = press(t, m, runes("j"))
	if job, _ := m.selectedJob(); job.ID != "c" {
		t.Fatalf("selected = %q, want c", job.ID)
	}
	m, _ = press(t, m, runes("G"))
	m, _ = press(t, m, runes("g"))
	if job, _ := m.selectedJob(); job.ID != "a" {
		t.Fatalf("selected after g = %q, want a", job.ID)
	}

	m, _ = press(t, m, runes("/"))
	if !m.filtering {
		t.Fatalf("filtering = false after /")
	}
	m, _ = press(t, m, runes("bet"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.filtering {
		t.Fatalf("filtering = true after enter")
	}
	visible := m.visibleJobs()
	if len(visible) != 1 || visible[0].ID != "b" {
		t.Fatalf("visibleJobs = %+v, want only b", visible)
	}
	if !strings.Contains(m.View(), "beta") {
		t.Fatalf("View does not show the filtered job")
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if got := len(m.visibleJobs()); got != 3 {
		t.Fatalf("visibleJobs after esc = %d, want 3", got)
	}
}

func TestJobsScreen_UnnamedJobShowsID(t *testing.T) {
	jobs := &state.JobList{}
	jobs.Update([]drylab.Job{{ID: "job-xyz", Status: "running"}}, nil)
	m := sized(New(Options{Jobs: jobs}))
	if !strings.Contains(m.View(), "job-xyz") {
		t.Fatalf("View does not show the job id for an unnamed job")
	}
}

func TestDetail_LoadsMetadataTreeAndPreview(t *testing.T) {
	client := newBackend(t, http.StatusOK)
	jobs := &state.JobList{}
	jobs.Update([]drylab.Job{{ID: "job-1", Name: "alpha"}}, nil)
	m := sized(New(Options{Client: client, Jobs: jobs}))

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.screen != screenDetail || cmd == nil {
		t.Fatalf("enter did not open the detail screen")
	}
	m, _ = press(t, m, m.reloadDetailCmd()())

	if m.detailSnap.Job == nil || m.detailSnap.Job.Name != "alpha" {
		t.Fatalf("detail job = %+v, want alpha", m.detailSnap.Job)
	}
	if m.logContent != "step 1\nstep 2" {
		t.Fatalf("log = %q, want the results log", m.logContent)
	}
	rows := m.detail.Tree().Rows()
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 collapsed top-level rows", len(rows))
	}

	// Expanding a directory uses the listing already fetched.
	m, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatalf("expanding a directory returned a command")
	}
	if got := len(m.detail.Tree().Rows()); got != 3 {
		t.Fatalf("rows after expand = %d, want 3", got)
	}

	m, _ = press(t, m, runes("j"))
	m, cmd = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("opening a file returned no command")
	}
	m, _ = press(t, m, m.openPreviewCmd("outputs/model.pdb")())
	if m.focus != panePreview {
		t.Fatalf("focus = %v, want preview", m.focus)
	}
	if !strings.Contains(m.View(), "ATOM output") {
		t.Fatalf("View does not show the preview content")
	}

	src, ok := m.viewerSource()
	if !ok || src.Text != "ATOM output" {
		t.Fatalf("viewerSource = %+v, want the previewed structure", src)
	}

	m, _ = press(t, m, runes("x"))
	if _, open := m.detail.Tree().Preview(); open {
		t.Fatalf("preview still open after x")
	}
	if src, _ := m.viewerSource(); src.Text != "ATOM input" {
		t.Fatalf("viewerSource after close = %+v, want the job input", src)
	}
}

func TestDetail_TreeFailureKeepsMetadata(t *testing.T) {
	client := newBackend(t, http.StatusInternalServerError)
	m := sized(New(Options{Client: client, JobID: "job-1"}))
	m, _ = press(t, m, m.reloadDetailCmd()())

	if m.detailSnap.Phase != state.PhaseReady {
		t.Fatalf("metadata phase = %v, want ready", m.detailSnap.Phase)
	}
	if m.detailSnap.TreePhase != state.PhaseError {
		t.Fatalf("tree phase = %v, want error", m.detailSnap.TreePhase)
	}
	view := m.View()
	if !strings.Contains(view, "No files") || !strings.Contains(view, "alpha") {
		t.Fatalf("View should show an empty tree next to the metadata")
	}
}

func TestDetail_RawToggle(t *testing.T) {
	client := newBackend(t, http.StatusOK)
	m := sized(New(Options{Client: client, JobID: "job-1"}))
	m, _ = press(t, m, m.reloadDetailCmd()())

	m, _ = press(t, m, runes("J"))
	if !m.showRaw || !strings.Contains(m.logContent, `"job_type": "rfdiffusion"`) {
		t.Fatalf("raw content = %q, want indented JSON", m.logContent)
	}
	m, _ = press(t, m, runes("J"))
	if m.showRaw || m.logContent != "step 1\nstep 2" {
		t.Fatalf("log content after toggle = %q", m.logContent)
	}
}

type nopLauncher struct{ urls []string }

func (n *nopLauncher) Launch(_ context.Context, url string) error {
	n.urls = append(n.urls, url)
	return nil
}

func TestDetail_BackReleasesViewerHandle(t *testing.T) {
	client := newBackend(t, http.StatusOK)
	launcher := &nopLauncher{}
	session := viewer.NewSession(&viewer.Adapter{Dir: t.TempDir()}, launcher)
	m := sized(New(Options{Client: client, JobID: "job-1", Viewer: session}))
	m, _ = press(t, m, m.reloadDetailCmd()())

	src, ok := m.viewerSource()
	if !ok {
		t.Fatalf("viewerSource found nothing for a job with input structure")
	}
	m, _ = press(t, m, m.viewerCmd(src)())
	h := session.Current()
	if h == nil || len(launcher.urls) != 1 {
		t.Fatalf("viewer was not launched")
	}
	local := strings.TrimPrefix(h.URL, "file://")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.screen != screenJobs {
		t.Fatalf("screen = %v, want jobs", m.screen)
	}
	if session.Current() != nil {
		t.Fatalf("viewer handle still held after leaving the job")
	}
	if _, err := os.Stat(local); !os.IsNotExist(err) {
		t.Fatalf("temp structure %s still exists (err=%v)", local, err)
	}
}

func TestCycleTheme_SavesPrefs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	m := sized(New(Options{PrefsPath: path, Prefs: prefs.Prefs{Theme: "Nightfox", KeepExpanded: true}}))

	m, _ = press(t, m, runes("T"))
	if m.theme.Name != "Kanagawa" {
		t.Fatalf("theme = %q, want Kanagawa", m.theme.Name)
	}
	saved, err := prefs.Load(path)
	if err != nil {
		t.Fatalf("prefs.Load: %v", err)
	}
	if saved.Theme != "Kanagawa" || !saved.KeepExpanded {
		t.Fatalf("saved prefs = %+v, want Kanagawa with other fields kept", saved)
	}
}

func TestHelpOverlay_AnyKeyCloses(t *testing.T) {
	m := sized(New(Options{}))
	m, _ = press(t, m, runes("?"))
	if !m.showHelp || !strings.Contains(m.View(), "Keyboard Shortcuts") {
		t.Fatalf("help overlay not shown")
	}
	m, _ = press(t, m, runes("j"))
	if m.showHelp {
		t.Fatalf("help overlay still shown after a key")
	}
}

func TestDownloadSink_SavesAndQueuesNotice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/jobs/job-1/download" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="job-1.zip"`)
		_, _ = w.Write([]byte("zip"))
	}))
	defer srv.Close()

	client, err := drylab.NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	dir := t.TempDir()
	sink := &downloadSink{client: client, dir: dir}

	if err := sink.Download(context.Background(), "job-1", ""); err != nil {
		t.Fatalf("Download: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "job-1.zip")); err != nil {
		t.Fatalf("downloaded file missing: %v", err)
	}
	if err := sink.Download(context.Background(), "job-2", "x.txt"); err == nil {
		t.Fatalf("Download of a missing job returned nil error")
	}

	notices := sink.drain()
	if len(notices) != 2 || !strings.HasPrefix(notices[0], "Saved") || !strings.HasPrefix(notices[1], "Download failed") {
		t.Fatalf("notices = %v", notices)
	}
	if len(sink.drain()) != 0 {
		t.Fatalf("drain did not clear notices")
	}
}
