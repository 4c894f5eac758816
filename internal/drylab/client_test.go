package drylab

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" {
		t.Fatalf("scheme = %q, want http", u.Scheme)
	}
	if u.Host != defaultGateway {
		t.Fatalf("host = %q, want %q", u.Host, defaultGateway)
	}

	u, err = parseBaseURL("http://example.com:1234/path?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}
}

func TestClient_FetchesEndpoints(t *testing.T) {
	t.Parallel()

	var gotUserAgent string
	var gotFilePath string
	var gotSubmit JobRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/api/jobs/list":
			_, _ = io.WriteString(w, `{"jobs":[{"id":"job-001","status":"running","created_at":1700000000.25,"extra":1}]}`)
		case "/api/jobs/job-001":
			_, _ = io.WriteString(w, `{"id":"job-001","status":"finished","name":"","results":{"log":"step 1\n"}}`)
		case "/api/jobs/job-001/log":
			_, _ = io.WriteString(w, `{"log":"hello"}`)
		case "/api/jobs/job-001/tree":
			_, _ = io.WriteString(w, `{"root":"/out","tree":[{"name":"outputs","path":"outputs","type":"dir","children":[{"name":"a.pdb","path":"outputs/a.pdb","type":"file","size":12}]}]}`)
		case "/api/jobs/job-001/file":
			gotFilePath = r.URL.Query().Get("path")
			_, _ = io.WriteString(w, `{"path":"outputs/a.pdb","size":4,"content":"ATOM"}`)
		case "/api/jobs":
			_ = json.NewDecoder(r.Body).Decode(&gotSubmit)
			_, _ = io.WriteString(w, `{"id":"job-002","status":"running"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	jobs, err := c.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs returned error: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "job-001" || !strings.Contains(string(jobs[0].Raw), `"extra":1`) {
		t.Fatalf("ListJobs = %#v, want job-001 with raw payload", jobs)
	}

	job, err := c.GetJob(ctx, "job-001")
	if err != nil {
		t.Fatalf("GetJob returned error: %v", err)
	}
	if job.Status != "finished" || job.Log() != "step 1\n" || job.DisplayName() != "job-001" {
		t.Fatalf("GetJob = %#v, want finished job with log", job)
	}

	logResp, err := c.GetLog(ctx, "job-001")
	if err != nil || logResp.Log != "hello" {
		t.Fatalf("GetLog = %#v, %v, want hello", logResp, err)
	}

	tree, err := c.GetTree(ctx, "job-001")
	if err != nil {
		t.Fatalf("GetTree returned error: %v", err)
	}
	if len(tree.Tree) != 1 || !tree.Tree[0].IsDir() || len(tree.Tree[0].Children) != 1 {
		t.Fatalf("GetTree = %#v, want one dir with one child", tree)
	}
	if size := tree.Tree[0].Children[0].Size; size == nil || *size != 12 {
		t.Fatalf("child size = %v, want 12", size)
	}

	preview, err := c.GetFile(ctx, "job-001", "outputs/a.pdb")
	if err != nil {
		t.Fatalf("GetFile returned error: %v", err)
	}
	if gotFilePath != "outputs/a.pdb" || preview != (FilePreview{Path: "outputs/a.pdb", Size: 4, Content: "ATOM"}) {
		t.Fatalf("GetFile = %#v (path %q), want preview triple", preview, gotFilePath)
	}

	sub, err := c.SubmitJob(ctx, JobRequest{JobName: "run"})
	if err != nil {
		t.Fatalf("SubmitJob returned error: %v", err)
	}
	if sub.ID != "job-002" || gotSubmit.JobName != "run" {
		t.Fatalf("SubmitJob = %#v (sent %#v)", sub, gotSubmit)
	}

	if !strings.HasPrefix(gotUserAgent, "drylab/") {
		t.Fatalf("User-Agent = %q, want drylab/*", gotUserAgent)
	}
}

func TestClient_BackendOverrideIsForwarded(t *testing.T) {
	t.Parallel()

	var gotBackend string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBackend = r.URL.Query().Get("backend")
		_, _ = io.WriteString(w, `{"jobs":[]}`)
	}))
	t.Cleanup(server.Close)

	base, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	c := base.WithBackend(" http://gpu-box:8001 ")
	if _, err := c.ListJobs(context.Background()); err != nil {
		t.Fatalf("ListJobs returned error: %v", err)
	}
	if gotBackend != "http://gpu-box:8001" {
		t.Fatalf("backend param = %q, want override", gotBackend)
	}
	if base.Backend() != "" {
		t.Fatalf("WithBackend mutated the receiver")
	}
}

func TestClient_HTTPErrorAndDecodeError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/jobs/broken":
			_, _ = w.Write([]byte("{not-json"))
		case "/api/jobs/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"Upstream error"}`)
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, `{"error":"Failed to fetch job"}`)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	_, err = c.GetJob(context.Background(), "broken")
	if err == nil || !strings.Contains(err.Error(), "decode response") {
		t.Fatalf("GetJob error = %v, want decode response error", err)
	}

	_, err = c.GetJob(context.Background(), "missing")
	if !IsStatus(err, http.StatusNotFound) {
		t.Fatalf("GetJob error = %v, want 404 APIError", err)
	}

	_, err = c.GetJob(context.Background(), "down")
	if !IsStatus(err, http.StatusBadGateway) || !strings.Contains(err.Error(), "Failed to fetch job") {
		t.Fatalf("GetJob error = %v, want 502 with message", err)
	}
}

func TestClient_DownloadWritesFile(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("path") {
		case "outputs/run1.pdb":
			_, _ = io.WriteString(w, "ATOM 1")
		case "":
			w.Header().Set("Content-Disposition", `attachment; filename="job-001.zip"`)
			_, _ = io.WriteString(w, "PK")
		default:
			http.Error(w, `{"error":"Upstream error"}`, http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	dir := t.TempDir()

	got, err := c.Download(context.Background(), "job-001", "outputs/run1.pdb", dir)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if got != filepath.Join(dir, "run1.pdb") {
		t.Fatalf("Download path = %q, want run1.pdb in dir", got)
	}
	data, _ := os.ReadFile(got)
	if string(data) != "ATOM 1" {
		t.Fatalf("downloaded content = %q", data)
	}

	got, err = c.Download(context.Background(), "job-001", "", dir)
	if err != nil || filepath.Base(got) != "job-001.zip" {
		t.Fatalf("Download all = %q, %v, want job-001.zip", got, err)
	}

	if _, err := c.Download(context.Background(), "job-001", "missing", dir); !IsStatus(err, http.StatusNotFound) {
		t.Fatalf("Download missing error = %v, want 404", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Fatalf("download dir has %d entries, want 2 (no temp leftovers)", len(entries))
	}
}

func TestDownloadURL_EncodesPath(t *testing.T) {
	c, err := NewClient("http://gw:3000")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	got := c.DownloadURL("abc123", "outputs/run1.pdb")
	want := "http://gw:3000/api/jobs/abc123/download?path=outputs%2Frun1.pdb"
	if got != want {
		t.Fatalf("DownloadURL = %q, want %q", got, want)
	}
}

func TestDownloadName(t *testing.T) {
	tests := []struct {
		disposition string
		id, path    string
		want        string
	}{
		{`attachment; filename="x.zip"`, "j", "", "x.zip"},
		{`attachment; filename="../../etc/passwd"`, "j", "", "passwd"},
		{"", "j", "outputs/run1.pdb", "run1.pdb"},
		{"", "j", "", "j.zip"},
	}
	for _, tt := range tests {
		if got := downloadName(tt.disposition, tt.id, tt.path); got != tt.want {
			t.Fatalf("downloadName(%q, %q, %q) = %q, want %q", tt.disposition, tt.id, tt.path, got, tt.want)
		}
	}
}

func TestClient_DownloadKeepsExistingFiles(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ATOM from "+strings.TrimPrefix(r.URL.Path, "/api/jobs/"))
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	dir := t.TempDir()

	var got []string
	for _, id := range []string{"job-a", "job-b", "job-c"} {
		dest, err := c.Download(context.Background(), id, "outputs/run1.pdb", dir)
		if err != nil {
			t.Fatalf("Download(%s) returned error: %v", id, err)
		}
		got = append(got, filepath.Base(dest))
	}
	want := []string{"run1.pdb", "run1 (1).pdb", "run1 (2).pdb"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("download names = %v, want %v", got, want)
		}
	}

	data, _ := os.ReadFile(filepath.Join(dir, "run1.pdb"))
	if string(data) != "ATOM from job-a/download" {
		t.Fatalf("first download was overwritten: %q", data)
	}
}

func TestFreeName_DotFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := freeName(dir, ".env")
	if err != nil {
		t.Fatalf("freeName returned error: %v", err)
	}
	if filepath.Base(got) != ".env (1)" {
		t.Fatalf("freeName = %q, want .env (1)", got)
	}
}
