package drylab

import (
	"encoding/json"
	"testing"
	"time"
)

func TestJobCreatedTime(t *testing.T) {
	if !(Job{}).CreatedTime().IsZero() {
		t.Fatalf("CreatedTime on zero job should be zero")
	}
	got := Job{CreatedAt: 1700000000.5}.CreatedTime()
	want := time.Unix(1700000000, 500_000_000)
	if !got.Equal(want) {
		t.Fatalf("CreatedTime = %v, want %v", got, want)
	}
}

func TestJobHelpers(t *testing.T) {
	job := Job{ID: "job-001", Name: "  "}
	if job.DisplayName() != "job-001" {
		t.Fatalf("DisplayName = %q, want id fallback", job.DisplayName())
	}
	job.Name = "binder"
	if job.DisplayName() != "binder" {
		t.Fatalf("DisplayName = %q, want binder", job.DisplayName())
	}
	if job.Log() != "" {
		t.Fatalf("Log on job without results = %q", job.Log())
	}
	job.Results = map[string]any{"log": 42}
	if job.Log() != "" {
		t.Fatalf("Log with non-string value = %q, want empty", job.Log())
	}
}

func TestJobUnmarshalKeepsRaw(t *testing.T) {
	payload := `{"id":"job-003","status":"queued","active_site_atoms":[{"residue":"A45","atoms":"OG"}],"gpu":"a100"}`
	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if job.ID != "job-003" || len(job.ActiveSiteAtoms) != 1 || job.ActiveSiteAtoms[0].Residue != "A45" {
		t.Fatalf("decoded job = %#v", job)
	}
	if string(job.Raw) != payload {
		t.Fatalf("Raw = %s, want verbatim payload", job.Raw)
	}
}

func TestTreeNodeIsDir(t *testing.T) {
	tests := []struct {
		typ  string
		want bool
	}{
		{NodeDir, true},
		{NodeFile, false},
		{"symlink", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := (TreeNode{Type: tt.typ}).IsDir(); got != tt.want {
			t.Fatalf("IsDir(%q) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}
