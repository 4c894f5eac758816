package state

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/drylab-ai/drylab/internal/drylab"
)

type fakeJobs struct {
	jobs []drylab.Job
	err  error
}

func (f fakeJobs) ListJobs(context.Context) ([]drylab.Job, error) {
	return f.jobs, f.err
}

func ids(jobs []drylab.Job) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.ID)
	}
	return out
}

func TestSortByCreated_StableDescending(t *testing.T) {
	jobs := []drylab.Job{
		{ID: "a", CreatedAt: 10},
		{ID: "b", CreatedAt: 30},
		{ID: "c", CreatedAt: 20},
		{ID: "d", CreatedAt: 30},
		{ID: "e", CreatedAt: 10},
		{ID: "f"},
	}
	got := ids(SortByCreated(jobs))
	want := []string{"b", "d", "c", "a", "e", "f"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SortByCreated = %v, want %v", got, want)
	}
	if jobs[0].ID != "a" {
		t.Fatalf("SortByCreated mutated its input")
	}
}

func TestJobList_ReloadAndSnapshotClone(t *testing.T) {
	var l JobList
	if snap := l.Snapshot(); snap.Phase != PhaseIdle {
		t.Fatalf("initial phase = %v, want idle", snap.Phase)
	}

	before := time.Now()
	err := l.Reload(context.Background(), fakeJobs{jobs: []drylab.Job{{ID: "old", CreatedAt: 1}, {ID: "new", CreatedAt: 2}}})
	if err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}

	snap := l.Snapshot()
	if snap.Phase != PhaseReady {
		t.Fatalf("phase = %v, want ready", snap.Phase)
	}
	if got := ids(snap.Jobs); !reflect.DeepEqual(got, []string{"new", "old"}) {
		t.Fatalf("jobs = %v, want [new old]", got)
	}
	if snap.LastUpdated.Before(before) {
		t.Fatalf("LastUpdated = %v, want >= %v", snap.LastUpdated, before)
	}

	// Returned snapshot should be independent of the stored one.
	snap.Jobs[0].ID = "mutated"
	if l.Snapshot().Jobs[0].ID != "new" {
		t.Fatalf("Snapshot should clone jobs")
	}
}

func TestJobList_FailureEmptiesCollection(t *testing.T) {
	var l JobList
	l.Update([]drylab.Job{{ID: "x"}}, nil)

	origErr := errors.New("gateway down")
	if err := l.Reload(context.Background(), fakeJobs{err: origErr}); !errors.Is(err, origErr) {
		t.Fatalf("Reload error = %v, want %v", err, origErr)
	}
	snap := l.Snapshot()
	if len(snap.Jobs) != 0 {
		t.Fatalf("jobs after failure = %v, want empty", snap.Jobs)
	}
	if snap.Phase != PhaseError {
		t.Fatalf("phase = %v, want error", snap.Phase)
	}
	if snap.LastError == nil || snap.LastError.Error() != "gateway down" {
		t.Fatalf("LastError = %v, want gateway down", snap.LastError)
	}
	if reflect.ValueOf(snap.LastError).Pointer() == reflect.ValueOf(origErr).Pointer() {
		t.Fatalf("Snapshot should clone error instance")
	}
}

func TestJobList_ConsecutiveFailures(t *testing.T) {
	var l JobList

	l.Update(nil, errors.New("fail 1"))
	if snap := l.Snapshot(); snap.ConsecutiveFailures != 1 || snap.IsOffline() {
		t.Fatalf("after 1 failure: failures=%d offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}

	l.Update(nil, errors.New("fail 2"))
	if snap := l.Snapshot(); snap.ConsecutiveFailures != 2 || !snap.IsOffline() {
		t.Fatalf("after 2 failures: failures=%d offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}

	l.Update(nil, nil)
	snap := l.Snapshot()
	if snap.ConsecutiveFailures != 0 || snap.IsOffline() {
		t.Fatalf("after success: failures=%d offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}
	if snap.Phase != PhaseReady || snap.Jobs != nil {
		t.Fatalf("empty success = %#v, want ready with no jobs", snap)
	}
}

func TestPhaseString(t *testing.T) {
	tests := map[Phase]string{
		PhaseIdle:    "idle",
		PhaseLoading: "loading",
		PhaseReady:   "ready",
		PhaseError:   "error",
		Phase(99):    "unknown",
	}
	for p, want := range tests {
		if got := p.String(); got != want {
			t.Fatalf("Phase(%d).String() = %q, want %q", int(p), got, want)
		}
	}
}
