package state

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/drylab-ai/drylab/internal/drylab"
)

// JobsFetcher loads the job collection. *drylab.Client implements it.
type JobsFetcher interface {
	ListJobs(ctx context.Context) ([]drylab.Job, error)
}

// ListSnapshot is the job collection as last loaded.
type ListSnapshot struct {
	Phase               Phase
	Jobs                []drylab.Job
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive failed loads
}

// IsOffline returns true when the gateway has been unreachable for multiple loads.
func (s ListSnapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// JobList holds the job collection shared by the poller and the UI.
type JobList struct {
	mu       sync.RWMutex
	snapshot ListSnapshot
}

// Reload fetches the collection and applies the result. Overlapping reloads
// are not ordered: whichever completes last wins.
func (l *JobList) Reload(ctx context.Context, f JobsFetcher) error {
	l.mu.Lock()
	l.snapshot.Phase = PhaseLoading
	l.mu.Unlock()

	jobs, err := f.ListJobs(ctx)
	l.Update(jobs, err)
	return err
}

// Update applies one load result. On error the collection is emptied and
// the error recorded; on success it is replaced, newest first.
func (l *JobList) Update(jobs []drylab.Job, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.snapshot.LastUpdated = time.Now()
	if err != nil {
		l.snapshot.Phase = PhaseError
		l.snapshot.Jobs = nil
		l.snapshot.LastError = err
		l.snapshot.ConsecutiveFailures++
		return
	}
	l.snapshot.Phase = PhaseReady
	l.snapshot.Jobs = SortByCreated(jobs)
	l.snapshot.LastError = nil
	l.snapshot.ConsecutiveFailures = 0
}

// Snapshot returns a copy of the current collection.
func (l *JobList) Snapshot() ListSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snap := l.snapshot
	snap.Jobs = cloneJobs(l.snapshot.Jobs)
	if l.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", l.snapshot.LastError)
	}
	return snap
}

// SortByCreated returns jobs ordered newest first. Equal timestamps keep the
// backend order.
func SortByCreated(jobs []drylab.Job) []drylab.Job {
	sorted := cloneJobs(jobs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt > sorted[j].CreatedAt
	})
	return sorted
}

func cloneJobs(jobs []drylab.Job) []drylab.Job {
	if len(jobs) == 0 {
		return nil
	}
	dup := make([]drylab.Job, len(jobs))
	copy(dup, jobs)
	return dup
}
