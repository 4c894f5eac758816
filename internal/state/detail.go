package state

import (
	"context"
	"sync"
	"time"

	"github.com/drylab-ai/drylab/internal/drylab"
	"github.com/drylab-ai/drylab/internal/tree"
)

// LoadJobFailed is the message shown when job metadata cannot be loaded.
const LoadJobFailed = "Failed to load job."

// DetailFetcher loads one job's metadata and output listing.
// *drylab.Client implements it.
type DetailFetcher interface {
	GetJob(ctx context.Context, id string) (*drylab.Job, error)
	GetTree(ctx context.Context, id string) (drylab.TreeResponse, error)
}

// DetailSnapshot is the job detail view as last loaded.
type DetailSnapshot struct {
	JobID     string
	Phase     Phase
	Job       *drylab.Job
	Error     string
	TreePhase Phase
	TreeRoot  string
	TreeError error
	Updated   time.Time
}

// JobDetail holds the metadata and file tree of one job. The two are loaded
// independently: a failure of one never clears or blocks the other.
type JobDetail struct {
	mu       sync.RWMutex
	treeOpts tree.Options

	jobID     string
	phase     Phase
	job       *drylab.Job
	errMsg    string
	treePhase Phase
	treeRoot  string
	treeErr   error
	updated   time.Time
	tree      *tree.Model
}

// NewJobDetail builds an idle detail view for jobID. opts configures the
// tree model; its JobID is overwritten.
func NewJobDetail(jobID string, opts tree.Options) *JobDetail {
	d := &JobDetail{treeOpts: opts}
	d.reset(jobID)
	return d
}

// SetJob switches the view to another job and returns it to idle. The caller
// triggers the load with Reload.
func (d *JobDetail) SetJob(jobID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reset(jobID)
}

func (d *JobDetail) reset(jobID string) {
	opts := d.treeOpts
	opts.JobID = jobID
	d.jobID = jobID
	d.phase = PhaseIdle
	d.job = nil
	d.errMsg = ""
	d.treePhase = PhaseIdle
	d.treeRoot = ""
	d.treeErr = nil
	d.tree = tree.New(opts)
}

// JobID is the job currently shown.
func (d *JobDetail) JobID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.jobID
}

// Tree is the file tree model of the current job.
func (d *JobDetail) Tree() *tree.Model {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tree
}

// Reload fetches metadata and tree concurrently and returns once both have
// been applied. Results are applied as they arrive with no ordering guard
// against an earlier, slower reload of the same job; results for a job the
// view has since switched away from are dropped.
func (d *JobDetail) Reload(ctx context.Context, f DetailFetcher) {
	d.mu.Lock()
	id, model := d.jobID, d.tree
	d.phase = PhaseLoading
	d.treePhase = PhaseLoading
	d.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		job, err := f.GetJob(ctx, id)
		d.applyJob(model, job, err)
	}()
	go func() {
		defer wg.Done()
		resp, err := f.GetTree(ctx, id)
		d.applyTree(model, resp, err)
	}()
	wg.Wait()
}

// ReloadTree refreshes only the file tree.
func (d *JobDetail) ReloadTree(ctx context.Context, f DetailFetcher) error {
	d.mu.Lock()
	id, model := d.jobID, d.tree
	d.treePhase = PhaseLoading
	d.mu.Unlock()

	resp, err := f.GetTree(ctx, id)
	d.applyTree(model, resp, err)
	return err
}

// current reports whether model still belongs to the job on view. SetJob
// builds a fresh model, so a captured model identifies the job selection.
func (d *JobDetail) current(model *tree.Model) bool {
	return d.tree == model
}

func (d *JobDetail) applyJob(model *tree.Model, job *drylab.Job, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.current(model) {
		return
	}
	d.updated = time.Now()
	if err != nil || job == nil {
		d.phase = PhaseError
		d.errMsg = LoadJobFailed
		return
	}
	d.phase = PhaseReady
	d.errMsg = ""
	d.job = job
}

// applyTree replaces the listing; a failed fetch leaves an empty tree.
func (d *JobDetail) applyTree(model *tree.Model, resp drylab.TreeResponse, err error) {
	if err != nil {
		model.Replace(nil)
	} else {
		model.Replace(tree.Build(resp.Tree))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.current(model) {
		return
	}
	d.treeErr = err
	if err != nil {
		d.treePhase = PhaseError
		d.treeRoot = ""
		return
	}
	d.treePhase = PhaseReady
	d.treeRoot = resp.Root
}

// Snapshot returns a copy of the current view state.
func (d *JobDetail) Snapshot() DetailSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	snap := DetailSnapshot{
		JobID:     d.jobID,
		Phase:     d.phase,
		Error:     d.errMsg,
		TreePhase: d.treePhase,
		TreeRoot:  d.treeRoot,
		TreeError: d.treeErr,
		Updated:   d.updated,
	}
	if d.job != nil {
		job := *d.job
		snap.Job = &job
	}
	return snap
}
