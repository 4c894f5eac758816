package state

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/drylab-ai/drylab/internal/drylab"
	"github.com/drylab-ai/drylab/internal/tree"
)

type fakeDetail struct {
	job     *drylab.Job
	jobErr  error
	tree    drylab.TreeResponse
	treeErr error

	jobCalls  atomic.Int32
	treeCalls atomic.Int32
}

func (f *fakeDetail) GetJob(_ context.Context, id string) (*drylab.Job, error) {
	f.jobCalls.Add(1)
	if f.jobErr != nil {
		return nil, f.jobErr
	}
	job := *f.job
	job.ID = id
	return &job, nil
}

func (f *fakeDetail) GetTree(context.Context, string) (drylab.TreeResponse, error) {
	f.treeCalls.Add(1)
	return f.tree, f.treeErr
}

func sampleTree() drylab.TreeResponse {
	return drylab.TreeResponse{Root: "/jobs/abc123", Tree: []drylab.TreeNode{
		{Name: "outputs", Path: "outputs", Type: drylab.NodeDir, Children: []drylab.TreeNode{
			{Name: "run1.pdb", Path: "outputs/run1.pdb", Type: drylab.NodeFile},
		}},
	}}
}

func TestJobDetail_ReloadLoadsBoth(t *testing.T) {
	f := &fakeDetail{job: &drylab.Job{Status: "finished"}, tree: sampleTree()}
	d := NewJobDetail("abc123", tree.Options{})

	if snap := d.Snapshot(); snap.Phase != PhaseIdle || snap.TreePhase != PhaseIdle {
		t.Fatalf("initial phases = %v/%v, want idle", snap.Phase, snap.TreePhase)
	}

	d.Reload(context.Background(), f)

	snap := d.Snapshot()
	if snap.Phase != PhaseReady || snap.Job == nil || snap.Job.ID != "abc123" {
		t.Fatalf("snapshot = %#v, want ready job abc123", snap)
	}
	if snap.TreePhase != PhaseReady || snap.TreeRoot != "/jobs/abc123" {
		t.Fatalf("tree phase = %v root %q, want ready", snap.TreePhase, snap.TreeRoot)
	}
	if files, dirs := d.Tree().Count(); files != 1 || dirs != 1 {
		t.Fatalf("tree count = %d files %d dirs, want 1/1", files, dirs)
	}
	if d.Tree().JobID() != "abc123" {
		t.Fatalf("tree job id = %q, want abc123", d.Tree().JobID())
	}
	if f.jobCalls.Load() != 1 || f.treeCalls.Load() != 1 {
		t.Fatalf("calls job=%d tree=%d, want 1/1", f.jobCalls.Load(), f.treeCalls.Load())
	}
}

func TestJobDetail_TreeFailureKeepsMetadata(t *testing.T) {
	f := &fakeDetail{job: &drylab.Job{Status: "finished", Name: "binder"}, tree: sampleTree()}
	d := NewJobDetail("abc123", tree.Options{})
	d.Reload(context.Background(), f)
	before := d.Snapshot()

	f.treeErr = errors.New("tree unavailable")
	d.Reload(context.Background(), f)

	snap := d.Snapshot()
	if snap.Phase != PhaseReady || snap.Job == nil || snap.Job.Name != before.Job.Name {
		t.Fatalf("metadata changed on tree failure: %#v", snap)
	}
	if snap.TreePhase != PhaseError || !d.Tree().Empty() {
		t.Fatalf("tree phase = %v empty=%v, want error with empty tree", snap.TreePhase, d.Tree().Empty())
	}
}

func TestJobDetail_MetadataFailureKeepsTree(t *testing.T) {
	f := &fakeDetail{jobErr: errors.New("404"), tree: sampleTree()}
	d := NewJobDetail("abc123", tree.Options{})
	d.Reload(context.Background(), f)

	snap := d.Snapshot()
	if snap.Phase != PhaseError || snap.Error != LoadJobFailed {
		t.Fatalf("phase = %v error %q, want error %q", snap.Phase, snap.Error, LoadJobFailed)
	}
	if snap.TreePhase != PhaseReady || d.Tree().Empty() {
		t.Fatalf("tree should load despite metadata failure")
	}
}

func TestJobDetail_ReloadTreeOnly(t *testing.T) {
	f := &fakeDetail{job: &drylab.Job{}, tree: sampleTree()}
	d := NewJobDetail("abc123", tree.Options{})

	if err := d.ReloadTree(context.Background(), f); err != nil {
		t.Fatalf("ReloadTree returned error: %v", err)
	}
	if f.jobCalls.Load() != 0 {
		t.Fatalf("ReloadTree fetched metadata")
	}
	if snap := d.Snapshot(); snap.Phase != PhaseIdle || snap.TreePhase != PhaseReady {
		t.Fatalf("phases = %v/%v, want idle/ready", snap.Phase, snap.TreePhase)
	}
}

func TestJobDetail_SetJobResets(t *testing.T) {
	f := &fakeDetail{job: &drylab.Job{}, tree: sampleTree()}
	d := NewJobDetail("abc123", tree.Options{KeepExpanded: true})
	d.Reload(context.Background(), f)
	old := d.Tree()

	d.SetJob("def456")
	snap := d.Snapshot()
	if snap.JobID != "def456" || snap.Phase != PhaseIdle || snap.Job != nil {
		t.Fatalf("after SetJob: %#v, want idle def456", snap)
	}
	if d.Tree() == old || !d.Tree().Empty() || d.Tree().JobID() != "def456" {
		t.Fatalf("SetJob should start a fresh tree for the new job")
	}
}

// gatedDetail blocks fetches for one job id until release is closed.
type gatedDetail struct {
	fakeDetail
	slowID  string
	started chan struct{}
	release chan struct{}
}

func (g *gatedDetail) wait(id string) {
	if id == g.slowID {
		g.started <- struct{}{}
		<-g.release
	}
}

func (g *gatedDetail) GetJob(ctx context.Context, id string) (*drylab.Job, error) {
	g.wait(id)
	return g.fakeDetail.GetJob(ctx, id)
}

func (g *gatedDetail) GetTree(_ context.Context, id string) (drylab.TreeResponse, error) {
	g.wait(id)
	resp := sampleTree()
	resp.Root = "/jobs/" + id
	return resp, nil
}

func TestJobDetail_SwitchDropsResultsForPreviousJob(t *testing.T) {
	f := &gatedDetail{
		fakeDetail: fakeDetail{job: &drylab.Job{Status: "running"}},
		slowID:     "jobA",
		started:    make(chan struct{}, 2),
		release:    make(chan struct{}),
	}
	d := NewJobDetail("jobA", tree.Options{})

	done := make(chan struct{})
	go func() {
		d.Reload(context.Background(), f)
		close(done)
	}()
	<-f.started
	<-f.started

	d.SetJob("jobB")
	d.Reload(context.Background(), f)
	close(f.release)
	<-done

	snap := d.Snapshot()
	if snap.JobID != "jobB" || snap.Job == nil || snap.Job.ID != "jobB" {
		t.Fatalf("snapshot = %#v, want job jobB", snap)
	}
	if snap.TreeRoot != "/jobs/jobB" || snap.Phase != PhaseReady || snap.TreePhase != PhaseReady {
		t.Fatalf("tree root = %q phases %v/%v, want /jobs/jobB ready", snap.TreeRoot, snap.Phase, snap.TreePhase)
	}
	if d.Tree().JobID() != "jobB" {
		t.Fatalf("tree job id = %q, want jobB", d.Tree().JobID())
	}
}
