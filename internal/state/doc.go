// Package state holds the view-models shared between background loads and
// the UI.
//
// # Core Types
//
// JobList:
//   - the job collection, newest first (stable on equal timestamps)
//   - a failed load empties the collection and records the error
//   - ConsecutiveFailures/IsOffline let the UI flag an unreachable gateway
//
// JobDetail:
//   - metadata and file tree of one job, loaded by two independent calls
//   - a tree failure leaves an empty tree and never touches the metadata
//   - a metadata failure sets PhaseError with LoadJobFailed, tree untouched
//
// Both views move through Phase: idle, loading, then ready or error. Loads
// are triggered on mount, on manual reload and, for JobDetail, when SetJob
// switches the identifier.
//
// # Concurrency Model
//
// Each view guards its fields with a readers-writer lock that is held only
// while copying, never across network I/O. Snapshot returns copies the UI can
// keep.
//
// Overlapping reloads are not sequenced. Whichever response lands last
// overwrites the earlier one, including a stale response landing after a
// newer one.
//
// # Usage Example
//
//	var jobs state.JobList
//	_ = jobs.Reload(ctx, client)
//	for _, job := range jobs.Snapshot().Jobs {
//		fmt.Println(job.DisplayName())
//	}
//
//	detail := state.NewJobDetail(id, tree.Options{Files: files})
//	detail.Reload(ctx, client)
//	rows := detail.Tree().Rows()
package state
