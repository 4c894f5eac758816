// Package logtail extracts the last lines of a log.
//
// Job logs arrive either as files or as a single string in a job's results.
// Tail scans once and keeps only the last maxLines in a ring buffer, so
// memory stays O(maxLines) whatever the log size. maxLines <= 0 returns
// everything.
//
// Progress output that redraws itself with carriage returns is collapsed to
// the last redraw, matching what a terminal would have shown.
//
// Example usage:
//
//	lines := logtail.Lines(job.Log(), 400)
//	lines, err := logtail.Read("/var/log/drylab/drylab.log", 200)
package logtail
