package ui

import "strings"

// statusClass buckets the open-ended backend status strings for display.
type statusClass string

const (
	statusFinished statusClass = "finished"
	statusRunning  statusClass = "running"
	statusNeutral  statusClass = "neutral"
)

var finishedStatuses = map[string]struct{}{
	"completed": {},
	"success":   {},
	"finished":  {},
}

var runningStatuses = map[string]struct{}{
	"running":     {},
	"in_progress": {},
	"queued":      {},
}

// classifyStatus maps a job status to its badge class. Unknown values are
// neutral. It only affects presentation.
func classifyStatus(status string) statusClass {
	s := strings.ToLower(strings.TrimSpace(status))
	if _, ok := finishedStatuses[s]; ok {
		return statusFinished
	}
	if _, ok := runningStatuses[s]; ok {
		return statusRunning
	}
	return statusNeutral
}

// statusLabel is the badge text for a status.
func statusLabel(status string) string {
	if strings.TrimSpace(status) == "" {
		return "Unknown"
	}
	return titleCase(status)
}
