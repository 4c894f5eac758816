package state

// Phase is where a view is in its load cycle. Views start in PhaseIdle,
// enter PhaseLoading on mount, manual reload or identifier change, and end in
// PhaseReady or PhaseError.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}
