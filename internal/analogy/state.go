package analogy

// State is the phase of a mapping search.
type State int

const (
	StateUnmapped State = iota
	StateSearching
	StateConverged
	StateRetrying
	StateDone
)

// String returns the display name for a state.
func (s State) String() string {
	names := []string{
		"unmapped",
		"searching",
		"converged",
		"retrying",
		"done",
	}
	if int(s) >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}
