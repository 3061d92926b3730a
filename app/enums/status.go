package enums

// transitions lists caller-initiated edges of the state machine.
// running -> enqueued is missing on purpose, only recovery makes it.
var transitions = map[WorkStatus][]WorkStatus{
	WorkStatusEnqueued: {WorkStatusRunning, WorkStatusCancelled},
	WorkStatusRunning:  {WorkStatusSucceeded, WorkStatusFailed, WorkStatusCancelled},
}

// IsZero reports whether the status was never set
func (e WorkStatus) IsZero() bool { return e.name == "" }

// IsTerminal reports whether no outgoing transitions exist for the status
func (e WorkStatus) IsTerminal() bool {
	return e == WorkStatusSucceeded || e == WorkStatusFailed || e == WorkStatusCancelled
}

// CanTransition checks if a caller may move an item from one status to another
func CanTransition(from, to WorkStatus) bool {
	for _, st := range transitions[from] {
		if st == to {
			return true
		}
	}
	return false
}
