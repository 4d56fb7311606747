package registry

// State is the lifecycle stage of one match. The "empty" stage is implicit:
// a match with neither occupant has no registry entry at all.
type State int

const (
	StateAwaitingPeer State = iota
	StateReadyPending
	StateInProgress
	StateConcluded
)

func (s State) String() string {
	switch s {
	case StateAwaitingPeer:
		return "awaiting_peer"
	case StateReadyPending:
		return "ready_pending"
	case StateInProgress:
		return "in_progress"
	case StateConcluded:
		return "concluded"
	default:
		return "unknown"
	}
}

// legalTransitions is the only place lifecycle edges are defined. A match
// can conclude from any live state; there is no path back out of Concluded
// and no path that skips the ready handshake.
var legalTransitions = map[State][]State{
	StateAwaitingPeer: {StateReadyPending, StateConcluded},
	StateReadyPending: {StateInProgress, StateConcluded},
	StateInProgress:   {StateConcluded},
	StateConcluded:    {},
}

func (s State) canTransitionTo(to State) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}
