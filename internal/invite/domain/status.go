package domain

type Status string

const (
	StatusPending   Status = "pending"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

// transitions is the complete set of legal moves. pending -> completed is the implicit
// open performed by a submission on an unopened invite.
var transitions = map[Status]map[Status]struct{}{
	StatusPending: {
		StatusStarted:   {},
		StatusCompleted: {},
		StatusExpired:   {},
	},
	StatusStarted: {
		StatusCompleted: {},
		StatusExpired:   {},
	},
	StatusCompleted: {},
	StatusExpired:   {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

func (s Status) CanTransition(to Status) bool {
	next, ok := transitions[s]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

func (s Status) String() string {
	return string(s)
}
