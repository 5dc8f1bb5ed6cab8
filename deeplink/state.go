package deeplink

// State is the position of one exchange in its lifecycle.
type State int

const (
	StateInitiated State = iota
	StatePolling
	StateSucceeded
	StateExhausted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitiated:
		return "INITIATED"
	case StatePolling:
		return "POLLING"
	case StateSucceeded:
		return "SUCCEEDED"
	case StateExhausted:
		return "EXHAUSTED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateExhausted || s == StateFailed
}

// Outcome describes how an exchange ended. It is handed to the ReportFunc
// on FAILED and EXHAUSTED.
type Outcome struct {
	SessionID         string
	State             State
	Attempts          int // polls issued
	Pending           int // well-formed responses without a token
	SessionMismatches int // tokens issued for a different session, discarded
	TransportErrors   int // polls that failed outright
	Err               error
}
