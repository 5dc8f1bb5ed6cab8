package fakeserver

import "time"

// PendingSession is a deep-link session awaiting its verifier.
type PendingSession struct {
	Challenge string
	Identity  string
	Polls     int
	CreatedAt time.Time
}

// UpdateFunc inspects and may modify a stored session. Returning remove
// deletes the session; otherwise changes are kept unless err is non-nil.
type UpdateFunc func(session *PendingSession) (remove bool, err error)

type Repo interface {
	// Bind stores session unless sessionID is already bound to a different
	// challenge. Binding the same challenge again starts the session afresh.
	Bind(sessionID string, session *PendingSession) error
	Get(sessionID string) (*PendingSession, error)
	// Update runs fn on the session as a single step with respect to every
	// other repo call.
	Update(sessionID string, fn UpdateFunc) (*PendingSession, error)
}
