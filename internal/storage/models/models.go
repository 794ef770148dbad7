package models

// ExamSession is one persisted proctoring session. Persistence is
// best-effort: the in-memory session is the source of truth while it lives.
type ExamSession struct {
	ID        string
	UserID    string
	VideoPath string
	AudioPath string
}

// FlaggedEvent mirrors one entry of the session event log, keyed to its
// session one-to-many.
type FlaggedEvent struct {
	SessionID string
	Event     string
	Timestamp float64
}
