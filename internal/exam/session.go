package exam

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/examproctor/backend/internal/audio"
	"github.com/examproctor/backend/internal/media"
	"github.com/examproctor/backend/internal/proctor"
	"github.com/examproctor/backend/internal/report"
)

// ErrSessionState signals an operation invoked outside its lifecycle phase,
// like frames arriving after submission.
var ErrSessionState = errors.New("invalid session state")

// ErrSessionNotFound signals an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// State is the session lifecycle. Transitions are one-directional; a session
// never re-enters Capturing after Submitted.
type State int

const (
	StateIdle State = iota
	StateEnrolling
	StateCapturing
	StateSubmitted
	StateReported
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEnrolling:
		return "enrolling"
	case StateCapturing:
		return "capturing"
	case StateSubmitted:
		return "submitted"
	case StateReported:
		return "reported"
	default:
		return "unknown"
	}
}

// Session aggregates one exam run: the enrolled profile, the event log, and
// the capture handles. The recorder and monitor are owned exclusively by the
// controller; no other component writes to them.
type Session struct {
	ID        string
	UserID    string
	Profile   *proctor.ReferenceProfile
	Log       *proctor.EventLog
	StartedAt time.Time
	VideoPath string
	AudioPath string

	mu       sync.Mutex
	state    State
	recorder *media.Recorder
	monitor  *audio.Monitor
	analysis audio.Analysis
	report   *report.Report
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// transition advances the lifecycle, rejecting anything but the expected
// current state.
func (s *Session) transition(from, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return fmt.Errorf("%w: %s -> %s while %s", ErrSessionState, from, to, s.state)
	}
	s.state = to
	return nil
}

// Elapsed is the capture-relative timestamp used for flagged events.
func (s *Session) Elapsed() float64 {
	return time.Since(s.StartedAt).Seconds()
}
