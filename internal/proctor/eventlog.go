package proctor

import "sync"

// Reason names the anomaly behind a flagged event. The strings are what the
// report and the flagged_events table carry.
type Reason string

const (
	ReasonNoFace       Reason = "No face detected"
	ReasonOutOfFocus   Reason = "Face out of focus"
	ReasonUnrecognized Reason = "Unrecognized face"
)

// Event is one immutable flagged anomaly. Timestamp is seconds since capture
// start; frames arrive in capture order so timestamps are non-decreasing.
type Event struct {
	Reason    Reason  `json:"reason"`
	Timestamp float64 `json:"timestamp"`
}

// EventLog is the append-only, order-preserving record of flagged events for
// one session. Duplicate reasons at different timestamps are meaningful
// (repeated violations), so this is a list, not a set.
type EventLog struct {
	mu     sync.Mutex
	events []Event
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

func (l *EventLog) Append(reason Reason, timestamp float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, Event{Reason: reason, Timestamp: timestamp})
}

func (l *EventLog) IsEmpty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events) == 0
}

func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// All returns the events in append order. The slice is a copy; mutating it
// does not touch the log.
func (l *EventLog) All() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}
