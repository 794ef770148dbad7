package exam

import "sync"

// FaceBox is the wire shape of a bounding box, matching what the exam page
// overlay consumes.
type FaceBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// StatusUpdate is one live verdict pushed to websocket subscribers and the
// redis status key.
type StatusUpdate struct {
	SessionID  string   `json:"session_id"`
	Recognized bool     `json:"recognized"`
	Verdict    string   `json:"verdict"`
	Message    string   `json:"message"`
	FaceBox    *FaceBox `json:"face_box,omitempty"`
	Timestamp  float64  `json:"timestamp"`
}

// hub fans frame verdicts out to live subscribers. Slow subscribers miss
// updates rather than stalling frame handling.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[chan StatusUpdate]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[chan StatusUpdate]struct{})}
}

func (h *hub) subscribe(sessionID string) (<-chan StatusUpdate, func()) {
	ch := make(chan StatusUpdate, 8)

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[chan StatusUpdate]struct{})
	}
	h.subs[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[sessionID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, sessionID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *hub) publish(sessionID string, update StatusUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[sessionID] {
		select {
		case ch <- update:
		default:
		}
	}
}
