package provision

import (
	"sync"

	"libdb.so/irrelay"
)

const subscriberBuffer = 16

// hub fans capture notifications out to stream subscribers. Slow subscribers
// miss notifications instead of blocking the session.
type hub struct {
	mu   sync.Mutex
	subs map[chan irrelay.Capture]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan irrelay.Capture]struct{})}
}

func (h *hub) subscribe() chan irrelay.Capture {
	ch := make(chan irrelay.Capture, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch
}

func (h *hub) unsubscribe(ch chan irrelay.Capture) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *hub) publish(c irrelay.Capture) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
