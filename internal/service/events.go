package service

import (
	"sync"

	"provision-risk-lab/internal/domain"
)

const subscriberBuffer = 16

// hub fans status events out to per-simulation subscribers.
// Slow subscribers lose intermediate events, never the terminal one.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.StatusEvent]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[chan domain.StatusEvent]struct{})}
}

func (h *hub) subscribe(id string) (<-chan domain.StatusEvent, func()) {
	ch := make(chan domain.StatusEvent, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[id]
	if !ok {
		set = make(map[chan domain.StatusEvent]struct{})
		h.subs[id] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[id]; ok {
				if _, ok := set[ch]; ok {
					delete(set, ch)
					close(ch)
				}
				if len(set) == 0 {
					delete(h.subs, id)
				}
			}
		})
	}
	return ch, cancel
}

func (h *hub) publish(ev domain.StatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.subs[ev.SimulationID]
	for ch := range set {
		if ev.Status.Terminal() {
			// Make room so the terminal event always lands.
			select {
			case <-ch:
			default:
			}
		}
		select {
		case ch <- ev:
		default:
		}
	}

	if ev.Status.Terminal() {
		for ch := range set {
			close(ch)
		}
		delete(h.subs, ev.SimulationID)
	}
}
