package hub

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomlink/internal/session"
)

// Slow consumers are dropped rather than allowed to stall the rest.
const subscriberBuffer = 32

// Event is one notification to an observer: either a fresh session
// state snapshot or a human-readable error message.
type Event struct {
	State *session.SessionState
	Err   string
}

// Subscription is the registration handle an observer holds. The hub
// owns the registry; closing the handle is the only way out of it.
type Subscription struct {
	id     string
	hub    *Hub
	Events chan Event
}

// Close detaches the observer. Events already queued stay readable.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s.id)
}

// Hub is the fan-out point between the current session and however
// many UI surfaces are watching, zero included. It also owns the
// "current session" pointer: exactly one session's events pass through
// at a time, and swapping happens before the old one is torn down.
type Hub struct {
	log zerolog.Logger

	mu       sync.Mutex
	current  *session.Session
	snapshot *session.SessionState
	subs     map[string]*Subscription
	order    []string
}

// New builds an empty hub with no current session.
func New(logger zerolog.Logger) *Hub {
	return &Hub{
		log:  logger,
		subs: make(map[string]*Subscription),
	}
}

// Subscribe attaches a new observer. If a snapshot is already cached it
// is delivered first, so late attachers do not wait for the next push.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		id:     uuid.NewString(),
		hub:    h,
		Events: make(chan Event, subscriberBuffer),
	}

	h.mu.Lock()
	h.subs[sub.id] = sub
	h.order = append(h.order, sub.id)
	snap := h.snapshot
	h.mu.Unlock()

	if snap != nil {
		sub.Events <- Event{State: snap}
	}
	return sub
}

func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[id]; !ok {
		return
	}
	delete(h.subs, id)
	for i, other := range h.order {
		if other == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Supersede makes s the current session and returns the previous one
// for the caller to tear down. The swap completes before any teardown
// is requested, so late events from the old session fail the source
// check in PublishState and are dropped.
func (h *Hub) Supersede(s *session.Session) *session.Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	old := h.current
	h.current = s
	h.snapshot = nil
	return old
}

// Current returns the session whose events pass through, if any.
func (h *Hub) Current() *session.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Snapshot returns the cached state, if a session has published one.
func (h *Hub) Snapshot() (session.SessionState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.snapshot == nil {
		return session.SessionState{}, false
	}
	return *h.snapshot, true
}

// PublishState caches and fans out a snapshot from the given session.
// Events from anything but the current session are dropped.
func (h *Hub) PublishState(from *session.Session, st session.SessionState) {
	snap := st

	h.mu.Lock()
	if from != nil && from != h.current {
		h.mu.Unlock()
		return
	}
	h.snapshot = &snap
	targets := h.targetsLocked()
	h.mu.Unlock()

	for _, sub := range targets {
		h.deliver(sub, Event{State: &snap})
	}
}

// PublishError fans out an error notification. A nil source means the
// error is host-level (e.g. invalid settings) and always delivered.
func (h *Hub) PublishError(from *session.Session, message string) {
	h.mu.Lock()
	if from != nil && from != h.current {
		h.mu.Unlock()
		return
	}
	targets := h.targetsLocked()
	h.mu.Unlock()

	for _, sub := range targets {
		h.deliver(sub, Event{Err: message})
	}
}

// targetsLocked snapshots the registry in attach order, so a detach
// mid-emission neither skips nor duplicates anyone else.
func (h *Hub) targetsLocked() []*Subscription {
	targets := make([]*Subscription, 0, len(h.order))
	for _, id := range h.order {
		targets = append(targets, h.subs[id])
	}
	return targets
}

func (h *Hub) deliver(sub *Subscription, ev Event) {
	select {
	case sub.Events <- ev:
	default:
		h.log.Warn().Str("subscriber", sub.id).Msg("slow observer, event dropped")
	}
}
