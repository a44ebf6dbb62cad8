package rpc

import (
	"log/slog"
	"sync"

	"github.com/space-operator/spo-go/pkg/api"
	"github.com/space-operator/spo-go/pkg/log"
)

type (
	// Handler consumes events pushed to a subscription
	Handler func(*api.Event)

	// Registry routes push frames to the handler of their stream
	Registry struct {
		handlers map[api.StreamID]*Subscription
		mu       sync.RWMutex
	}

	// Subscription is the client side of a server-push stream. Releasing it
	// stops local delivery; nothing is sent to the server
	Subscription struct {
		registry *Registry
		handler  Handler
		once     sync.Once
		id       api.StreamID
	}
)

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: map[api.StreamID]*Subscription{},
	}
}

// Register binds h to the stream id, replacing any earlier binding
func (r *Registry) Register(id api.StreamID, h Handler) *Subscription {
	sub := &Subscription{
		registry: r,
		handler:  h,
		id:       id,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[id] = sub
	return sub
}

// Dispatch delivers frame to the handler registered for its stream. It
// reports whether a handler received the event
func (r *Registry) Dispatch(frame *api.StreamFrame) bool {
	r.mu.RLock()
	sub, ok := r.handlers[frame.StreamID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	ev, err := api.DecodeEvent(frame)
	if err != nil {
		slog.Warn("Dropping undecodable event",
			log.StreamID(frame.StreamID),
			slog.String("event", string(frame.Event)),
			log.Error(err))
		return false
	}
	sub.handler(ev)
	return true
}

// Len returns the number of active subscriptions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Clear drops every subscription
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = map[api.StreamID]*Subscription{}
}

// ID returns the server-assigned stream id
func (s *Subscription) ID() api.StreamID {
	return s.id
}

// Release removes the subscription from its registry. Calling it more than
// once has no further effect
func (s *Subscription) Release() {
	s.once.Do(func() {
		r := s.registry
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.handlers[s.id] == s {
			delete(r.handlers, s.id)
		}
	})
}
