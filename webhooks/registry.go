package webhooks

import (
	"context"
	"strings"
	"sync"
)

// Handler reacts to any event it is registered for. EventType returns a
// recognized event name or WildcardEvent.
type Handler interface {
	EventType() string
	Handle(ctx context.Context, envelope Envelope) error
}

// TypedHandler reacts to one event whose data decodes into T. Typed
// handlers cannot use the wildcard.
type TypedHandler[T any] interface {
	EventType() string
	Handle(ctx context.Context, envelope TypedEnvelope[T]) error
}

type HandlerFunc func(ctx context.Context, envelope Envelope) error

type TypedHandlerFunc[T any] func(ctx context.Context, envelope TypedEnvelope[T]) error

type funcHandler struct {
	eventType string
	fn        HandlerFunc
}

func (h funcHandler) EventType() string { return h.eventType }

func (h funcHandler) Handle(ctx context.Context, envelope Envelope) error {
	return h.fn(ctx, envelope)
}

// NewHandler adapts fn into a generic Handler for eventType.
func NewHandler(eventType string, fn HandlerFunc) Handler {
	return funcHandler{eventType: eventType, fn: fn}
}

type funcTypedHandler[T any] struct {
	eventType string
	fn        TypedHandlerFunc[T]
}

func (h funcTypedHandler[T]) EventType() string { return h.eventType }

func (h funcTypedHandler[T]) Handle(ctx context.Context, envelope TypedEnvelope[T]) error {
	return h.fn(ctx, envelope)
}

// NewTypedHandler adapts fn into a TypedHandler[T] for eventType.
func NewTypedHandler[T any](eventType string, fn TypedHandlerFunc[T]) TypedHandler[T] {
	return funcTypedHandler[T]{eventType: eventType, fn: fn}
}

type capability int

const (
	capabilityGeneric capability = iota + 1
	capabilityTyped
)

type registration struct {
	eventType  string
	capability capability
	generic    Handler
	typed      any
}

// Registry holds the handlers known to a Dispatcher. Registrations are kept
// in order and never deduplicated.
type Registry struct {
	mu      sync.RWMutex
	entries []registration
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a generic handler. Its event type must be recognized or be
// the wildcard.
func (r *Registry) Register(handler Handler) error {
	if r == nil {
		return registrationError("webhooks: registry is nil", nil)
	}
	if handler == nil {
		return registrationError("webhooks: handler is nil", nil)
	}
	eventType := strings.TrimSpace(handler.EventType())
	if eventType != WildcardEvent && !IsValidEvent(eventType) {
		return registrationError("webhooks: cannot register handler for unrecognized event "+eventType, map[string]any{
			"event": eventType,
		})
	}
	r.add(registration{eventType: eventType, capability: capabilityGeneric, generic: handler})
	return nil
}

// RegisterTyped adds a typed handler. The wildcard is rejected because a
// payload shape belongs to specific events.
func RegisterTyped[T any](r *Registry, handler TypedHandler[T]) error {
	if r == nil {
		return registrationError("webhooks: registry is nil", nil)
	}
	if handler == nil {
		return registrationError("webhooks: typed handler is nil", nil)
	}
	eventType := strings.TrimSpace(handler.EventType())
	if eventType == WildcardEvent {
		return registrationError("webhooks: typed handlers cannot use the wildcard event", map[string]any{
			"event": eventType,
		})
	}
	if !IsValidEvent(eventType) {
		return registrationError("webhooks: cannot register typed handler for unrecognized event "+eventType, map[string]any{
			"event": eventType,
		})
	}
	r.add(registration{eventType: eventType, capability: capabilityTyped, typed: handler})
	return nil
}

// Lookup returns, in registration order, the generic handlers registered for
// eventType or for the wildcard.
func (r *Registry) Lookup(eventType string) []Handler {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []Handler
	for _, entry := range r.entries {
		if entry.capability != capabilityGeneric {
			continue
		}
		if entry.eventType == eventType || entry.eventType == WildcardEvent {
			matched = append(matched, entry.generic)
		}
	}
	return matched
}

// LookupTyped returns the typed handlers for T registered for exactly
// eventType.
func LookupTyped[T any](r *Registry, eventType string) []TypedHandler[T] {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []TypedHandler[T]
	for _, entry := range r.entries {
		if entry.capability != capabilityTyped || entry.eventType != eventType {
			continue
		}
		if handler, ok := entry.typed.(TypedHandler[T]); ok {
			matched = append(matched, handler)
		}
	}
	return matched
}

// Len returns the number of registrations of both kinds.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) add(entry registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}
