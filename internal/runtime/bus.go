package runtime

import (
	"sync"

	errspkg "github.com/drblury/renderflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/renderflow/internal/runtime/logging"
)

// Handler consumes one emitted event payload.
type Handler func(data any)

// Subscription identifies a single registration on a Bus. Every call to On
// produces a distinct Subscription, so registering the same function twice
// yields two deliveries per emit; Off removes exactly one registration.
type Subscription struct {
	event string
	id    uint64
}

// Event returns the event name this subscription is registered for.
func (s *Subscription) Event() string {
	if s == nil {
		return ""
	}
	return s.event
}

type busRegistration struct {
	id uint64
	fn Handler
}

// Bus is an in-process publish/subscribe registry keyed by event name.
// Delivery is synchronous and in registration order. A handler that panics
// does not prevent later handlers from running: the panic is recovered,
// logged, and swallowed per-handler.
type Bus struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[string][]busRegistration
	logger   loggingpkg.ServiceLogger

	// onPanic, when set, observes recovered handler panics (metrics).
	onPanic func(event string)
}

// NewBus constructs an empty Bus logging through the supplied logger.
func NewBus(logger loggingpkg.ServiceLogger) *Bus {
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}
	return &Bus{
		handlers: make(map[string][]busRegistration),
		logger:   logger,
	}
}

// On registers fn for the named event and returns the subscription token
// needed to remove it again.
func (b *Bus) On(event string, fn Handler) (*Subscription, error) {
	if event == "" {
		return nil, errspkg.ErrEventNameRequired
	}
	if fn == nil {
		return nil, errspkg.ErrHandlerRequired
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.handlers[event] = append(b.handlers[event], busRegistration{id: b.nextID, fn: fn})
	return &Subscription{event: event, id: b.nextID}, nil
}

// Off removes the registration identified by sub. Unknown or already removed
// subscriptions are ignored.
func (b *Bus) Off(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.handlers[sub.event]
	for i, reg := range regs {
		if reg.id == sub.id {
			b.handlers[sub.event] = append(regs[:i:i], regs[i+1:]...)
			break
		}
	}
	if len(b.handlers[sub.event]) == 0 {
		delete(b.handlers, sub.event)
	}
}

// Emit delivers data to every handler registered for event, sequentially and
// in registration order. Handlers registered during delivery do not receive
// the current emit.
func (b *Bus) Emit(event string, data any) {
	b.mu.Lock()
	regs := b.handlers[event]
	snapshot := make([]busRegistration, len(regs))
	copy(snapshot, regs)
	b.mu.Unlock()

	for _, reg := range snapshot {
		b.dispatch(event, reg, data)
	}
}

func (b *Bus) dispatch(event string, reg busRegistration, data any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", nil, loggingpkg.LogFields{
				"event": event,
				"panic": r,
			})
			if b.onPanic != nil {
				b.onPanic(event)
			}
		}
	}()
	reg.fn(data)
}
