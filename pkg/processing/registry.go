package processing

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Registry errors.
var (
	// ErrHandlerNotFound means no handler is registered for a job type.
	ErrHandlerNotFound = errors.New("no handler registered for job type")

	// ErrDuplicateHandler means the job type was registered twice.
	ErrDuplicateHandler = errors.New("job type already registered")
)

// Handler executes one job. Payload is the deserialized value produced
// by the registered payload factory.
type Handler interface {
	Handle(ctx context.Context, jobID string, payload any) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, jobID string, payload any) error

// Handle calls the function.
func (f HandlerFunc) Handle(ctx context.Context, jobID string, payload any) error {
	return f(ctx, jobID, payload)
}

type registration struct {
	newPayload func() any
	handler    Handler
}

// Registry maps job types to their payload shape and handler.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]registration)}
}

// Register binds a job type to a payload factory and handler. The
// factory returns a pointer the envelope payload is unmarshalled into.
func (r *Registry) Register(jobType string, newPayload func() any, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[jobType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, jobType)
	}
	r.handlers[jobType] = registration{newPayload: newPayload, handler: handler}
	return nil
}

// Resolve returns the registration for a job type.
func (r *Registry) Resolve(jobType string) (func() any, Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.handlers[jobType]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, jobType)
	}
	return reg.newPayload, reg.handler, nil
}
