package trigger

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"searchscaler/internal/common"
	"searchscaler/internal/features/autoscaling/domain"
	clusterdomain "searchscaler/internal/features/cluster/domain"
)

// Deps holds the collaborators shared by all triggers minted by a factory
type Deps struct {
	// Cluster provides live node membership for membership triggers
	Cluster clusterdomain.Provider

	// Store is the durable checkpoint substrate; nil disables persistence
	Store domain.StateStore

	// StoreTimeout bounds each save/load against the store
	StoreTimeout time.Duration

	// Logger is the structured logger; nil falls back to slog.Default
	Logger *slog.Logger

	// Now is the clock, overridable in tests; nil means time.Now
	Now func() time.Time
}

// Factory mints triggers by event type. It is a stateless minting point, not
// a registry of live instances: closing the factory stops further creation
// but does not close previously created triggers, whose lifecycle belongs to
// the scheduler.
type Factory struct {
	mu     sync.Mutex
	closed bool
	deps   Deps
}

// NewFactory creates a trigger factory
func NewFactory(deps Deps) *Factory {
	return &Factory{deps: deps}
}

// Create returns a new trigger for the given event type. It fails with
// domain.ErrUnknownEventType for types with no registered constructor and
// with common.ErrAlreadyClosed once the factory is closed. The closed check
// and construction happen under one lock so creation is atomic with respect
// to Close.
func (f *Factory) Create(eventType domain.EventType, name string, props map[string]interface{}) (domain.Trigger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, common.AlreadyClosedError("trigger factory cannot create trigger %q", name)
	}

	switch eventType {
	case domain.EventTypeNodeAdded:
		return NewNodeAddedTrigger(name, props, f.deps)
	case domain.EventTypeNodeLost:
		return NewNodeLostTrigger(name, props, f.deps)
	case domain.EventTypeScheduled:
		return NewScheduledTrigger(name, props, f.deps)
	case domain.EventTypeManual:
		return NewManualTrigger(name, props, f.deps)
	default:
		return nil, fmt.Errorf("event type %q in trigger %q: %w", eventType, name, domain.ErrUnknownEventType)
	}
}

// Close marks the factory closed. Idempotent.
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
