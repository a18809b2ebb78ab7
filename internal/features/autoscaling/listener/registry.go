package listener

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"searchscaler/internal/features/autoscaling/domain"
)

// Registry holds the live set of trigger listeners and fans stage
// notifications out to the ones whose config matches. Listeners are replaced
// wholesale on configuration reload. Listener failures are contained here:
// a panicking listener is logged and the rest still get notified.
type Registry struct {
	mu        sync.Mutex
	listeners []domain.TriggerListener
	logger    *slog.Logger
}

// NewRegistry creates an empty listener registry
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// SetListeners closes the current listeners and installs the new set,
// initializing each. Listeners that fail to initialize are skipped; their
// errors are joined and returned so configuration problems surface at apply
// time.
func (r *Registry) SetListeners(ctx context.Context, listeners []domain.TriggerListener) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range r.listeners {
		if err := l.Close(); err != nil {
			r.logger.Warn("failed to close trigger listener",
				"listener", l.Config().Name, "error", err)
		}
	}

	var initErrs []error
	r.listeners = r.listeners[:0]
	for _, l := range listeners {
		if err := l.Init(ctx, l.Config()); err != nil {
			initErrs = append(initErrs, err)
			continue
		}
		r.listeners = append(r.listeners, l)
	}
	return errors.Join(initErrs...)
}

// Fire notifies every listener whose config matches the trigger, stage and
// action, synchronously and in registration order.
func (r *Registry) Fire(triggerName string, stage domain.EventProcessorStage, actionName string, event *domain.TriggerEvent, message string) {
	r.mu.Lock()
	listeners := make([]domain.TriggerListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	for _, l := range listeners {
		if !l.Config().Matches(triggerName, stage, actionName) {
			continue
		}
		r.notify(l, stage, actionName, event, message)
	}
}

// notify calls one listener, converting a panic into a log entry so a broken
// observer cannot disturb event processing.
func (r *Registry) notify(l domain.TriggerListener, stage domain.EventProcessorStage, actionName string, event *domain.TriggerEvent, message string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("trigger listener panicked",
				"listener", l.Config().Name, "stage", stage, "panic", rec)
		}
	}()
	l.OnEvent(stage, actionName, event, message)
}

// Close closes all listeners and empties the registry
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, l := range r.listeners {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.listeners = nil
	return errors.Join(errs...)
}
