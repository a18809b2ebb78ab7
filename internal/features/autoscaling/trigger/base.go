package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"searchscaler/internal/common"
	"searchscaler/internal/features/autoscaling/domain"
)

// base carries the state machine shared by all trigger implementations:
// the immutable configuration, the guarded processor slot, the pending
// event, the cooldown clock and the durable checkpoint plumbing. Concrete
// triggers embed it and supply condition detection.
type base struct {
	name      string
	eventType domain.EventType
	enabled   bool
	waitFor   time.Duration
	actions   []domain.ActionConfig
	props     map[string]interface{}

	store        domain.StateStore
	storeTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time

	// mu guards the processor slot, the closed flag and the handoff state.
	// Evaluation is strictly sequential per trigger, but the processor and
	// state may be touched from a configuration thread.
	mu        sync.Mutex
	processor domain.EventProcessor
	closed    bool
	pending   *domain.TriggerEvent
	lastFired time.Time

	// type-specific condition snapshot hooks, set by the concrete trigger.
	// Both are invoked with mu held.
	snapshotFn func() map[string]interface{}
	restoreFn  func(map[string]interface{})
}

func newBase(name string, eventType domain.EventType, props map[string]interface{}, deps Deps) (*base, error) {
	if name == "" {
		return nil, common.InvalidInputError("trigger name is required")
	}

	waitFor, err := parseWaitFor(props)
	if err != nil {
		return nil, fmt.Errorf("trigger %s: %w", name, err)
	}
	actions, err := parseActions(props)
	if err != nil {
		return nil, fmt.Errorf("trigger %s: %w", name, err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	storeTimeout := deps.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = 10 * time.Second
	}

	return &base{
		name:         name,
		eventType:    eventType,
		enabled:      parseEnabled(props),
		waitFor:      waitFor,
		actions:      actions,
		props:        props,
		store:        deps.Store,
		storeTimeout: storeTimeout,
		logger:       logger,
		now:          now,
	}, nil
}

// Name returns the trigger name
func (t *base) Name() string { return t.name }

// EventType returns the event type generated by this trigger
func (t *base) EventType() domain.EventType { return t.eventType }

// Enabled reports whether this trigger is enabled
func (t *base) Enabled() bool { return t.enabled }

// Properties returns the raw configuration properties
func (t *base) Properties() map[string]interface{} { return t.props }

// WaitFor returns the cooldown between accepted fires
func (t *base) WaitFor() time.Duration { return t.waitFor }

// Actions returns the ordered remediation actions for fired events
func (t *base) Actions() []domain.ActionConfig { return t.actions }

// SetProcessor attaches the processor called when an event fires
func (t *base) SetProcessor(processor domain.EventProcessor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processor = processor
}

// Processor returns the currently attached processor
func (t *base) Processor() domain.EventProcessor {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.processor
}

// IsClosed reports whether the trigger was closed
func (t *base) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Init performs setup before the trigger is scheduled. The base has nothing
// to acquire; concrete triggers override as needed.
func (t *base) Init(_ context.Context) error { return nil }

// Close marks the trigger closed. Idempotent; subsequent Run calls are
// no-ops. Concrete triggers with resources acquired in Init override this
// and call it after their own release.
func (t *base) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// locked runs fn with the trigger mutex held. Concrete triggers use it to
// guard their condition snapshot against State/RestoreStateFrom callers.
func (t *base) locked(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn()
}

// evaluate runs one tick of the trigger state machine. A pending event is
// re-offered as-is; otherwise, once the cooldown window has elapsed, detect
// is consulted for a new event.
func (t *base) evaluate(ctx context.Context, detect func(context.Context) (*domain.TriggerEvent, error)) {
	if t.IsClosed() {
		return
	}

	if pending := t.pendingEvent(); pending != nil {
		t.offer(ctx, pending)
		return
	}

	if !t.cooldownElapsed() {
		return
	}

	event, err := detect(ctx)
	if err != nil {
		t.logger.Warn("condition detection failed",
			"trigger", t.name, "eventType", t.eventType, "error", err)
		return
	}
	if event == nil {
		return
	}
	t.offer(ctx, event)
}

// offer hands an event to the attached processor. No processor yet means the
// event is retained as pending; a rejection or a panicking processor keeps
// it pending for retry on the next tick; acceptance clears it and starts the
// cooldown window. The checkpoint is written only when pending or lastFired
// actually changed, so re-offering the same rejected event every tick does
// not hit the store each time.
func (t *base) offer(ctx context.Context, event *domain.TriggerEvent) {
	processor := t.Processor()
	if processor == nil {
		if t.setPending(event) {
			t.SaveState(ctx)
		}
		return
	}

	if t.safeProcess(processor, event) {
		t.locked(func() {
			t.pending = nil
			t.lastFired = t.now()
		})
		t.logger.Info("trigger event accepted",
			"trigger", t.name, "eventType", t.eventType)
		t.SaveState(ctx)
		return
	}

	t.logger.Debug("trigger event not accepted, will retry",
		"trigger", t.name, "eventType", t.eventType)
	if t.setPending(event) {
		t.SaveState(ctx)
	}
}

// safeProcess invokes the processor, converting a panic into a rejection so
// a misbehaving downstream consumer cannot kill the scheduling loop.
func (t *base) safeProcess(processor domain.EventProcessor, event *domain.TriggerEvent) (accepted bool) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("event processor panicked, treating event as rejected",
				"trigger", t.name, "panic", r)
			accepted = false
		}
	}()
	return processor.Process(event)
}

func (t *base) pendingEvent() *domain.TriggerEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// setPending records event for retry and reports whether the pending slot
// changed. A rejected event is re-offered as the same instance, so the
// pointer comparison is enough to detect an unchanged slot.
func (t *base) setPending(event *domain.TriggerEvent) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == event {
		return false
	}
	t.pending = event
	return true
}

// cooldownElapsed reports whether enough time has passed since the last
// accepted fire. Rejected events are exempt: they stay pending and are
// retried on every tick regardless of the window.
func (t *base) cooldownElapsed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastFired.IsZero() || t.waitFor <= 0 {
		return true
	}
	return t.now().Sub(t.lastFired) >= t.waitFor
}

// State returns a snapshot of the trigger's internal state
func (t *base) State() domain.TriggerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	state := domain.TriggerState{
		Pending:   t.pending,
		LastFired: t.lastFired,
	}
	if t.snapshotFn != nil {
		state.Snapshot = t.snapshotFn()
	}
	return state
}

func (t *base) applyState(state domain.TriggerState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = state.Pending
	t.lastFired = state.LastFired
	if t.restoreFn != nil && state.Snapshot != nil {
		t.restoreFn(state.Snapshot)
	}
}

// RestoreStateFrom copies internal state from a predecessor instance during
// a live configuration reload. Only name and event type identity is assumed;
// differing configuration on old is fine, and old may already be closed.
func (t *base) RestoreStateFrom(old domain.Trigger) error {
	if old == nil {
		return common.InvalidInputError("predecessor trigger is nil")
	}
	if old.Name() != t.name || old.EventType() != t.eventType {
		return domain.StateMismatchError{
			Expected: fmt.Sprintf("%s/%s", t.name, t.eventType),
			Got:      fmt.Sprintf("%s/%s", old.Name(), old.EventType()),
		}
	}
	t.applyState(old.State())
	return nil
}

// SaveState checkpoints the trigger state to the durable store. Best effort:
// a slow or unavailable store is logged and the trigger proceeds with its
// in-memory state.
func (t *base) SaveState(ctx context.Context) {
	if t.store == nil {
		return
	}
	state := t.State()
	err := common.WithTimeout(ctx, t.storeTimeout, func(ctx context.Context) error {
		return t.store.Save(ctx, t.name, state)
	})
	if err != nil {
		t.logger.Warn("failed to checkpoint trigger state, continuing with in-memory state",
			"trigger", t.name, "error", err)
	}
}

// RestoreState reloads the last durable checkpoint. Used on process restart
// in place of RestoreStateFrom. A missing or unreadable checkpoint leaves
// the trigger with empty state.
func (t *base) RestoreState(ctx context.Context) {
	if t.store == nil {
		return
	}
	var state domain.TriggerState
	var found bool
	err := common.WithTimeout(ctx, t.storeTimeout, func(ctx context.Context) error {
		var loadErr error
		state, found, loadErr = t.store.Load(ctx, t.name)
		return loadErr
	})
	if err != nil {
		t.logger.Warn("failed to restore trigger state, starting from empty state",
			"trigger", t.name, "error", err)
		return
	}
	if !found {
		return
	}
	t.applyState(state)
}
