package domain

import (
	"context"
	"time"
)

// EventProcessor is the acceptance gate for events produced by a trigger.
// Process reports whether the event was accepted for downstream handling,
// not whether remediation completed; completion is reported asynchronously
// through the listener stage protocol. It must be safe to call repeatedly
// with the same event if a prior call returned false, because the trigger
// re-offers a rejected event on every subsequent evaluation.
type EventProcessor interface {
	Process(event *TriggerEvent) bool
}

// EventProcessorFunc adapts a function to the EventProcessor interface
type EventProcessorFunc func(event *TriggerEvent) bool

// Process calls f(event)
func (f EventProcessorFunc) Process(event *TriggerEvent) bool {
	return f(event)
}

// TriggerListener observes stages of event processing. Instances are closed
// and rebuilt on every autoscaling configuration update, so implementations
// must not keep cross-reload state as their sole source of truth. Listeners
// are independent of correctness: a failing listener never affects event
// delivery.
type TriggerListener interface {
	// Init prepares the listener; resources acquired here are released in Close
	Init(ctx context.Context, config ListenerConfig) error

	// Config returns the configuration the listener was initialized with
	Config() ListenerConfig

	// OnEvent is called when a stage or action name the listener registered
	// for is reached during event processing
	OnEvent(stage EventProcessorStage, actionName string, event *TriggerEvent, message string)

	// Close releases listener resources; idempotent
	Close() error
}

// Trigger is a periodically evaluated detector of one cluster condition
// type. A trigger is driven by a scheduler that guarantees at most one
// evaluation in flight per trigger at any time, so implementations need not
// be internally thread safe against concurrent evaluation. The processor
// slot is the exception: it may be set from a configuration thread while
// evaluation runs on the scheduler goroutine, and must be guarded.
type Trigger interface {
	// Name returns the trigger name
	Name() string

	// EventType returns the event type generated by this trigger
	EventType() EventType

	// Enabled reports whether this trigger is enabled
	Enabled() bool

	// Properties returns the raw configuration properties
	Properties() map[string]interface{}

	// WaitFor returns the cooldown between accepted fires
	WaitFor() time.Duration

	// Actions returns the ordered remediation actions for fired events
	Actions() []ActionConfig

	// SetProcessor attaches the processor called when an event fires
	SetProcessor(processor EventProcessor)

	// Processor returns the currently attached processor
	Processor() EventProcessor

	// IsClosed reports whether the trigger was closed; monotonic
	IsClosed() bool

	// Init performs heavy setup before the trigger is scheduled. A trigger
	// whose Init fails must not be scheduled.
	Init(ctx context.Context) error

	// Run performs one evaluation tick
	Run(ctx context.Context)

	// State returns a snapshot of the trigger's internal state
	State() TriggerState

	// RestoreStateFrom copies internal state from a predecessor instance of
	// the same name and event type during a live configuration reload. It
	// succeeds even if old is already closed and fails fast on identity
	// mismatch.
	RestoreStateFrom(old Trigger) error

	// SaveState checkpoints internal state to the durable store; best effort
	SaveState(ctx context.Context)

	// RestoreState reloads the last durable checkpoint, used on process
	// restart. A missing checkpoint yields empty state, not an error.
	RestoreState(ctx context.Context)

	// Close releases resources acquired in Init; idempotent. All subsequent
	// Run calls are no-ops.
	Close() error
}

// StateStore is the durable coordination substrate for trigger checkpoints,
// keyed by trigger name. Implementations must bound their latency; callers
// treat failures as non-fatal and proceed with in-memory state.
type StateStore interface {
	// Save writes the state snapshot for a trigger
	Save(ctx context.Context, triggerName string, state TriggerState) error

	// Load reads the state snapshot for a trigger. The second return value
	// reports whether a checkpoint existed.
	Load(ctx context.Context, triggerName string) (TriggerState, bool, error)
}

// ActionExecutor runs one named remediation action for an event. Execution
// is external to the control loop; the dispatcher only brackets it with
// BEFORE_ACTION/AFTER_ACTION notifications.
type ActionExecutor interface {
	Execute(ctx context.Context, action ActionConfig, event *TriggerEvent) error
}
