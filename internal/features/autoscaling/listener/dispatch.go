package listener

import (
	"context"
	"log/slog"
	"sync/atomic"

	"searchscaler/internal/features/autoscaling/domain"
)

// DispatchingProcessor is the event processor attached to each scheduled
// trigger. It gates acceptance (one event in flight at a time), then drives
// the stage protocol: STARTED, a BEFORE_ACTION/AFTER_ACTION pair around
// every configured action in declared order, and SUCCEEDED, FAILED or
// ABORTED to close out. The boolean returned to the trigger only means the
// event was accepted; completion is what the stages report.
type DispatchingProcessor struct {
	ctx         context.Context
	triggerName string
	actions     []domain.ActionConfig
	executor    domain.ActionExecutor
	registry    *Registry
	logger      *slog.Logger

	busy   atomic.Bool
	closed atomic.Bool
}

// NewDispatchingProcessor creates a dispatching processor for one trigger
func NewDispatchingProcessor(ctx context.Context, triggerName string, actions []domain.ActionConfig, executor domain.ActionExecutor, registry *Registry, logger *slog.Logger) *DispatchingProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DispatchingProcessor{
		ctx:         ctx,
		triggerName: triggerName,
		actions:     actions,
		executor:    executor,
		registry:    registry,
		logger:      logger,
	}
}

// Process attempts to handle one event. A false return means the trigger
// should keep the event pending and re-offer it next tick.
func (d *DispatchingProcessor) Process(event *domain.TriggerEvent) bool {
	if d.closed.Load() {
		return false
	}
	if !d.busy.CompareAndSwap(false, true) {
		d.fire(domain.StageWaiting, "", event, "previous event still being processed")
		return false
	}
	defer d.busy.Store(false)

	d.fire(domain.StageStarted, "", event, "")

	for _, action := range d.actions {
		if d.closed.Load() {
			d.fire(domain.StageAborted, action.Name, event, "processor closed during action pipeline")
			return true
		}

		d.fire(domain.StageBeforeAction, action.Name, event, "")
		if d.executor != nil {
			if err := d.executor.Execute(d.ctx, action, event); err != nil {
				d.logger.Error("action failed",
					"trigger", d.triggerName, "action", action.Name, "error", err)
				d.fire(domain.StageFailed, action.Name, event, err.Error())
				return true
			}
		}
		d.fire(domain.StageAfterAction, action.Name, event, "")
	}

	d.fire(domain.StageSucceeded, "", event, "")
	return true
}

// Close stops acceptance of further events. An in-flight pipeline finishes
// its current action and reports ABORTED.
func (d *DispatchingProcessor) Close() error {
	d.closed.Store(true)
	return nil
}

func (d *DispatchingProcessor) fire(stage domain.EventProcessorStage, actionName string, event *domain.TriggerEvent, message string) {
	if d.registry == nil {
		return
	}
	d.registry.Fire(d.triggerName, stage, actionName, event, message)
}
