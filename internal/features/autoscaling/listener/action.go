package listener

import (
	"context"
	"log/slog"

	"searchscaler/internal/features/autoscaling/domain"
)

// LogActionExecutor records action execution in the structured log without
// performing any remediation. It stands in wherever no real action runner is
// wired, keeping the stage protocol observable end to end.
type LogActionExecutor struct {
	logger *slog.Logger
}

// NewLogActionExecutor creates a logging action executor
func NewLogActionExecutor(logger *slog.Logger) *LogActionExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogActionExecutor{logger: logger}
}

// Execute logs the action and event
func (e *LogActionExecutor) Execute(_ context.Context, action domain.ActionConfig, event *domain.TriggerEvent) error {
	e.logger.Info("executing action",
		"action", action.Name,
		"class", action.Class,
		"trigger", event.Source,
		"eventType", event.EventType,
	)
	return nil
}
