package listener

import (
	"context"
	"log/slog"

	"searchscaler/internal/features/autoscaling/domain"
)

// LoggingListener writes every matching stage notification to the
// structured log.
type LoggingListener struct {
	config domain.ListenerConfig
	logger *slog.Logger
}

// NewLoggingListener creates a logging listener
func NewLoggingListener(config domain.ListenerConfig, logger *slog.Logger) *LoggingListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingListener{config: config, logger: logger}
}

// Init prepares the listener
func (l *LoggingListener) Init(_ context.Context, config domain.ListenerConfig) error {
	l.config = config
	return nil
}

// Config returns the listener configuration
func (l *LoggingListener) Config() domain.ListenerConfig {
	return l.config
}

// OnEvent logs the stage transition
func (l *LoggingListener) OnEvent(stage domain.EventProcessorStage, actionName string, event *domain.TriggerEvent, message string) {
	attrs := []any{
		"stage", stage,
		"trigger", event.Source,
		"eventType", event.EventType,
	}
	if actionName != "" {
		attrs = append(attrs, "action", actionName)
	}
	if message != "" {
		attrs = append(attrs, "message", message)
	}
	l.logger.Info("trigger processing stage", attrs...)
}

// Close releases listener resources
func (l *LoggingListener) Close() error {
	return nil
}
