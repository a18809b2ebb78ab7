package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"searchscaler/internal/common"
	"searchscaler/internal/features/autoscaling/domain"
	"searchscaler/internal/features/autoscaling/listener"
	"searchscaler/internal/features/autoscaling/scheduler"
	"searchscaler/internal/features/autoscaling/trigger"
)

// Config is the domain-level autoscaling configuration applied to the
// service. Applying a new Config replaces triggers and listeners in place;
// replaced triggers hand their state off to their successors.
type Config struct {
	// ScheduleInterval is the evaluation tick period per trigger
	ScheduleInterval time.Duration

	// Triggers is the configured trigger set; empty seeds the default
	// auto-add-replicas trigger
	Triggers []domain.TriggerConfig

	// Listeners is the configured listener set
	Listeners []domain.ListenerConfig
}

// Listener implementation identifiers
const (
	ListenerClassLog     = "log"
	ListenerClassWebhook = "webhook"
)

// Service owns the trigger engine: the factory, the scheduler driving
// evaluation, the listener registry and the metrics collector.
type Service struct {
	factory   *trigger.Factory
	scheduler *scheduler.ScheduledTriggers
	listeners *listener.Registry
	metrics   *MetricsCollector
	executor  domain.ActionExecutor
	logger    *slog.Logger

	runCtx context.Context

	mu     sync.Mutex
	closed bool
}

// TriggerStatus is a read-only view of one scheduled trigger for the API
type TriggerStatus struct {
	Name      string                `json:"name"`
	EventType domain.EventType      `json:"eventType"`
	Enabled   bool                  `json:"enabled"`
	WaitFor   string                `json:"waitFor"`
	Actions   []domain.ActionConfig `json:"actions,omitempty"`
	Pending   bool                  `json:"pending"`
	LastFired *time.Time            `json:"lastFired,omitempty"`
}

// NewService creates the autoscaling service. runCtx bounds background
// processing such as action execution; executor may be nil, in which case
// actions are logged but not executed.
func NewService(runCtx context.Context, interval time.Duration, deps trigger.Deps, executor domain.ActionExecutor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if executor == nil {
		executor = listener.NewLogActionExecutor(logger)
	}

	s := &Service{
		factory:   trigger.NewFactory(deps),
		listeners: listener.NewRegistry(logger),
		metrics:   NewMetricsCollector(),
		executor:  executor,
		logger:    logger,
		runCtx:    runCtx,
	}
	s.scheduler = scheduler.NewScheduledTriggers(interval, s.buildProcessor, logger)
	return s
}

// Metrics returns the service's metrics collector for registration
func (s *Service) Metrics() *MetricsCollector {
	return s.metrics
}

// ApplyConfig applies the trigger and listener configuration. Configuration
// errors (unknown event types, malformed properties, failing inits) are
// collected and returned so they surface at apply time; valid entries are
// still applied. Triggers absent from the new config are removed.
func (s *Service) ApplyConfig(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return common.AlreadyClosedError("autoscaling service cannot apply config")
	}

	triggers := cfg.Triggers
	if len(triggers) == 0 {
		triggers = []domain.TriggerConfig{DefaultAutoAddReplicasTrigger()}
		s.logger.Info("no triggers configured, seeding default auto-add-replicas trigger")
	}

	var errs []error
	scheduled := make(map[string]bool)

	for _, tc := range triggers {
		if tc.Name == "" {
			errs = append(errs, common.InvalidInputError("trigger with event %q has no name", tc.Event))
			continue
		}
		if !tc.IsEnabled() {
			continue
		}

		eventType, err := domain.ParseEventType(tc.Event)
		if err != nil {
			errs = append(errs, fmt.Errorf("trigger %s: %w", tc.Name, err))
			continue
		}

		t, err := s.factory.Create(eventType, tc.Name, tc.Props())
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if err := s.scheduler.Add(ctx, t); err != nil {
			_ = t.Close()
			errs = append(errs, err)
			continue
		}
		scheduled[tc.Name] = true
	}

	// Drop triggers no longer configured (or newly disabled)
	for _, name := range s.scheduler.Names() {
		if !scheduled[name] {
			s.scheduler.Remove(ctx, name)
		}
	}
	s.metrics.SetScheduledTriggers(len(s.scheduler.Names()))

	// Listeners are rebuilt wholesale on every reload
	built := make([]domain.TriggerListener, 0, len(cfg.Listeners)+1)
	for _, lc := range cfg.Listeners {
		built = append(built, s.buildListener(lc))
	}
	built = append(built, NewMetricsListener(s.metrics))
	if err := s.listeners.SetListeners(ctx, built); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SubmitManualRequest queues a payload on a manual trigger
func (s *Service) SubmitManualRequest(name string, payload map[string]interface{}) error {
	t, ok := s.scheduler.Trigger(name)
	if !ok {
		return common.NotFoundError("trigger %s is not scheduled", name)
	}
	manual, ok := t.(*trigger.ManualTrigger)
	if !ok {
		return common.InvalidInputError("trigger %s is not a manual trigger", name)
	}
	return manual.Request(payload)
}

// TriggerStatuses returns a snapshot of every scheduled trigger
func (s *Service) TriggerStatuses() []TriggerStatus {
	triggers := s.scheduler.Triggers()
	statuses := make([]TriggerStatus, 0, len(triggers))
	for _, t := range triggers {
		state := t.State()
		status := TriggerStatus{
			Name:      t.Name(),
			EventType: t.EventType(),
			Enabled:   t.Enabled(),
			WaitFor:   t.WaitFor().String(),
			Actions:   t.Actions(),
			Pending:   state.Pending != nil,
		}
		if !state.LastFired.IsZero() {
			fired := state.LastFired
			status.LastFired = &fired
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// TriggerStatus returns the status of one scheduled trigger
func (s *Service) TriggerStatus(name string) (TriggerStatus, error) {
	for _, status := range s.TriggerStatuses() {
		if status.Name == name {
			return status, nil
		}
	}
	return TriggerStatus{}, common.NotFoundError("trigger %s is not scheduled", name)
}

// Close shuts the engine down: stops evaluation, closes triggers, listeners
// and the factory. Idempotent.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var errs []error
	if err := s.scheduler.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.listeners.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.factory.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Service) buildProcessor(t domain.Trigger) domain.EventProcessor {
	return listener.NewDispatchingProcessor(s.runCtx, t.Name(), t.Actions(), s.executor, s.listeners, s.logger)
}

func (s *Service) buildListener(lc domain.ListenerConfig) domain.TriggerListener {
	switch lc.Class {
	case ListenerClassWebhook:
		return listener.NewWebhookListener(lc, s.logger)
	case ListenerClassLog, "":
		return listener.NewLoggingListener(lc, s.logger)
	default:
		s.logger.Warn("unknown listener class, falling back to log listener",
			"listener", lc.Name, "class", lc.Class)
		return listener.NewLoggingListener(lc, s.logger)
	}
}

// DefaultAutoAddReplicasTrigger is the nodeLost trigger seeded when the
// configuration defines no triggers, so lost replicas are re-added without
// operator setup.
func DefaultAutoAddReplicasTrigger() domain.TriggerConfig {
	return domain.TriggerConfig{
		Name:    ".auto_add_replicas",
		Event:   string(domain.EventTypeNodeLost),
		WaitFor: "5s",
		Actions: []domain.ActionConfig{
			{Name: "auto_add_replicas_plan", Class: "searchscaler.AutoAddReplicasPlan"},
			{Name: "execute_plan", Class: "searchscaler.ExecutePlan"},
			{Name: "log_plan", Class: "searchscaler.LogPlan"},
		},
	}
}
