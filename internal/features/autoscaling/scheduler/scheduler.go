package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"searchscaler/internal/common"
	"searchscaler/internal/features/autoscaling/domain"
)

// ProcessorFactory builds the event processor attached to a trigger when it
// is scheduled. Processors that also implement io.Closer are closed when the
// trigger is removed.
type ProcessorFactory func(t domain.Trigger) domain.EventProcessor

// ScheduledTriggers drives periodic evaluation of the live trigger set. Each
// trigger runs on its own goroutine with a ticker, so per trigger the ticks
// are strictly sequential: the next tick never begins before the previous
// Run returns. Adding a trigger under an existing name replaces it with an
// in-process state handoff.
type ScheduledTriggers struct {
	interval     time.Duration
	processorFor ProcessorFactory
	logger       *slog.Logger

	mu       sync.Mutex
	triggers map[string]*scheduledTrigger
	closed   bool
	wg       sync.WaitGroup
}

type scheduledTrigger struct {
	trigger   domain.Trigger
	processor domain.EventProcessor
	stop      chan struct{}
	done      chan struct{}
}

// NewScheduledTriggers creates a trigger scheduler evaluating each trigger
// once per interval
func NewScheduledTriggers(interval time.Duration, processorFor ProcessorFactory, logger *slog.Logger) *ScheduledTriggers {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduledTriggers{
		interval:     interval,
		processorFor: processorFor,
		logger:       logger,
		triggers:     make(map[string]*scheduledTrigger),
	}
}

// Add initializes and schedules a trigger. A trigger whose Init fails is not
// scheduled. If a trigger of the same name is already scheduled, the old
// instance is stopped, its state handed off to the new one, and then closed,
// so no in-flight event is lost or duplicated across the swap. A fresh
// trigger instead reloads its durable checkpoint.
func (s *ScheduledTriggers) Add(ctx context.Context, t domain.Trigger) error {
	if err := t.Init(ctx); err != nil {
		return fmt.Errorf("trigger %s init failed: %w", t.Name(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return common.AlreadyClosedError("trigger scheduler cannot add trigger %q", t.Name())
	}

	old, replacing := s.triggers[t.Name()]
	if replacing {
		s.stopLocked(old)

		if old.trigger.EventType() == t.EventType() {
			if err := t.RestoreStateFrom(old.trigger); err != nil {
				return fmt.Errorf("trigger %s state handoff failed: %w", t.Name(), err)
			}
		} else {
			// Same name, different event type: the predecessor's state and
			// its durable checkpoint are incompatible, so start empty and
			// overwrite the checkpoint.
			s.logger.Info("trigger event type changed, discarding predecessor state",
				"trigger", t.Name(),
				"oldEventType", old.trigger.EventType(),
				"newEventType", t.EventType())
			t.SaveState(ctx)
		}
		if err := old.trigger.Close(); err != nil {
			s.logger.Warn("failed to close replaced trigger",
				"trigger", t.Name(), "error", err)
		}
		s.closeProcessor(old)
	} else {
		t.RestoreState(ctx)
	}

	processor := s.processorFor(t)
	t.SetProcessor(processor)

	st := &scheduledTrigger{
		trigger:   t,
		processor: processor,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.triggers[t.Name()] = st

	s.wg.Add(1)
	go s.runLoop(ctx, st)

	s.logger.Info("trigger scheduled",
		"trigger", t.Name(), "eventType", t.EventType(), "interval", s.interval)
	return nil
}

// Remove stops and closes a scheduled trigger, checkpointing its state first
func (s *ScheduledTriggers) Remove(ctx context.Context, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.triggers[name]
	if !ok {
		return
	}
	s.stopLocked(st)
	st.trigger.SaveState(ctx)
	if err := st.trigger.Close(); err != nil {
		s.logger.Warn("failed to close trigger", "trigger", name, "error", err)
	}
	s.closeProcessor(st)
	delete(s.triggers, name)

	s.logger.Info("trigger removed", "trigger", name)
}

// Trigger returns a scheduled trigger by name
func (s *ScheduledTriggers) Trigger(name string) (domain.Trigger, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.triggers[name]
	if !ok {
		return nil, false
	}
	return st.trigger, true
}

// Triggers returns the currently scheduled triggers
func (s *ScheduledTriggers) Triggers() []domain.Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	triggers := make([]domain.Trigger, 0, len(s.triggers))
	for _, st := range s.triggers {
		triggers = append(triggers, st.trigger)
	}
	return triggers
}

// Names returns the names of the currently scheduled triggers
func (s *ScheduledTriggers) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.triggers))
	for name := range s.triggers {
		names = append(names, name)
	}
	return names
}

// Close stops all evaluation loops and closes every trigger. Idempotent. An
// in-flight evaluation tick completes, but no new tick starts afterwards.
func (s *ScheduledTriggers) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true

	ctx := context.Background()
	for name, st := range s.triggers {
		s.stopLocked(st)
		st.trigger.SaveState(ctx)
		if err := st.trigger.Close(); err != nil {
			s.logger.Warn("failed to close trigger", "trigger", name, "error", err)
		}
		s.closeProcessor(st)
	}
	s.triggers = make(map[string]*scheduledTrigger)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// runLoop evaluates one trigger until it is stopped. The single goroutine is
// what guarantees at most one evaluation in flight per trigger.
func (s *ScheduledTriggers) runLoop(ctx context.Context, st *scheduledTrigger) {
	defer s.wg.Done()
	defer close(st.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-st.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.trigger.Run(ctx)
		}
	}
}

// stopLocked stops a trigger's loop and waits for any in-flight evaluation
// to return. Called with s.mu held; the loop never takes s.mu, so waiting
// here cannot deadlock.
func (s *ScheduledTriggers) stopLocked(st *scheduledTrigger) {
	select {
	case <-st.stop:
		// already stopped
	default:
		close(st.stop)
	}
	<-st.done
}

func (s *ScheduledTriggers) closeProcessor(st *scheduledTrigger) {
	if closer, ok := st.processor.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.Warn("failed to close event processor",
				"trigger", st.trigger.Name(), "error", err)
		}
	}
}
