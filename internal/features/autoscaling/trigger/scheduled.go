package trigger

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"searchscaler/internal/common"
	"searchscaler/internal/features/autoscaling/domain"
)

// Event and snapshot keys for scheduled triggers
const (
	propScheduledTime = "scheduledTime"
	propActualTime    = "actualTime"
	snapNextFireTime  = "nextFireTime"
)

// ScheduledTrigger fires on a cron schedule rather than on a cluster
// condition. The next fire time is part of the persisted state, so a missed
// schedule during downtime fires once on the next evaluation after restart.
type ScheduledTrigger struct {
	*base
	schedule cron.Schedule
	spec     string
	next     time.Time
}

// NewScheduledTrigger creates a scheduled trigger from the schedule property,
// a standard 5-field cron expression or descriptor such as "@hourly".
func NewScheduledTrigger(name string, props map[string]interface{}, deps Deps) (*ScheduledTrigger, error) {
	b, err := newBase(name, domain.EventTypeScheduled, props, deps)
	if err != nil {
		return nil, err
	}

	spec, _ := props[propSchedule].(string)
	if spec == "" {
		return nil, common.InvalidInputError("trigger %s: schedule is required", name)
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, common.InvalidInputError("trigger %s: schedule %q: %v", name, spec, err)
	}

	t := &ScheduledTrigger{
		base:     b,
		schedule: schedule,
		spec:     spec,
	}
	b.snapshotFn = t.snapshot
	b.restoreFn = t.restore
	return t, nil
}

// Init computes the first fire time unless a restored checkpoint already set
// one.
func (t *ScheduledTrigger) Init(_ context.Context) error {
	t.locked(func() {
		if t.next.IsZero() {
			t.next = t.schedule.Next(t.now())
		}
	})
	return nil
}

// Run performs one evaluation tick
func (t *ScheduledTrigger) Run(ctx context.Context) {
	t.evaluate(ctx, t.detect)
}

func (t *ScheduledTrigger) detect(_ context.Context) (*domain.TriggerEvent, error) {
	var fire time.Time
	now := t.now()

	t.locked(func() {
		if t.next.IsZero() {
			t.next = t.schedule.Next(now)
			return
		}
		if !now.Before(t.next) {
			fire = t.next
			t.next = t.schedule.Next(now)
		}
	})

	if fire.IsZero() {
		return nil, nil
	}

	return domain.NewTriggerEvent(t.Name(), t.EventType(), now, map[string]interface{}{
		propScheduledTime: fire.Format(time.RFC3339),
		propActualTime:    now.Format(time.RFC3339),
	}), nil
}

func (t *ScheduledTrigger) snapshot() map[string]interface{} {
	if t.next.IsZero() {
		return map[string]interface{}{}
	}
	return map[string]interface{}{
		snapNextFireTime: t.next.Format(time.RFC3339),
	}
}

func (t *ScheduledTrigger) restore(snapshot map[string]interface{}) {
	raw, ok := snapshot[snapNextFireTime].(string)
	if !ok {
		return
	}
	if next, err := time.Parse(time.RFC3339, raw); err == nil {
		t.next = next
	}
}
