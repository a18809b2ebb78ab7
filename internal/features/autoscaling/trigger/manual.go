package trigger

import (
	"context"

	"searchscaler/internal/features/autoscaling/domain"
)

// Snapshot key for queued manual requests
const snapQueued = "queued"

// ManualTrigger fires for operator-submitted requests rather than detected
// conditions. Requests queue in arrival order and drain one event per
// evaluation tick, so each request gets its own processing attempt.
type ManualTrigger struct {
	*base
	queue []map[string]interface{}
}

// NewManualTrigger creates a manual trigger
func NewManualTrigger(name string, props map[string]interface{}, deps Deps) (*ManualTrigger, error) {
	b, err := newBase(name, domain.EventTypeManual, props, deps)
	if err != nil {
		return nil, err
	}

	t := &ManualTrigger{base: b}
	b.snapshotFn = t.snapshot
	b.restoreFn = t.restore
	return t, nil
}

// Request queues an operator request. The payload becomes the event
// properties when the request fires.
func (t *ManualTrigger) Request(payload map[string]interface{}) error {
	if t.IsClosed() {
		return domain.ErrTriggerClosed
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	t.locked(func() {
		t.queue = append(t.queue, payload)
	})
	return nil
}

// QueueLength returns the number of requests waiting to fire
func (t *ManualTrigger) QueueLength() int {
	var n int
	t.locked(func() {
		n = len(t.queue)
	})
	return n
}

// Run performs one evaluation tick
func (t *ManualTrigger) Run(ctx context.Context) {
	t.evaluate(ctx, t.detect)
}

func (t *ManualTrigger) detect(_ context.Context) (*domain.TriggerEvent, error) {
	var payload map[string]interface{}
	t.locked(func() {
		if len(t.queue) == 0 {
			return
		}
		payload = t.queue[0]
		t.queue = t.queue[1:]
	})

	if payload == nil {
		return nil, nil
	}
	return domain.NewTriggerEvent(t.Name(), t.EventType(), t.now(), payload), nil
}

func (t *ManualTrigger) snapshot() map[string]interface{} {
	queued := make([]map[string]interface{}, len(t.queue))
	copy(queued, t.queue)
	return map[string]interface{}{
		snapQueued: queued,
	}
}

func (t *ManualTrigger) restore(snapshot map[string]interface{}) {
	t.queue = nil
	switch v := snapshot[snapQueued].(type) {
	case []map[string]interface{}:
		t.queue = append(t.queue, v...)
	case []interface{}:
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				t.queue = append(t.queue, m)
			}
		}
	}
}
