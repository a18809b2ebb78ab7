package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"searchscaler/internal/common"
	"searchscaler/internal/features/autoscaling/domain"
	"searchscaler/internal/features/autoscaling/domain/mocks"
	"searchscaler/internal/features/autoscaling/store"
)

// fakeClock is a manually advanced clock for cooldown tests
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recordingProcessor records every offered event and answers with a scripted
// verdict per call, defaulting to accept once the script runs out.
type recordingProcessor struct {
	mu       sync.Mutex
	events   []*domain.TriggerEvent
	verdicts []bool
}

func (p *recordingProcessor) Process(event *domain.TriggerEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	if len(p.verdicts) == 0 {
		return true
	}
	verdict := p.verdicts[0]
	p.verdicts = p.verdicts[1:]
	return verdict
}

func (p *recordingProcessor) Events() []*domain.TriggerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*domain.TriggerEvent, len(p.events))
	copy(out, p.events)
	return out
}

func newManualForTest(t *testing.T, name string, clock *fakeClock, props map[string]interface{}) *ManualTrigger {
	t.Helper()
	deps := Deps{Now: clock.Now}
	if props == nil {
		props = map[string]interface{}{}
	}
	trig, err := NewManualTrigger(name, props, deps)
	require.NoError(t, err, "manual trigger creation should succeed")
	require.NoError(t, trig.Init(context.Background()))
	return trig
}

func TestCooldownSuppressesFiringUntilElapsed(t *testing.T) {
	clock := newFakeClock()
	trig := newManualForTest(t, "cooldown-trigger", clock, map[string]interface{}{
		"waitFor": "5s",
	})
	processor := &recordingProcessor{}
	trig.SetProcessor(processor)

	require.NoError(t, trig.Request(map[string]interface{}{"seq": 1}))
	require.NoError(t, trig.Request(map[string]interface{}{"seq": 2}))

	ctx := context.Background()

	trig.Run(ctx)
	assert.Len(t, processor.Events(), 1, "first request should fire immediately")
	assert.Equal(t, 1, trig.QueueLength(), "second request should still be queued")

	// Within the cooldown window nothing new may fire
	clock.Advance(2 * time.Second)
	trig.Run(ctx)
	assert.Len(t, processor.Events(), 1, "no event should fire inside the cooldown window")

	clock.Advance(3 * time.Second)
	trig.Run(ctx)
	require.Len(t, processor.Events(), 2, "second request should fire after the cooldown elapses")
	assert.Equal(t, 2, processor.Events()[1].Properties["seq"])
}

func TestRejectedEventRetriedEveryTickWithoutCooldown(t *testing.T) {
	clock := newFakeClock()
	trig := newManualForTest(t, "retry-trigger", clock, map[string]interface{}{
		"waitFor": "1h",
	})
	processor := &recordingProcessor{verdicts: []bool{false, false, false, true}}
	trig.SetProcessor(processor)

	require.NoError(t, trig.Request(map[string]interface{}{"job": "reindex"}))

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		trig.Run(ctx)
	}

	events := processor.Events()
	require.Len(t, events, 4, "a rejected event should be re-offered on every tick")
	for _, e := range events[1:] {
		assert.Same(t, events[0], e, "the identical event instance should be retried")
	}
	assert.Nil(t, trig.State().Pending, "acceptance should clear the pending event")

	// Only the accepted fire starts a cooldown
	state := trig.State()
	assert.Equal(t, clock.Now(), state.LastFired)
}

func TestEventHeldPendingUntilProcessorAttached(t *testing.T) {
	clock := newFakeClock()
	trig := newManualForTest(t, "no-processor", clock, nil)

	require.NoError(t, trig.Request(map[string]interface{}{"job": "backup"}))

	ctx := context.Background()
	trig.Run(ctx)

	state := trig.State()
	require.NotNil(t, state.Pending, "event should be retained without a processor")
	assert.True(t, state.LastFired.IsZero(), "holding an event is not a fire")

	processor := &recordingProcessor{}
	trig.SetProcessor(processor)
	trig.Run(ctx)

	require.Len(t, processor.Events(), 1)
	assert.Equal(t, "backup", processor.Events()[0].Properties["job"])
	assert.Nil(t, trig.State().Pending)
}

func TestProcessorPanicTreatedAsRejection(t *testing.T) {
	clock := newFakeClock()
	trig := newManualForTest(t, "panic-trigger", clock, nil)
	trig.SetProcessor(domain.EventProcessorFunc(func(*domain.TriggerEvent) bool {
		panic("downstream blew up")
	}))

	require.NoError(t, trig.Request(nil))

	ctx := context.Background()
	assert.NotPanics(t, func() { trig.Run(ctx) }, "a processor panic must not escape the evaluation loop")

	state := trig.State()
	require.NotNil(t, state.Pending, "a panicking processor counts as a rejection")
	assert.True(t, state.LastFired.IsZero())

	processor := &recordingProcessor{}
	trig.SetProcessor(processor)
	trig.Run(ctx)
	assert.Len(t, processor.Events(), 1, "the held event should fire once processing recovers")
}

func TestCloseIsIdempotentAndStopsEvaluation(t *testing.T) {
	clock := newFakeClock()
	trig := newManualForTest(t, "close-trigger", clock, nil)
	processor := &recordingProcessor{}
	trig.SetProcessor(processor)

	require.NoError(t, trig.Request(nil))
	require.NoError(t, trig.Close())
	require.NoError(t, trig.Close(), "close should be idempotent")
	assert.True(t, trig.IsClosed())

	trig.Run(context.Background())
	assert.Empty(t, processor.Events(), "a closed trigger must not offer events")

	err := trig.Request(nil)
	assert.ErrorIs(t, err, domain.ErrTriggerClosed)
}

func TestRestoreStateFromPredecessor(t *testing.T) {
	clock := newFakeClock()
	old := newManualForTest(t, "reloaded", clock, map[string]interface{}{"waitFor": "5s"})
	processor := &recordingProcessor{verdicts: []bool{false}}
	old.SetProcessor(processor)

	require.NoError(t, old.Request(map[string]interface{}{"seq": 1}))
	require.NoError(t, old.Request(map[string]interface{}{"seq": 2}))
	old.Run(context.Background())
	require.NotNil(t, old.State().Pending, "rejected event should be pending before handoff")
	require.NoError(t, old.Close())

	replacement := newManualForTest(t, "reloaded", clock, map[string]interface{}{"waitFor": "30s"})
	require.NoError(t, replacement.RestoreStateFrom(old), "handoff from a closed predecessor should work")

	state := replacement.State()
	require.NotNil(t, state.Pending)
	assert.Equal(t, 1, state.Pending.Properties["seq"])
	assert.Equal(t, 1, replacement.QueueLength(), "queued requests should carry over")
}

func TestRestoreStateFromRejectsMismatchedIdentity(t *testing.T) {
	clock := newFakeClock()
	trig := newManualForTest(t, "trigger-a", clock, nil)
	other := newManualForTest(t, "trigger-b", clock, nil)

	err := trig.RestoreStateFrom(other)
	require.Error(t, err)
	assert.True(t, domain.IsStateMismatch(err), "a name mismatch should be a state mismatch error")

	err = trig.RestoreStateFrom(nil)
	require.Error(t, err)
	assert.True(t, common.IsInvalidInput(err))
}

func TestSaveAndRestoreStateRoundTrip(t *testing.T) {
	clock := newFakeClock()
	stateStore := store.NewMemoryStore()
	deps := Deps{Now: clock.Now, Store: stateStore, StoreTimeout: time.Second}

	trig, err := NewManualTrigger("durable", map[string]interface{}{"waitFor": "5s"}, deps)
	require.NoError(t, err)
	trig.SetProcessor(&recordingProcessor{verdicts: []bool{true, false}})

	ctx := context.Background()
	require.NoError(t, trig.Request(map[string]interface{}{"seq": 1}))
	require.NoError(t, trig.Request(map[string]interface{}{"seq": 2}))
	trig.Run(ctx)
	clock.Advance(5 * time.Second)
	trig.Run(ctx)
	require.NotNil(t, trig.State().Pending, "second event should be pending after rejection")
	trig.SaveState(ctx)

	restarted, err := NewManualTrigger("durable", map[string]interface{}{"waitFor": "5s"}, deps)
	require.NoError(t, err)
	restarted.RestoreState(ctx)

	state := restarted.State()
	require.NotNil(t, state.Pending, "pending event should survive a restart")
	assert.Equal(t, trig.State().LastFired.Unix(), state.LastFired.Unix())
}

func TestRestoreStateWithNoCheckpointStartsEmpty(t *testing.T) {
	clock := newFakeClock()
	deps := Deps{Now: clock.Now, Store: store.NewMemoryStore(), StoreTimeout: time.Second}

	trig, err := NewManualTrigger("fresh", nil, deps)
	require.NoError(t, err)
	trig.RestoreState(context.Background())

	state := trig.State()
	assert.Nil(t, state.Pending)
	assert.True(t, state.LastFired.IsZero())
}

// countingStore delegates to another store and counts Save calls
type countingStore struct {
	domain.StateStore
	mu    sync.Mutex
	saves int
}

func (s *countingStore) Save(ctx context.Context, name string, state domain.TriggerState) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return s.StateStore.Save(ctx, name, state)
}

func (s *countingStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// stalledStore blocks every call until the caller's context expires
type stalledStore struct{}

func (stalledStore) Save(ctx context.Context, _ string, _ domain.TriggerState) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledStore) Load(ctx context.Context, _ string) (domain.TriggerState, bool, error) {
	<-ctx.Done()
	return domain.TriggerState{}, false, ctx.Err()
}

func TestFailingStateStoreLeavesTriggerFunctional(t *testing.T) {
	clock := newFakeClock()
	stateStore := new(mocks.MockStateStore)
	stateStore.On("Load", mock.Anything, "flaky").
		Return(domain.TriggerState{}, false, errors.New("configmaps unavailable"))
	stateStore.On("Save", mock.Anything, "flaky", mock.Anything).
		Return(errors.New("configmaps unavailable"))

	deps := Deps{Now: clock.Now, Store: stateStore, StoreTimeout: time.Second}
	trig, err := NewManualTrigger("flaky", nil, deps)
	require.NoError(t, err)
	require.NoError(t, trig.Init(context.Background()))

	ctx := context.Background()
	trig.RestoreState(ctx)
	assert.Nil(t, trig.State().Pending, "a failing load should leave the trigger with empty state")

	processor := new(mocks.MockEventProcessor)
	processor.On("Process", mock.Anything).Return(true)
	trig.SetProcessor(processor)

	require.NoError(t, trig.Request(map[string]interface{}{"job": "reindex"}))
	assert.NotPanics(t, func() { trig.Run(ctx) }, "a failing store must not break evaluation")

	processor.AssertNumberOfCalls(t, "Process", 1)
	state := trig.State()
	assert.Nil(t, state.Pending, "the event should fire despite the failed checkpoint")
	assert.Equal(t, clock.Now(), state.LastFired)

	trig.SaveState(ctx)
	stateStore.AssertExpectations(t)
}

func TestStalledStateStoreBoundedByTimeout(t *testing.T) {
	clock := newFakeClock()
	deps := Deps{Now: clock.Now, Store: stalledStore{}, StoreTimeout: 20 * time.Millisecond}
	trig, err := NewManualTrigger("stalled", nil, deps)
	require.NoError(t, err)

	processor := &recordingProcessor{}
	trig.SetProcessor(processor)
	require.NoError(t, trig.Request(map[string]interface{}{"job": "backup"}))

	ctx := context.Background()
	start := time.Now()
	trig.Run(ctx)
	assert.Less(t, time.Since(start), time.Second,
		"a stalled store must not block evaluation past the store timeout")
	require.Len(t, processor.Events(), 1, "the event should fire while the checkpoint times out")

	trig.RestoreState(ctx)
	assert.Nil(t, trig.State().Pending, "a timed-out load should leave in-memory state intact")
	assert.Equal(t, clock.Now(), trig.State().LastFired)
}

func TestRejectedReofferSkipsRedundantCheckpoints(t *testing.T) {
	clock := newFakeClock()
	counted := &countingStore{StateStore: store.NewMemoryStore()}
	deps := Deps{Now: clock.Now, Store: counted, StoreTimeout: time.Second}

	trig, err := NewManualTrigger("thrifty", nil, deps)
	require.NoError(t, err)
	trig.SetProcessor(&recordingProcessor{verdicts: []bool{false, false, false, true}})

	ctx := context.Background()
	require.NoError(t, trig.Request(map[string]interface{}{"job": "reindex"}))
	for i := 0; i < 4; i++ {
		trig.Run(ctx)
	}

	assert.Equal(t, 2, counted.Saves(),
		"only the first rejection and the acceptance should checkpoint; unchanged re-offers should not")
	assert.Nil(t, trig.State().Pending)
}
