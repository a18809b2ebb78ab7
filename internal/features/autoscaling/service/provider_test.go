package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"searchscaler/internal/common"
	"searchscaler/internal/features/autoscaling/domain"
	"searchscaler/internal/features/autoscaling/domain/mocks"
	"searchscaler/internal/features/autoscaling/trigger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	cluster := new(mocks.MockClusterProvider)
	cluster.On("LiveNodes", mock.Anything).Return([]string{"node-1", "node-2"}, nil)

	deps := trigger.Deps{Cluster: cluster, StoreTimeout: time.Second}
	s := NewService(context.Background(), 10*time.Millisecond, deps, nil, nil)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestApplyConfigSchedulesConfiguredTriggers(t *testing.T) {
	s := newTestService(t)

	cfg := Config{
		Triggers: []domain.TriggerConfig{
			{Name: "node-lost", Event: "nodeLost", WaitFor: "5s"},
			{Name: "ops", Event: "manual"},
		},
	}
	require.NoError(t, s.ApplyConfig(context.Background(), cfg))

	statuses := s.TriggerStatuses()
	require.Len(t, statuses, 2)

	status, err := s.TriggerStatus("node-lost")
	require.NoError(t, err)
	assert.Equal(t, domain.EventTypeNodeLost, status.EventType)
	assert.Equal(t, "5s", status.WaitFor)
	assert.True(t, status.Enabled)
	assert.False(t, status.Pending)
	assert.Nil(t, status.LastFired)
}

func TestApplyConfigRejectsInvalidEntriesButAppliesValidOnes(t *testing.T) {
	s := newTestService(t)

	cfg := Config{
		Triggers: []domain.TriggerConfig{
			{Name: "good", Event: "manual"},
			{Name: "bad-type", Event: "diskFull"},
			{Name: "", Event: "manual"},
			{Name: "bad-schedule", Event: "scheduled", Schedule: "nope"},
		},
	}
	err := s.ApplyConfig(context.Background(), cfg)
	require.Error(t, err, "configuration problems must surface at apply time")
	assert.ErrorIs(t, err, domain.ErrUnknownEventType)

	statuses := s.TriggerStatuses()
	require.Len(t, statuses, 1, "the valid trigger should still be scheduled")
	assert.Equal(t, "good", statuses[0].Name)
}

func TestApplyConfigSeedsDefaultTriggerWhenEmpty(t *testing.T) {
	s := newTestService(t)

	require.NoError(t, s.ApplyConfig(context.Background(), Config{}))

	status, err := s.TriggerStatus(".auto_add_replicas")
	require.NoError(t, err, "an empty config seeds the auto-add-replicas trigger")
	assert.Equal(t, domain.EventTypeNodeLost, status.EventType)
	assert.Equal(t, "5s", status.WaitFor)
	require.Len(t, status.Actions, 3)
	assert.Equal(t, "auto_add_replicas_plan", status.Actions[0].Name)
}

func TestApplyConfigRemovesUnconfiguredTriggers(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.ApplyConfig(ctx, Config{
		Triggers: []domain.TriggerConfig{
			{Name: "node-lost", Event: "nodeLost"},
			{Name: "ops", Event: "manual"},
		},
	}))
	require.Len(t, s.TriggerStatuses(), 2)

	require.NoError(t, s.ApplyConfig(ctx, Config{
		Triggers: []domain.TriggerConfig{
			{Name: "ops", Event: "manual"},
		},
	}))

	statuses := s.TriggerStatuses()
	require.Len(t, statuses, 1, "triggers dropped from the config must be removed")
	assert.Equal(t, "ops", statuses[0].Name)
}

func TestApplyConfigSkipsDisabledTriggers(t *testing.T) {
	s := newTestService(t)
	disabled := false

	require.NoError(t, s.ApplyConfig(context.Background(), Config{
		Triggers: []domain.TriggerConfig{
			{Name: "ops", Event: "manual", Enabled: &disabled},
			{Name: "node-lost", Event: "nodeLost"},
		},
	}))

	_, err := s.TriggerStatus("ops")
	require.Error(t, err, "a disabled trigger must not be scheduled")
	assert.True(t, common.IsNotFound(err))
}

func TestSubmitManualRequest(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.ApplyConfig(ctx, Config{
		Triggers: []domain.TriggerConfig{
			{Name: "ops", Event: "manual"},
			{Name: "node-lost", Event: "nodeLost"},
		},
	}))

	require.NoError(t, s.SubmitManualRequest("ops", map[string]interface{}{"job": "reindex"}))

	err := s.SubmitManualRequest("missing", nil)
	require.Error(t, err)
	assert.True(t, common.IsNotFound(err))

	err = s.SubmitManualRequest("node-lost", nil)
	require.Error(t, err, "only manual triggers accept submitted events")
	assert.True(t, common.IsInvalidInput(err))
}

func TestServiceCloseStopsEngine(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.ApplyConfig(ctx, Config{
		Triggers: []domain.TriggerConfig{{Name: "ops", Event: "manual"}},
	}))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close should be idempotent")

	err := s.ApplyConfig(ctx, Config{})
	require.Error(t, err)
	assert.True(t, common.IsAlreadyClosed(err))
}
