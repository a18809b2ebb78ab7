package trigger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualTriggerDrainsOneRequestPerTick(t *testing.T) {
	clock := newFakeClock()
	trig := newManualForTest(t, "manual", clock, nil)
	processor := &recordingProcessor{}
	trig.SetProcessor(processor)

	for i := 1; i <= 3; i++ {
		require.NoError(t, trig.Request(map[string]interface{}{"seq": i}))
	}
	require.Equal(t, 3, trig.QueueLength())

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		trig.Run(ctx)
		assert.Equal(t, 3-i, trig.QueueLength())
	}

	events := processor.Events()
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, i+1, e.Properties["seq"], "requests must fire in arrival order")
	}
}

func TestManualTriggerNilPayloadBecomesEmptyProperties(t *testing.T) {
	clock := newFakeClock()
	trig := newManualForTest(t, "manual", clock, nil)
	processor := &recordingProcessor{}
	trig.SetProcessor(processor)

	require.NoError(t, trig.Request(nil))
	trig.Run(context.Background())

	events := processor.Events()
	require.Len(t, events, 1)
	assert.NotNil(t, events[0].Properties)
	assert.Empty(t, events[0].Properties)
}
