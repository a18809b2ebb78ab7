package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"searchscaler/internal/features/autoscaling/domain"
)

// MockEventProcessor is a mock implementation of domain.EventProcessor
type MockEventProcessor struct {
	mock.Mock
}

// Process mocks the Process method
func (m *MockEventProcessor) Process(event *domain.TriggerEvent) bool {
	args := m.Called(event)
	return args.Bool(0)
}

// MockTriggerListener is a mock implementation of domain.TriggerListener
type MockTriggerListener struct {
	mock.Mock
}

// Init mocks the Init method
func (m *MockTriggerListener) Init(ctx context.Context, config domain.ListenerConfig) error {
	args := m.Called(ctx, config)
	return args.Error(0)
}

// Config mocks the Config method
func (m *MockTriggerListener) Config() domain.ListenerConfig {
	args := m.Called()
	return args.Get(0).(domain.ListenerConfig)
}

// OnEvent mocks the OnEvent method
func (m *MockTriggerListener) OnEvent(stage domain.EventProcessorStage, actionName string, event *domain.TriggerEvent, message string) {
	m.Called(stage, actionName, event, message)
}

// Close mocks the Close method
func (m *MockTriggerListener) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockStateStore is a mock implementation of domain.StateStore
type MockStateStore struct {
	mock.Mock
}

// Save mocks the Save method
func (m *MockStateStore) Save(ctx context.Context, name string, state domain.TriggerState) error {
	args := m.Called(ctx, name, state)
	return args.Error(0)
}

// Load mocks the Load method
func (m *MockStateStore) Load(ctx context.Context, name string) (domain.TriggerState, bool, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(domain.TriggerState), args.Bool(1), args.Error(2)
}

// MockActionExecutor is a mock implementation of domain.ActionExecutor
type MockActionExecutor struct {
	mock.Mock
}

// Execute mocks the Execute method
func (m *MockActionExecutor) Execute(ctx context.Context, action domain.ActionConfig, event *domain.TriggerEvent) error {
	args := m.Called(ctx, action, event)
	return args.Error(0)
}

// MockClusterProvider is a mock implementation of the cluster provider
type MockClusterProvider struct {
	mock.Mock
}

// LiveNodes mocks the LiveNodes method
func (m *MockClusterProvider) LiveNodes(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
