package service

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"searchscaler/internal/features/autoscaling/domain"
)

// MetricsCollector manages Prometheus metrics for the trigger engine
type MetricsCollector struct {
	eventsAccepted    *prometheus.CounterVec
	stagesTotal       *prometheus.CounterVec
	scheduledTriggers prometheus.Gauge
	registered        bool
	mu                sync.Mutex
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		eventsAccepted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchscaler_trigger_events_accepted_total",
				Help: "Count of trigger events accepted for processing",
			},
			[]string{"trigger", "event_type"},
		),
		stagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchscaler_trigger_processing_stages_total",
				Help: "Count of event processing stage notifications per trigger",
			},
			[]string{"trigger", "stage"},
		),
		scheduledTriggers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "searchscaler_scheduled_triggers",
				Help: "Number of currently scheduled triggers",
			},
		),
	}
}

// Register registers all metrics with the given registry (the default
// registry if nil). Safe to call more than once.
func (m *MetricsCollector) Register(registry prometheus.Registerer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registered {
		return nil
	}
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{m.eventsAccepted, m.stagesTotal, m.scheduledTriggers} {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	m.registered = true
	return nil
}

// RecordStage counts one stage notification
func (m *MetricsCollector) RecordStage(trigger string, stage domain.EventProcessorStage) {
	m.stagesTotal.WithLabelValues(trigger, string(stage)).Inc()
}

// RecordAccepted counts one accepted event
func (m *MetricsCollector) RecordAccepted(trigger string, eventType domain.EventType) {
	m.eventsAccepted.WithLabelValues(trigger, string(eventType)).Inc()
}

// SetScheduledTriggers records the current number of scheduled triggers
func (m *MetricsCollector) SetScheduledTriggers(n int) {
	m.scheduledTriggers.Set(float64(n))
}

// MetricsListener feeds stage notifications into the metrics collector. It
// is installed alongside the configured listeners on every reload.
type MetricsListener struct {
	config    domain.ListenerConfig
	collector *MetricsCollector
}

// NewMetricsListener creates a metrics listener over the collector
func NewMetricsListener(collector *MetricsCollector) *MetricsListener {
	return &MetricsListener{
		config:    domain.ListenerConfig{Name: "metrics"},
		collector: collector,
	}
}

// Init prepares the listener
func (l *MetricsListener) Init(_ context.Context, config domain.ListenerConfig) error {
	l.config = config
	return nil
}

// Config returns the listener configuration
func (l *MetricsListener) Config() domain.ListenerConfig {
	return l.config
}

// OnEvent counts the stage notification
func (l *MetricsListener) OnEvent(stage domain.EventProcessorStage, _ string, event *domain.TriggerEvent, _ string) {
	l.collector.RecordStage(event.Source, stage)
	if stage == domain.StageStarted {
		l.collector.RecordAccepted(event.Source, event.EventType)
	}
}

// Close releases listener resources
func (l *MetricsListener) Close() error {
	return nil
}
