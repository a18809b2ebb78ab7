package domain

import (
	"fmt"
	"time"
)

// EventType identifies the kind of cluster condition a trigger watches for.
// Fixed at trigger construction and immutable for the trigger's lifetime.
type EventType string

// Supported event types
const (
	EventTypeNodeAdded   EventType = "nodeAdded"
	EventTypeNodeLost    EventType = "nodeLost"
	EventTypeReplicaLost EventType = "replicaLost"
	EventTypeManual      EventType = "manual"
	EventTypeScheduled   EventType = "scheduled"
	EventTypeSearchRate  EventType = "searchRate"
	EventTypeIndexRate   EventType = "indexRate"
)

// ParseEventType converts a configuration string into an EventType
func ParseEventType(s string) (EventType, error) {
	switch EventType(s) {
	case EventTypeNodeAdded, EventTypeNodeLost, EventTypeReplicaLost,
		EventTypeManual, EventTypeScheduled, EventTypeSearchRate, EventTypeIndexRate:
		return EventType(s), nil
	}
	return "", fmt.Errorf("event type %q: %w", s, ErrUnknownEventType)
}

// EventProcessorStage describes an observable point in processing one event.
// WAITING, STARTED, ABORTED, SUCCEEDED and FAILED describe the outer
// processing attempt; BEFORE_ACTION and AFTER_ACTION bracket each individual
// action in the remediation pipeline and may occur multiple times per event.
type EventProcessorStage string

// Processing stages
const (
	StageWaiting      EventProcessorStage = "WAITING"
	StageStarted      EventProcessorStage = "STARTED"
	StageAborted      EventProcessorStage = "ABORTED"
	StageSucceeded    EventProcessorStage = "SUCCEEDED"
	StageFailed       EventProcessorStage = "FAILED"
	StageBeforeAction EventProcessorStage = "BEFORE_ACTION"
	StageAfterAction  EventProcessorStage = "AFTER_ACTION"
)

// TriggerEvent is an immutable record of a detected cluster condition.
// It is created and owned by the trigger that detected it and passed by
// reference to the event processor; consumers must treat it as read-only.
type TriggerEvent struct {
	// Source is the name of the trigger that produced this event
	Source string `json:"source"`

	// EventType is the kind of condition the event describes
	EventType EventType `json:"eventType"`

	// EventTime is when the condition was detected
	EventTime time.Time `json:"eventTime"`

	// Properties describes the specific condition, e.g. which nodes
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// NewTriggerEvent creates an event for the given trigger
func NewTriggerEvent(source string, eventType EventType, eventTime time.Time, properties map[string]interface{}) *TriggerEvent {
	return &TriggerEvent{
		Source:     source,
		EventType:  eventType,
		EventTime:  eventTime,
		Properties: properties,
	}
}

// ActionConfig names one remediation action in a trigger's pipeline.
// The control loop treats actions as opaque names to bracket with
// BEFORE_ACTION/AFTER_ACTION notifications; it does not interpret them.
type ActionConfig struct {
	// Name is the action's unique name within the trigger
	Name string `json:"name" mapstructure:"name"`

	// Class is the implementation identifier resolved by the action runner
	Class string `json:"class" mapstructure:"class"`
}

// ListenerConfig describes which notifications a trigger listener receives.
// Empty filter fields match everything.
type ListenerConfig struct {
	// Name is the listener's unique name
	Name string `json:"name" mapstructure:"name"`

	// Class is the listener implementation identifier, e.g. "webhook"
	Class string `json:"class" mapstructure:"class"`

	// Trigger restricts notifications to one trigger by name
	Trigger string `json:"trigger" mapstructure:"trigger"`

	// Stages restricts notifications to the listed stages
	Stages []EventProcessorStage `json:"stages" mapstructure:"stages"`

	// Actions restricts BEFORE_ACTION/AFTER_ACTION notifications by action name
	Actions []string `json:"actions" mapstructure:"actions"`

	// Properties holds listener-specific settings, e.g. a webhook URL
	Properties map[string]interface{} `json:"properties" mapstructure:"properties"`
}

// Matches reports whether a notification for the given trigger, stage and
// action passes this config's filters.
func (c ListenerConfig) Matches(triggerName string, stage EventProcessorStage, actionName string) bool {
	if c.Trigger != "" && c.Trigger != triggerName {
		return false
	}
	if len(c.Stages) > 0 {
		found := false
		for _, s := range c.Stages {
			if s == stage {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(c.Actions) > 0 && actionName != "" {
		found := false
		for _, a := range c.Actions {
			if a == actionName {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// TriggerState is the unit of persistence and cross-instance handoff for a
// trigger: the pending un-acknowledged event, the last accepted fire time and
// the type-specific condition snapshot. A snapshot written by one
// configuration of a trigger must be loadable by a trigger of the same name
// and event type even if other configuration properties changed.
type TriggerState struct {
	// Pending is the event offered but not yet accepted downstream
	Pending *TriggerEvent `json:"pending,omitempty"`

	// LastFired is when the last event was accepted, for cooldown enforcement
	LastFired time.Time `json:"lastFired,omitempty"`

	// Snapshot holds type-specific condition state, e.g. last known live nodes
	Snapshot map[string]interface{} `json:"snapshot,omitempty"`
}
