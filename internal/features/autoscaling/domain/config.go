package domain

// TriggerConfig is one trigger definition from the autoscaling
// configuration document
type TriggerConfig struct {
	// Name is the trigger's unique name
	Name string `mapstructure:"name"`

	// Event is the event type string, e.g. "nodeLost"
	Event string `mapstructure:"event"`

	// WaitFor is the cooldown between accepted fires, e.g. "5s" or "30"
	WaitFor string `mapstructure:"waitFor"`

	// Enabled toggles the trigger; nil means enabled
	Enabled *bool `mapstructure:"enabled"`

	// Schedule is the cron expression for scheduled triggers
	Schedule string `mapstructure:"schedule"`

	// Actions is the ordered remediation pipeline
	Actions []ActionConfig `mapstructure:"actions"`

	// Properties holds additional trigger-specific settings
	Properties map[string]interface{} `mapstructure:"properties"`
}

// Props flattens the config into the property map consumed by the trigger
// factory. Structured fields win over duplicates in Properties.
func (c TriggerConfig) Props() map[string]interface{} {
	props := make(map[string]interface{}, len(c.Properties)+4)
	for k, v := range c.Properties {
		props[k] = v
	}
	if c.WaitFor != "" {
		props["waitFor"] = c.WaitFor
	}
	if c.Enabled != nil {
		props["enabled"] = *c.Enabled
	}
	if c.Schedule != "" {
		props["schedule"] = c.Schedule
	}
	if len(c.Actions) > 0 {
		props["actions"] = c.Actions
	}
	return props
}

// IsEnabled reports whether the trigger should be scheduled
func (c TriggerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}
