package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Kubernetes configuration
	Kubernetes KubernetesConfig `mapstructure:"kubernetes"`

	// Autoscaling configuration
	Autoscaling AutoscalingConfig `mapstructure:"autoscaling"`

	// Application configuration
	App AppConfig `mapstructure:"app"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	// Port is the HTTP server port
	Port string `mapstructure:"port"`

	// ShutdownTimeout is the timeout for server shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// KubernetesConfig holds Kubernetes client configuration
type KubernetesConfig struct {
	// Namespace is the namespace for coordination resources
	Namespace string `mapstructure:"namespace"`

	// ConfigPath is the path to the kubeconfig file
	ConfigPath string `mapstructure:"config_path"`

	// MasterURL is the Kubernetes API server URL
	MasterURL string `mapstructure:"master_url"`

	// NodeLabelSelector selects the cluster's search nodes
	NodeLabelSelector string `mapstructure:"node_label_selector"`
}

// AutoscalingConfig holds trigger engine configuration
type AutoscalingConfig struct {
	// ScheduleInterval is the evaluation tick period per trigger
	ScheduleInterval time.Duration `mapstructure:"schedule_interval"`

	// StateStore configures durable trigger checkpoints
	StateStore StateStoreConfig `mapstructure:"state_store"`

	// Triggers defines the trigger set
	Triggers []TriggerConfig `mapstructure:"triggers"`

	// Listeners defines the trigger listener set
	Listeners []ListenerConfig `mapstructure:"listeners"`
}

// StateStoreConfig holds durable state store configuration
type StateStoreConfig struct {
	// Kind selects the store backend: "configmap" or "memory"
	Kind string `mapstructure:"kind"`

	// ConfigMapName is the ConfigMap holding trigger checkpoints
	ConfigMapName string `mapstructure:"configmap_name"`

	// Timeout bounds each save/load against the store
	Timeout time.Duration `mapstructure:"timeout"`
}

// TriggerConfig defines one trigger
type TriggerConfig struct {
	// Name is the trigger's unique name
	Name string `mapstructure:"name"`

	// Event is the event type, e.g. "nodeLost"
	Event string `mapstructure:"event"`

	// WaitFor is the cooldown between accepted fires, e.g. "5s"
	WaitFor string `mapstructure:"wait_for"`

	// Enabled toggles the trigger; unset means enabled
	Enabled *bool `mapstructure:"enabled"`

	// Schedule is the cron expression for scheduled triggers
	Schedule string `mapstructure:"schedule"`

	// Actions is the ordered remediation pipeline
	Actions []ActionConfig `mapstructure:"actions"`

	// Properties holds additional trigger-specific settings
	Properties map[string]interface{} `mapstructure:"properties"`
}

// ActionConfig names one remediation action
type ActionConfig struct {
	// Name is the action's unique name within the trigger
	Name string `mapstructure:"name"`

	// Class is the action implementation identifier
	Class string `mapstructure:"class"`
}

// ListenerConfig defines one trigger listener
type ListenerConfig struct {
	// Name is the listener's unique name
	Name string `mapstructure:"name"`

	// Class selects the implementation: "log" or "webhook"
	Class string `mapstructure:"class"`

	// Trigger restricts notifications to one trigger by name
	Trigger string `mapstructure:"trigger"`

	// Stages restricts notifications to the listed stages
	Stages []string `mapstructure:"stages"`

	// Actions restricts action notifications by action name
	Actions []string `mapstructure:"actions"`

	// Properties holds listener-specific settings, e.g. a webhook URL
	Properties map[string]interface{} `mapstructure:"properties"`
}

// AppConfig holds application configuration
type AppConfig struct {
	// Component is the name of the component
	Component string `mapstructure:"component"`

	// LogLevel is the log level
	LogLevel string `mapstructure:"log_level"`
}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)
	configureViper(v)

	if err := readConfigs(v); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configs: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// configureViper sets up Viper configuration paths and types
func configureViper(v *viper.Viper) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/searchscaler/")

	v.AutomaticEnv()
	v.SetEnvPrefix("SEARCHSCALER")
}

// readConfigs attempts to read the configuration file
func readConfigs(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults and env take over
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("failed to read configs file: %w", err)
		}
	}
	return nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}

	if cfg.Autoscaling.ScheduleInterval <= 0 {
		return fmt.Errorf("autoscaling.schedule_interval must be positive")
	}

	switch cfg.Autoscaling.StateStore.Kind {
	case "configmap", "memory":
	default:
		return fmt.Errorf("autoscaling.state_store.kind must be configmap or memory, got %q",
			cfg.Autoscaling.StateStore.Kind)
	}

	if cfg.Autoscaling.StateStore.Kind == "configmap" {
		if cfg.Kubernetes.Namespace == "" {
			return fmt.Errorf("kubernetes.namespace is required for the configmap state store")
		}
		if cfg.Autoscaling.StateStore.ConfigMapName == "" {
			return fmt.Errorf("autoscaling.state_store.configmap_name is required")
		}
	}

	seen := make(map[string]bool)
	for i, trigger := range cfg.Autoscaling.Triggers {
		if trigger.Name == "" {
			return fmt.Errorf("autoscaling.triggers[%d].name is required", i)
		}
		if trigger.Event == "" {
			return fmt.Errorf("trigger %s: event is required", trigger.Name)
		}
		if seen[trigger.Name] {
			return fmt.Errorf("trigger %s: duplicate name", trigger.Name)
		}
		seen[trigger.Name] = true
	}

	return nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Kubernetes defaults
	v.SetDefault("kubernetes.namespace", "default")
	v.SetDefault("kubernetes.node_label_selector", "app=search-node")

	// Autoscaling defaults
	v.SetDefault("autoscaling.schedule_interval", 1*time.Second)
	v.SetDefault("autoscaling.state_store.kind", "configmap")
	v.SetDefault("autoscaling.state_store.configmap_name", "searchscaler-trigger-state")
	v.SetDefault("autoscaling.state_store.timeout", 10*time.Second)

	// App defaults
	v.SetDefault("app.component", "searchscaler")
	v.SetDefault("app.log_level", "info")
}
