package listener

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"searchscaler/internal/common"
	"searchscaler/internal/features/autoscaling/domain"
)

// Webhook listener property keys
const (
	propURL     = "url"
	propTimeout = "timeout"
)

// webhookPayload is the JSON body sent for each notification
type webhookPayload struct {
	Stage     domain.EventProcessorStage `json:"stage"`
	Action    string                     `json:"action,omitempty"`
	Event     *domain.TriggerEvent       `json:"event"`
	Message   string                     `json:"message,omitempty"`
	Timestamp time.Time                  `json:"timestamp"`
}

// WebhookListener delivers stage notifications to an external HTTP endpoint.
// Delivery is best effort: failures are logged and never affect event
// processing.
type WebhookListener struct {
	config domain.ListenerConfig
	client *httpClient
	url    string
	logger *slog.Logger
}

// NewWebhookListener creates a webhook listener. The target URL comes from
// the listener's url property at Init time.
func NewWebhookListener(config domain.ListenerConfig, logger *slog.Logger) *WebhookListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookListener{config: config, logger: logger}
}

// Init validates the target URL and builds the HTTP client
func (l *WebhookListener) Init(_ context.Context, config domain.ListenerConfig) error {
	l.config = config

	url, _ := config.Properties[propURL].(string)
	if url == "" {
		return common.InvalidInputError("listener %s: url property is required", config.Name)
	}
	l.url = url

	clientConfig := DefaultClientConfig()
	if raw, ok := config.Properties[propTimeout].(string); ok {
		if timeout, err := time.ParseDuration(raw); err == nil {
			clientConfig.Timeout = timeout
		}
	}

	client, err := newHTTPClient(clientConfig)
	if err != nil {
		return err
	}
	l.client = client
	return nil
}

// Config returns the listener configuration
func (l *WebhookListener) Config() domain.ListenerConfig {
	return l.config
}

// OnEvent posts the notification to the webhook endpoint
func (l *WebhookListener) OnEvent(stage domain.EventProcessorStage, actionName string, event *domain.TriggerEvent, message string) {
	if l.client == nil {
		return
	}

	body, err := json.Marshal(webhookPayload{
		Stage:     stage,
		Action:    actionName,
		Event:     event,
		Message:   message,
		Timestamp: time.Now(),
	})
	if err != nil {
		l.logger.Error("failed to marshal webhook payload",
			"listener", l.config.Name, "error", err)
		return
	}

	status, err := l.client.post(l.url, body, nil)
	if err != nil {
		l.logger.Warn("webhook delivery failed",
			"listener", l.config.Name, "url", l.url, "error", err)
		return
	}
	if status >= http.StatusBadRequest {
		l.logger.Warn("webhook endpoint returned error status",
			"listener", l.config.Name, "url", l.url, "status", status)
	}
}

// Close releases the HTTP client's idle connections
func (l *WebhookListener) Close() error {
	if l.client != nil {
		l.client.closeIdle()
	}
	return nil
}
