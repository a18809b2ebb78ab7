package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"searchscaler/internal/features/autoscaling/domain"
)

// ConfigMapStore persists trigger state in a single ConfigMap, one data key
// per trigger name. Updates go through the API server's resourceVersion
// checks, so concurrent writers resolve via compare-and-set retries.
type ConfigMapStore struct {
	client     kubernetes.Interface
	namespace  string
	name       string
	maxElapsed time.Duration
	logger     *slog.Logger
}

// NewConfigMapStore creates a ConfigMap-backed state store. maxElapsed bounds
// how long a save or load may retry before giving up.
func NewConfigMapStore(client kubernetes.Interface, namespace, name string, maxElapsed time.Duration, logger *slog.Logger) *ConfigMapStore {
	if maxElapsed <= 0 {
		maxElapsed = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigMapStore{
		client:     client,
		namespace:  namespace,
		name:       name,
		maxElapsed: maxElapsed,
		logger:     logger,
	}
}

// Save writes the state snapshot for a trigger
func (s *ConfigMapStore) Save(ctx context.Context, triggerName string, state domain.TriggerState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state for trigger %s: %w", triggerName, err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = s.maxElapsed

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(fmt.Errorf("context canceled during state save: %w", ctx.Err()))
		}

		cm, err := s.client.CoreV1().ConfigMaps(s.namespace).Get(ctx, s.name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			cm = &corev1.ConfigMap{
				ObjectMeta: metav1.ObjectMeta{
					Name:      s.name,
					Namespace: s.namespace,
				},
				Data: map[string]string{triggerName: string(raw)},
			}
			_, err = s.client.CoreV1().ConfigMaps(s.namespace).Create(ctx, cm, metav1.CreateOptions{})
			if apierrors.IsAlreadyExists(err) {
				// Lost the create race; retry as an update
				return fmt.Errorf("configmap %s created concurrently: %w", s.name, err)
			}
			return err
		}
		if err != nil {
			return err
		}

		if cm.Data == nil {
			cm.Data = make(map[string]string)
		}
		cm.Data[triggerName] = string(raw)

		// Update carries the resourceVersion read above; a conflict means a
		// concurrent writer won and the operation is retried from a fresh read.
		_, err = s.client.CoreV1().ConfigMaps(s.namespace).Update(ctx, cm, metav1.UpdateOptions{})
		return err
	}

	if err := backoff.Retry(operation, b); err != nil {
		return fmt.Errorf("failed to save state for trigger %s: %w", triggerName, err)
	}
	return nil
}

// Load reads the state snapshot for a trigger. A missing ConfigMap or data
// key is reported as absent, not as an error.
func (s *ConfigMapStore) Load(ctx context.Context, triggerName string) (domain.TriggerState, bool, error) {
	var state domain.TriggerState

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = s.maxElapsed

	var raw string
	var found bool

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(fmt.Errorf("context canceled during state load: %w", ctx.Err()))
		}

		cm, err := s.client.CoreV1().ConfigMaps(s.namespace).Get(ctx, s.name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}

		raw, found = cm.Data[triggerName]
		return nil
	}

	if err := backoff.Retry(operation, b); err != nil {
		return state, false, fmt.Errorf("failed to load state for trigger %s: %w", triggerName, err)
	}
	if !found {
		return state, false, nil
	}

	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		s.logger.Warn("discarding unreadable trigger checkpoint",
			"trigger", triggerName, "error", err)
		return domain.TriggerState{}, false, nil
	}
	return state, true, nil
}

