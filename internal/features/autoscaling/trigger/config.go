package trigger

import (
	"fmt"
	"strconv"
	"time"

	"searchscaler/internal/common"
	"searchscaler/internal/features/autoscaling/domain"
)

// Property keys recognized in trigger configuration
const (
	propWaitFor  = "waitFor"
	propEnabled  = "enabled"
	propActions  = "actions"
	propSchedule = "schedule"
)

// parseWaitFor reads the cooldown from the waitFor property. Bare numbers
// are seconds; strings accept either a Go duration ("5s") or bare seconds.
func parseWaitFor(props map[string]interface{}) (time.Duration, error) {
	raw, ok := props[propWaitFor]
	if !ok {
		return 0, nil
	}

	switch v := raw.(type) {
	case time.Duration:
		return v, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d, nil
		}
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second, nil
		}
		return 0, common.InvalidInputError("waitFor %q is not a duration", v)
	default:
		return 0, common.InvalidInputError("waitFor has unsupported type %T", raw)
	}
}

// parseEnabled reads the enabled property, defaulting to true
func parseEnabled(props map[string]interface{}) bool {
	raw, ok := props[propEnabled]
	if !ok {
		return true
	}
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		parsed, err := strconv.ParseBool(v)
		return err == nil && parsed
	default:
		return true
	}
}

// parseActions reads the ordered action list from the actions property
func parseActions(props map[string]interface{}) ([]domain.ActionConfig, error) {
	raw, ok := props[propActions]
	if !ok {
		return nil, nil
	}

	switch v := raw.(type) {
	case []domain.ActionConfig:
		return v, nil
	case []map[string]interface{}:
		actions := make([]domain.ActionConfig, 0, len(v))
		for i, m := range v {
			action, err := actionFromMap(m)
			if err != nil {
				return nil, fmt.Errorf("action %d: %w", i, err)
			}
			actions = append(actions, action)
		}
		return actions, nil
	case []interface{}:
		actions := make([]domain.ActionConfig, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, common.InvalidInputError("action %d has unsupported type %T", i, item)
			}
			action, err := actionFromMap(m)
			if err != nil {
				return nil, fmt.Errorf("action %d: %w", i, err)
			}
			actions = append(actions, action)
		}
		return actions, nil
	default:
		return nil, common.InvalidInputError("actions has unsupported type %T", raw)
	}
}

func actionFromMap(m map[string]interface{}) (domain.ActionConfig, error) {
	name, _ := m["name"].(string)
	if name == "" {
		return domain.ActionConfig{}, common.InvalidInputError("action name is required")
	}
	class, _ := m["class"].(string)
	return domain.ActionConfig{Name: name, Class: class}, nil
}
