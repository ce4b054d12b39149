// Package config decodes the plain serialized parameter mappings triggers
// are reconstructed from. Values arrive as JSON types: numbers are float64,
// lists are []any.
package config

import (
	"time"
)

func String(params map[string]any, key string) string {
	value, _ := params[key].(string)

	return value
}

func StringDefault(params map[string]any, key, fallback string) string {
	if value, ok := params[key].(string); ok && value != "" {
		return value
	}

	return fallback
}

func Strings(params map[string]any, key string) []string {
	switch value := params[key].(type) {
	case []string:
		return value
	case []any:
		out := make([]string, 0, len(value))

		for _, item := range value {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}

		return out
	}

	return nil
}

func StringMap(params map[string]any, key string) map[string]string {
	out := make(map[string]string)

	switch raw := params[key].(type) {
	case map[string]string:
		for k, v := range raw {
			out[k] = v
		}
	case map[string]any:
		for k, v := range raw {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	}

	return out
}

func Bool(params map[string]any, key string) bool {
	value, _ := params[key].(bool)

	return value
}

func Int(params map[string]any, key string) int {
	switch value := params[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	}

	return 0
}

func Float(params map[string]any, key string) (float64, bool) {
	switch value := params[key].(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	}

	return 0, false
}

// DurationSeconds reads a duration serialized as a number of seconds.
func DurationSeconds(params map[string]any, key string, fallback time.Duration) time.Duration {
	if seconds, ok := Float(params, key); ok {
		return time.Duration(seconds * float64(time.Second))
	}

	return fallback
}
