package handler

import "fmt"

// Config helpers shared by the built-in handlers. Node configuration arrives
// as JSON-decoded maps, so numbers are float64.

// ConfigString retrieves a required string field.
func ConfigString(config map[string]interface{}, key string) (string, error) {
	val, ok := config[key]
	if !ok {
		return "", fmt.Errorf("%s: required field missing", key)
	}
	str, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("%s: not a string", key)
	}
	return str, nil
}

// ConfigStringDefault retrieves a string field with a default.
func ConfigStringDefault(config map[string]interface{}, key, def string) string {
	if str, ok := config[key].(string); ok {
		return str
	}
	return def
}

// ConfigFloat retrieves a numeric field.
func ConfigFloat(config map[string]interface{}, key string) (float64, bool) {
	switch v := config[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// ConfigIntDefault retrieves an int field with a default.
func ConfigIntDefault(config map[string]interface{}, key string, def int) int {
	if v, ok := ConfigFloat(config, key); ok {
		return int(v)
	}
	return def
}

// ConfigBoolDefault retrieves a bool field with a default.
func ConfigBoolDefault(config map[string]interface{}, key string, def bool) bool {
	if v, ok := config[key].(bool); ok {
		return v
	}
	return def
}

// ConfigMap retrieves a map field, or nil when absent.
func ConfigMap(config map[string]interface{}, key string) map[string]interface{} {
	if m, ok := config[key].(map[string]interface{}); ok {
		return m
	}
	return nil
}

// ConfigSlice retrieves a slice field, or nil when absent.
func ConfigSlice(config map[string]interface{}, key string) []interface{} {
	if s, ok := config[key].([]interface{}); ok {
		return s
	}
	return nil
}
