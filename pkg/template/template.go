// Package template implements variable substitution and the restricted
// condition grammar used by decision nodes and edge routing.
//
// Substitution replaces {{name}} placeholders with stringified variable
// values. Conditions are limited to a single "LHS OP RHS" comparison;
// arbitrary expression evaluation is deliberately not supported.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

// placeholderRe matches {{ identifier }} with optional whitespace inside the
// braces. Identifiers follow [A-Za-z_][A-Za-z0-9_]*.
var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Substitute replaces every {{key}} occurrence in s with the stringified
// value of that key. Unknown keys are left as the literal placeholder.
func Substitute(s string, vars map[string]interface{}) string {
	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		key := placeholderRe.FindStringSubmatch(match)[1]
		val, ok := vars[key]
		if !ok {
			return match
		}
		return Stringify(val)
	})
}

// SubstituteAny applies Substitute recursively through nested structures.
// Strings are replaced, maps and slices are walked, other scalars pass
// through unchanged.
func SubstituteAny(v interface{}, vars map[string]interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return Substitute(val, vars)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = SubstituteAny(item, vars)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = SubstituteAny(item, vars)
		}
		return out
	default:
		return v
	}
}

// SubstituteMap is a convenience wrapper for map configs.
func SubstituteMap(m map[string]interface{}, vars map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out, _ := SubstituteAny(m, vars).(map[string]interface{})
	return out
}

// Stringify renders a variable value for placement into a template string.
func Stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}
