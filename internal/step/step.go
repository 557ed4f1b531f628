package step

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Step is one entry of a test case. Only action has a fixed meaning; all
// other fields are interpreted by the backend that runs the step.
type Step map[string]interface{}

// Action returns the lower-cased action name, or "" when absent.
func (s Step) Action() string {
	a, _ := s.String("action")
	return strings.ToLower(strings.TrimSpace(a))
}

// Has reports whether field is present with a non-nil value.
func (s Step) Has(field string) bool {
	v, ok := s[field]
	return ok && v != nil
}

// String returns field as a string. Scalars are formatted; maps, slices and
// nil are reported as absent.
func (s Step) String(field string) (string, bool) {
	v, ok := s[field]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case bool, int, int64, float64, json.Number:
		return fmt.Sprint(t), true
	default:
		return "", false
	}
}

// StringOr returns the first present field among names, or "".
func (s Step) StringOr(names ...string) string {
	for _, n := range names {
		if v, ok := s.String(n); ok {
			return v
		}
	}
	return ""
}

// Int returns field as an int. YAML yields int, JSON yields float64.
func (s Step) Int(field string) (int, bool) {
	return toInt(s[field])
}

// Map returns field when it is a mapping.
func (s Step) Map(field string) (map[string]interface{}, bool) {
	switch t := s[field].(type) {
	case map[string]interface{}:
		return t, true
	case Step:
		return t, true
	default:
		return nil, false
	}
}

// DependsOn returns the depends_on index. A present but non-integer value is
// reported through err.
func (s Step) DependsOn() (int, bool, error) {
	if !s.Has("depends_on") {
		return 0, false, nil
	}
	n, ok := s.Int("depends_on")
	if !ok {
		return 0, false, &ValidationError{Field: "depends_on", Reason: fmt.Sprintf("must be an integer, got %v", s["depends_on"])}
	}
	return n, true, nil
}

// Canonical serializes the step with sorted keys. encoding/json sorts map
// keys at every level, which makes the output stable across runs.
func (s Step) Canonical() string {
	return canonical(map[string]interface{}(s))
}

func canonical(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func toInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t != float64(int(t)) {
			return 0, false
		}
		return int(t), true
	case json.Number:
		n, err := t.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	default:
		return 0, false
	}
}
