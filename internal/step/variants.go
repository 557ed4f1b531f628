package step

import (
	"sort"
	"strings"

	"testctl/internal/locator"
)

// Kind names an execution backend.
type Kind string

const (
	KindUI     Kind = "ui"
	KindAPI    Kind = "api"
	KindMobile Kind = "mobile"
	KindSQL    Kind = "sql"
)

// Kinds lists the backends in keyword-matching order.
var Kinds = []Kind{KindUI, KindAPI, KindMobile, KindSQL}

// ParseKind lower-cases s and reports whether it names a backend.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, true
		}
	}
	return k, false
}

// UIStep is a validated web UI step.
type UIStep struct {
	Action string
	// Selector is the selector written in the step (selector, target or a
	// string locator). It may be empty when only descriptive fields exist.
	Selector string
	// Description is the first descriptive field, used for heuristics and
	// translator suggestions.
	Description string
	Value       string
	Expected    string
	Key         string
}

var uiActions = map[string]bool{
	"navigate": true, "click": true, "fill": true, "type": true, "select": true,
	"hover": true, "screenshot": true, "assert_text": true, "assert_element": true, "wait": true,
}

// ParseUI validates s as a UI step.
func ParseUI(s Step) (UIStep, error) {
	action := s.Action()
	if action == "" {
		return UIStep{}, missing("action")
	}
	if !uiActions[action] {
		return UIStep{}, &ValidationError{Field: "action", Reason: "unknown UI action " + action}
	}

	u := UIStep{
		Action:      action,
		Selector:    s.StringOr("selector", "target"),
		Description: s.StringOr("element", "label", "text", "placeholder", "description"),
		Key:         Key(s),
	}
	if u.Selector == "" {
		if loc, ok := s.Map("locator"); ok {
			u.Selector, _ = loc["value"].(string)
		} else {
			u.Selector, _ = s.String("locator")
		}
	}
	u.Value, _ = s.String("value")

	switch action {
	case "navigate":
		if u.Selector == "" {
			u.Selector = s.StringOr("url", "value")
		}
		if u.Selector == "" {
			return UIStep{}, missing("target")
		}
	}

	switch action {
	case "fill", "type", "select":
		if !s.Has("value") {
			return UIStep{}, missing("value")
		}
	case "assert_text":
		expected, ok := s.String("expected")
		if !ok {
			return UIStep{}, missing("expected")
		}
		u.Expected = expected
	}
	return u, nil
}

// MobileStep is a validated mobile step.
type MobileStep struct {
	Action    string // fill is normalized to send_keys
	Locator   *locator.Locator
	X, Y      int
	HasCoords bool
	Text      string
	Start     [2]int
	End       [2]int
	Duration  int
	Key       string
}

var mobileActions = map[string]bool{
	"tap": true, "send_keys": true, "fill": true, "assert_text": true, "swipe": true, "tap_coordinates": true,
}

// DefaultSwipeDuration is used when a swipe step has no duration, in ms.
const DefaultSwipeDuration = 800

// ParseMobile validates s as a mobile step.
func ParseMobile(s Step) (MobileStep, error) {
	action := s.Action()
	if action == "" {
		return MobileStep{}, missing("action")
	}
	if !mobileActions[action] {
		return MobileStep{}, &ValidationError{Field: "action", Reason: "unknown mobile action " + action}
	}
	if action == "fill" {
		action = "send_keys"
	}

	m := MobileStep{Action: action, Key: Key(s), Locator: stepLocator(s)}
	x, okX := s.Int("x")
	y, okY := s.Int("y")
	if okX && okY {
		m.X, m.Y, m.HasCoords = x, y, true
	}

	switch action {
	case "tap", "send_keys":
		if m.Locator == nil && !m.HasCoords {
			return MobileStep{}, missing("locator")
		}
		m.Text = s.StringOr("text", "value")
	case "assert_text":
		if m.Locator == nil {
			return MobileStep{}, missing("locator")
		}
		text, ok := s.String("text")
		if !ok {
			text, ok = s.String("expected")
		}
		if !ok {
			return MobileStep{}, missing("text")
		}
		m.Text = text
	case "swipe":
		var err error
		if m.Start, err = point(s, "start"); err != nil {
			return MobileStep{}, err
		}
		if m.End, err = point(s, "end"); err != nil {
			return MobileStep{}, err
		}
		m.Duration = DefaultSwipeDuration
		if d, ok := s.Int("duration"); ok {
			m.Duration = d
		}
	case "tap_coordinates":
		if !m.HasCoords {
			return MobileStep{}, missing("x")
		}
	}
	return m, nil
}

// stepLocator reads {type, value}, the first {type: value} entry, or a
// "type=value" string. Map entries are taken in sorted key order.
func stepLocator(s Step) *locator.Locator {
	if m, ok := s.Map("locator"); ok {
		t, tOK := m["type"].(string)
		v, vOK := m["value"].(string)
		if tOK && vOK {
			return &locator.Locator{Type: t, Value: v}
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v, ok := m[k].(string); ok && v != "" {
				return &locator.Locator{Type: k, Value: v}
			}
		}
		return nil
	}
	if str, ok := s.String("locator"); ok && str != "" {
		if t, v, found := strings.Cut(str, "="); found {
			return &locator.Locator{Type: t, Value: v}
		}
		return &locator.Locator{Type: "id", Value: str}
	}
	return nil
}

func point(s Step, field string) ([2]int, error) {
	raw, ok := s[field].([]interface{})
	if !ok {
		return [2]int{}, missing(field)
	}
	if len(raw) != 2 {
		return [2]int{}, &ValidationError{Field: field, Reason: "must be [x, y]"}
	}
	var p [2]int
	for i, v := range raw {
		n, ok := toInt(v)
		if !ok {
			return [2]int{}, &ValidationError{Field: field, Reason: "coordinates must be integers"}
		}
		p[i] = n
	}
	return p, nil
}

// APIStep is a validated API step.
type APIStep struct {
	Command           string
	ExpectedStatus    int
	HasExpectedStatus bool
	ExpectedBody      interface{}
	HasExpectedBody   bool
	SnapshotHash      string
}

// ParseAPI validates s as an API step. A structured command is serialized
// to JSON, which the API parser accepts.
func ParseAPI(s Step) (APIStep, error) {
	var a APIStep
	if m, ok := s.Map("command"); ok {
		a.Command = canonical(m)
	} else {
		a.Command, _ = s.String("command")
	}
	if strings.TrimSpace(a.Command) == "" {
		return APIStep{}, missing("command")
	}

	if s.Has("expected_status") {
		n, ok := s.Int("expected_status")
		if !ok {
			return APIStep{}, &ValidationError{Field: "expected_status", Reason: "must be an integer"}
		}
		a.ExpectedStatus, a.HasExpectedStatus = n, true
	}
	for _, f := range []string{"assert_json", "expected_body"} {
		if s.Has(f) {
			a.ExpectedBody, a.HasExpectedBody = s[f], true
			break
		}
	}
	a.SnapshotHash, _ = s.String("snapshot_hash")
	return a, nil
}

// SQLStep is a validated SQL step.
type SQLStep struct {
	Command string
}

// ParseSQL validates s as a SQL step.
func ParseSQL(s Step) (SQLStep, error) {
	cmd := strings.TrimSpace(s.StringOr("command", "sql"))
	if cmd == "" {
		return SQLStep{}, missing("command")
	}
	return SQLStep{Command: cmd}, nil
}

// Validate parses s as the variant for kind and discards the result.
func Validate(kind Kind, s Step) error {
	var err error
	switch kind {
	case KindUI:
		_, err = ParseUI(s)
	case KindMobile:
		_, err = ParseMobile(s)
	case KindAPI:
		_, err = ParseAPI(s)
	case KindSQL:
		_, err = ParseSQL(s)
	default:
		err = &ValidationError{Field: "type", Reason: "unknown backend " + string(kind)}
	}
	return err
}
