package step

// descriptiveFields is the preference order for step keys. Changing it
// changes every computed key and orphans stored locators.
var descriptiveFields = []string{"element", "label", "text", "value", "placeholder", "target"}

// Key computes the locator lookup key for s. The key must stay stable across
// runs for the same logical step.
func Key(s Step) string {
	action, ok := s.String("action")
	if !ok || action == "" {
		action = "unknown"
	}
	return action + ":" + keyBody(s)
}

func keyBody(s Step) string {
	if sel, ok := s.String("selector"); ok && sel != "" {
		return sel
	}
	if loc, ok := s["locator"]; ok && loc != nil {
		if str, isStr := loc.(string); isStr {
			if str != "" {
				return str
			}
		} else {
			return canonical(loc)
		}
	}
	for _, f := range descriptiveFields {
		if v, ok := s.String(f); ok && v != "" {
			return v
		}
	}
	return s.Canonical()
}
