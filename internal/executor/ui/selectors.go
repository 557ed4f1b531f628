package ui

import (
	"strings"

	"testctl/internal/locator"
)

// Alternatives returns the selectors tried when an action on sel fails.
func Alternatives(sel string) []string {
	switch {
	case strings.HasPrefix(sel, "#"):
		id := sel[1:]
		return []string{
			"[id='" + id + "']",
			"." + id,
			"#" + id,
			"*[id*='" + id + "']",
		}
	case strings.HasPrefix(sel, "."):
		cls := sel[1:]
		return []string{
			"." + cls,
			"*[class*='" + cls + "']",
			"[class='" + cls + "']",
		}
	case strings.HasPrefix(sel, "//"):
		parts := strings.Split(sel, "/")
		return []string{
			sel,
			strings.ReplaceAll(sel, "//", "//*"),
			"//*[contains(text(), '" + parts[len(parts)-1] + "')]",
		}
	}
	return []string{
		"[data-testid='" + sel + "']",
		"[name='" + sel + "']",
		"[placeholder='" + sel + "']",
		"text=" + sel,
		"*[contains(text(), '" + sel + "')]",
	}
}

// selectorFor turns a stored locator into a selector string.
func selectorFor(loc locator.Locator) string {
	switch strings.ToLower(loc.Type) {
	case "xpath":
		if strings.HasPrefix(loc.Value, "xpath=") {
			return loc.Value
		}
		return "xpath=" + loc.Value
	case "text":
		return "text=" + loc.Value
	}
	return loc.Value
}
