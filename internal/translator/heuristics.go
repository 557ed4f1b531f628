package translator

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"testctl/pkg/logging"
)

// DefaultExpectedStatus is used when a command does not name one.
const DefaultExpectedStatus = 200

var apiCommandPattern = regexp.MustCompile(`(?is)^(get|post|put|delete|patch)\s+(\S+)(?:\s+with\s+json\s+(\{.*\}))?`)

// ParseAPICommand is the deterministic API translation. It accepts a JSON
// request object, "<METHOD> <url> [with json {...}]", or anything else as a
// literal GET path.
func ParseAPICommand(command, baseURL string) APIRequest {
	command = strings.TrimSpace(command)

	if strings.HasPrefix(command, "{") {
		var raw struct {
			Method         string            `json:"method"`
			URL            string            `json:"url"`
			Headers        map[string]string `json:"headers"`
			Body           interface{}       `json:"body"`
			ExpectedStatus *int              `json:"expected_status"`
		}
		err := json.Unmarshal([]byte(command), &raw)
		if err == nil {
			req := APIRequest{
				Method:         normalizeMethod(raw.Method),
				URL:            JoinURL(baseURL, raw.URL),
				Headers:        raw.Headers,
				Body:           raw.Body,
				ExpectedStatus: DefaultExpectedStatus,
			}
			if raw.ExpectedStatus != nil {
				req.ExpectedStatus = *raw.ExpectedStatus
			}
			return req
		}
		logging.Warn("Translator", "Failed to parse JSON API command: %v", err)
	}

	if m := apiCommandPattern.FindStringSubmatch(command); m != nil {
		req := APIRequest{
			Method:         normalizeMethod(m[1]),
			URL:            JoinURL(baseURL, m[2]),
			ExpectedStatus: DefaultExpectedStatus,
		}
		if m[3] != "" {
			var body interface{}
			if err := json.Unmarshal([]byte(m[3]), &body); err != nil {
				logging.Warn("Translator", "Invalid JSON body in API command: %v", err)
			} else {
				req.Body = body
				req.Headers = map[string]string{"Content-Type": "application/json"}
			}
		}
		return req
	}

	return APIRequest{
		Method:         "GET",
		URL:            JoinURL(baseURL, command),
		ExpectedStatus: DefaultExpectedStatus,
	}
}

func normalizeMethod(m string) string {
	m = strings.ToUpper(strings.TrimSpace(m))
	if m == "" {
		return "GET"
	}
	return m
}

// JoinURL joins a relative url onto base. Absolute urls and an empty base
// leave url unchanged.
func JoinURL(base, url string) string {
	if base == "" || strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(url, "/")
}

var (
	insertUserPattern = regexp.MustCompile(`(?i)^insert\s+user\s+(.+)$`)
	verifyUserPattern = regexp.MustCompile(`(?i)^verify\s+exists\s+user\s+(.+)$`)
	deleteUserPattern = regexp.MustCompile(`(?i)^delete\s+user\s+(.+)$`)
)

const userCountQuery = "SELECT COUNT(*) FROM users WHERE name = ?"

// TranslateSQLCommand is the deterministic SQL translation. Unrecognized
// commands are returned as raw SQL without an assertion.
func TranslateSQLCommand(command string) SQLStatement {
	cmd := strings.TrimSpace(command)

	if m := insertUserPattern.FindStringSubmatch(cmd); m != nil {
		name := titleCase(m[1])
		return SQLStatement{
			SQL:       "INSERT INTO users (name) VALUES (?)",
			Args:      []interface{}{name},
			Assertion: &Assertion{Query: userCountQuery, Args: []interface{}{name}, Expect: CountPositive},
		}
	}
	if m := verifyUserPattern.FindStringSubmatch(cmd); m != nil {
		name := titleCase(m[1])
		return SQLStatement{
			SQL:       userCountQuery,
			Args:      []interface{}{name},
			Assertion: &Assertion{Query: userCountQuery, Args: []interface{}{name}, Expect: CountPositive},
		}
	}
	if m := deleteUserPattern.FindStringSubmatch(cmd); m != nil {
		name := titleCase(m[1])
		return SQLStatement{
			SQL:       "DELETE FROM users WHERE name = ?",
			Args:      []interface{}{name},
			Assertion: &Assertion{Query: userCountQuery, Args: []interface{}{name}, Expect: CountZero},
		}
	}
	return SQLStatement{SQL: cmd}
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest.
func titleCase(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}

// Rebind rewrites ? placeholders to $1, $2, ... for postgres. Placeholders
// inside single-quoted literals are left alone.
func Rebind(query string) string {
	var b strings.Builder
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteString("$" + strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
