package agents

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNoJSONObject = errors.New("no JSON object in response")

// extractJSONObject pulls the first balanced top-level {...} out of a
// completion. Providers wrap JSON in prose or code fences often enough that
// a plain Unmarshal is not good enough.
func extractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", errNoJSONObject
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", errNoJSONObject
}

func unmarshalLoose(raw string, v any) error {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(obj), v)
}

// cleanUtterance strips wrapping quotes and trailing whitespace that models
// like to add around chat messages.
func cleanUtterance(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
