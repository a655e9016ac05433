package verify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractPath resolves a dotted path like "response.user.token" against a
// parsed JSON response body, per spec.md §4.4's storeVariables rule. The
// leading "response" segment names the body itself, not a field of it, so
// it is stripped before descending. A missing path returns ("", false);
// callers log a warning and bind the empty string rather than failing the
// step.
func ExtractPath(body []byte, dottedPath string) (string, bool) {
	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false
	}

	segments := strings.Split(dottedPath, ".")
	if len(segments) > 0 && segments[0] == "response" {
		segments = segments[1:]
	}

	current := parsed
	for _, seg := range segments {
		m, ok := current.(map[string]interface{})
		if !ok {
			return "", false
		}
		current, ok = m[seg]
		if !ok {
			return "", false
		}
	}
	return stringify(current), true
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
