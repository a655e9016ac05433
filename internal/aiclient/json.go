package aiclient

import "encoding/json"

// ExtractJSONObject returns the first top-level {...} substring of s, scanning
// brace depth so that nested objects and braces inside string literals don't
// end the match early. This is the "extract the first top-level JSON object"
// strategy spec.md §9 requires of every model-reply parse.
func ExtractJSONObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

func unmarshalStrict(object string, out interface{}) error {
	return json.Unmarshal([]byte(object), out)
}
