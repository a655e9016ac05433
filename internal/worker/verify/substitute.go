package verify

import "regexp"

var varPattern = regexp.MustCompile(`\$\{([a-zA-Z0-9_]+)\}`)

// Substitute replaces every ${name} reference in s with its value in bag,
// leaving unknown names untouched. It is idempotent (spec.md §8 property
// 7): once a value is substituted in, re-running Substitute over the
// result is a no-op unless the substituted value itself contains another
// ${...} reference, which bag values produced by storeVariables never do.
func Substitute(s string, bag map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		if v, ok := bag[name]; ok {
			return v
		}
		return match
	})
}

// SubstituteHeaders applies Substitute to every header value.
func SubstituteHeaders(headers map[string]string, bag map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = Substitute(v, bag)
	}
	return out
}

// SubstituteValue recursively applies Substitute to every string found in
// v, descending through maps and slices produced by json.Unmarshal into
// interface{} (the shape a step's body/expectedResponse arrives in).
func SubstituteValue(v interface{}, bag map[string]string) interface{} {
	switch t := v.(type) {
	case string:
		return Substitute(t, bag)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[k] = SubstituteValue(vv, bag)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = SubstituteValue(vv, bag)
		}
		return out
	default:
		return v
	}
}
