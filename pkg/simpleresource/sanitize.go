package simpleresource

import "strings"

// Payload sanitization strips characters usable for markup injection
// before anything reaches a store. Detection of sensitive-data patterns
// is the Classifier's job, not this one.

var unsafeChars = strings.NewReplacer("<", "", ">", "")

// SanitizeString removes unsafe characters from a single string value.
func SanitizeString(s string) string {
	return unsafeChars.Replace(s)
}

// SanitizePayload returns a sanitized copy of the payload. String
// values are scrubbed recursively through nested maps and slices;
// non-string scalars pass through unchanged. The input map is never
// modified.
func SanitizePayload(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		return SanitizeString(val)
	case map[string]interface{}:
		return SanitizePayload(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = sanitizeValue(item)
		}
		return out
	default:
		return v
	}
}
