package epm

import "strings"

// RedactionMarker replaces every sensitive value surfaced by the remote service.
const RedactionMarker = "***REDACTED***"

// sensitiveKeys is the fixed set of mapping keys whose values are redacted,
// matched case-insensitively at any nesting depth.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"authorization": {},
	"access_token":  {},
	"client_secret": {},
	"secret":        {},
}

// Redact replaces sensitive values in nested maps and slices. It returns a new
// structure and is idempotent: re-redacting a redacted payload is a no-op.
func Redact(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if _, sensitive := sensitiveKeys[strings.ToLower(k)]; sensitive {
				out[k] = RedactionMarker
				continue
			}
			out[k] = Redact(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = Redact(child)
		}
		return out
	default:
		return v
	}
}

// RedactMap is a convenience wrapper for JSON object payloads.
func RedactMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return Redact(m).(map[string]any)
}
