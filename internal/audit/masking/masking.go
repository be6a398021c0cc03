package masking

import "strings"

const maskToken = "****"

// sensitiveKeys are snapshot fields that never reach the audit table in
// clear text.
var sensitiveKeys = map[string]struct{}{
	"accountnumber":  {},
	"account_number": {},
	"password":       {},
	"smtppassword":   {},
}

// MaskSecret redacts a secret while keeping a minimal suffix for auditing.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskSensitive returns a copy of input with sensitive keys masked at any depth.
func MaskSensitive(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		if _, ok := sensitiveKeys[strings.ToLower(key)]; ok {
			if s, isString := value.(string); isString {
				out[key] = MaskSecret(s)
				continue
			}
		}
		out[key] = maskNested(value)
	}
	return out
}

func maskNested(value any) any {
	switch cast := value.(type) {
	case map[string]any:
		return MaskSensitive(cast)
	case []any:
		items := make([]any, 0, len(cast))
		for _, item := range cast {
			items = append(items, maskNested(item))
		}
		return items
	default:
		return value
	}
}
