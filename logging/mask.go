package logging

import (
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
)

// MaskedValue replaces any secret found in a log field or message.
const MaskedValue = "********"

// secretKeys are matched case-insensitively as substrings of a key name, so
// targetPassword and X-F5-Auth-Token are both caught.
var secretKeys = []string{
	"password",
	"passphrase",
	"privatekey",
	"secret",
	"token",
	"cookie",
	"authorization",
}

var secretAssignment = regexp.MustCompile(`(?i)("?[\w.-]*(?:password|passphrase|privatekey|secret|token|cookie|authorization)[\w.-]*"?\s*[:=]\s*)("[^"]*"|[^\s&,;}]+)`)

// IsSecretKey reports whether a key name looks like it holds a secret.
func IsSecretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}

	return false
}

// Mask returns a copy of v in which the values of secret-shaped keys are
// replaced by MaskedValue. Maps and slices are copied recursively; v itself
// is never modified.
func Mask(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if IsSecretKey(k) {
				out[k] = MaskedValue
				continue
			}
			out[k] = Mask(val)
		}
		return out
	case log.Fields:
		out := make(log.Fields, len(t))
		for k, val := range t {
			if IsSecretKey(k) {
				out[k] = MaskedValue
				continue
			}
			out[k] = Mask(val)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, val := range t {
			if IsSecretKey(k) {
				out[k] = MaskedValue
				continue
			}
			out[k] = MaskText(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Mask(val)
		}
		return out
	case string:
		return MaskText(t)
	default:
		return v
	}
}

// MaskText masks `key=value` and `"key": "value"` pairs embedded in free text.
func MaskText(s string) string {
	return secretAssignment.ReplaceAllString(s, `${1}`+MaskedValue)
}

// MaskingHook masks every entry before a formatter sees it.
type MaskingHook struct{}

func (MaskingHook) Levels() []log.Level {
	return log.AllLevels
}

func (MaskingHook) Fire(entry *log.Entry) error {
	if entry == nil {
		return nil
	}

	for k, v := range entry.Data {
		if IsSecretKey(k) {
			entry.Data[k] = MaskedValue
			continue
		}
		entry.Data[k] = Mask(v)
	}
	entry.Message = MaskText(entry.Message)

	return nil
}
