package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/overmindtech/doinspect/catalog"
)

// CoercionError reports a source value a rule could not convert.
type CoercionError struct {
	Key      string
	Coercion catalog.Coercion
	Value    any
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot apply %s coercion to %s value %#v", e.Coercion, e.Key, e.Value)
}

func coerce(rule catalog.PropertyRule, v any) (any, error) {
	fail := func() (any, error) {
		return nil, &CoercionError{Key: rule.SourceKey, Coercion: rule.Coercion, Value: v}
	}

	switch rule.Coercion {
	case catalog.Identity, "":
		return v, nil

	case catalog.EnabledBool:
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			switch t {
			case "enabled":
				return true, nil
			case "disabled":
				return false, nil
			}
		}
		return fail()

	case catalog.BoolEnabled:
		switch t := v.(type) {
		case bool:
			if t {
				return "enabled", nil
			}
			return "disabled", nil
		case string:
			if t == "enabled" || t == "disabled" {
				return t, nil
			}
		}
		return fail()

	case catalog.TruthBool:
		switch t := v.(type) {
		case bool:
			return t, nil
		case string:
			switch strings.ToLower(t) {
			case "true", "yes", "on", "enabled":
				return true, nil
			case "false", "no", "off", "disabled":
				return false, nil
			}
		}
		return fail()

	case catalog.Presence:
		return true, nil

	case catalog.Unit:
		if s, ok := v.(string); ok && s == "disabled" {
			return int64(0), nil
		}
		f, ok := toFloat(v)
		if !ok {
			return fail()
		}
		return number(f * rule.Multiplier), nil

	case catalog.Integer:
		switch t := v.(type) {
		case int64:
			return t, nil
		case float64:
			if t == math.Trunc(t) {
				return int64(t), nil
			}
		case string:
			if i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
				return i, nil
			}
		}
		return fail()

	case catalog.StripPartition:
		switch t := v.(type) {
		case string:
			return StripPartition(t), nil
		case []any:
			out := make([]any, len(t))
			for i, item := range t {
				s, ok := item.(string)
				if !ok {
					return fail()
				}
				out[i] = StripPartition(s)
			}
			return out, nil
		}
		return fail()

	case catalog.List:
		if list, ok := v.([]any); ok {
			return list, nil
		}
		return []any{v}, nil
	}

	return nil, fmt.Errorf("unknown coercion %q", rule.Coercion)
}

// StripPartition returns the last segment of a partition qualified name,
// so /Common/external becomes external.
func StripPartition(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}

	return name
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}

	return 0, false
}

// number returns f as an int64 when it has no fractional part.
func number(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < math.MaxInt64 {
		return int64(f)
	}

	return f
}
