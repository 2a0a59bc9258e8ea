package appliance

import (
	"fmt"
	"strconv"
	"strings"
)

// Record is one resource instance as reported by the appliance.
type Record map[string]any

// Lookup resolves a dotted key such as "unicastAddress.0.ip" against the
// record. Numeric segments index into lists.
func (r Record) Lookup(key string) (any, bool) {
	if key == "" {
		return nil, false
	}

	var current any = map[string]any(r)
	for _, segment := range strings.Split(key, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = v
		case Record:
			v, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}

	return current, true
}

// ResponseKind tags the shape a list call came back in.
type ResponseKind int

const (
	KindEmpty ResponseKind = iota
	KindSingle
	KindList
)

func (k ResponseKind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindSingle:
		return "single"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("ResponseKind(%d)", int(k))
	}
}

// Response is the normalized result of reading one resource path. The zero
// value is Empty.
type Response struct {
	kind    ResponseKind
	records []Record
}

func Empty() Response {
	return Response{kind: KindEmpty}
}

func Single(r Record) Response {
	if len(r) == 0 {
		return Empty()
	}

	return Response{kind: KindSingle, records: []Record{r}}
}

func List(rs []Record) Response {
	if len(rs) == 0 {
		return Empty()
	}

	return Response{kind: KindList, records: rs}
}

func (r Response) Kind() ResponseKind {
	return r.kind
}

// Records returns the response as a list; a Single response is a list of one.
func (r Response) Records() []Record {
	return r.records
}

func (r Response) Len() int {
	return len(r.records)
}

// NewResponse converts a decoded JSON value into a Response. This is the one
// place where the single-object-or-array ambiguity of the appliance API is
// resolved.
func NewResponse(raw any) (Response, error) {
	switch v := raw.(type) {
	case nil:
		return Empty(), nil
	case Record:
		return Single(v), nil
	case map[string]any:
		return Single(Record(v)), nil
	case []Record:
		return List(v), nil
	case []map[string]any:
		records := make([]Record, 0, len(v))
		for _, m := range v {
			records = append(records, Record(m))
		}
		return List(records), nil
	case []any:
		records := make([]Record, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return Response{}, fmt.Errorf("item %d of list response is %T, not an object", i, item)
			}
			records = append(records, Record(m))
		}
		return List(records), nil
	default:
		return Response{}, fmt.Errorf("unexpected response of type %T", raw)
	}
}
