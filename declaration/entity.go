// Package declaration turns transformed entities into a declaration
// document: it resolves name conflicts, wraps the entities in the document
// envelope and validates the result against the declaration schema.
package declaration

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Entity is an ordered property bag. The class, when set, is always the
// first key.
type Entity struct {
	props *orderedmap.OrderedMap[string, any]
}

// NewEntity creates an entity of the given class. An empty class creates a
// plain nested object.
func NewEntity(class string) *Entity {
	e := &Entity{props: orderedmap.New[string, any]()}
	if class != "" {
		e.props.Set("class", class)
	}

	return e
}

// Class returns the class of the entity, or "" for nested objects.
func (e *Entity) Class() string {
	class, _ := e.Get("class")
	s, _ := class.(string)

	return s
}

// Set stores value under key, keeping the position of an existing key.
func (e *Entity) Set(key string, value any) {
	e.props.Set(key, value)
}

// Get returns the value stored under key.
func (e *Entity) Get(key string) (any, bool) {
	return e.props.Get(key)
}

// Has reports whether key is set.
func (e *Entity) Has(key string) bool {
	_, ok := e.props.Get(key)
	return ok
}

// SetPath stores value under a nested path, creating intermediate objects.
// An intermediate key holding something other than an object is replaced.
func (e *Entity) SetPath(path []string, value any) {
	if len(path) == 0 {
		return
	}

	current := e
	for _, key := range path[:len(path)-1] {
		next, ok := current.Get(key)
		nested, isEntity := next.(*Entity)
		if !ok || !isEntity {
			nested = NewEntity("")
			current.Set(key, nested)
		}
		current = nested
	}

	current.Set(path[len(path)-1], value)
}

// GetPath returns the value under a nested path.
func (e *Entity) GetPath(path []string) (any, bool) {
	var current any = e
	for _, key := range path {
		entity, ok := current.(*Entity)
		if !ok {
			return nil, false
		}
		current, ok = entity.Get(key)
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// Keys returns the keys in insertion order.
func (e *Entity) Keys() []string {
	keys := make([]string, 0, e.props.Len())
	for pair := e.props.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}

	return keys
}

// Len returns the number of keys, class included.
func (e *Entity) Len() int {
	return e.props.Len()
}

// Merge copies the keys of other that e does not have yet. Nested objects
// present on both sides are merged the same way.
func (e *Entity) Merge(other *Entity) {
	for pair := other.props.Oldest(); pair != nil; pair = pair.Next() {
		existing, ok := e.Get(pair.Key)
		if !ok {
			e.Set(pair.Key, cloneValue(pair.Value))
			continue
		}

		mine, mineIsEntity := existing.(*Entity)
		theirs, theirsIsEntity := pair.Value.(*Entity)
		if mineIsEntity && theirsIsEntity {
			mine.Merge(theirs)
		}
	}
}

// Clone returns a deep copy of e.
func (e *Entity) Clone() *Entity {
	out := &Entity{props: orderedmap.New[string, any]()}
	for pair := e.props.Oldest(); pair != nil; pair = pair.Next() {
		out.props.Set(pair.Key, cloneValue(pair.Value))
	}

	return out
}

// Map returns the entity as plain maps and slices, losing key order.
func (e *Entity) Map() map[string]any {
	out := make(map[string]any, e.props.Len())
	for pair := e.props.Oldest(); pair != nil; pair = pair.Next() {
		out[pair.Key] = plainValue(pair.Value)
	}

	return out
}

func (e *Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.props)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case *Entity:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func plainValue(v any) any {
	switch t := v.(type) {
	case *Entity:
		return t.Map()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plainValue(item)
		}
		return out
	default:
		return v
	}
}
