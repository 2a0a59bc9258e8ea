// Package catalog holds the ordered table of appliance resources that make
// up a declaration, along with the rules that turn each resource into
// declarative entities.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type catalogFile struct {
	SchemaVersion string        `yaml:"schemaVersion"`
	Items         []*Descriptor `yaml:"items"`
}

// Registry is an immutable, ordered set of descriptors. Descriptors
// returned by a Registry are shared and must not be modified.
type Registry struct {
	schemaVersion string
	descriptors   []*Descriptor
	roots         []*Descriptor
	children      map[int][]*Descriptor
}

var loadDefault = sync.OnceValues(func() (*Registry, error) {
	return Load(catalogYAML)
})

// Default returns the embedded catalog, loading it on first use.
func Default() (*Registry, error) {
	return loadDefault()
}

// Load decodes and validates a catalog document.
func Load(data []byte) (*Registry, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file catalogFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	if file.SchemaVersion == "" {
		return nil, errors.New("catalog has no schemaVersion")
	}
	if len(file.Items) == 0 {
		return nil, errors.New("catalog has no items")
	}

	r := &Registry{
		schemaVersion: file.SchemaVersion,
		descriptors:   file.Items,
		children:      map[int][]*Descriptor{},
	}

	byPath := map[string]*Descriptor{}

	for i, d := range file.Items {
		d.Index = i

		if err := prepare(d); err != nil {
			return nil, fmt.Errorf("catalog item %d (%s): %w", i, d.Path, err)
		}

		if d.SchemaMerge != nil {
			parent, ok := byPath[d.SchemaMerge.Parent]
			if !ok {
				return nil, fmt.Errorf("catalog item %d (%s): schemaMerge parent %s is not declared before it", i, d.Path, d.SchemaMerge.Parent)
			}
			r.children[parent.Index] = append(r.children[parent.Index], d)
		} else {
			r.roots = append(r.roots, d)
			if _, ok := byPath[d.Path]; !ok {
				byPath[d.Path] = d
			}
		}
	}

	return r, nil
}

// prepare fills defaults into d and checks it is well formed.
func prepare(d *Descriptor) error {
	if d.Path == "" {
		return errors.New("path is required")
	}

	if d.SchemaMerge == nil && d.SchemaClass == "" {
		return errors.New("schemaClass is required")
	}

	if d.Nameless && d.SchemaMerge == nil && d.Name == "" {
		return errors.New("nameless items need a name")
	}

	if d.MinVersion != "" {
		v, err := ParseVersion(d.MinVersion)
		if err != nil {
			return fmt.Errorf("invalid minVersion %q: %w", d.MinVersion, err)
		}
		d.minVersion = v
	}

	if d.SchemaMerge != nil {
		if d.Included {
			return errors.New("schemaMerge items cannot be included")
		}
		if d.SchemaMerge.Link == "" || len(d.SchemaMerge.Path) == 0 {
			return errors.New("schemaMerge needs a link and a path")
		}
	}

	if d.Filter != nil {
		if d.Filter.Key == "" {
			return errors.New("filter needs a key")
		}
		if (d.Filter.Equals == nil) == (d.Filter.EqualsDevice == "") {
			return errors.New("filter needs exactly one of equals and equalsDevice")
		}
		switch d.Filter.EqualsDevice {
		case "", "hostname", "version":
		default:
			return fmt.Errorf("unknown device field %q", d.Filter.EqualsDevice)
		}
		d.Filter.Equals = normalize(d.Filter.Equals)
	}

	if d.Pivot != nil {
		if d.Pivot.Key == "" || d.Pivot.Value == "" {
			return errors.New("pivot needs a key and a value")
		}
		if !d.Nameless {
			return errors.New("pivot items must be nameless")
		}
		if len(d.Properties) > 0 {
			return errors.New("pivot items cannot declare properties")
		}
	}

	targets := map[string]bool{}

	for i := range d.Properties {
		rule := &d.Properties[i]

		if rule.SourceKey == "" {
			return fmt.Errorf("property %d has no sourceKey", i)
		}
		if rule.TargetKey == "" {
			if strings.Contains(rule.SourceKey, ".") {
				return fmt.Errorf("property %s needs an explicit targetKey", rule.SourceKey)
			}
			rule.TargetKey = rule.SourceKey
		}
		if targets[rule.TargetKey] {
			return fmt.Errorf("duplicate targetKey %s", rule.TargetKey)
		}
		targets[rule.TargetKey] = true

		if rule.Coercion == "" {
			rule.Coercion = Identity
		}
		if !rule.Coercion.Valid() {
			return fmt.Errorf("property %s has unknown coercion %q", rule.SourceKey, rule.Coercion)
		}
		if rule.Coercion == Unit && rule.Multiplier == 0 {
			return fmt.Errorf("property %s uses unit coercion without a multiplier", rule.SourceKey)
		}

		if c := rule.Conditional; c != nil {
			if c.Key == "" {
				return fmt.Errorf("property %s has a conditional without a key", rule.SourceKey)
			}
			if (c.Equals == nil) == (c.NotEquals == nil) {
				return fmt.Errorf("property %s conditional needs exactly one of equals and notEquals", rule.SourceKey)
			}
			c.Equals = normalize(c.Equals)
			c.NotEquals = normalize(c.NotEquals)
		}

		rule.Default = normalize(rule.Default)
	}

	return nil
}

// normalize converts YAML scalars to the types produced when decoding
// appliance JSON, so defaults and decoded values compare alike.
func normalize(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case uint64:
		return int64(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

// SchemaVersion is the declaration schema version the catalog targets.
func (r *Registry) SchemaVersion() string {
	return r.schemaVersion
}

// Len returns the number of descriptors, children included.
func (r *Registry) Len() int {
	return len(r.descriptors)
}

// All returns every descriptor in catalog order.
func (r *Registry) All() []*Descriptor {
	return append([]*Descriptor(nil), r.descriptors...)
}

// Roots returns the descriptors fetched directly, in catalog order.
func (r *Registry) Roots() []*Descriptor {
	return append([]*Descriptor(nil), r.roots...)
}

// Children returns the schemaMerge descriptors whose parent is the
// descriptor at index.
func (r *Registry) Children(index int) []*Descriptor {
	return append([]*Descriptor(nil), r.children[index]...)
}

// Classes returns the distinct schema classes in catalog order.
func (r *Registry) Classes() []string {
	seen := map[string]bool{}
	classes := []string{}

	for _, d := range r.descriptors {
		if d.SchemaClass == "" || seen[d.SchemaClass] {
			continue
		}
		seen[d.SchemaClass] = true
		classes = append(classes, d.SchemaClass)
	}

	return classes
}
