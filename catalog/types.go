package catalog

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.yaml.in/yaml/v3"
)

// Coercion names the conversion applied to a source value before it is
// written to an entity.
type Coercion string

const (
	// Identity copies the value unchanged. It is the default.
	Identity Coercion = "identity"
	// EnabledBool turns "enabled"/"disabled" into true/false.
	EnabledBool Coercion = "enabledBool"
	// BoolEnabled turns true/false into "enabled"/"disabled".
	BoolEnabled Coercion = "boolEnabled"
	// TruthBool turns "true"/"false"/"yes"/"no" into a boolean.
	TruthBool Coercion = "truthBool"
	// Presence yields true whenever the source key exists.
	Presence Coercion = "presence"
	// Unit multiplies a number by the rule's Multiplier. "disabled" is 0.
	Unit Coercion = "unit"
	// Integer parses numeric strings into integers.
	Integer Coercion = "integer"
	// StripPartition turns /Common/name into name, also per list element.
	StripPartition Coercion = "stripPartition"
	// List wraps a scalar into a one-element list.
	List Coercion = "list"
)

var coercions = map[Coercion]bool{
	Identity:       true,
	EnabledBool:    true,
	BoolEnabled:    true,
	TruthBool:      true,
	Presence:       true,
	Unit:           true,
	Integer:        true,
	StripPartition: true,
	List:           true,
}

// Valid reports whether c is a known coercion.
func (c Coercion) Valid() bool {
	return coercions[c]
}

// Condition restricts a rule to records where a sibling key has, or does
// not have, a given value. Values are compared by their printed form and a
// missing key compares as the empty string.
type Condition struct {
	Key       string `yaml:"key"`
	Equals    any    `yaml:"equals,omitempty"`
	NotEquals any    `yaml:"notEquals,omitempty"`
}

// PropertyRule maps one source key of a raw record onto one key of the
// declarative entity.
type PropertyRule struct {
	// SourceKey is a dotted path into the raw record, list indexes allowed.
	SourceKey string `yaml:"sourceKey"`
	// TargetKey is a dotted path into the entity. Defaults to SourceKey.
	TargetKey   string     `yaml:"targetKey,omitempty"`
	Coercion    Coercion   `yaml:"coercion,omitempty"`
	Multiplier  float64    `yaml:"multiplier,omitempty"`
	Default     any        `yaml:"default,omitempty"`
	Conditional *Condition `yaml:"conditional,omitempty"`
}

// HasDefault reports whether the rule supplies a value when the source key
// is absent.
func (r PropertyRule) HasDefault() bool {
	return r.Default != nil
}

// TargetPath returns TargetKey split on dots.
func (r PropertyRule) TargetPath() []string {
	return strings.Split(r.TargetKey, ".")
}

// SchemaMerge folds a linked sub-resource into the entity of a parent
// descriptor.
type SchemaMerge struct {
	// Parent is the path of the parent descriptor.
	Parent string `yaml:"parent"`
	// Link is the dotted key in each parent record holding the hyperlink to
	// the sub-collection.
	Link string `yaml:"link"`
	// Path is where the transformed sub-resource is grafted in the parent
	// entity.
	Path []string `yaml:"path"`
}

// Filter keeps only the records matching a value. EqualsDevice names a
// field of the device info ("hostname" or "version") to compare with.
type Filter struct {
	Key          string `yaml:"key"`
	Equals       any    `yaml:"equals,omitempty"`
	EqualsDevice string `yaml:"equalsDevice,omitempty"`
}

// Pivot collapses name/value records into the properties of one entity.
type Pivot struct {
	Key   string   `yaml:"key"`
	Value string   `yaml:"value"`
	Only  []string `yaml:"only,omitempty"`
}

// Descriptor describes one appliance resource and how it becomes
// declarative entities.
type Descriptor struct {
	// Index is the position in the catalog. It orders conflict numbering.
	Index int `yaml:"-"`

	Path        string         `yaml:"path"`
	SchemaClass string         `yaml:"schemaClass,omitempty"`
	Name        string         `yaml:"name,omitempty"`
	Properties  []PropertyRule `yaml:"properties,omitempty"`
	Selectable  bool           `yaml:"selectable,omitempty"`
	Included    bool           `yaml:"included"`
	Nameless    bool           `yaml:"nameless,omitempty"`
	MinVersion  string         `yaml:"minVersion,omitempty"`
	RecordsKey  string         `yaml:"recordsKey,omitempty"`
	Filter      *Filter        `yaml:"filter,omitempty"`
	Pivot       *Pivot         `yaml:"pivot,omitempty"`
	SchemaMerge *SchemaMerge   `yaml:"schemaMerge,omitempty"`

	minVersion *semver.Version
}

// UnmarshalYAML decodes a descriptor. Included defaults to true.
func (d *Descriptor) UnmarshalYAML(node *yaml.Node) error {
	type plain Descriptor

	p := plain{Included: true}
	if err := node.Decode(&p); err != nil {
		return err
	}

	*d = Descriptor(p)

	return nil
}

// SelectKeys returns the top level keys worth requesting from the
// appliance, or nil when the descriptor is not selectable. children are the
// schemaMerge descriptors of d.
func (d *Descriptor) SelectKeys(children []*Descriptor) []string {
	if !d.Selectable {
		return nil
	}

	seen := map[string]bool{}
	keys := []string{}
	add := func(key string) {
		if key == "" {
			return
		}
		first, _, _ := strings.Cut(key, ".")
		if !seen[first] {
			seen[first] = true
			keys = append(keys, first)
		}
	}

	if d.RecordsKey != "" {
		add(d.RecordsKey)
		return keys
	}

	if !d.Nameless {
		add("name")
	}
	for _, rule := range d.Properties {
		add(rule.SourceKey)
		if rule.Conditional != nil {
			add(rule.Conditional.Key)
		}
	}
	if d.Filter != nil {
		add(d.Filter.Key)
	}
	if d.Pivot != nil {
		add(d.Pivot.Key)
		add(d.Pivot.Value)
	}
	for _, child := range children {
		add(child.SchemaMerge.Link)
	}

	return keys
}

// SupportedOn reports whether the resource exists on an appliance running
// version. Only the first three components of version are compared. A
// version-gated resource is unsupported when version is empty or cannot be
// parsed.
func (d *Descriptor) SupportedOn(version string) bool {
	if d.minVersion == nil {
		return true
	}

	v, err := ParseVersion(version)
	if err != nil {
		return false
	}

	return !v.LessThan(d.minVersion)
}

// ParseVersion parses an appliance version such as 16.1.3.1 by keeping its
// first three components.
func ParseVersion(version string) (*semver.Version, error) {
	parts := strings.SplitN(version, ".", 4)
	if len(parts) > 3 {
		parts = parts[:3]
	}

	return semver.NewVersion(strings.Join(parts, "."))
}
