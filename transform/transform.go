// Package transform interprets catalog descriptors, turning raw appliance
// responses into named declarative entities.
package transform

import (
	"fmt"

	"github.com/overmindtech/doinspect/appliance"
	"github.com/overmindtech/doinspect/catalog"
	"github.com/overmindtech/doinspect/declaration"
)

// Source is everything needed to transform one descriptor.
type Source struct {
	Descriptor *catalog.Descriptor
	Response   appliance.Response
	Device     appliance.DeviceInfo
	Children   []Child
}

// Child carries the sub-resources of one schemaMerge descriptor, keyed by
// the hyperlink found in the parent record.
type Child struct {
	Descriptor *catalog.Descriptor
	Responses  map[string]appliance.Response
}

// Named is an entity together with the name it claims.
type Named struct {
	Name      string
	Entity    *declaration.Entity
	Singleton bool
}

// Transform maps src onto zero or more named entities.
func Transform(src Source) ([]Named, error) {
	d := src.Descriptor

	records, err := selectRecords(d, src.Response, src.Device)
	if err != nil {
		return nil, err
	}

	if d.Pivot != nil {
		entity := pivot(d, records)
		if entity == nil {
			return nil, nil
		}
		return []Named{{Name: d.Name, Entity: entity, Singleton: true}}, nil
	}

	if d.Nameless {
		var record appliance.Record
		if len(records) > 0 {
			record = records[0]
		} else if !hasDefaults(d) {
			return nil, nil
		}

		entity := declaration.NewEntity(d.SchemaClass)
		if err := apply(d, record, entity); err != nil {
			return nil, err
		}
		if err := graft(src.Children, record, entity); err != nil {
			return nil, err
		}

		return []Named{{Name: d.Name, Entity: entity, Singleton: true}}, nil
	}

	named := make([]Named, 0, len(records))

	for _, record := range records {
		name, err := recordName(d, record)
		if err != nil {
			return nil, err
		}

		entity := declaration.NewEntity(d.SchemaClass)
		if err := apply(d, record, entity); err != nil {
			return nil, fmt.Errorf("%s %s: %w", d.Path, name, err)
		}
		if err := graft(src.Children, record, entity); err != nil {
			return nil, fmt.Errorf("%s %s: %w", d.Path, name, err)
		}

		named = append(named, Named{Name: name, Entity: entity})
	}

	return named, nil
}

// selectRecords normalizes the response into the list of records the
// descriptor describes.
func selectRecords(d *catalog.Descriptor, resp appliance.Response, device appliance.DeviceInfo) ([]appliance.Record, error) {
	records := resp.Records()

	if d.RecordsKey != "" {
		var nested []appliance.Record
		for _, record := range records {
			v, ok := record.Lookup(d.RecordsKey)
			if !ok || v == nil {
				continue
			}
			inner, err := appliance.NewResponse(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", d.Path, d.RecordsKey, err)
			}
			nested = append(nested, inner.Records()...)
		}
		records = nested
	}

	if d.Filter != nil {
		want := d.Filter.Equals
		switch d.Filter.EqualsDevice {
		case "hostname":
			want = device.Hostname
		case "version":
			want = device.Version
		}

		kept := make([]appliance.Record, 0, len(records))
		for _, record := range records {
			v, ok := record.Lookup(d.Filter.Key)
			if ok && fmt.Sprint(v) == fmt.Sprint(want) {
				kept = append(kept, record)
			}
		}
		records = kept
	}

	return records, nil
}

func recordName(d *catalog.Descriptor, record appliance.Record) (string, error) {
	v, ok := record["name"]
	if !ok {
		return "", fmt.Errorf("%s: record has no name", d.Path)
	}

	name := StripPartition(fmt.Sprint(v))
	if name == "" {
		return "", fmt.Errorf("%s: record has an empty name", d.Path)
	}

	return name, nil
}

// apply runs every property rule of d against record, writing into entity.
func apply(d *catalog.Descriptor, record appliance.Record, entity *declaration.Entity) error {
	for _, rule := range d.Properties {
		if rule.Conditional != nil && !holds(rule.Conditional, record) {
			continue
		}

		v, ok := record.Lookup(rule.SourceKey)
		if ok && v != nil {
			coerced, err := coerce(rule, v)
			if err != nil {
				return err
			}
			entity.SetPath(rule.TargetPath(), coerced)
			continue
		}

		if rule.HasDefault() {
			entity.SetPath(rule.TargetPath(), cloneDefault(rule.Default))
		}
	}

	return nil
}

func holds(c *catalog.Condition, record appliance.Record) bool {
	v, ok := record.Lookup(c.Key)
	if !ok || v == nil {
		v = ""
	}

	if c.Equals != nil {
		return fmt.Sprint(v) == fmt.Sprint(c.Equals)
	}

	return fmt.Sprint(v) != fmt.Sprint(c.NotEquals)
}

func hasDefaults(d *catalog.Descriptor) bool {
	for _, rule := range d.Properties {
		if rule.HasDefault() && rule.Conditional == nil {
			return true
		}
	}

	return false
}

// pivot turns name/value records into the properties of one entity, in
// listing order. It returns nil when no record qualifies.
func pivot(d *catalog.Descriptor, records []appliance.Record) *declaration.Entity {
	only := map[string]bool{}
	for _, key := range d.Pivot.Only {
		only[key] = true
	}

	entity := declaration.NewEntity(d.SchemaClass)

	for _, record := range records {
		k, ok := record.Lookup(d.Pivot.Key)
		if !ok || k == nil {
			continue
		}
		key := fmt.Sprint(k)
		if key == "class" || entity.Has(key) || (len(only) > 0 && !only[key]) {
			continue
		}

		v, ok := record.Lookup(d.Pivot.Value)
		if !ok {
			continue
		}
		entity.Set(key, v)
	}

	if entity.Len() <= 1 {
		return nil
	}

	return entity
}

// graft transforms the linked sub-resources of record and stores them at
// each child's nested path. Collections become lists of objects that carry
// their name, singletons become one object. Empty results are omitted.
func graft(children []Child, record appliance.Record, entity *declaration.Entity) error {
	for _, child := range children {
		merge := child.Descriptor.SchemaMerge

		link, ok := record.Lookup(merge.Link)
		if !ok || link == nil {
			continue
		}

		resp := child.Responses[fmt.Sprint(link)]
		records := resp.Records()

		if child.Descriptor.Nameless {
			if len(records) == 0 {
				continue
			}
			nested := declaration.NewEntity(child.Descriptor.SchemaClass)
			if err := apply(child.Descriptor, records[0], nested); err != nil {
				return err
			}
			entity.SetPath(merge.Path, nested)
			continue
		}

		items := make([]any, 0, len(records))
		for _, sub := range records {
			name, err := recordName(child.Descriptor, sub)
			if err != nil {
				return err
			}

			nested := declaration.NewEntity(child.Descriptor.SchemaClass)
			nested.Set("name", name)
			if err := apply(child.Descriptor, sub, nested); err != nil {
				return err
			}
			items = append(items, nested)
		}

		if len(items) > 0 {
			entity.SetPath(merge.Path, items)
		}
	}

	return nil
}

// cloneDefault copies a default so entities never share catalog state.
func cloneDefault(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneDefault(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = cloneDefault(item)
		}
		return out
	default:
		return v
	}
}
