package declaration

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const (
	ClassDO     = "DO"
	ClassDevice = "Device"
	ClassTenant = "Tenant"
	// TenantName is the only tenant a declaration describes.
	TenantName = "Common"
)

// Declaration is the document envelope around the resolved entities.
type Declaration struct {
	Class       string `json:"class"`
	Declaration Device `json:"declaration"`
}

// Device holds the schema version and the single Common tenant.
type Device struct {
	Class         string  `json:"class"`
	SchemaVersion string  `json:"schemaVersion"`
	Common        *Tenant `json:"Common"`
}

// Tenant groups named entities. It marshals as an object whose first key
// is the class followed by the entities in resolution order.
type Tenant struct {
	entities *Entities
}

// Assemble wraps entities in the declaration envelope. A nil or empty set
// of entities still yields a Common tenant.
func Assemble(entities *Entities, schemaVersion string) *Declaration {
	if entities == nil {
		entities = orderedmap.New[string, *Entity]()
	}

	return &Declaration{
		Class: ClassDO,
		Declaration: Device{
			Class:         ClassDevice,
			SchemaVersion: schemaVersion,
			Common:        &Tenant{entities: entities},
		},
	}
}

// Common returns the Common tenant.
func (d *Declaration) Common() *Tenant {
	return d.Declaration.Common
}

// Get returns the entity stored under name.
func (t *Tenant) Get(name string) (*Entity, bool) {
	return t.entities.Get(name)
}

// Names returns the entity names in order.
func (t *Tenant) Names() []string {
	names := make([]string, 0, t.entities.Len())
	for pair := t.entities.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}

	return names
}

// Len returns the number of entities.
func (t *Tenant) Len() int {
	return t.entities.Len()
}

func (t *Tenant) MarshalJSON() ([]byte, error) {
	out := orderedmap.New[string, any]()
	out.Set("class", ClassTenant)

	for pair := t.entities.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, pair.Value)
	}

	return json.Marshal(out)
}
