package declaration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidatorAcceptsDeclaration(t *testing.T) {
	t.Parallel()

	v, err := NewSchemaValidator()
	require.NoError(t, err)

	vlan := entityWith("VLAN", "tag", int64(4094), "mtu", int64(1500))
	vlan.Set("interfaces", []any{entityWith("", "name", "1.1", "tagged", true)})

	entities, _ := Resolve([]Candidate{
		{Name: "currentSystem", Entity: entityWith("System", "hostname", "bigip1.example.com", "cliInactivityTimeout", int64(3600)), Index: 0, Singleton: true},
		{Name: "currentProvision", Entity: entityWith("Provision", "ltm", "nominal"), Index: 1, Singleton: true},
		{Name: "external", Entity: vlan, Index: 2},
	})

	assert.NoError(t, v.Validate(Assemble(entities, "1.46.0")))
	assert.NoError(t, v.Validate(Assemble(nil, "1.46.0")))
}

func TestSchemaValidatorRejects(t *testing.T) {
	t.Parallel()

	v, err := NewSchemaValidator()
	require.NoError(t, err)

	tests := []struct {
		name   string
		entity *Entity
		want   string
	}{
		{name: "vlan tag out of range", entity: entityWith("VLAN", "tag", int64(5000)), want: "/declaration/Common/bad/tag"},
		{name: "cli timeout not whole minutes", entity: entityWith("System", "cliInactivityTimeout", int64(61)), want: "/declaration/Common/bad/cliInactivityTimeout"},
		{name: "unknown provisioning level", entity: entityWith("Provision", "ltm", "maximum"), want: "/declaration/Common/bad/ltm"},
		{name: "unknown class", entity: entityWith("Mystery"), want: "/declaration/Common/bad/class"},
		{name: "self ip without vlan", entity: entityWith("SelfIp", "address", "10.0.0.1/24"), want: "/declaration/Common/bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			entities, _ := Resolve([]Candidate{{Name: "bad", Entity: tt.entity}})

			err := v.Validate(Assemble(entities, "1.46.0"))
			require.Error(t, err)

			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
			require.NotEmpty(t, schemaErr.Messages)
			assert.Contains(t, schemaErr.Error(), tt.want)
		})
	}
}

func TestNewSchemaValidatorFromInvalidSchema(t *testing.T) {
	t.Parallel()

	_, err := NewSchemaValidatorFrom([]byte(`{"type": 12}`))
	assert.Error(t, err)

	_, err = NewSchemaValidatorFrom([]byte(`not json`))
	assert.Error(t, err)
}
