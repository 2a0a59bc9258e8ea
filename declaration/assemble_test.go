package declaration

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleEmpty(t *testing.T) {
	t.Parallel()

	decl := Assemble(nil, "1.46.0")
	assert.Equal(t, 0, decl.Common().Len())
	assert.Empty(t, decl.Common().Names())

	b, err := json.Marshal(decl)
	require.NoError(t, err)
	assert.Equal(t, `{"class":"DO","declaration":{"class":"Device","schemaVersion":"1.46.0","Common":{"class":"Tenant"}}}`, string(b))
}

func TestAssembleKeepsResolutionOrder(t *testing.T) {
	t.Parallel()

	entities, _ := Resolve([]Candidate{
		{Name: "zeta", Entity: entityWith("VLAN", "tag", int64(4)), Source: "/tm/net/vlan", Index: 1},
		{Name: "currentDNS", Entity: entityWith("DNS", "nameServers", []any{"8.8.8.8"}), Source: "/tm/sys/dns", Index: 0, Singleton: true},
		{Name: "alpha", Entity: entityWith("VLAN", "tag", int64(5)), Source: "/tm/net/vlan", Index: 1},
	})

	decl := Assemble(entities, "1.46.0")
	assert.Equal(t, []string{"currentDNS", "zeta", "alpha"}, decl.Common().Names())

	vlan, ok := decl.Common().Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "VLAN", vlan.Class())

	b, err := json.Marshal(decl)
	require.NoError(t, err)
	assert.Equal(t,
		`{"class":"DO","declaration":{"class":"Device","schemaVersion":"1.46.0","Common":{"class":"Tenant","currentDNS":{"class":"DNS","nameServers":["8.8.8.8"]},"zeta":{"class":"VLAN","tag":4},"alpha":{"class":"VLAN","tag":5}}}}`,
		string(b),
	)
}
