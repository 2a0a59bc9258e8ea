package appliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      any
		wantKind ResponseKind
		wantLen  int
		wantErr  bool
	}{
		{name: "nil", raw: nil, wantKind: KindEmpty},
		{name: "empty object", raw: map[string]any{}, wantKind: KindEmpty},
		{name: "empty list", raw: []any{}, wantKind: KindEmpty},
		{name: "single", raw: map[string]any{"name": "a"}, wantKind: KindSingle, wantLen: 1},
		{name: "list", raw: []any{map[string]any{"name": "a"}, map[string]any{"name": "b"}}, wantKind: KindList, wantLen: 2},
		{name: "typed list", raw: []map[string]any{{"name": "a"}}, wantKind: KindList, wantLen: 1},
		{name: "list of scalars", raw: []any{"a"}, wantErr: true},
		{name: "scalar", raw: "a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, err := NewResponse(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, resp.Kind())
			assert.Equal(t, tt.wantLen, resp.Len())
			assert.Len(t, resp.Records(), tt.wantLen)
		})
	}
}

func TestZeroResponseIsEmpty(t *testing.T) {
	t.Parallel()

	var resp Response
	assert.Equal(t, KindEmpty, resp.Kind())
	assert.Empty(t, resp.Records())
}

func TestRecordLookup(t *testing.T) {
	t.Parallel()

	rec := Record{
		"name": "/Common/device1",
		"unicastAddress": []any{
			map[string]any{"ip": "10.0.0.1", "port": int64(1026)},
		},
		"interfacesReference": map[string]any{"link": "https://localhost/mgmt/tm/net/vlan/~Common~v/interfaces"},
	}

	v, ok := rec.Lookup("name")
	assert.True(t, ok)
	assert.Equal(t, "/Common/device1", v)

	v, ok = rec.Lookup("unicastAddress.0.ip")
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.1", v)

	v, ok = rec.Lookup("interfacesReference.link")
	assert.True(t, ok)
	assert.Equal(t, "https://localhost/mgmt/tm/net/vlan/~Common~v/interfaces", v)

	for _, key := range []string{"", "missing", "unicastAddress.1.ip", "unicastAddress.x", "name.inner"} {
		_, ok := rec.Lookup(key)
		assert.False(t, ok, key)
	}
}

func TestPathFromLink(t *testing.T) {
	t.Parallel()

	path, err := PathFromLink("https://localhost/mgmt/tm/net/vlan/~Common~external/interfaces?ver=16.1.0")
	require.NoError(t, err)
	assert.Equal(t, "/tm/net/vlan/~Common~external/interfaces", path)

	_, err = PathFromLink("https://localhost")
	assert.Error(t, err)
}
