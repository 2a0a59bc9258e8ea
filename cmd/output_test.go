package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/overmindtech/doinspect/declaration"
	"github.com/overmindtech/doinspect/inspect"
)

func sampleResult() *inspect.Result {
	entities, _ := declaration.Resolve([]declaration.Candidate{
		{Name: "currentSystem", Entity: systemEntity(), Source: "/tm/sys/global-settings", Singleton: true},
		{Name: "external", Entity: vlanEntity(), Source: "/tm/net/vlan", Index: 1},
	})

	return &inspect.Result{
		Code:        http.StatusOK,
		Status:      inspect.StatusOK,
		Errors:      []string{},
		Declaration: declaration.Assemble(entities, "1.46.0"),
	}
}

func systemEntity() *declaration.Entity {
	e := declaration.NewEntity("System")
	e.Set("hostname", "bigip1.example.com")
	e.Set("guiSetup", false)
	return e
}

func vlanEntity() *declaration.Entity {
	e := declaration.NewEntity("VLAN")
	e.Set("tag", int64(4094))
	e.Set("cmpHash", "default")
	return e
}

func TestWriteResultJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, sampleResult(), OutputJSON))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, float64(200), got["code"])
	assert.Equal(t, "1.46.0", got["declaration"].(map[string]any)["declaration"].(map[string]any)["schemaVersion"])
}

func TestWriteResultYAMLKeepsOrder(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, sampleResult(), OutputYAML))

	out := buf.String()
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("currentSystem:")), bytes.Index(buf.Bytes(), []byte("external:")), out)
	assert.Contains(t, out, "code: 200\n")
	assert.Contains(t, out, "errors: []\n")

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	common := got["declaration"].(map[string]any)["declaration"].(map[string]any)["Common"].(map[string]any)
	assert.Equal(t, map[string]any{"class": "VLAN", "tag": 4094, "cmpHash": "default"}, common["external"])
	assert.Equal(t, false, common["currentSystem"].(map[string]any)["guiSetup"])
}

func TestWriteResultTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, sampleResult(), OutputTable))

	out := buf.String()
	assert.Contains(t, out, "200 OK")
	assert.Contains(t, out, "currentSystem")
	assert.Contains(t, out, "VLAN")

	buf.Reset()
	require.NoError(t, writeResult(&buf, &inspect.Result{
		Code:    http.StatusBadRequest,
		Status:  inspect.StatusBadRequest,
		Message: "Bad Request",
		Errors:  []string{"targetHost should be specified"},
	}, OutputTable))
	assert.Contains(t, buf.String(), "targetHost should be specified")
}

func TestWriteResultUnknownFormat(t *testing.T) {
	t.Parallel()

	err := writeResult(&bytes.Buffer{}, sampleResult(), "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
}

func TestResultSchema(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(resultSchema())
	require.NoError(t, err)

	assert.Contains(t, string(b), `"code"`)
	assert.Contains(t, string(b), `"declaration"`)
	assert.Contains(t, string(b), "Entities of the tenant keyed by name")
	assert.Contains(t, string(b), `"title":"doinspect result"`)
}
