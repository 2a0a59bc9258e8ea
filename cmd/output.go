package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.yaml.in/yaml/v3"

	"github.com/overmindtech/doinspect/inspect"
)

const (
	OutputJSON  = "json"
	OutputYAML  = "yaml"
	OutputTable = "table"
)

// writeResult renders result to w in the requested format.
func writeResult(w io.Writer, result *inspect.Result, format string) error {
	switch format {
	case OutputJSON, "":
		b, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case OutputYAML:
		return writeYAML(w, result)
	case OutputTable:
		writeTable(w, result)
		return nil
	default:
		return fmt.Errorf("unknown output format %q, valid values: %s", format, strings.Join([]string{OutputJSON, OutputYAML, OutputTable}, ", "))
	}
}

// writeYAML goes through JSON so that key order and field names are the
// same as in the JSON output.
func writeYAML(w io.Writer, result *inspect.Result) error {
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return err
	}
	resetStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}

	return enc.Close()
}

// resetStyle drops the flow style JSON input leaves on every node.
func resetStyle(node *yaml.Node) {
	if node.Kind != yaml.ScalarNode {
		node.Style = 0
	} else if node.Style == yaml.DoubleQuotedStyle {
		node.Style = 0
	}
	for _, child := range node.Content {
		resetStyle(child)
	}
}

func writeTable(w io.Writer, result *inspect.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("%d %s", result.Code, result.Status))
	t.AppendHeader(table.Row{"Name", "Class"})

	if result.Declaration != nil {
		common := result.Declaration.Common()
		for _, name := range common.Names() {
			entity, _ := common.Get(name)
			t.AppendRow(table.Row{name, entity.Class()})
		}
	}

	if result.Message != "" {
		t.AppendFooter(table.Row{"Message", result.Message})
	}
	for _, problem := range result.Errors {
		t.AppendFooter(table.Row{"Error", problem})
	}

	t.Render()
}
