package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/overmindtech/doinspect/declaration"
	"github.com/overmindtech/doinspect/inspect"
)

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Prints the JSON schema of the result envelope or of the declaration",
	PreRun: func(cmd *cobra.Command, args []string) {
		cobra.CheckErr(viper.BindPFlags(cmd.Flags()))
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetBool("declaration") {
			_, err := os.Stdout.Write(declaration.Schema())
			return err
		}

		return writeResultSchema(os.Stdout)
	},
}

// resultSchema reflects the envelope. Tenants marshal their entities
// themselves, so they are described as open objects.
func resultSchema() *jsonschema.Schema {
	tenant := reflect.TypeFor[declaration.Tenant]()

	r := &jsonschema.Reflector{
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == tenant {
				return &jsonschema.Schema{
					Type:        "object",
					Description: "Entities of the tenant keyed by name, each carrying its class",
				}
			}
			return nil
		},
	}

	s := r.Reflect(&inspect.Result{})
	s.Title = "doinspect result"

	return s
}

func writeResultSchema(w io.Writer) error {
	b, err := json.MarshalIndent(resultSchema(), "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}

func init() {
	rootCmd.AddCommand(schemaCmd)

	schemaCmd.Flags().Bool("declaration", false, "Print the declaration schema used for validation instead")
}
