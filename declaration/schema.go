package declaration

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema/declaration.schema.json
var declarationSchema []byte

const schemaResource = "declaration.schema.json"

// Schema returns a copy of the embedded declaration schema document.
func Schema() []byte {
	return bytes.Clone(declarationSchema)
}

// SchemaError is returned when a document does not satisfy the
// declaration schema.
type SchemaError struct {
	Messages []string
}

func (e *SchemaError) Error() string {
	return "declaration does not match schema: " + strings.Join(e.Messages, "; ")
}

// SchemaValidator checks documents against the declaration schema.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

// NewSchemaValidator compiles the embedded declaration schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	return NewSchemaValidatorFrom(declarationSchema)
}

// NewSchemaValidatorFrom compiles a schema document.
func NewSchemaValidatorFrom(schema []byte) (*SchemaValidator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", schemaResource, err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaResource, doc); err != nil {
		return nil, fmt.Errorf("failed to add %s: %w", schemaResource, err)
	}

	sch, err := c.Compile(schemaResource)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", schemaResource, err)
	}

	return &SchemaValidator{schema: sch}, nil
}

// Validate checks doc, which may be any value that marshals to JSON. A
// schema violation is returned as a *SchemaError.
func (v *SchemaValidator) Validate(doc any) error {
	content, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to unmarshal document: %w", err)
	}

	err = v.schema.Validate(inst)
	if err == nil {
		return nil
	}

	var valErr *jsonschema.ValidationError
	if !errors.As(err, &valErr) {
		return err
	}

	return &SchemaError{Messages: validationMessages(valErr)}
}

// validationMessages flattens the error tree into one line per failure,
// dropping the summary line naming the schema.
func validationMessages(err *jsonschema.ValidationError) []string {
	lines := strings.Split(err.Error(), "\n")

	messages := []string{}
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		if line != "" {
			messages = append(messages, line)
		}
	}

	if len(messages) == 0 {
		messages = append(messages, strings.TrimSpace(lines[0]))
	}

	return messages
}
