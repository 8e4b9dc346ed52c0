package ai

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// itemsSchema accepts the Spanish keys the prompt asks for and the English
// ones some models answer with anyway.
const itemsSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "producto":  {"type": "string"},
      "name":      {"type": "string"},
      "categoria": {"type": "string"},
      "category":  {"type": "string"},
      "precio":    {"type": ["number", "string"]},
      "price":     {"type": ["number", "string"]},
      "cantidad":  {"type": ["integer", "string"]}
    },
    "allOf": [
      {"anyOf": [{"required": ["producto"]}, {"required": ["name"]}]},
      {"anyOf": [{"required": ["precio"]}, {"required": ["price"]}]}
    ]
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func itemSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("items.json", strings.NewReader(itemsSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("items.json")
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// validateItems checks an already decoded JSON document against the item schema
func validateItems(doc interface{}) error {
	schema, err := itemSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
