package definition

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// definitionSchema describes the part of a workflow document this tool relies
// on. Everything else is left to the server.
const definitionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "nodes"],
  "properties": {
    "name":  {"type": "string", "minLength": 1},
    "nodes": {"type": "array", "items": {"type": "object"}}
  }
}`

var loadSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(definitionSchema))
})

// validateShape checks a decoded document against definitionSchema.
func validateShape(doc interface{}) error {
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("failed to load definition schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidDefinition, strings.Join(msgs, "; "))
	}

	return nil
}
