package generator

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const reviewSchema = `{
  "type": "object",
  "required": ["review", "rating"],
  "properties": {
    "review": {"type": "string"},
    "rating": {"type": "number"}
  }
}`

const questionsSchema = `{
  "type": "array",
  "minItems": 1,
  "items": {"type": "string"}
}`

// compiled schemas by name
var schemaCache sync.Map

func validateAgainst(name string, definition string, v any) error {
	compiled, err := compiledSchema(name, definition)
	if err != nil {
		return fmt.Errorf("compile schema %q: %w", name, err)
	}
	if err := compiled.Validate(v); err != nil {
		return &ValidationError{Errors: []string{err.Error()}}
	}
	return nil
}

func compiledSchema(name string, definition string) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(definition))
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://%s.json", name)
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(name, compiled)
	return compiled, nil
}
