package rules

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.json
var schemaFS embed.FS

const schemaBase = "https://pumuki.local/schema/"

var (
	schemaOnce sync.Once
	schemas    map[string]*jsonschema.Schema
	schemaErr  error
)

func compileSchemas() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	names := []string{"skills-lock", "skills-policy", "custom-rules"}
	for _, name := range names {
		data, err := schemaFS.ReadFile("schema/" + name + ".schema.json")
		if err != nil {
			schemaErr = fmt.Errorf("schema %s: %w", name, err)
			return
		}
		if err := c.AddResource(schemaBase+name+".schema.json", bytes.NewReader(data)); err != nil {
			schemaErr = fmt.Errorf("schema %s load failed: %w", name, err)
			return
		}
	}
	schemas = make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		s, err := c.Compile(schemaBase + name + ".schema.json")
		if err != nil {
			schemaErr = fmt.Errorf("schema %s compile failed: %w", name, err)
			return
		}
		schemas[name] = s
	}
}

// decodeValidated checks data against the named schema and decodes it into
// out.
func decodeValidated(name string, data []byte, out any) error {
	schemaOnce.Do(compileSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("malformed json: %w", err)
	}
	if err := schemas[name].Validate(doc); err != nil {
		return fmt.Errorf("schema violation: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
