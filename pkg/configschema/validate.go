// SPDX-License-Identifier: Apache-2.0

package configschema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Kind names which of the three embedded schemas Validate should check
// against.
type Kind string

const (
	SchemaJSONSchema    Kind = "schema"
	TransformJSONSchema Kind = "transform"
	ManifestJSONSchema  Kind = "manifest"
)

var compiled = map[Kind]*jsonschema.Schema{}

func init() {
	sources := map[Kind]string{
		SchemaJSONSchema:    schemaJSONSchemaSource,
		TransformJSONSchema: transformJSONSchemaSource,
		ManifestJSONSchema:  manifestJSONSchemaSource,
	}

	for kind, src := range sources {
		c := jsonschema.NewCompiler()
		var doc any
		if err := json.Unmarshal([]byte(src), &doc); err != nil {
			panic(fmt.Sprintf("configschema: embedded schema for %s does not parse: %v", kind, err))
		}
		url := string(kind) + ".json"
		if err := c.AddResource(url, doc); err != nil {
			panic(fmt.Sprintf("configschema: embedded schema for %s is invalid: %v", kind, err))
		}
		schema, err := c.Compile(url)
		if err != nil {
			panic(fmt.Sprintf("configschema: embedded schema for %s failed to compile: %v", kind, err))
		}
		compiled[kind] = schema
	}
}

// Validate runs a thin structural pre-flight check (required fields present,
// types match) against the named embedded schema. This deliberately does
// not attempt full semantic validation — spec.md §1 explicitly scopes JSON
// schema validation depth out of the core; this pass only catches malformed
// documents before they reach Schema/Transform construction.
func Validate(kind Kind, data []byte) error {
	schema, ok := compiled[kind]
	if !ok {
		return fmt.Errorf("configschema: unknown schema kind %q", kind)
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("configschema: %s document is not valid JSON: %w", kind, err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("configschema: %s document failed validation: %w", kind, err)
	}
	return nil
}
