package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/clerkops/formbench/internal/types"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const mappingSchemaFile = "schemas/field_mappings.json"

// mappingSchema is compiled once at package init. The schema is embedded, so
// a compile failure is a build defect and panicking early beats returning the
// same error on every request.
var mappingSchema = mustCompile(mappingSchemaFile)

func mustCompile(name string) *jsonschema.Schema {
	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("read embedded schema %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("load embedded schema %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile embedded schema %s: %v", name, err))
	}
	return schema
}

// ParseFieldMappings validates raw field-mapping JSON and decodes it.
// Malformed mappings are a configuration error; the caller should reject the
// request rather than generate documents from a bad template.
func ParseFieldMappings(data []byte) ([]types.FieldMapping, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("field mappings are not valid JSON: %w", err)
	}

	if err := mappingSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("field mappings do not match schema: %w", err)
	}

	var mappings []types.FieldMapping
	if err := json.Unmarshal(data, &mappings); err != nil {
		return nil, fmt.Errorf("failed to decode field mappings: %w", err)
	}

	if err := checkDuplicateNames(mappings); err != nil {
		return nil, err
	}
	return mappings, nil
}

// ValidateFieldMappings checks already-decoded mappings, used when the
// mappings arrive as part of a larger request body instead of a raw blob.
func ValidateFieldMappings(mappings []types.FieldMapping) error {
	data, err := json.Marshal(mappings)
	if err != nil {
		return fmt.Errorf("failed to serialize field mappings: %w", err)
	}
	_, err = ParseFieldMappings(data)
	return err
}

// checkDuplicateNames rejects mappings that reuse a field name. Ground-truth
// values are keyed by name, so duplicates would silently overwrite each other.
func checkDuplicateNames(mappings []types.FieldMapping) error {
	seen := make(map[string]struct{}, len(mappings))
	for _, m := range mappings {
		key := strings.ToLower(m.Name)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("duplicate field mapping name: %s", m.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}
