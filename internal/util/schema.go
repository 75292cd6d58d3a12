package util

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/kaptinlin/jsonschema"
)

// ValidationError reports arguments rejected by a schema.
type ValidationError struct {
	Value   any    `json:"value"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Message
}

// CreateSchema derives an object schema from the exported fields of a
// struct. Field names follow the json tag; fields tagged omitempty and
// pointer fields are optional. A "description" tag is copied verbatim.
func CreateSchema(structType any) map[string]any {
	t := reflect.TypeOf(structType)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	properties := map[string]any{}
	schema := map[string]any{"type": "object", "properties": properties}
	if t == nil || t.Kind() != reflect.Struct {
		return schema
	}

	var required []string
	for _, field := range reflect.VisibleFields(t) {
		if !field.IsExported() || field.Anonymous {
			continue
		}
		name, optional, skip := jsonField(field)
		if skip {
			continue
		}

		prop := typeSchema(field.Type)
		if description := field.Tag.Get("description"); description != "" {
			prop["description"] = description
		}
		properties[name] = prop

		if !optional && field.Type.Kind() != reflect.Ptr {
			required = append(required, name)
		}
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// jsonField reads the json tag of field.
func jsonField(field reflect.StructField) (name string, optional, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = field.Name
	}
	for _, o := range strings.Split(opts, ",") {
		if strings.TrimSpace(o) == "omitempty" {
			optional = true
		}
	}
	return name, optional, false
}

func typeSchema(t reflect.Type) map[string]any {
	schema := map[string]any{"type": getJSONType(t)}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) && t.Elem().Kind() != reflect.Uint8 {
		schema["items"] = map[string]any{"type": getJSONType(t.Elem())}
	}
	return schema
}

// Schema is a compiled parameter schema.
type Schema struct {
	compiled *jsonschema.Schema
}

// CompileSchema compiles a JSON schema given in its map form.
func CompileSchema(schema map[string]any) (*Schema, error) {
	if len(schema) == 0 {
		schema = map[string]any{"type": "object"}
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiled, err := jsonschema.NewCompiler().Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// Validate checks params against the schema. Extra fields are allowed
// unless the schema forbids them.
func (s *Schema) Validate(params map[string]any) error {
	if params == nil {
		params = map[string]any{}
	}
	res := s.compiled.Validate(params)
	if res.IsValid() {
		return nil
	}
	return &ValidationError{Value: params, Message: res.Error()}
}

// ValidateParameters compiles schema and validates params against it.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	compiled, err := CompileSchema(schema)
	if err != nil {
		return err
	}
	return compiled.Validate(params)
}

// getJSONType returns the JSON schema type for a given Go type.
func getJSONType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return getJSONType(t.Elem())
	default:
		return "string"
	}
}
