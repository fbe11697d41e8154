package tool

import (
	"fmt"
	"reflect"
	"strings"
)

// ValidationError reports an argument that does not satisfy the tool schema.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// SchemaOf derives an object schema from the exported fields of an argument
// struct. Property names follow the json tag, descriptions the description
// tag. Fields without omitempty are required.
func SchemaOf(v any) map[string]any {
	props := map[string]any{}
	schema := map[string]any{"type": "object", "properties": props}

	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return schema
	}

	var required []string
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		prop := map[string]any{"type": jsonType(f.Type)}
		if d := f.Tag.Get("description"); d != "" {
			prop["description"] = d
		}
		props[name] = prop
		if f.Type.Kind() != reflect.Ptr && !strings.Contains(opts, "omitempty") {
			required = append(required, name)
		}
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Ptr:
		return jsonType(t.Elem())
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	}
	return "string"
}

// validateArgs checks required fields (absent, nil and "" count as missing)
// and the declared type of every known property. Unknown fields pass.
func validateArgs(args, schema map[string]any) error {
	for _, name := range requiredFields(schema["required"]) {
		if v, ok := args[name]; !ok || v == nil || v == "" {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}
	}
	props, _ := schema["properties"].(map[string]any)
	for name, v := range args {
		prop, _ := props[name].(map[string]any)
		want, _ := prop["type"].(string)
		if want == "" || v == nil || hasType(v, want) {
			continue
		}
		return &ValidationError{Field: name, Value: v, Message: fmt.Sprintf("expected type %s, got %T", want, v)}
	}
	return nil
}

// requiredFields reads a "required" list built in Go or decoded from JSON.
func requiredFields(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func hasType(v any, want string) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		switch v.(type) {
		case []any, []string:
			return true
		}
		return false
	case "integer":
		if f, ok := v.(float64); ok {
			return f == float64(int64(f))
		}
		return isInteger(v)
	case "number":
		switch v.(type) {
		case float32, float64:
			return true
		}
		return isInteger(v)
	}
	return true
}

func isInteger(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}
