package tools

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/invopop/jsonschema"

	"github.com/veraxis/scout/pkg/fault"
)

// ValidateArgs checks args against the tool's declared parameters before the
// handler runs. Any mismatch yields a fault.ValidationError and the handler
// is never called. A tool that declares no parameters accepts any args:
// remote tools whose schemas could not be parsed must stay callable.
func ValidateArgs(info ToolInfo, args map[string]any) error {
	if len(info.Parameters) == 0 {
		return nil
	}

	declared := make(map[string]ToolParameter, len(info.Parameters))
	for _, p := range info.Parameters {
		declared[p.Name] = p
	}

	for name := range args {
		if _, ok := declared[name]; !ok {
			return fault.NewValidationError(info.Name, name, "unknown argument")
		}
	}

	for _, p := range info.Parameters {
		value, present := args[p.Name]
		if !present || value == nil {
			if p.Required {
				return fault.NewValidationError(info.Name, p.Name, "required argument missing")
			}
			continue
		}

		if err := checkType(p.Type, value); err != nil {
			return fault.NewValidationError(info.Name, p.Name, err.Error())
		}

		if len(p.Enum) > 0 {
			s, ok := value.(string)
			if !ok {
				return fault.NewValidationError(info.Name, p.Name, "enum argument must be a string")
			}
			if !containsString(p.Enum, s) {
				return fault.NewValidationError(info.Name, p.Name,
					fmt.Sprintf("value %q not in allowed set %v", s, p.Enum))
			}
		}
	}

	return nil
}

// ApplyDefaults returns a copy of args with declared defaults filled in for
// absent optional parameters. The input map is never mutated.
func ApplyDefaults(info ToolInfo, args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	for _, p := range info.Parameters {
		if p.Default == nil {
			continue
		}
		if _, present := out[p.Name]; !present {
			out[p.Name] = p.Default
		}
	}
	return out
}

func checkType(declared string, value any) error {
	switch declared {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case "number":
		switch value.(type) {
		case float64, float32, int, int32, int64:
		default:
			return fmt.Errorf("expected number, got %T", value)
		}
	case "integer":
		switch v := value.(type) {
		case int, int32, int64:
		case float64:
			// JSON decoding yields float64 for all numerics.
			if v != math.Trunc(v) {
				return fmt.Errorf("expected integer, got %v", v)
			}
		default:
			return fmt.Errorf("expected integer, got %T", value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case "array":
		if reflect.ValueOf(value).Kind() != reflect.Slice {
			return fmt.Errorf("expected array, got %T", value)
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
	}
	return nil
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// ReflectParameters derives a parameter list from a tagged args struct.
//
// Supported tags:
//   - json:"name"                          parameter name
//   - jsonschema:"required"                mark as required
//   - jsonschema:"description=..."         parameter description
//   - jsonschema:"default=..."             default value
//   - jsonschema:"enum=a,enum=b"           allowed values
func ReflectParameters(v any) ([]ToolParameter, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	schema := reflector.Reflect(v)
	if schema.Properties == nil {
		return nil, fmt.Errorf("type %T has no reflectable fields", v)
	}

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	var params []ToolParameter
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		prop := pair.Value
		param := ToolParameter{
			Name:        pair.Key,
			Type:        prop.Type,
			Description: prop.Description,
			Required:    required[pair.Key],
			Default:     prop.Default,
		}
		for _, e := range prop.Enum {
			param.Enum = append(param.Enum, fmt.Sprint(e))
		}
		params = append(params, param)
	}

	return params, nil
}

// MustReflectParameters is ReflectParameters that panics on error, for
// package-level parameter declarations.
func MustReflectParameters(v any) []ToolParameter {
	params, err := ReflectParameters(v)
	if err != nil {
		panic(err)
	}
	return params
}

// ParametersSchema renders a parameter list as a JSON schema object, the
// shape MCP clients and LLM function-calling APIs expect.
func ParametersSchema(params []ToolParameter) map[string]any {
	properties := make(map[string]any, len(params))
	var required []string

	for _, p := range params {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sort.Strings(required)
		schema["required"] = required
	}
	return schema
}

// ParametersFromSchema converts a JSON schema object (as delivered by MCP
// tool listings) back into a parameter list, sorted by name.
func ParametersFromSchema(schema map[string]any) []ToolParameter {
	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil
	}

	required := make(map[string]bool)
	switch req := schema["required"].(type) {
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	case []string:
		for _, r := range req {
			required[r] = true
		}
	}

	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]ToolParameter, 0, len(names))
	for _, name := range names {
		param := ToolParameter{Name: name, Required: required[name]}
		if prop, ok := properties[name].(map[string]any); ok {
			param.Type, _ = prop["type"].(string)
			param.Description, _ = prop["description"].(string)
			param.Default = prop["default"]
			if enum, ok := prop["enum"].([]any); ok {
				for _, e := range enum {
					param.Enum = append(param.Enum, fmt.Sprint(e))
				}
			}
		}
		params = append(params, param)
	}
	return params
}
