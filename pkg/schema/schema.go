// Package schema derives a flat JSON object schema from Go struct tags and
// validates decoded model output against it.
//
// Field names come from `json` tags, descriptions from `description` tags and
// allowed values from comma-separated `enum` tags. Fields tagged
// `json:",omitempty"` are optional; every other field is required.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
)

// Property describes one field of an object.
type Property struct {
	Name        string
	Type        string
	Description string
	Enum        []string
	Required    bool
}

// Schema is the ordered set of properties of an object.
type Schema struct {
	Name       string
	Properties []Property
}

// For derives a schema from a struct value or pointer to struct.
func For(v any) (*Schema, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, fmt.Errorf("expected a struct, got nil")
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected a struct, got %s", t.Kind())
	}

	s := &Schema{Name: t.Name()}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		parts := strings.Split(jsonTag, ",")
		name := parts[0]
		if name == "" {
			name = field.Name
		}

		prop := Property{
			Name:        name,
			Type:        goTypeToJSONType(field.Type),
			Description: field.Tag.Get("description"),
			Required:    !slices.Contains(parts[1:], "omitempty"),
		}
		if enum := field.Tag.Get("enum"); enum != "" {
			prop.Enum = strings.Split(enum, ",")
		}
		s.Properties = append(s.Properties, prop)
	}
	return s, nil
}

// MustFor is For that panics on error. Intended for package-level schemas.
func MustFor(v any) *Schema {
	s, err := For(v)
	if err != nil {
		panic(err)
	}
	return s
}

// Map renders the schema as a JSON Schema object.
func (s *Schema) Map() map[string]any {
	properties := make(map[string]any, len(s.Properties))
	required := []string{}
	for _, p := range s.Properties {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// String renders the schema as indented JSON, suitable for a prompt.
func (s *Schema) String() string {
	b, err := json.MarshalIndent(s.Map(), "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

// Validate checks a decoded JSON object against the schema. Unknown keys are
// ignored.
func (s *Schema) Validate(obj map[string]any) error {
	for _, p := range s.Properties {
		v, ok := obj[p.Name]
		if !ok || v == nil {
			if p.Required {
				return fmt.Errorf("missing required field %q", p.Name)
			}
			continue
		}
		if err := checkType(p, v); err != nil {
			return err
		}
		if len(p.Enum) > 0 {
			str, _ := v.(string)
			if !slices.Contains(p.Enum, str) {
				return fmt.Errorf("field %q must be one of %s, got %q", p.Name, strings.Join(p.Enum, ", "), str)
			}
		}
	}
	return nil
}

func checkType(p Property, v any) error {
	ok := false
	switch p.Type {
	case "string":
		_, ok = v.(string)
	case "integer":
		f, isNum := v.(float64)
		ok = isNum && f == math.Trunc(f)
	case "number":
		_, ok = v.(float64)
	case "boolean":
		_, ok = v.(bool)
	case "array":
		_, ok = v.([]any)
	case "object":
		_, ok = v.(map[string]any)
	default:
		ok = true
	}
	if !ok {
		return fmt.Errorf("field %q must be of type %s, got %T", p.Name, p.Type, v)
	}
	return nil
}

func goTypeToJSONType(t reflect.Type) string {
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
	default:
		return "string"
	}
}
