// Package scenario loads scenario definitions from configuration files and
// resolves which scenario governs a given chat. A scenario's response schema
// is a flat, ordered field list built once at load time; classifier output is
// validated against it instead of against compile-time result types.
package scenario

import (
	"fmt"
	"strings"

	"chatwatch/internal/domain"
)

// BuildResult validates a decoded classifier response against the schema and
// coerces it into a Result. Required fields must be present and well-typed;
// optional fields fall back to their declared default, or are omitted.
// Fields the schema does not know are dropped.
func BuildResult(s *domain.Schema, raw map[string]any) (domain.Result, error) {
	out := make(domain.Result, len(s.Fields))
	for i := range s.Fields {
		spec := &s.Fields[i]
		val, ok := raw[spec.Name]
		if !ok || val == nil {
			if spec.Required {
				return nil, fmt.Errorf("response missing required field %q", spec.Name)
			}
			if spec.Default != nil {
				out[spec.Name] = spec.Default
			}
			continue
		}
		coerced, err := coerce(spec, val)
		if err != nil {
			return nil, err
		}
		out[spec.Name] = coerced
	}
	return out, nil
}

func coerce(spec *domain.FieldSpec, val any) (any, error) {
	switch spec.Type {
	case domain.FieldString:
		s, ok := val.(string)
		if !ok {
			return nil, typeErr(spec, val)
		}
		if len(spec.Enum) > 0 && !contains(spec.Enum, s) {
			return nil, fmt.Errorf("field %q: %q is not one of %s",
				spec.Name, s, strings.Join(spec.Enum, "|"))
		}
		return s, nil
	case domain.FieldBool:
		b, ok := val.(bool)
		if !ok {
			return nil, typeErr(spec, val)
		}
		return b, nil
	case domain.FieldInt:
		// JSON numbers decode as float64.
		switch n := val.(type) {
		case float64:
			return int(n), nil
		case int:
			return n, nil
		}
		return nil, typeErr(spec, val)
	case domain.FieldFloat:
		switch n := val.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		}
		return nil, typeErr(spec, val)
	case domain.FieldList:
		l, ok := val.([]any)
		if !ok {
			return nil, typeErr(spec, val)
		}
		return l, nil
	case domain.FieldObject:
		m, ok := val.(map[string]any)
		if !ok {
			return nil, typeErr(spec, val)
		}
		return m, nil
	}
	return nil, fmt.Errorf("field %q: unsupported schema type %q", spec.Name, spec.Type)
}

func typeErr(spec *domain.FieldSpec, val any) error {
	return fmt.Errorf("field %q: expected %s, got %T", spec.Name, spec.Type, val)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// JSONSchema renders the schema as a JSON-Schema object suitable for
// structured-output requests (Ollama `format`, prompt embedding).
func JSONSchema(s *domain.Schema) map[string]any {
	props := make(map[string]any, len(s.Fields))
	var required []string
	for i := range s.Fields {
		spec := &s.Fields[i]
		p := map[string]any{"type": string(spec.Type)}
		if spec.Description != "" {
			p["description"] = spec.Description
		}
		if len(spec.Enum) > 0 {
			p["enum"] = spec.Enum
		}
		props[spec.Name] = p
		if spec.Required {
			required = append(required, spec.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Instructions renders the schema as plain-text field instructions, appended
// to the scenario prompt for backends without native structured output.
func Instructions(s *domain.Schema) string {
	var b strings.Builder
	b.WriteString("Respond with a single JSON object containing exactly these fields:\n")
	for i := range s.Fields {
		spec := &s.Fields[i]
		fmt.Fprintf(&b, "- %q (%s", spec.Name, spec.Type)
		if len(spec.Enum) > 0 {
			fmt.Fprintf(&b, ", one of: %s", strings.Join(spec.Enum, ", "))
		}
		if !spec.Required {
			b.WriteString(", optional")
		}
		b.WriteString(")")
		if spec.Description != "" {
			b.WriteString(": " + spec.Description)
		}
		b.WriteString("\n")
	}
	b.WriteString("Output only the JSON object, no prose and no code fences.")
	return b.String()
}
