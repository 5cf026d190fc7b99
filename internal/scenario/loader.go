package scenario

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"chatwatch/internal/domain"

	"gopkg.in/yaml.v3"
)

// fileDef mirrors one scenario definition file. Files are parsed with the
// YAML decoder regardless of extension: YAML is a superset of JSON, and the
// yaml.Node for the schema keeps the declared field order, which the plain
// map decoders would lose.
type fileDef struct {
	Prompt          string    `yaml:"prompt"`
	ResponseSchema  yaml.Node `yaml:"response_schema"`
	Groups          []string  `yaml:"groups"`
	ConfidenceField *string   `yaml:"confidence_field"`
	ReasoningField  *string   `yaml:"reasoning_field"`
	KeepField       string    `yaml:"keep_field"`
}

type propDef struct {
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	Enum        []string `yaml:"enum"`
	Default     any      `yaml:"default"`
}

// LoadDirectory reads every scenario definition (.json, .yaml, .yml) in dir.
// Files missing a prompt, a response schema, or a groups list are skipped
// with a warning; a scenario directory that yields nothing is the caller's
// configuration error, not this loader's.
func LoadDirectory(dir string, logger *slog.Logger) ([]domain.Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("scenario directory does not exist", "dir", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}

	var scenarios []domain.Scenario
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch strings.ToLower(filepath.Ext(name)) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}

		path := filepath.Join(dir, name)
		sc, err := loadFile(path)
		if err != nil {
			logger.Warn("skipping invalid scenario file", "path", path, "err", err)
			continue
		}
		logger.Info("loaded scenario",
			"name", sc.Name, "groups", len(sc.Groups), "fields", len(sc.Schema.Fields))
		scenarios = append(scenarios, *sc)
	}
	return scenarios, nil
}

func loadFile(path string) (*domain.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var def fileDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	def.Prompt = strings.TrimSpace(def.Prompt)
	if def.Prompt == "" {
		return nil, fmt.Errorf("missing prompt")
	}
	if len(def.Groups) == 0 {
		return nil, fmt.Errorf("missing groups")
	}

	schema, err := parseSchema(&def.ResponseSchema)
	if err != nil {
		return nil, fmt.Errorf("response_schema: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	sc := &domain.Scenario{
		Name:            name,
		Prompt:          def.Prompt,
		Schema:          *schema,
		Groups:          def.Groups,
		ConfidenceField: "confidence",
		ReasoningField:  "reasoning",
		KeepField:       def.KeepField,
	}
	if def.ConfidenceField != nil {
		sc.ConfidenceField = *def.ConfidenceField
	}
	if def.ReasoningField != nil {
		sc.ReasoningField = *def.ReasoningField
	}

	if sc.KeepField != "" {
		spec := sc.Schema.Field(sc.KeepField)
		if spec == nil {
			return nil, fmt.Errorf("keep_field %q is not in the schema", sc.KeepField)
		}
		if spec.Type != domain.FieldBool {
			return nil, fmt.Errorf("keep_field %q must be boolean, is %s", sc.KeepField, spec.Type)
		}
	}
	return sc, nil
}

// parseSchema walks the response_schema node: a JSON-Schema-shaped object
// with `properties` and an optional `required` list.
func parseSchema(node *yaml.Node) (*domain.Schema, error) {
	if node.Kind == 0 {
		return nil, fmt.Errorf("missing")
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("must be a mapping")
	}

	var propsNode *yaml.Node
	required := map[string]bool{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "properties":
			propsNode = val
		case "required":
			var names []string
			if err := val.Decode(&names); err != nil {
				return nil, fmt.Errorf("required: %w", err)
			}
			for _, n := range names {
				required[n] = true
			}
		}
	}
	if propsNode == nil || propsNode.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("missing properties")
	}

	schema := &domain.Schema{}
	for i := 0; i+1 < len(propsNode.Content); i += 2 {
		fieldName := propsNode.Content[i].Value
		var prop propDef
		if err := propsNode.Content[i+1].Decode(&prop); err != nil {
			return nil, fmt.Errorf("property %q: %w", fieldName, err)
		}
		ft, err := fieldType(prop.Type)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", fieldName, err)
		}
		if len(prop.Enum) > 0 && ft != domain.FieldString {
			return nil, fmt.Errorf("property %q: enum is only valid on string fields", fieldName)
		}
		schema.Fields = append(schema.Fields, domain.FieldSpec{
			Name:        fieldName,
			Type:        ft,
			Description: prop.Description,
			Enum:        prop.Enum,
			Required:    required[fieldName],
			Default:     prop.Default,
		})
	}
	if len(schema.Fields) == 0 {
		return nil, fmt.Errorf("properties is empty")
	}
	return schema, nil
}

func fieldType(t string) (domain.FieldType, error) {
	switch t {
	case "string":
		return domain.FieldString, nil
	case "boolean", "bool":
		return domain.FieldBool, nil
	case "integer", "int":
		return domain.FieldInt, nil
	case "number", "float":
		return domain.FieldFloat, nil
	case "array", "list":
		return domain.FieldList, nil
	case "object":
		return domain.FieldObject, nil
	}
	return "", fmt.Errorf("unsupported type %q", t)
}
