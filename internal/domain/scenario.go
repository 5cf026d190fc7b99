package domain

// FieldType enumerates the value types a scenario schema field may carry.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldBool   FieldType = "boolean"
	FieldInt    FieldType = "integer"
	FieldFloat  FieldType = "number"
	FieldList   FieldType = "array"
	FieldObject FieldType = "object"
)

// FieldSpec describes one field of a scenario's response schema.
type FieldSpec struct {
	Name        string
	Type        FieldType
	Description string
	Enum        []string // string fields only; restricts accepted values
	Required    bool
	Default     any // used when the classifier omits an optional field
}

// Schema is the ordered field list a classifier's structured output must
// conform to. Built once at configuration load, immutable afterwards.
type Schema struct {
	Fields []FieldSpec
}

// Field returns the spec for name, or nil when the schema has no such field.
func (s *Schema) Field(name string) *FieldSpec {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

// Scenario bundles a classification prompt, a response schema, and the set of
// chats it governs. Immutable once loaded; many chat identifiers map to
// exactly one scenario.
type Scenario struct {
	Name            string
	Prompt          string
	Schema          Schema
	Groups          []string
	ConfidenceField string // result field holding HIGH/MEDIUM/LOW
	ReasoningField  string // result field holding the short explanation
	KeepField       string // optional boolean field; when set, only results
	// with that field true are surfaced
}

// Keeps reports whether a result passes the scenario's surface policy.
// Scenarios without a keep field surface every classified message.
func (sc *Scenario) Keeps(r Result) bool {
	if sc.KeepField == "" {
		return true
	}
	return r.Bool(sc.KeepField)
}

// Confidence extracts the scenario's confidence field from a result.
func (sc *Scenario) Confidence(r Result) Confidence {
	if sc.ConfidenceField == "" {
		return ""
	}
	return Confidence(r.String(sc.ConfidenceField))
}

// Reasoning extracts the scenario's reasoning field from a result.
func (sc *Scenario) Reasoning(r Result) string {
	if sc.ReasoningField == "" {
		return ""
	}
	return r.String(sc.ReasoningField)
}
