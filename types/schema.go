package types

import (
	"encoding/json"
)

// SchemaType is a JSON Schema type name.
type SchemaType string

const (
	SchemaTypeString  SchemaType = "string"
	SchemaTypeNumber  SchemaType = "number"
	SchemaTypeInteger SchemaType = "integer"
	SchemaTypeBoolean SchemaType = "boolean"
	SchemaTypeObject  SchemaType = "object"
	SchemaTypeArray   SchemaType = "array"
)

// FormatURI is the "uri" string format.
const FormatURI = "uri"

// JSONSchema is the subset of JSON Schema used to describe tool parameters.
// The registry compiles the encoded document for argument validation.
type JSONSchema struct {
	Type        SchemaType             `json:"type,omitempty"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Items       *JSONSchema            `json:"items,omitempty"`
	Enum        []any                  `json:"enum,omitempty"`
	Format      string                 `json:"format,omitempty"`
	Minimum     *float64               `json:"minimum,omitempty"`
	Maximum     *float64               `json:"maximum,omitempty"`
	Default     any                    `json:"default,omitempty"`
}

// NewObjectSchema creates an object schema without properties.
func NewObjectSchema() *JSONSchema {
	return &JSONSchema{Type: SchemaTypeObject, Properties: make(map[string]*JSONSchema)}
}

// NewArraySchema creates an array schema of items.
func NewArraySchema(items *JSONSchema) *JSONSchema {
	return &JSONSchema{Type: SchemaTypeArray, Items: items}
}

func NewStringSchema() *JSONSchema  { return &JSONSchema{Type: SchemaTypeString} }
func NewIntegerSchema() *JSONSchema { return &JSONSchema{Type: SchemaTypeInteger} }
func NewNumberSchema() *JSONSchema  { return &JSONSchema{Type: SchemaTypeNumber} }
func NewBooleanSchema() *JSONSchema { return &JSONSchema{Type: SchemaTypeBoolean} }

// AddProperty adds a property to an object schema.
func (s *JSONSchema) AddProperty(name string, prop *JSONSchema) *JSONSchema {
	if s.Properties == nil {
		s.Properties = make(map[string]*JSONSchema)
	}
	s.Properties[name] = prop
	return s
}

// AddRequired marks properties as required.
func (s *JSONSchema) AddRequired(names ...string) *JSONSchema {
	s.Required = append(s.Required, names...)
	return s
}

func (s *JSONSchema) WithDescription(desc string) *JSONSchema {
	s.Description = desc
	return s
}

func (s *JSONSchema) WithFormat(format string) *JSONSchema {
	s.Format = format
	return s
}

// WithRange sets inclusive numeric bounds.
func (s *JSONSchema) WithRange(minimum, maximum float64) *JSONSchema {
	s.Minimum = &minimum
	s.Maximum = &maximum
	return s
}

func (s *JSONSchema) WithEnum(values ...any) *JSONSchema {
	s.Enum = values
	return s
}

func (s *JSONSchema) WithDefault(v any) *JSONSchema {
	s.Default = v
	return s
}

// Raw encodes the schema for ToolSchema.Parameters.
func (s *JSONSchema) Raw() json.RawMessage {
	// 字段均为可编码类型，Marshal 不会失败
	raw, _ := json.Marshal(s)
	return raw
}
