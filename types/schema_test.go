package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSONSchema_Raw(t *testing.T) {
	s := NewObjectSchema().
		AddProperty("url", NewStringSchema().WithFormat(FormatURI)).
		AddProperty("limit", NewIntegerSchema().WithRange(1, 3).WithDefault(1)).
		AddProperty("formats", NewArraySchema(NewStringSchema().WithEnum("markdown", "html"))).
		AddRequired("url").
		WithDescription("crawl arguments")

	assert.JSONEq(t, `{
		"type": "object",
		"description": "crawl arguments",
		"properties": {
			"url": {"type": "string", "format": "uri"},
			"limit": {"type": "integer", "minimum": 1, "maximum": 3, "default": 1},
			"formats": {"type": "array", "items": {"type": "string", "enum": ["markdown", "html"]}}
		},
		"required": ["url"]
	}`, string(s.Raw()))
}

func TestJSONSchema_AddPropertyOnBareSchema(t *testing.T) {
	s := (&JSONSchema{Type: SchemaTypeObject}).AddProperty("q", NewStringSchema())
	assert.Contains(t, s.Properties, "q")
	assert.JSONEq(t, `{"type":"boolean"}`, string(NewBooleanSchema().Raw()))
	assert.JSONEq(t, `{"type":"number"}`, string(NewNumberSchema().Raw()))
}
