package types

import (
	"encoding/json"
	"strings"
	"time"
)

// ToolSchema defines a tool's interface for model function calling.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolResult represents the result of a tool execution.
type ToolResult struct {
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	ErrorCode  ErrorCode       `json:"error_code,omitempty"`
	Duration   time.Duration   `json:"duration"`
}

// ToMessage converts ToolResult to a tool Message.
func (tr ToolResult) ToMessage() Message {
	content := RenderToolOutput(tr.Result)
	if tr.IsError() {
		content = "Error: " + tr.Error
	}
	m := NewToolMessage(tr.ToolCallID, tr.Name, content)
	m.IsError = tr.IsError()
	return m
}

// IsError returns true if the tool execution failed.
func (tr ToolResult) IsError() bool {
	return tr.Error != ""
}

// RenderToolOutput turns a tool payload into message text. A JSON string is
// unquoted and an array of strings is joined by blank lines; anything else is
// passed through as raw JSON.
func RenderToolOutput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []string
	if err := json.Unmarshal(raw, &parts); err == nil {
		return strings.Join(parts, "\n\n")
	}
	return string(raw)
}
