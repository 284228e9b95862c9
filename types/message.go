// Package types provides core types used across the agentgraph module.
// This package has ZERO dependencies on other agentgraph packages to avoid circular imports.
// All other packages should import types from here.
package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role represents the role of a message participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall represents a tool invocation request from the model.
// ID is unique within the assistant message that declares it and is the
// join key for the matching tool result.
type ToolCall struct {
	ID        string          `json:"id" yaml:"id"`
	Name      string          `json:"name" yaml:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty" yaml:"-"`
}

// Message represents one turn of the conversation log.
type Message struct {
	ID         string     `json:"id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"` // tool name on tool results
	Node       string     `json:"node,omitempty"` // graph node that produced the message
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
	Metadata   any        `json:"metadata,omitempty"`
	Timestamp  time.Time  `json:"timestamp,omitempty"`
}

// NewMessageID returns a fresh message id.
func NewMessageID() string {
	return uuid.NewString()
}

// NewMessage creates a new message with the given role and content.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        NewMessageID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// NewHumanMessage creates a new human message.
func NewHumanMessage(content string) Message {
	return NewMessage(RoleHuman, content)
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return NewMessage(RoleAssistant, content)
}

// NewToolMessage creates a new tool result message.
func NewToolMessage(toolCallID, name, content string) Message {
	m := NewMessage(RoleTool, content)
	m.Name = name
	m.ToolCallID = toolCallID
	return m
}

// WithID overrides the message id.
func (m Message) WithID(id string) Message {
	m.ID = id
	return m
}

// WithToolCalls adds tool calls to the message.
func (m Message) WithToolCalls(calls []ToolCall) Message {
	m.ToolCalls = calls
	return m
}

// WithMetadata adds metadata to the message.
func (m Message) WithMetadata(metadata any) Message {
	m.Metadata = metadata
	return m
}

// HasToolCalls reports whether the message requests at least one tool call.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// Clone returns a copy that shares no slices with m.
func (m Message) Clone() Message {
	if m.ToolCalls != nil {
		calls := make([]ToolCall, len(m.ToolCalls))
		for i, c := range m.ToolCalls {
			calls[i] = c
			if c.Arguments != nil {
				calls[i].Arguments = append(json.RawMessage(nil), c.Arguments...)
			}
		}
		m.ToolCalls = calls
	}
	return m
}

// LastMessage returns the final message of a log.
func LastMessage(log []Message) (Message, bool) {
	if len(log) == 0 {
		return Message{}, false
	}
	return log[len(log)-1], true
}

// LastAssistantMessage returns the most recent assistant message of a log.
func LastAssistantMessage(log []Message) (Message, bool) {
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Role == RoleAssistant {
			return log[i], true
		}
	}
	return Message{}, false
}

// ValidateLog checks the tool call invariants of a log: every tool result
// answers a call declared by an earlier assistant message, at most once.
func ValidateLog(log []Message) error {
	declared := make(map[string]bool)
	answered := make(map[string]bool)
	for i, m := range log {
		switch m.Role {
		case RoleAssistant:
			// call ids are unique per assistant message, not per log
			for _, c := range m.ToolCalls {
				declared[c.ID] = true
				delete(answered, c.ID)
			}
		case RoleTool:
			if !declared[m.ToolCallID] {
				return NewError(ErrInvalidLog, "tool result answers an undeclared call").
					WithDetail("index", i).WithDetail("tool_call_id", m.ToolCallID)
			}
			if answered[m.ToolCallID] {
				return NewError(ErrInvalidLog, "tool call answered more than once").
					WithDetail("index", i).WithDetail("tool_call_id", m.ToolCallID)
			}
			answered[m.ToolCallID] = true
		}
	}
	return nil
}
