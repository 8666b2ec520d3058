// Package llm is the tool-calling chat runtime used by the worker.
package llm

import (
	"context"
	"encoding/json"
)

// ToolSpec describes a callable tool. Parameters is a JSON Schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Reply is one assistant turn. An empty ToolCalls means the model is done.
type Reply struct {
	Content   string
	ToolCalls []ToolCall
}

// ChatModel starts conversations with a fixed tool set.
type ChatModel interface {
	NewConversation(system, user string, tools []ToolSpec) Conversation
}

// Conversation keeps the message history of one tool-calling loop.
type Conversation interface {
	// Step sends the history and appends the assistant reply to it.
	Step(ctx context.Context) (Reply, error)
	// AddToolResult answers a tool call from the last reply.
	AddToolResult(callID, content string)
}
