// Package models provides domain types for the mirror client core.
package models

import (
	"encoding/json"
	"time"
)

// Role indicates the message author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a session transcript. Messages arrive over the
// event stream and may be observed out of creation order; the store keeps
// each session's collection sorted by CreatedAt.
type Message struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"sessionId"`
	Role        Role       `json:"role"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Streaming is true until a completion is observed. Completion is
	// monotonic: once false, it never flips back.
	Streaming bool `json:"streaming"`
}

// Completed reports whether the message has finished streaming.
func (m *Message) Completed() bool {
	return m != nil && !m.Streaming
}

// PartKind identifies the payload shape of a message part.
type PartKind string

const (
	PartText     PartKind = "text"
	PartTool     PartKind = "tool"
	PartFile     PartKind = "file"
	PartStep     PartKind = "step"
	PartSnapshot PartKind = "snapshot"
)

// Part is a fragment of a message. The backend always sends the latest
// complete snapshot of a part, so a part with a previously seen id replaces
// the stored one wholesale.
type Part struct {
	ID        string   `json:"id"`
	MessageID string   `json:"messageId"`
	SessionID string   `json:"sessionId,omitempty"`
	Kind      PartKind `json:"kind"`

	// Exactly one of the payload fields below is meaningful for a given
	// Kind; absent fields are stored as absent.
	Text string          `json:"text,omitempty"`
	Tool *ToolState      `json:"tool,omitempty"`
	File *FileRef        `json:"file,omitempty"`
	Raw  json.RawMessage `json:"raw,omitempty"`
}

// ToolStatus tracks the lifecycle of a tool invocation surfaced by a part.
type ToolStatus string

const (
	ToolPending   ToolStatus = "pending"
	ToolRunning   ToolStatus = "running"
	ToolCompleted ToolStatus = "completed"
	ToolErrored   ToolStatus = "error"
)

// ToolState is the payload of a tool part.
type ToolState struct {
	Name   string          `json:"name"`
	Status ToolStatus      `json:"status"`
	Input  json.RawMessage `json:"input,omitempty"`
	Output string          `json:"output,omitempty"`
}

// FileRef is the payload of a file part.
type FileRef struct {
	Path string `json:"path"`
	Mime string `json:"mime,omitempty"`
	URL  string `json:"url,omitempty"`
}
