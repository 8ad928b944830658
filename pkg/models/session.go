package models

import "time"

// SessionStatus is the last observed activity state for a session.
// Last-write-wins; the store keeps no history.
type SessionStatus string

const (
	StatusIdle    SessionStatus = "idle"
	StatusRunning SessionStatus = "running"
	StatusBusy    SessionStatus = "busy"
	StatusError   SessionStatus = "error"
	StatusUnknown SessionStatus = "unknown"
)

// SessionError is the structured error reported by the backend for a
// session. It is display data, not a fault of the client.
type SessionError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// RevertState marks a session's revert boundary: every message whose id
// sorts strictly before MessageID is visible, the rest are hidden. It is a
// pure filter over the message collection, never a mutation of it.
type RevertState struct {
	SessionID string `json:"sessionId"`
	MessageID string `json:"messageId"`
}

// FileDiff summarizes changes to one file in a session's working tree.
type FileDiff struct {
	Path      string `json:"path"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// SessionDiff is the latest diff snapshot reported for a session.
type SessionDiff struct {
	SessionID string     `json:"sessionId"`
	Files     []FileDiff `json:"files"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
