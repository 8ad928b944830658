package models

import "time"

// ConnectionPhase represents the stream connection lifecycle. Transitions
// happen only inside the stream manager; disconnected is terminal and is
// reached only when a configured attempt cap is exceeded.
type ConnectionPhase string

const (
	PhaseDisconnected ConnectionPhase = "disconnected"
	PhaseConnecting   ConnectionPhase = "connecting"
	PhaseConnected    ConnectionPhase = "connected"
	PhaseReconnecting ConnectionPhase = "reconnecting"
)

// ConnectionState is the process-wide view of the event stream connection.
type ConnectionState struct {
	Phase           ConnectionPhase `json:"phase"`
	Attempt         int             `json:"attempt"`
	SuggestedRetry  time.Duration   `json:"suggestedRetry,omitempty"`
	LastConnectedAt time.Time       `json:"lastConnectedAt,omitempty"`
}

// Health is derived from server heartbeats and exposed for UI-level
// staleness detection. It does not drive reconnection.
type Health struct {
	LastHeartbeat time.Time `json:"lastHeartbeat"`
	Healthy       bool      `json:"healthy"`
}

// FileChangeOp describes what happened to a watched file.
type FileChangeOp string

const (
	FileCreated FileChangeOp = "created"
	FileWritten FileChangeOp = "written"
	FileRemoved FileChangeOp = "removed"
)

// FileChange is an advisory file-watcher signal. The store keeps only a
// small bounded ring of the most recent changes.
type FileChange struct {
	SessionID string       `json:"sessionId,omitempty"`
	Path      string       `json:"path"`
	Op        FileChangeOp `json:"op"`
	At        time.Time    `json:"at"`
}

// BranchUpdate is an advisory VCS signal carrying the current branch name.
type BranchUpdate struct {
	SessionID string    `json:"sessionId,omitempty"`
	Branch    string    `json:"branch"`
	At        time.Time `json:"at"`
}
