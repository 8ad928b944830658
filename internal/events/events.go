// Package events classifies raw backend payloads into a closed set of
// typed events. Classification is pure: no state, no I/O, presence checks
// only. Payloads that match no known shape become EventUnknown rather than
// an error, keeping generic session-scoped bookkeeping alive for event
// types this package does not specifically understand.
package events

import (
	"encoding/json"
	"time"

	"github.com/dilaghq/mirror/pkg/models"
)

// Envelope is the wire form of one event: a type discriminator plus an
// opaque properties object.
type Envelope struct {
	Type       string          `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

// Type identifies the kind of classified event.
type Type string

const (
	TypePartUpdated    Type = "message.part.updated"
	TypeMessageUpdated Type = "message.updated"
	TypeMessageRemoved Type = "message.removed"

	TypeSessionStatus  Type = "session.status"
	TypeSessionDiff    Type = "session.diff"
	TypeSessionIdle    Type = "session.idle"
	TypeSessionError   Type = "session.error"
	TypeSessionUpdated Type = "session.updated"

	TypeHeartbeat Type = "server.heartbeat"
	TypeDisposed  Type = "server.disposed"

	TypeFileWatcher Type = "file.watcher.updated"
	TypeBranch      Type = "vcs.branch.updated"

	TypePermissionRequested Type = "permission.requested"
	TypePermissionResolved  Type = "permission.resolved"
	TypeQuestionRequested   Type = "question.requested"
	TypeQuestionResolved    Type = "question.resolved"
	TypeQuestionRejected    Type = "question.rejected"

	TypePermissionSync Type = "permission.sync"
	TypeQuestionSync   Type = "question.sync"

	// TypeUnknown is the explicit fallback variant. Unknown events carry
	// only a best-effort session id and the raw properties for auditing.
	TypeUnknown Type = "unknown"
)

// Event is the classified form of one envelope. Exactly one payload
// pointer is non-nil for a given Type (none for TypeUnknown, TypeIdle and
// TypeDisposed, which carry only a session id).
type Event struct {
	Type Type

	// SessionID is the session the event is scoped to, when one could be
	// determined. Populated for unknown events too, on a best-effort basis.
	SessionID string

	// Raw is the original properties payload, retained for the audit log.
	// It is the decoder's slice, never a copy.
	Raw json.RawMessage

	Part           *PartUpdated
	Message        *MessageUpdated
	MessageRemoved *MessageRemoved
	Status         *StatusChanged
	Diff           *DiffUpdated
	Err            *ErrorReported
	Updated        *SessionUpdated
	Heartbeat      *Heartbeat
	FileChange     *models.FileChange
	Branch         *models.BranchUpdate
	Request        *RequestEvent
	Sync           *SyncEvent
}

// PartUpdated carries the latest complete snapshot of one message part.
type PartUpdated struct {
	Part models.Part `json:"part"`
}

// MessageUpdated announces a message's creation or completion.
type MessageUpdated struct {
	Info models.Message `json:"info"`
}

// MessageRemoved deletes a message and its part collection.
type MessageRemoved struct {
	SessionID string `json:"sessionId"`
	MessageID string `json:"messageId"`
}

// StatusChanged is a last-write-wins status update for one session.
type StatusChanged struct {
	SessionID string               `json:"sessionId"`
	Status    models.SessionStatus `json:"status"`
}

// DiffUpdated replaces the session's diff snapshot.
type DiffUpdated struct {
	SessionID string            `json:"sessionId"`
	Files     []models.FileDiff `json:"files"`
}

// ErrorReported carries a backend-reported session error. Error is nil when
// the payload had no extractable data; the store then keeps the prior value.
type ErrorReported struct {
	SessionID string               `json:"sessionId"`
	Error     *models.SessionError `json:"error,omitempty"`
}

// SessionUpdated is the sole authority for a session's revert state.
// A nil Revert explicitly clears it.
type SessionUpdated struct {
	SessionID string              `json:"sessionId"`
	Revert    *models.RevertState `json:"revert,omitempty"`
}

// Heartbeat is a server liveness signal.
type Heartbeat struct {
	At time.Time `json:"at"`
}

// RequestEvent covers the incremental permission/question lifecycle.
// Request is set on requested events; resolved/rejected events carry only
// the id (and usually the session id) of the entry to drop.
type RequestEvent struct {
	Kind      models.RequestKind
	Request   *models.PendingRequest
	RequestID string
	SessionID string
}

// SyncEvent is an authoritative full snapshot of all pending requests of
// one kind, across every session. It replaces, never merges.
type SyncEvent struct {
	Kind     models.RequestKind
	Requests []models.PendingRequest
}
