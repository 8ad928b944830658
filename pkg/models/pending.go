package models

import (
	"encoding/json"
	"time"
)

// RequestKind distinguishes the two kinds of approval the backend can ask
// the user for mid-run.
type RequestKind string

const (
	RequestPermission RequestKind = "permission"
	RequestQuestion   RequestKind = "question"
)

// PendingRequest is an approval request (permission or question) awaiting a
// user decision. Two consistency sources feed these: incremental
// requested/resolved events and periodic authoritative sync snapshots that
// replace the whole collection.
type PendingRequest struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionId"`
	Kind      RequestKind     `json:"kind"`
	Title     string          `json:"title,omitempty"`
	Options   []string        `json:"options,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
