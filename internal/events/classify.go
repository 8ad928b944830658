package events

import (
	"encoding/json"
	"time"

	"github.com/dilaghq/mirror/pkg/models"
)

// Classify narrows an envelope to one of the known event shapes. The type
// string must match and the properties must pass a minimal presence check;
// anything else comes back as TypeUnknown with a best-effort session id.
// Classify never fails and never mutates the payload.
func Classify(env Envelope) Event {
	props := env.Properties

	switch Type(env.Type) {
	case TypePartUpdated:
		var p PartUpdated
		if json.Unmarshal(props, &p) == nil && p.Part.ID != "" {
			return Event{Type: TypePartUpdated, SessionID: p.Part.SessionID, Raw: props, Part: &p}
		}

	case TypeMessageUpdated:
		var m MessageUpdated
		if json.Unmarshal(props, &m) == nil && m.Info.ID != "" {
			return Event{Type: TypeMessageUpdated, SessionID: m.Info.SessionID, Raw: props, Message: &m}
		}

	case TypeMessageRemoved:
		var r MessageRemoved
		if json.Unmarshal(props, &r) == nil && r.MessageID != "" {
			return Event{Type: TypeMessageRemoved, SessionID: r.SessionID, Raw: props, MessageRemoved: &r}
		}

	case TypeSessionStatus:
		var s StatusChanged
		if json.Unmarshal(props, &s) == nil && s.SessionID != "" {
			if s.Status == "" {
				s.Status = models.StatusUnknown
			}
			return Event{Type: TypeSessionStatus, SessionID: s.SessionID, Raw: props, Status: &s}
		}

	case TypeSessionDiff:
		var d DiffUpdated
		if json.Unmarshal(props, &d) == nil && d.SessionID != "" {
			return Event{Type: TypeSessionDiff, SessionID: d.SessionID, Raw: props, Diff: &d}
		}

	case TypeSessionIdle:
		if id := probeSessionID(props); id != "" {
			return Event{Type: TypeSessionIdle, SessionID: id, Raw: props}
		}

	case TypeSessionError:
		var e ErrorReported
		if json.Unmarshal(props, &e) == nil && e.SessionID != "" {
			if e.Error != nil && e.Error.Name == "" && e.Error.Message == "" {
				e.Error = nil
			}
			return Event{Type: TypeSessionError, SessionID: e.SessionID, Raw: props, Err: &e}
		}

	case TypeSessionUpdated:
		var u SessionUpdated
		if json.Unmarshal(props, &u) == nil && u.SessionID != "" {
			return Event{Type: TypeSessionUpdated, SessionID: u.SessionID, Raw: props, Updated: &u}
		}

	case TypeHeartbeat:
		var h Heartbeat
		if json.Unmarshal(props, &h) != nil || h.At.IsZero() {
			h.At = time.Now()
		}
		return Event{Type: TypeHeartbeat, Raw: props, Heartbeat: &h}

	case TypeDisposed:
		return Event{Type: TypeDisposed, SessionID: probeSessionID(props), Raw: props}

	case TypeFileWatcher:
		var f models.FileChange
		if json.Unmarshal(props, &f) == nil && f.Path != "" {
			if f.At.IsZero() {
				f.At = time.Now()
			}
			return Event{Type: TypeFileWatcher, SessionID: f.SessionID, Raw: props, FileChange: &f}
		}

	case TypeBranch:
		var b models.BranchUpdate
		if json.Unmarshal(props, &b) == nil && b.Branch != "" {
			if b.At.IsZero() {
				b.At = time.Now()
			}
			return Event{Type: TypeBranch, SessionID: b.SessionID, Raw: props, Branch: &b}
		}

	case TypePermissionRequested:
		return classifyRequested(env.Type, props, models.RequestPermission)
	case TypeQuestionRequested:
		return classifyRequested(env.Type, props, models.RequestQuestion)

	case TypePermissionResolved:
		return classifyResolved(env.Type, props, models.RequestPermission)
	case TypeQuestionResolved, TypeQuestionRejected:
		return classifyResolved(env.Type, props, models.RequestQuestion)

	case TypePermissionSync:
		return classifySync(env.Type, props, models.RequestPermission)
	case TypeQuestionSync:
		return classifySync(env.Type, props, models.RequestQuestion)
	}

	return Event{Type: TypeUnknown, SessionID: probeSessionID(props), Raw: props}
}

func classifyRequested(typ string, props json.RawMessage, kind models.RequestKind) Event {
	var body struct {
		Request *models.PendingRequest `json:"request"`
	}
	if json.Unmarshal(props, &body) != nil || body.Request == nil || body.Request.ID == "" {
		return Event{Type: TypeUnknown, SessionID: probeSessionID(props), Raw: props}
	}
	body.Request.Kind = kind
	return Event{
		Type:      Type(typ),
		SessionID: body.Request.SessionID,
		Raw:       props,
		Request:   &RequestEvent{Kind: kind, Request: body.Request, RequestID: body.Request.ID, SessionID: body.Request.SessionID},
	}
}

func classifyResolved(typ string, props json.RawMessage, kind models.RequestKind) Event {
	var body struct {
		RequestID string `json:"requestId"`
		SessionID string `json:"sessionId"`
	}
	if json.Unmarshal(props, &body) != nil || body.RequestID == "" {
		return Event{Type: TypeUnknown, SessionID: probeSessionID(props), Raw: props}
	}
	return Event{
		Type:      Type(typ),
		SessionID: body.SessionID,
		Raw:       props,
		Request:   &RequestEvent{Kind: kind, RequestID: body.RequestID, SessionID: body.SessionID},
	}
}

func classifySync(typ string, props json.RawMessage, kind models.RequestKind) Event {
	var body struct {
		Requests []models.PendingRequest `json:"requests"`
	}
	if json.Unmarshal(props, &body) != nil {
		return Event{Type: TypeUnknown, SessionID: probeSessionID(props), Raw: props}
	}
	for i := range body.Requests {
		body.Requests[i].Kind = kind
	}
	return Event{Type: Type(typ), Raw: props, Sync: &SyncEvent{Kind: kind, Requests: body.Requests}}
}

// probeSessionID extracts a session id from an arbitrary payload by probing
// the nesting patterns the backend is known to use.
func probeSessionID(props json.RawMessage) string {
	if len(props) == 0 {
		return ""
	}
	var probe struct {
		SessionID string `json:"sessionId"`
		Info      struct {
			SessionID string `json:"sessionId"`
		} `json:"info"`
		Part struct {
			SessionID string `json:"sessionId"`
		} `json:"part"`
	}
	if json.Unmarshal(props, &probe) != nil {
		return ""
	}
	if probe.SessionID != "" {
		return probe.SessionID
	}
	if probe.Info.SessionID != "" {
		return probe.Info.SessionID
	}
	return probe.Part.SessionID
}
