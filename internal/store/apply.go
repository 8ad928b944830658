package store

import (
	"time"

	"github.com/dilaghq/mirror/internal/events"
	"github.com/dilaghq/mirror/internal/ordered"
	"github.com/dilaghq/mirror/pkg/models"
)

// ApplyEvent folds one classified event into the store and then notifies
// subscribers. Malformed-but-classified input degrades gracefully; a
// failure applying one event never prevents processing of the next.
func (s *Store) ApplyEvent(ev events.Event) {
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("event apply panicked", "type", ev.Type, "panic", r)
			}
		}()
		s.apply(ev)
	}()
	s.metrics.RecordEvent()
	s.dispatch(ev)
}

func (s *Store) apply(ev events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recordAudit(ev)

	switch ev.Type {
	case events.TypePartUpdated:
		s.applyPartUpdated(ev.Part)
	case events.TypeMessageUpdated:
		s.applyMessageUpdated(ev.Message)
	case events.TypeMessageRemoved:
		s.applyMessageRemoved(ev.MessageRemoved)
	case events.TypeSessionStatus:
		s.statuses[ev.Status.SessionID] = ev.Status.Status
	case events.TypeSessionIdle:
		s.statuses[ev.SessionID] = models.StatusIdle
	case events.TypeSessionError:
		s.applySessionError(ev.Err)
	case events.TypeSessionDiff:
		s.diffs[ev.Diff.SessionID] = models.SessionDiff{
			SessionID: ev.Diff.SessionID,
			Files:     ev.Diff.Files,
			UpdatedAt: time.Now(),
		}
	case events.TypeSessionUpdated:
		s.applySessionUpdated(ev.Updated)
	case events.TypeHeartbeat:
		s.health = models.Health{LastHeartbeat: ev.Heartbeat.At, Healthy: true}
	case events.TypeFileWatcher:
		s.fileChanges = appendRing(s.fileChanges, *ev.FileChange, fileChangeCap)
	case events.TypeBranch:
		s.branches = appendRing(s.branches, *ev.Branch, branchCap)
	case events.TypePermissionRequested, events.TypeQuestionRequested:
		s.applyRequested(ev.Request)
	case events.TypePermissionResolved, events.TypeQuestionResolved, events.TypeQuestionRejected:
		s.applyResolved(ev.Request)
	case events.TypePermissionSync, events.TypeQuestionSync:
		s.applySync(ev.Sync)
	case events.TypeDisposed:
		// Resync is the stream manager's job; only the audit entry matters
		// here.
	default:
		s.metrics.RecordUnknownEvent()
		s.logger.Debug("unhandled event", "type", ev.Type, "session_id", ev.SessionID)
	}
}

func (s *Store) applyPartUpdated(p *events.PartUpdated) {
	if p.Part.MessageID == "" {
		s.logger.Debug("dropping part update without message id", "part_id", p.Part.ID)
		return
	}
	s.parts[p.Part.MessageID] = ordered.UpsertByID(s.parts[p.Part.MessageID], p.Part,
		func(part models.Part) string { return part.ID })
}

func (s *Store) applyMessageUpdated(m *events.MessageUpdated) {
	info := m.Info
	list := s.messages[info.SessionID]

	for i := range list {
		if list[i].ID != info.ID {
			continue
		}
		// Completion is monotonic: observe it exactly once, never regress.
		if list[i].Streaming && info.CompletedAt != nil {
			list[i].Streaming = false
			list[i].CompletedAt = info.CompletedAt
		}
		return
	}

	info.Streaming = info.CompletedAt == nil
	s.messages[info.SessionID] = ordered.InsertByTime(list, info,
		func(msg models.Message) time.Time { return msg.CreatedAt })
}

func (s *Store) applyMessageRemoved(r *events.MessageRemoved) {
	if r.SessionID != "" {
		s.messages[r.SessionID] = removeMessage(s.messages[r.SessionID], r.MessageID)
	} else {
		for sid, list := range s.messages {
			s.messages[sid] = removeMessage(list, r.MessageID)
		}
	}
	// Parts are never orphaned: the whole collection goes with the message.
	delete(s.parts, r.MessageID)
}

func removeMessage(list []models.Message, id string) []models.Message {
	for i := range list {
		if list[i].ID == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (s *Store) applySessionError(e *events.ErrorReported) {
	s.statuses[e.SessionID] = models.StatusError
	if e.Error != nil {
		s.errors[e.SessionID] = *e.Error
	}
	// A payload without extractable data leaves the prior error untouched.
}

func (s *Store) applySessionUpdated(u *events.SessionUpdated) {
	if u.Revert == nil {
		delete(s.reverts, u.SessionID)
		return
	}
	revert := *u.Revert
	revert.SessionID = u.SessionID
	s.reverts[u.SessionID] = revert
}

func (s *Store) pendingByKind(kind models.RequestKind) map[string][]models.PendingRequest {
	if kind == models.RequestQuestion {
		return s.questions
	}
	return s.permissions
}

func requestID(r models.PendingRequest) string { return r.ID }

func (s *Store) applyRequested(r *events.RequestEvent) {
	pending := s.pendingByKind(r.Kind)
	list := pending[r.SessionID]
	if ordered.FindByID(list, r.RequestID, requestID) >= 0 {
		return // duplicate submission, keep the existing entry
	}
	pending[r.SessionID] = ordered.UpsertByID(list, *r.Request, requestID)
}

func (s *Store) applyResolved(r *events.RequestEvent) {
	pending := s.pendingByKind(r.Kind)
	if r.SessionID != "" {
		pending[r.SessionID] = ordered.RemoveByID(pending[r.SessionID], r.RequestID, requestID)
		return
	}
	for sid, list := range pending {
		pending[sid] = ordered.RemoveByID(list, r.RequestID, requestID)
	}
}

// applySync replaces the entire pending map of one kind with the snapshot,
// regrouped by session. Stale entries whose removal event was dropped by
// the network do not survive this.
func (s *Store) applySync(sync *events.SyncEvent) {
	rebuilt := map[string][]models.PendingRequest{}
	for _, req := range sync.Requests {
		rebuilt[req.SessionID] = ordered.UpsertByID(rebuilt[req.SessionID], req, requestID)
	}
	if sync.Kind == models.RequestQuestion {
		s.questions = rebuilt
	} else {
		s.permissions = rebuilt
	}
}
