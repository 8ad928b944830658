package store

import (
	"github.com/dilaghq/mirror/pkg/models"
)

// Messages returns the full message collection for a session, sorted by
// creation time. The slice is a copy.
func (s *Store) Messages(sessionID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message(nil), s.messages[sessionID]...)
}

// EffectiveMessages returns the session's visible messages: when a revert
// boundary is set, only messages whose id sorts strictly before it. The
// underlying collection is never mutated by a revert.
func (s *Store) EffectiveMessages(sessionID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.messages[sessionID]
	revert, reverted := s.reverts[sessionID]
	out := make([]models.Message, 0, len(list))
	for _, msg := range list {
		if reverted && msg.ID >= revert.MessageID {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// Parts returns the part collection for a message, sorted by id. The
// second return distinguishes a missing collection from an empty one.
func (s *Store) Parts(messageID string) ([]models.Part, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	parts, ok := s.parts[messageID]
	if !ok {
		return nil, false
	}
	return append([]models.Part(nil), parts...), true
}

// Status returns the last observed status for a session, or StatusUnknown
// when none has been seen.
func (s *Store) Status(sessionID string) models.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if status, ok := s.statuses[sessionID]; ok {
		return status
	}
	return models.StatusUnknown
}

// Error returns the last structured error reported for a session.
func (s *Store) Error(sessionID string) (models.SessionError, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	err, ok := s.errors[sessionID]
	return err, ok
}

// Diff returns the latest diff snapshot for a session.
func (s *Store) Diff(sessionID string) (models.SessionDiff, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	diff, ok := s.diffs[sessionID]
	return diff, ok
}

// Revert returns the session's revert boundary, if one is set.
func (s *Store) Revert(sessionID string) (models.RevertState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	revert, ok := s.reverts[sessionID]
	return revert, ok
}

// Pending returns the pending requests of one kind for a session.
func (s *Store) Pending(kind models.RequestKind, sessionID string) []models.PendingRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.PendingRequest(nil), s.pendingByKind(kind)[sessionID]...)
}

// PendingCount returns the total number of pending requests of one kind
// across all sessions.
func (s *Store) PendingCount(kind models.RequestKind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, list := range s.pendingByKind(kind) {
		total += len(list)
	}
	return total
}

// Health returns the heartbeat-derived liveness view.
func (s *Store) Health() models.Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health
}

// FileChanges returns the recent file-watcher signals, oldest first.
func (s *Store) FileChanges() []models.FileChange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.FileChange(nil), s.fileChanges...)
}

// BranchUpdates returns the recent VCS branch signals, oldest first.
func (s *Store) BranchUpdates() []models.BranchUpdate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.BranchUpdate(nil), s.branches...)
}

// Audit returns the recent event audit trail, oldest first.
func (s *Store) Audit() []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]AuditEntry(nil), s.audit...)
}
