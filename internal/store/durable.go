package store

import "github.com/dilaghq/mirror/pkg/models"

// Durable returns a snapshot of the durable subset.
func (s *Store) Durable() models.DurableState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.durable.Clone()
}

// CurrentSession returns the persisted session selection.
func (s *Store) CurrentSession() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.durable.CurrentSessionID
}

// SetCurrentSession records the UI's session selection.
func (s *Store) SetCurrentSession(sessionID string) {
	s.mu.Lock()
	s.durable.CurrentSessionID = sessionID
	snapshot := s.durable.Clone()
	s.mu.Unlock()
	s.persist(snapshot)
}

// SetLayoutPosition records one canvas node position for a session.
func (s *Store) SetLayoutPosition(sessionID, nodeID string, pos models.Position) {
	s.mu.Lock()
	nodes, ok := s.durable.Layouts[sessionID]
	if !ok {
		nodes = map[string]models.Position{}
		s.durable.Layouts[sessionID] = nodes
	}
	nodes[nodeID] = pos
	snapshot := s.durable.Clone()
	s.mu.Unlock()
	s.persist(snapshot)
}

// Layout returns the persisted node positions for a session.
func (s *Store) Layout(sessionID string) map[string]models.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nodes := s.durable.Layouts[sessionID]
	out := make(map[string]models.Position, len(nodes))
	for id, pos := range nodes {
		out[id] = pos
	}
	return out
}

// SetProducedFiles flags whether a session has written design files.
func (s *Store) SetProducedFiles(sessionID string, produced bool) {
	s.mu.Lock()
	s.durable.ProducedFiles[sessionID] = produced
	snapshot := s.durable.Clone()
	s.mu.Unlock()
	s.persist(snapshot)
}

// ProducedFiles reports whether a session has written design files.
func (s *Store) ProducedFiles(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.durable.ProducedFiles[sessionID]
}

// ForgetSession drops a session's durable entries, used when its workspace
// is deleted.
func (s *Store) ForgetSession(sessionID string) {
	s.mu.Lock()
	delete(s.durable.Layouts, sessionID)
	delete(s.durable.ProducedFiles, sessionID)
	if s.durable.CurrentSessionID == sessionID {
		s.durable.CurrentSessionID = ""
	}
	snapshot := s.durable.Clone()
	s.mu.Unlock()
	s.persist(snapshot)
}

func (s *Store) persist(snapshot models.DurableState) {
	if s.saver == nil {
		return
	}
	if err := s.saver.Save(snapshot); err != nil {
		s.logger.Warn("failed to persist durable state", "error", err)
	}
}
