package state

import (
	"errors"
	"path/filepath"
	"sync"

	"datainsight/internal/models"
)

// ErrDatasetNotFound is returned when a dataset id is not registered
var ErrDatasetNotFound = errors.New("dataset not found")

// DefaultHistoryLimit is the number of entries kept per session
const DefaultHistoryLimit = 50

// DatasetStore holds registered datasets in memory
type DatasetStore struct {
	mu       sync.RWMutex
	datasets map[string]*models.Dataset
}

func NewDatasetStore() *DatasetStore {
	return &DatasetStore{datasets: make(map[string]*models.Dataset)}
}

// Put registers d under its id
func (s *DatasetStore) Put(d *models.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[d.ID] = d
}

// Resolve returns the dataset for id or ErrDatasetNotFound
func (s *DatasetStore) Resolve(id string) (*models.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.datasets[id]
	if !ok {
		return nil, ErrDatasetNotFound
	}
	return d, nil
}

// Delete removes and returns the dataset for id
func (s *DatasetStore) Delete(id string) (*models.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.datasets[id]
	if !ok {
		return nil, ErrDatasetNotFound
	}
	delete(s.datasets, id)
	return d, nil
}

// DeleteByPath removes the dataset backed by path, if any
func (s *DatasetStore) DeleteByPath(path string) (*models.Dataset, bool) {
	path = filepath.Clean(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, d := range s.datasets {
		if d.FilePath != "" && filepath.Clean(d.FilePath) == path {
			delete(s.datasets, id)
			return d, true
		}
	}
	return nil, false
}

// Len returns the number of registered datasets
func (s *DatasetStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.datasets)
}

// sessionHistory serializes appends for one session. A detached history
// was cleared and must not take new entries.
type sessionHistory struct {
	mu       sync.Mutex
	entries  []models.QueryResult
	detached bool
}

// HistoryStore keeps the most recent query results per session
type HistoryStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionHistory
	limit    int
}

func NewHistoryStore(limit int) *HistoryStore {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &HistoryStore{
		sessions: make(map[string]*sessionHistory),
		limit:    limit,
	}
}

func (s *HistoryStore) session(id string, create bool) *sessionHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.sessions[id]
	if !ok && create {
		h = &sessionHistory{}
		s.sessions[id] = h
	}
	return h
}

// Append adds r to the session, evicting the oldest entries past the limit
func (s *HistoryStore) Append(sessionID string, r models.QueryResult) {
	for !s.appendTo(s.session(sessionID, true), r) {
	}
}

func (s *HistoryStore) appendTo(h *sessionHistory, r models.QueryResult) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.detached {
		return false
	}
	h.entries = append(h.entries, r)
	if over := len(h.entries) - s.limit; over > 0 {
		h.entries = append([]models.QueryResult(nil), h.entries[over:]...)
	}
	return true
}

// Get returns a copy of the session history, oldest first
func (s *HistoryStore) Get(sessionID string) []models.QueryResult {
	h := s.session(sessionID, false)
	if h == nil {
		return []models.QueryResult{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.QueryResult{}, h.entries...)
}

// Clear drops the session history
func (s *HistoryStore) Clear(sessionID string) {
	s.mu.Lock()
	h, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if !ok {
		return
	}

	h.mu.Lock()
	h.entries = nil
	h.detached = true
	h.mu.Unlock()
}
