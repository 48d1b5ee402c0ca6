package docstore

import (
	"context"
	"sort"
	"sync"

	"github.com/docvault/docvault/interfaces"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[interfaces.ContentID]*interfaces.DocumentRecord
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[interfaces.ContentID]*interfaces.DocumentRecord)}
}

func (s *MemoryStore) Save(ctx context.Context, record *interfaces.DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *record
	s.records[record.ID] = &clone
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id interfaces.ContentID) (*interfaces.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, interfaces.ErrDocumentNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *MemoryStore) Rekey(ctx context.Context, oldID interfaces.ContentID, record *interfaces.DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[oldID]; !ok {
		return interfaces.ErrDocumentNotFound
	}
	delete(s.records, oldID)
	clone := *record
	s.records[record.ID] = &clone
	return nil
}

func (s *MemoryStore) List(ctx context.Context, owner interfaces.Identity, limit, offset int) ([]interfaces.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]interfaces.DocumentRecord, 0)
	for _, record := range s.records {
		if record.Owner == owner {
			matched = append(matched, *record)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if offset >= len(matched) {
		return []interfaces.DocumentRecord{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}
