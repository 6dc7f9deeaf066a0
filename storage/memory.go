package storage

import (
	"context"
	"sync"

	"jabberwocky238/jw238ddns/types"
)

// MemoryStorage is a thread-safe in-memory EntryStore. It backs the
// "memory" storage type and is handy in tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[string]*types.DNSRecord // fqdn -> record
}

// NewMemoryStorage creates a new empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*types.DNSRecord),
	}
}

// List returns all stored records sorted by name.
func (s *MemoryStorage) List(_ context.Context) ([]*types.DNSRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedRecords(s.records), nil
}

// Put inserts or replaces the record for record.Name.
func (s *MemoryStorage) Put(_ context.Context, record *types.DNSRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := *record
	s.records[record.Name] = &c
	return nil
}
