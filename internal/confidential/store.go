package confidential

import (
	"context"
	"sync"
)

// Record is the stored form of a confidential value.
type Record struct {
	Value uint64
	Bool  bool
}

// Store holds ciphertexts and their access lists. GetCiphertext returns
// ErrUnknownHandle for a handle it has never stored.
type Store interface {
	PutCiphertext(ctx context.Context, h Handle, rec Record) error
	GetCiphertext(ctx context.Context, h Handle) (Record, error)
	GrantAccess(ctx context.Context, h Handle, account string) error
	HasAccess(ctx context.Context, h Handle, account string) (bool, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[Handle]Record
	grants  map[Handle]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[Handle]Record),
		grants:  make(map[Handle]map[string]struct{}),
	}
}

func (s *MemoryStore) PutCiphertext(ctx context.Context, h Handle, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[h] = rec
	return nil
}

func (s *MemoryStore) GetCiphertext(ctx context.Context, h Handle) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[h]
	if !ok {
		return Record{}, ErrUnknownHandle
	}
	return rec, nil
}

func (s *MemoryStore) GrantAccess(ctx context.Context, h Handle, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[h]; !ok {
		return ErrUnknownHandle
	}
	acl, ok := s.grants[h]
	if !ok {
		acl = make(map[string]struct{})
		s.grants[h] = acl
	}
	acl[account] = struct{}{}
	return nil
}

func (s *MemoryStore) HasAccess(ctx context.Context, h Handle, account string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[h][account]
	return ok, nil
}

var _ Store = (*MemoryStore)(nil)
