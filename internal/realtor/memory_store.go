package realtor

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests and single-node runs.
type MemoryStore struct {
	mu       sync.RWMutex
	realtors map[string]*Realtor
	slugs    map[string]string // slug -> id
	accounts map[string]string // provider account id -> id
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		realtors: make(map[string]*Realtor),
		slugs:    make(map[string]string),
		accounts: make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, r *Realtor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.slugs[r.Slug]; exists {
		return ErrSlugTaken
	}

	cp := *r
	s.realtors[r.ID] = &cp
	s.slugs[r.Slug] = r.ID
	if r.AccountID != "" {
		s.accounts[r.AccountID] = r.ID
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Realtor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(id)
}

func (s *MemoryStore) GetBySlug(ctx context.Context, slug string) (*Realtor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.slugs[slug]
	if !ok {
		return nil, ErrRealtorNotFound
	}
	return s.getLocked(id)
}

func (s *MemoryStore) GetByAccount(ctx context.Context, accountID string) (*Realtor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.accounts[accountID]
	if !ok {
		return nil, ErrRealtorNotFound
	}
	return s.getLocked(id)
}

func (s *MemoryStore) Update(ctx context.Context, r *Realtor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, exists := s.realtors[r.ID]
	if !exists {
		return ErrRealtorNotFound
	}
	if old.Slug != r.Slug {
		if id, taken := s.slugs[r.Slug]; taken && id != r.ID {
			return ErrSlugTaken
		}
		delete(s.slugs, old.Slug)
		s.slugs[r.Slug] = r.ID
	}
	if old.AccountID != r.AccountID {
		delete(s.accounts, old.AccountID)
		if r.AccountID != "" {
			s.accounts[r.AccountID] = r.ID
		}
	}

	cp := *r
	s.realtors[r.ID] = &cp
	return nil
}

func (s *MemoryStore) getLocked(id string) (*Realtor, error) {
	r, ok := s.realtors[id]
	if !ok {
		return nil, ErrRealtorNotFound
	}
	cp := *r
	return &cp, nil
}
