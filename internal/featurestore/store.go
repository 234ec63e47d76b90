// Package featurestore hands a feature vector from the acquisition stage to
// the scoring stage of one request. Entries are written once and read once.
package featurestore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/trendfall/internal/analysis"
)

var (
	// ErrAlreadyExists is returned when a request id is written twice
	ErrAlreadyExists = errors.New("featurestore: entry already exists")
	// ErrNotFound is returned when an entry is missing, expired or already taken
	ErrNotFound = errors.New("featurestore: entry not found")
)

// Store is a per-request key-value handoff
type Store interface {
	Put(ctx context.Context, requestID string, fv analysis.FeatureVector) error
	Take(ctx context.Context, requestID string) (analysis.FeatureVector, error)
}

type memoryEntry struct {
	features  analysis.FeatureVector
	expiresAt time.Time
}

// MemoryStore keeps entries in process
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an in-process store whose entries expire after ttl
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores a copy of fv under requestID
func (s *MemoryStore) Put(_ context.Context, requestID string, fv analysis.FeatureVector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[requestID]; ok && now.Before(e.expiresAt) {
		return ErrAlreadyExists
	}
	s.evictExpired(now)

	s.entries[requestID] = memoryEntry{features: fv.Clone(), expiresAt: now.Add(s.ttl)}
	return nil
}

// Take returns and removes the entry for requestID
func (s *MemoryStore) Take(_ context.Context, requestID string) (analysis.FeatureVector, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.entries, requestID)
	if !s.now().Before(e.expiresAt) {
		return nil, ErrNotFound
	}
	return e.features, nil
}

// Len reports the number of stored entries, expired ones included
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) evictExpired(now time.Time) {
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}
