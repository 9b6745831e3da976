package session

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned by Load when no session is persisted.
	ErrNotFound = errors.New("session not found")
	// ErrCorrupt is returned by Load when the persisted entries are
	// unreadable or only one of them is present.
	ErrCorrupt = errors.New("session record corrupt")
	// ErrStorage wraps backend read and write failures.
	ErrStorage = errors.New("session storage unavailable")
)

// Store persists the current session record. Implementations are safe for
// concurrent use.
type Store interface {
	// Save writes token and user together, replacing any previous record.
	Save(ctx context.Context, rec Record) error
	// Load returns the persisted record, ErrNotFound, or ErrCorrupt.
	Load(ctx context.Context) (Record, error)
	// Clear removes both entries. Clearing an empty store succeeds.
	Clear(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

// MemoryStore keeps the record in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
	user  []byte
	set   bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	if err := checkRecord(rec); err != nil {
		return err
	}
	data, err := EncodeUser(rec.User)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.user, s.set = rec.Token, data, true
	return nil
}

func (s *MemoryStore) Load(_ context.Context) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return assemble(s.token, s.set, s.user, s.set)
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.user, s.set = "", nil, false
	return nil
}

func (s *MemoryStore) Close() error { return nil }
