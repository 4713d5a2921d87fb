package sessionstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core/reflection"
)

type memEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore keeps wizard sessions in process memory. Used for tests and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memEntry
	now     func() time.Time
}

var _ reflection.SessionStore = (*MemoryStore)(nil) // interface compliance check

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, entries: make(map[string]memEntry), now: time.Now}
}

func (s *MemoryStore) SaveSession(_ context.Context, sess reflection.Session) error {
	// stored encoded so callers never share maps with the store
	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sess.ID] = memEntry{data: data, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (reflection.Session, error) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	if ok && s.ttl > 0 && !s.now().Before(entry.expires) {
		delete(s.entries, id)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return reflection.Session{}, reflection.ErrSessionNotFound
	}
	var sess reflection.Session
	if err := json.Unmarshal(entry.data, &sess); err != nil {
		return reflection.Session{}, errors.Wrap(err, "decoding session")
	}
	return sess, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) TakeSession(_ context.Context, id string) (reflection.Session, error) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	delete(s.entries, id)
	if ok && s.ttl > 0 && !s.now().Before(entry.expires) {
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return reflection.Session{}, reflection.ErrSessionNotFound
	}
	var sess reflection.Session
	if err := json.Unmarshal(entry.data, &sess); err != nil {
		return reflection.Session{}, errors.Wrap(err, "decoding session")
	}
	return sess, nil
}
