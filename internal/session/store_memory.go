package session

import (
	"context"
	"sync"
	"time"

	"github.com/shopdesk/jobtickets/internal/clock"
)

// sweepInterval bounds how often the memory stores scan for lapsed entries.
const sweepInterval = 5 * time.Minute

// MemoryStore is an in-process Store, used in tests and single-node
// development without Redis. Lapsed records are dropped on read and swept on
// write, mirroring the Redis TTL.
type MemoryStore struct {
	mu        sync.Mutex
	clock     clock.Clock
	records   map[string]memoryRecord
	lastSweep time.Time
}

type memoryRecord struct {
	payload   []byte
	expiresAt time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	return &MemoryStore{clock: clk, records: make(map[string]memoryRecord), lastSweep: clk.Now()}
}

func (s *MemoryStore) Save(_ context.Context, token string, record Record) error {
	payload, err := encMode.Marshal(record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if now.Sub(s.lastSweep) >= sweepInterval {
		for key, rec := range s.records {
			if !now.Before(rec.expiresAt) {
				delete(s.records, key)
			}
		}
		s.lastSweep = now
	}
	s.records[tokenKey("", token)] = memoryRecord{payload: payload, expiresAt: record.ExpiresAt}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, token string) (*Record, error) {
	key := tokenKey("", token)
	s.mu.Lock()
	rec, ok := s.records[key]
	if ok && !s.clock.Now().Before(rec.expiresAt) {
		delete(s.records, key)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	var record Record
	if err := decMode.Unmarshal(rec.payload, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, tokenKey("", token))
	return nil
}

// Len reports how many records are held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// MemoryRevocations is an in-process Revocations.
type MemoryRevocations struct {
	mu        sync.Mutex
	clock     clock.Clock
	revoked   map[string]time.Time
	lastSweep time.Time
}

// NewMemoryRevocations creates an empty deny-list.
func NewMemoryRevocations(clk clock.Clock) *MemoryRevocations {
	return &MemoryRevocations{clock: clk, revoked: make(map[string]time.Time), lastSweep: clk.Now()}
}

func (r *MemoryRevocations) Revoke(_ context.Context, id string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	if now.Sub(r.lastSweep) >= sweepInterval {
		for key, lapse := range r.revoked {
			if !now.Before(lapse) {
				delete(r.revoked, key)
			}
		}
		r.lastSweep = now
	}
	if now.Before(until) {
		r.revoked[id] = until
	}
	return nil
}

func (r *MemoryRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.revoked[id]
	if !ok {
		return false, nil
	}
	if !r.clock.Now().Before(until) {
		delete(r.revoked, id)
		return false, nil
	}
	return true, nil
}

// Len reports how many revocations are held.
func (r *MemoryRevocations) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.revoked)
}
