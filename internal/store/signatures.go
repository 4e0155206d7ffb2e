// Package store holds the session-signature store used by the Antigravity
// dialect: thinking signatures keyed by session, kept under an LRU capacity
// with a TTL, optionally persisted across restarts.
package store

import (
	"os"
	"sync"
	"time"

	"github.com/bridgekit/llm-bridge/internal/json"
)

const (
	// DefaultCapacity bounds the number of live signatures.
	DefaultCapacity = 1024
	// DefaultTTL after which an untouched signature is treated as absent.
	DefaultTTL = 12 * time.Hour
)

type entry struct {
	Signature  string    `json:"signature"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// SignatureStore is single-writer, many-reader. Reads refresh LastUsedAt;
// writes evict the oldest LastUsedAt entries past capacity.
type SignatureStore struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	capacity int
	ttl      time.Duration
	path     string

	now func() time.Time
}

// Option configures a SignatureStore.
type Option func(*SignatureStore)

// WithCapacity overrides the LRU capacity.
func WithCapacity(n int) Option {
	return func(s *SignatureStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithTTL overrides the expiry window.
func WithTTL(d time.Duration) Option {
	return func(s *SignatureStore) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithPersistence loads from and saves to path.
func WithPersistence(path string) Option {
	return func(s *SignatureStore) { s.path = path }
}

func withClock(now func() time.Time) Option {
	return func(s *SignatureStore) { s.now = now }
}

// NewSignatureStore creates a store; a persisted snapshot, when configured
// and readable, seeds the content. A corrupt snapshot is discarded.
func NewSignatureStore(opts ...Option) *SignatureStore {
	s := &SignatureStore{
		entries:  make(map[string]*entry),
		capacity: DefaultCapacity,
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.path != "" {
		s.load()
	}
	return s
}

// Get returns the signature for key and refreshes its recency. Entries
// older than the TTL are treated as absent and dropped lazily.
func (s *SignatureStore) Get(key string) (string, bool) {
	now := s.now()

	s.mu.RLock()
	e, ok := s.entries[key]
	if ok && now.Sub(e.LastUsedAt) <= s.ttl {
		sig := e.Signature
		s.mu.RUnlock()

		s.mu.Lock()
		if e, ok := s.entries[key]; ok {
			e.LastUsedAt = now
		}
		s.mu.Unlock()
		return sig, true
	}
	s.mu.RUnlock()

	if ok {
		s.mu.Lock()
		if e, ok := s.entries[key]; ok && now.Sub(e.LastUsedAt) > s.ttl {
			delete(s.entries, key)
		}
		s.mu.Unlock()
	}
	return "", false
}

// Put stores a signature, evicting the stalest entries past capacity.
func (s *SignatureStore) Put(key, signature string) {
	if key == "" || signature == "" {
		return
	}
	now := s.now()
	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		e.Signature = signature
		e.LastUsedAt = now
		s.mu.Unlock()
		return
	}
	s.entries[key] = &entry{Signature: signature, LastUsedAt: now}
	for len(s.entries) > s.capacity {
		s.evictOldestLocked(now)
	}
	s.mu.Unlock()
}

// Delete removes a signature.
func (s *SignatureStore) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Len reports the number of stored entries, expired ones included until
// their next Get.
func (s *SignatureStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *SignatureStore) evictOldestLocked(now time.Time) {
	var oldestKey string
	var oldest time.Time
	for k, e := range s.entries {
		// Expired entries go first.
		if now.Sub(e.LastUsedAt) > s.ttl {
			delete(s.entries, k)
			return
		}
		if oldestKey == "" || e.LastUsedAt.Before(oldest) {
			oldestKey = k
			oldest = e.LastUsedAt
		}
	}
	if oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}

// Save persists the current content atomically. No-op without a path.
func (s *SignatureStore) Save() error {
	if s.path == "" {
		return nil
	}
	// Copy entry values under the lock: Get and Put mutate LastUsedAt on
	// the shared pointers, so marshaling them outside the lock would race
	// with live traffic.
	s.mu.RLock()
	snapshot := make(map[string]entry, len(s.entries))
	now := s.now()
	for k, e := range s.entries {
		if now.Sub(e.LastUsedAt) > s.ttl {
			continue
		}
		snapshot[k] = *e
	}
	s.mu.RUnlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *SignatureStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var snapshot map[string]*entry
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return
	}
	now := s.now()
	for k, e := range snapshot {
		if e == nil || e.Signature == "" || now.Sub(e.LastUsedAt) > s.ttl {
			continue
		}
		s.entries[k] = e
	}
}
