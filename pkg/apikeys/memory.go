package apikeys

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/agentfleet/console/pkg/rbac"
)

const (
	// defaultMaxPerUser bounds self-service key creation
	defaultMaxPerUser = 10
	// maxConcurrentHashes bounds in-flight bcrypt work so a burst of key
	// lookups cannot saturate the process
	maxConcurrentHashes = 8
)

// MemoryStore is the read-write in-memory key backend
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]*Key

	maxPerUser int
	bcryptCost int
	hashSem    *semaphore.Weighted

	// now is swapped in tests to control expiry
	now func() time.Time
}

// MemoryStoreOption configures a MemoryStore
type MemoryStoreOption func(*MemoryStore)

// WithMaxKeysPerUser overrides the per-user key limit
func WithMaxKeysPerUser(n int) MemoryStoreOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.maxPerUser = n
		}
	}
}

// WithBcryptCost overrides the hashing cost, mainly to keep tests fast
func WithBcryptCost(cost int) MemoryStoreOption {
	return func(s *MemoryStore) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// NewMemoryStore creates an empty in-memory key store
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		keys:       make(map[string]*Key),
		maxPerUser: defaultMaxPerUser,
		bcryptCost: bcrypt.DefaultCost,
		hashSem:    semaphore.NewWeighted(maxConcurrentHashes),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create mints a new key for userID and returns the record plus the full
// secret. The secret is shown exactly once; only its hash is retained.
func (s *MemoryStore) Create(ctx context.Context, userID, name string, role rbac.Role, expiresAt *time.Time) (*Key, string, error) {
	if !role.Valid() {
		return nil, "", fmt.Errorf("invalid role %q for api key", role)
	}

	secret, displayPrefix, err := GenerateSecret()
	if err != nil {
		return nil, "", err
	}

	if err := s.hashSem.Acquire(ctx, 1); err != nil {
		return nil, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.bcryptCost)
	s.hashSem.Release(1)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash api key: %w", err)
	}

	key := &Key{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		KeyPrefix: displayPrefix,
		KeyHash:   string(hash),
		Role:      role,
		ExpiresAt: expiresAt,
		CreatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	active := 0
	for _, existing := range s.keys {
		if existing.UserID == userID && !existing.Expired(s.now()) {
			active++
		}
	}
	if active >= s.maxPerUser {
		return nil, "", ErrTooManyKeys
	}

	s.keys[key.ID] = key
	copied := *key
	return &copied, secret, nil
}

// ListByUser returns the user's keys newest first
func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]*Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Key
	for _, key := range s.keys {
		if key.UserID == userID {
			copied := *key
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// FindByKey authenticates a presented secret by comparing it against every
// unexpired stored hash. Candidates without the key prefix short-circuit
// to ErrNotFound without touching bcrypt.
func (s *MemoryStore) FindByKey(ctx context.Context, candidate string) (*Key, error) {
	if !HasSecretPrefix(candidate) {
		return nil, ErrNotFound
	}

	// Snapshot record copies under the lock; UpdateLastUsed mutates the
	// stored structs concurrently and the scan must not read them unlocked.
	s.mu.RLock()
	candidates := make([]Key, 0, len(s.keys))
	for _, key := range s.keys {
		if !key.Expired(s.now()) {
			candidates = append(candidates, *key)
		}
	}
	s.mu.RUnlock()

	for i := range candidates {
		if err := s.hashSem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		err := bcrypt.CompareHashAndPassword([]byte(candidates[i].KeyHash), []byte(candidate))
		s.hashSem.Release(1)
		if err == nil {
			copied := candidates[i]
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// Delete removes one of the user's keys. Deleting another user's key is
// reported as not found.
func (s *MemoryStore) Delete(_ context.Context, userID, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[keyID]
	if !ok || key.UserID != userID {
		return ErrNotFound
	}
	delete(s.keys, keyID)
	return nil
}

// UpdateLastUsed stamps the key's last-use time
func (s *MemoryStore) UpdateLastUsed(_ context.Context, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[keyID]
	if !ok {
		return ErrNotFound
	}
	used := s.now().UTC()
	key.LastUsedAt = &used
	return nil
}

// CountActive reports how many stored keys are not past their expiry
func (s *MemoryStore) CountActive(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := 0
	for _, key := range s.keys {
		if !key.Expired(s.now()) {
			active++
		}
	}
	return active, nil
}

// DeleteExpired removes every key past its expiry and returns the count
func (s *MemoryStore) DeleteExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, key := range s.keys {
		if key.Expired(s.now()) {
			delete(s.keys, id)
			removed++
		}
	}
	return removed, nil
}
