package apikeys

import (
	"context"
	"errors"
	"time"

	"github.com/agentfleet/console/pkg/rbac"
)

// Key is a stored API key record. The secret itself is never persisted;
// KeyHash is a bcrypt hash and KeyPrefix a short display fragment for
// identifying the key in listings.
type Key struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"keyPrefix"`
	KeyHash    string     `json:"keyHash"`
	Role       rbac.Role  `json:"role"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

// Expired reports whether the key is past its expiry at the given instant
func (k *Key) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

var (
	// ErrNotFound indicates no key matched the lookup
	ErrNotFound = errors.New("api key not found")
	// ErrReadOnlyStore indicates a mutation was attempted on a read-only backend
	ErrReadOnlyStore = errors.New("api key store is read-only")
	// ErrTooManyKeys indicates the per-user key limit was reached
	ErrTooManyKeys = errors.New("api key limit reached for user")
)

// Store is the API key backend consumed by the identity resolver and the
// key management endpoints.
//
// FindByKey authenticates a presented secret: it returns ErrNotFound for
// an unknown, malformed, or expired candidate. Read-only backends return
// ErrReadOnlyStore from Create and Delete, and treat UpdateLastUsed and
// DeleteExpired as no-ops.
type Store interface {
	Create(ctx context.Context, userID, name string, role rbac.Role, expiresAt *time.Time) (*Key, string, error)
	ListByUser(ctx context.Context, userID string) ([]*Key, error)
	FindByKey(ctx context.Context, candidate string) (*Key, error)
	Delete(ctx context.Context, userID, keyID string) error
	UpdateLastUsed(ctx context.Context, keyID string) error
	DeleteExpired(ctx context.Context) (int, error)
	CountActive(ctx context.Context) (int, error)
}
