// Package credential persists the bearer credential between process runs.
//
// A Store holds at most one credential. Absence is not an error: Load returns
// an empty string when nothing is stored, or when what is stored cannot be
// read back (corrupt file, wrong passphrase). Callers treat an empty credential
// as "logged out".
package credential

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"sync"

	"github.com/felixgeelhaar/reimburse/internal/config"
	"github.com/felixgeelhaar/reimburse/internal/errors"
)

// Store is a single persistent credential slot.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Load returns the stored credential, or "" if there is none.
	Load(ctx context.Context) (string, error)

	// Save replaces the stored credential.
	Save(ctx context.Context, token string) error

	// Clear removes the stored credential. Clearing an empty store succeeds.
	Clear(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Open builds the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.StoreFile, "":
		passphrase := cfg.Passphrase
		if passphrase == "" {
			passphrase = DefaultPassphrase()
		}
		return NewFileStore(cfg.Path, passphrase), nil
	case config.StoreRedis:
		return DialRedis(ctx, cfg.RedisURL, cfg.RedisKey)
	case config.StoreMemory:
		return NewMemoryStore(), nil
	default:
		return nil, errors.New(errors.ErrCodeStoreBackend, fmt.Sprintf("unknown credential store backend: %s", cfg.Backend))
	}
}

// DefaultPassphrase derives a per-user passphrase when none is configured.
// It protects the file against casual copying to another account, not against
// an attacker with access to the same account.
func DefaultPassphrase() string {
	name := "reimburse"
	if u, err := user.Current(); err == nil {
		name += ":" + u.Username
	}
	if host, err := os.Hostname(); err == nil {
		name += "@" + host
	}
	return name
}

// MemoryStore keeps the credential in process memory only.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored credential.
func (m *MemoryStore) Load(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

// Save replaces the stored credential.
func (m *MemoryStore) Save(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

// Clear removes the stored credential.
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
