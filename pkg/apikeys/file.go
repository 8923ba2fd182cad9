package apikeys

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/agentfleet/console/pkg/observability"
	"github.com/agentfleet/console/pkg/rbac"
)

// defaultPollInterval backstops fsnotify on filesystems that drop events,
// e.g. some network mounts and Kubernetes ConfigMap symlink swaps
const defaultPollInterval = 30 * time.Second

// fileDoc is the on-disk shape of the provisioned key file
type fileDoc struct {
	Keys []*Key `json:"keys"`
}

type fileSnapshot struct {
	keys    []*Key
	modTime time.Time
}

// FileStore is the read-only key backend fed by an operator-provisioned
// JSON file. The working set is an immutable snapshot swapped atomically
// on reload; a file that fails to parse leaves the previous snapshot in
// place.
type FileStore struct {
	path     string
	logger   *observability.Logger
	snapshot atomic.Pointer[fileSnapshot]
	hashSem  *semaphore.Weighted

	pollInterval time.Duration
	watcher      *fsnotify.Watcher
	done         chan struct{}

	now func() time.Time
}

// FileStoreOption configures a FileStore
type FileStoreOption func(*FileStore)

// WithPollInterval overrides the fallback reload poll interval
func WithPollInterval(d time.Duration) FileStoreOption {
	return func(s *FileStore) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// NewFileStore loads the key file at path and begins watching it for
// changes. The initial load must succeed; later reload failures are
// logged and the previous snapshot kept.
func NewFileStore(path string, logger *observability.Logger, opts ...FileStoreOption) (*FileStore, error) {
	s := &FileStore{
		path:         path,
		logger:       logger.WithField("component", "apikey-file-store"),
		hashSem:      semaphore.NewWeighted(maxConcurrentHashes),
		pollInterval: defaultPollInterval,
		done:         make(chan struct{}),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory, not the file: editors and ConfigMap updates
	// replace the file, which would orphan a direct watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	s.watcher = watcher

	go s.watchLoop()
	return s, nil
}

func (s *FileStore) reload() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("failed to stat api key file %s: %w", s.path, err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read api key file %s: %w", s.path, err)
	}

	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse api key file %s: %w", s.path, err)
	}

	for i, key := range doc.Keys {
		if key.ID == "" || key.KeyHash == "" {
			return fmt.Errorf("api key file %s: entry %d missing id or keyHash", s.path, i)
		}
		if key.Role != "" && !key.Role.Valid() {
			return fmt.Errorf("api key file %s: entry %d has invalid role %q", s.path, i, key.Role)
		}
		if key.Role == "" {
			key.Role = rbac.RoleViewer
		}
	}

	s.snapshot.Store(&fileSnapshot{keys: doc.Keys, modTime: info.ModTime()})
	return nil
}

func (s *FileStore) watchLoop() {
	defer observability.RecoverPanic(s.logger, "api key file watch loop")

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			s.tryReload()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.WithError(err).Warn("api key file watcher error")
		case <-ticker.C:
			info, err := os.Stat(s.path)
			if err != nil {
				s.logger.WithError(err).Warn("api key file poll failed")
				continue
			}
			if snap := s.snapshot.Load(); snap != nil && info.ModTime().After(snap.modTime) {
				s.tryReload()
			}
		}
	}
}

func (s *FileStore) tryReload() {
	if err := s.reload(); err != nil {
		s.logger.WithError(err).Error("api key file reload failed, keeping previous snapshot")
		return
	}
	snap := s.snapshot.Load()
	s.logger.WithField("keys", len(snap.keys)).Info("api key file reloaded")
}

// Close stops the watch loop
func (s *FileStore) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// Create is unsupported on the file backend
func (s *FileStore) Create(context.Context, string, string, rbac.Role, *time.Time) (*Key, string, error) {
	return nil, "", ErrReadOnlyStore
}

// ListByUser returns the user's provisioned keys
func (s *FileStore) ListByUser(_ context.Context, userID string) ([]*Key, error) {
	snap := s.snapshot.Load()
	var out []*Key
	for _, key := range snap.keys {
		if key.UserID == userID {
			copied := *key
			out = append(out, &copied)
		}
	}
	return out, nil
}

// FindByKey authenticates a presented secret against the current snapshot
func (s *FileStore) FindByKey(ctx context.Context, candidate string) (*Key, error) {
	if !HasSecretPrefix(candidate) {
		return nil, ErrNotFound
	}

	snap := s.snapshot.Load()
	for _, key := range snap.keys {
		if key.Expired(s.now()) {
			continue
		}
		if err := s.hashSem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		err := bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(candidate))
		s.hashSem.Release(1)
		if err == nil {
			copied := *key
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// Delete is unsupported on the file backend
func (s *FileStore) Delete(context.Context, string, string) error {
	return ErrReadOnlyStore
}

// UpdateLastUsed is a no-op: the source file is operator-owned
func (s *FileStore) UpdateLastUsed(context.Context, string) error {
	return nil
}

// DeleteExpired is a no-op: expired entries are skipped at lookup time
// and removed by the operator
func (s *FileStore) DeleteExpired(context.Context) (int, error) {
	return 0, nil
}

// CountActive reports how many provisioned keys are not past their expiry
func (s *FileStore) CountActive(context.Context) (int, error) {
	snap := s.snapshot.Load()
	active := 0
	for _, key := range snap.keys {
		if !key.Expired(s.now()) {
			active++
		}
	}
	return active, nil
}
