package offer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 50 * time.Millisecond

type Repository interface {
	Save(ctx context.Context, offers []Offer) error
	Load(ctx context.Context) ([]byte, error)
	Path() string
}

type fileRepository struct {
	path   string
	logger *log.Logger
}

func NewFileRepository(path string, logger *log.Logger) Repository {
	return &fileRepository{
		path:   path,
		logger: logger,
	}
}

func (r *fileRepository) Path() string {
	return r.path
}

// lockPath keeps the lock file in the temp dir so only the offers file appears
// next to the output. The name is derived from the absolute output path.
func (r *fileRepository) lockPath() string {
	abs, err := filepath.Abs(r.path)
	if err != nil {
		abs = r.path
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(os.TempDir(), "offers-sync-"+hex.EncodeToString(sum[:8])+".lock")
}

// Save replaces the output file with the full offer list. The new content is
// written next to the target and renamed over it, so readers never observe a
// half-written file and a failed write leaves the previous file in place.
func (r *fileRepository) Save(ctx context.Context, offers []Offer) error {
	if offers == nil {
		offers = []Offer{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(offers); err != nil {
		return fmt.Errorf("encode offers: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	// each call opens its own lock file descriptor; flock(2) does not exclude
	// two locks taken through the same descriptor
	lock := flock.New(r.lockPath())
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", r.path, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", r.path)
	}
	defer func() { _ = lock.Unlock() }()

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", r.path, err)
	}

	if r.logger != nil {
		r.logger.Printf("wrote %d offers to %s", len(offers), r.path)
	}
	return nil
}

// Load returns the current output file. The error wraps os.ErrNotExist when
// nothing has been written yet.
func (r *fileRepository) Load(ctx context.Context) ([]byte, error) {
	if _, err := os.Stat(r.path); err != nil {
		return nil, err
	}

	lock := flock.New(r.lockPath())
	locked, err := lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", r.path, err)
	}
	if !locked {
		return nil, fmt.Errorf("lock %s: not acquired", r.path)
	}
	defer func() { _ = lock.Unlock() }()

	return os.ReadFile(r.path)
}
