package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/logging"
)

// ErrInvalidLocator is returned for locators that do not name a file inside
// the storage root.
var ErrInvalidLocator = errors.New("documents: invalid storage locator")

// Storage holds document bytes. Locators are opaque to callers.
type Storage interface {
	Save(ctx context.Context, tenantID, name string, data []byte) (string, error)
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
	// Delete removes the blob and reports whether anything was removed.
	Delete(ctx context.Context, locator string) bool
}

// LocalStorage keeps files on disk under root/<tenant id>/.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates the root directory if needed.
func NewLocalStorage(root string) (*LocalStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{root: abs}, nil
}

// Root is the absolute storage directory.
func (s *LocalStorage) Root() string { return s.root }

func (s *LocalStorage) Save(_ context.Context, tenantID, name string, data []byte) (string, error) {
	if !safeSegment(tenantID) || !safeSegment(name) {
		return "", ErrInvalidLocator
	}
	dir := filepath.Join(s.root, tenantID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return "", err
	}
	return path.Join(tenantID, name), nil
}

func (s *LocalStorage) Open(_ context.Context, locator string) (io.ReadCloser, error) {
	p, err := s.resolve(locator)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBlobMissing
	}
	return f, err
}

func (s *LocalStorage) Delete(ctx context.Context, locator string) bool {
	p, err := s.resolve(locator)
	if err != nil {
		return false
	}
	if err := os.Remove(p); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.L(ctx).Warn("failed to delete stored document", "locator", locator, "error", err)
		}
		return false
	}
	return true
}

// PurgeTenant removes every stored file of a tenant. Registered with the
// organization service so deleting a tenant frees its uploads.
func (s *LocalStorage) PurgeTenant(_ context.Context, tenantID string) error {
	if !safeSegment(tenantID) {
		return ErrInvalidLocator
	}
	if err := os.RemoveAll(filepath.Join(s.root, tenantID)); err != nil {
		return fmt.Errorf("purge tenant uploads: %w", err)
	}
	return nil
}

// resolve maps a locator to a path and refuses anything outside root.
func (s *LocalStorage) resolve(locator string) (string, error) {
	parts := strings.Split(locator, "/")
	if len(parts) != 2 || !safeSegment(parts[0]) || !safeSegment(parts[1]) {
		return "", ErrInvalidLocator
	}
	return filepath.Join(s.root, parts[0], parts[1]), nil
}

func safeSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`) && !strings.HasPrefix(s, ".")
}

// Compile-time interface check.
var _ Storage = (*LocalStorage)(nil)
