package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"server/internal/domain"
)

// FileStore persists image artifacts as flat files under a single base
// directory. Names are generated at write time and double as the public
// identifiers handed back to clients.
type FileStore struct {
	basePath string
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Put writes data under a freshly generated "<prefix>_<hex>.<ext>" name and
// returns the name. The random token makes concurrent writes collision-free
// without locking.
func (s *FileStore) Put(ctx context.Context, data []byte, prefix, ext string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := freshName(prefix, ext)
	if err := os.WriteFile(filepath.Join(s.basePath, name), data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return name, nil
}

// PutNamed writes data under a caller-supplied name. Unlike Put the name is
// derived, not random, so repeated writes overwrite deterministically. The
// name is reduced to its base component before use.
func (s *FileStore) PutNamed(ctx context.Context, name string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := sanitizeName(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(s.basePath, clean), data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return clean, nil
}

// Get returns the bytes stored under name, or domain.ErrNotFound.
func (s *FileStore) Get(ctx context.Context, name string) ([]byte, error) {
	if s == nil {
		return nil, errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := sanitizeName(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.basePath, clean))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("storage: read file: %w", err)
	}
	return data, nil
}

// Delete removes the artifact stored under name, or reports
// domain.ErrNotFound when it is absent.
func (s *FileStore) Delete(ctx context.Context, name string) error {
	if s == nil {
		return errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	clean, err := sanitizeName(name)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.basePath, clean)); err != nil {
		if os.IsNotExist(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("storage: remove file: %w", err)
	}
	return nil
}

// List returns the stored artifact names, lexicographically sorted and
// filtered to recognized image extensions.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if s == nil {
		return nil, errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("storage: read dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !isImageName(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func freshName(prefix, ext string) string {
	u := uuid.New()
	token := hex.EncodeToString(u[:])
	if ext == "" {
		ext = "png"
	}
	return fmt.Sprintf("%s_%s.%s", prefix, token, strings.TrimPrefix(ext, "."))
}

// sanitizeName reduces an untrusted name to its base component and rejects
// anything that could escape the storage root.
func sanitizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.ErrNotFound
	}
	name = strings.ReplaceAll(name, "\\", "/")
	clean := filepath.Base(filepath.Clean(name))
	if clean == "." || clean == ".." || clean == "/" {
		return "", domain.ErrNotFound
	}
	return clean, nil
}

func isImageName(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range domain.ImageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
