package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// BlobStore persists attachment bytes on local disk, partitioned per tenant.
// Paths returned by Save are relative to the store root so the root can move
// between environments without rewriting rows.
type BlobStore struct {
	root string
	now  func() time.Time
}

func NewBlobStore(root string) (*BlobStore, error) {
	if root == "" {
		return nil, errors.New("storage: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "storage: create root")
	}
	return &BlobStore{root: root, now: time.Now}, nil
}

// Save writes the blob under <companyID>/<unixnano>_<filename> and returns
// the relative path. The nanosecond prefix keeps same-named attachments from
// colliding.
func (s *BlobStore) Save(companyID int64, filename string, data []byte) (string, error) {
	dir := filepath.Join(s.root, strconv.FormatInt(companyID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "storage: create tenant dir")
	}

	name := fmt.Sprintf("%d_%s", s.now().UnixNano(), sanitizeFilename(filename))
	rel := filepath.Join(strconv.FormatInt(companyID, 10), name)

	if err := os.WriteFile(filepath.Join(s.root, rel), data, 0o644); err != nil {
		return "", errors.Wrap(err, "storage: write blob")
	}
	return rel, nil
}

func (s *BlobStore) Open(relPath string) ([]byte, error) {
	clean := filepath.Clean(relPath)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, errors.New("storage: path escapes store root")
	}
	data, err := os.ReadFile(filepath.Join(s.root, clean))
	if err != nil {
		return nil, errors.Wrap(err, "storage: read blob")
	}
	return data, nil
}

// sanitizeFilename strips path separators and control characters so a hostile
// attachment name cannot climb out of the tenant directory.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == os.PathSeparator || r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "attachment"
	}
	return name
}
