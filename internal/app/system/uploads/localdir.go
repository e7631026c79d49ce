package uploads

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dalemusser/waffle/pantry/storage"
)

// LocalDir is a BlobStore backed by a directory on disk, used when no
// remote storage backend is configured and in tests.
type LocalDir struct {
	root      string
	urlPrefix string
}

func NewLocalDir(root, urlPrefix string) *LocalDir {
	return &LocalDir{root: root, urlPrefix: strings.TrimRight(urlPrefix, "/")}
}

func (l *LocalDir) Put(ctx context.Context, path string, r io.Reader, opts *storage.PutOptions) error {
	full := filepath.Join(l.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("write upload file: %w", err)
	}
	return nil
}

func (l *LocalDir) URL(path string) string {
	return l.urlPrefix + "/" + path
}
