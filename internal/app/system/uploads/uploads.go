// Package uploads stores report attachments in blob storage and
// turns low-level storage failures into the small set of error codes
// callers are allowed to see.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/google/uuid"

	"github.com/civicwatch/civicwatch/internal/app/system/timeouts"
	"github.com/civicwatch/civicwatch/internal/domain/cerr"
)

// BlobStore is the subset of a storage backend the uploader needs.
// waffle's storage.Store satisfies it.
type BlobStore interface {
	Put(ctx context.Context, path string, r io.Reader, opts *storage.PutOptions) error
	URL(path string) string
}

// File is one attachment to upload.
type File struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// Uploader writes report images under a fixed prefix with unique,
// date-partitioned paths.
type Uploader struct {
	store BlobStore
}

func New(store BlobStore) *Uploader {
	return &Uploader{store: store}
}

// Upload stores one file and returns its public URL.
// The path is generated as: reports/YYYY/MM/uuid-filename
func (u *Uploader) Upload(ctx context.Context, f File) (string, error) {
	now := time.Now().UTC()
	dateDir := fmt.Sprintf("reports/%04d/%02d", now.Year(), now.Month())
	uniqueName := fmt.Sprintf("%s-%s", uuid.New().String()[:8], sanitizeFilename(f.Name))
	path := filepath.ToSlash(filepath.Join(dateDir, uniqueName))

	opts := &storage.PutOptions{ContentType: f.ContentType}
	if err := u.store.Put(ctx, path, f.Reader, opts); err != nil {
		return "", Classify(err)
	}
	return u.store.URL(path), nil
}

// UploadAll stores every file or none: the first failure aborts the
// batch and its error is returned, so no report can end up
// referencing images that were never stored. Files uploaded before
// the failure are left behind as unreferenced blobs. The whole batch
// runs under the upload timeout so a dead backend cannot hang a
// report submission indefinitely.
func (u *Uploader) UploadAll(ctx context.Context, files []File) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Upload())
	defer cancel()

	urls := make([]string, 0, len(files))
	for _, f := range files {
		url, err := u.Upload(ctx, f)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// Classify maps a storage failure onto the stable upload error codes.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *cerr.Error
	if errors.As(err, &domainErr) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "cors"):
		return cerr.Wrap(cerr.CodeCORS, err)
	case errors.Is(err, os.ErrPermission),
		strings.Contains(msg, "permission"),
		strings.Contains(msg, "access denied"),
		strings.Contains(msg, "forbidden"):
		return cerr.Wrap(cerr.CodePermission, err)
	default:
		return cerr.Wrap(cerr.CodeNetwork, err)
	}
}

// sanitizeFilename strips path components and replaces characters
// that could be problematic in object keys.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)

	result := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isAllowedFilenameChar(c) {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}

	if len(result) == 0 {
		return "file"
	}
	if len(result) > 100 {
		ext := filepath.Ext(string(result))
		if len(ext) > 0 && len(ext) < 10 {
			result = append(result[:100-len(ext)], ext...)
		} else {
			result = result[:100]
		}
	}
	return string(result)
}

func isAllowedFilenameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.'
}
