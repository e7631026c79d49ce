package reportstore

import (
	"context"

	"github.com/civicwatch/civicwatch/internal/app/system/uploads"
	"github.com/civicwatch/civicwatch/internal/domain/models"
)

// ImageUploader stores a batch of attachments and returns their
// URLs. The uploads package provides the production implementation.
type ImageUploader interface {
	UploadAll(ctx context.Context, files []uploads.File) ([]string, error)
}

// CreateWithImages uploads the attachments first and only then
// creates the report with the resolved URLs. A failed upload aborts
// the whole operation, so no report ever references an image that
// was not stored. Any caller-supplied image URLs are replaced by the
// upload results.
func (s *Store) CreateWithImages(ctx context.Context, r models.SecurityReport, files []uploads.File, up ImageUploader) (models.SecurityReport, error) {
	urls, err := up.UploadAll(ctx, files)
	if err != nil {
		return models.SecurityReport{}, err
	}
	r.Images = urls
	return s.Create(ctx, r)
}
