package reportstore_test

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	reportstore "github.com/civicwatch/civicwatch/internal/app/store/reports"
	"github.com/civicwatch/civicwatch/internal/app/system/uploads"
	"github.com/civicwatch/civicwatch/internal/domain/cerr"
	"github.com/civicwatch/civicwatch/internal/testutil"
)

type fakeUploader struct {
	urls []string
	err  error
}

func (f *fakeUploader) UploadAll(ctx context.Context, files []uploads.File) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.urls, nil
}

func TestStore_CreateWithImages(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := reportstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	citizen := fixtures.CreateCitizen(ctx, "Ana", "ana@example.com")
	up := &fakeUploader{urls: []string{
		"https://blobs.example.com/reports/2026/03/abc-one.jpg",
		"https://blobs.example.com/reports/2026/03/def-two.jpg",
	}}

	r := validReport(citizen)
	r.Images = []string{"https://attacker.example.com/injected.jpg"}

	created, err := store.CreateWithImages(ctx, r, []uploads.File{{Name: "one.jpg"}, {Name: "two.jpg"}}, up)
	if err != nil {
		t.Fatalf("CreateWithImages failed: %v", err)
	}
	if len(created.Images) != 2 || created.Images[0] != up.urls[0] {
		t.Errorf("images = %v, want upload results only", created.Images)
	}
}

func TestStore_CreateWithImages_UploadFailureCreatesNothing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := reportstore.New(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	citizen := fixtures.CreateCitizen(ctx, "Ana", "ana@example.com")
	up := &fakeUploader{err: cerr.Wrap(cerr.CodePermission, errors.New("denied"))}

	_, err := store.CreateWithImages(ctx, validReport(citizen), []uploads.File{{Name: "one.jpg"}}, up)
	var de *cerr.Error
	if !errors.As(err, &de) || de.Code != cerr.CodePermission {
		t.Fatalf("err = %v, want permission code", err)
	}

	n, countErr := db.Collection("security_reports").CountDocuments(ctx, bson.M{})
	if countErr != nil {
		t.Fatalf("count: %v", countErr)
	}
	if n != 0 {
		t.Errorf("reports = %d, want 0 after aborted upload", n)
	}
}
