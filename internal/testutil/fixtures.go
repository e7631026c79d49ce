package testutil

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/civicwatch/civicwatch/internal/app/system/chrono"
	"github.com/civicwatch/civicwatch/internal/domain/models"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts a user with the given role and returns it.
func (f *Fixtures) CreateUser(ctx context.Context, name, email string, role models.Role) models.User {
	f.t.Helper()

	now := chrono.Now()
	u := models.User{
		ID:        primitive.NewObjectID(),
		Email:     email,
		Name:      name,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("fixture user insert: %v", err)
	}
	return u
}

// CreateCitizen inserts an active citizen.
func (f *Fixtures) CreateCitizen(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, name, email, models.RoleCitizen)
}

// CreateOfficer inserts an active police officer.
func (f *Fixtures) CreateOfficer(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, name, email, models.RolePoliceOfficer)
}

// CreateReport inserts a pending report filed by the given user at
// the given creation time and returns it.
func (f *Fixtures) CreateReport(ctx context.Context, by models.User, title string, createdAt time.Time) models.SecurityReport {
	f.t.Helper()

	r := models.SecurityReport{
		ID:          primitive.NewObjectID(),
		UserID:      by.ID,
		UserEmail:   by.Email,
		UserName:    by.Name,
		Title:       title,
		Description: "fixture report",
		Category:    models.CategoryOther,
		Priority:    models.PriorityMedium,
		Status:      models.StatusPending,
		Location:    models.Location{Latitude: 19.4326, Longitude: -99.1332},
		CreatedAt:   chrono.At(createdAt),
		UpdatedAt:   chrono.At(createdAt),
	}
	if _, err := f.db.Collection("security_reports").InsertOne(ctx, r); err != nil {
		f.t.Fatalf("fixture report insert: %v", err)
	}
	return r
}
