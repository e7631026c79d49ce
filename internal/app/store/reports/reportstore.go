// Package reportstore owns the lifecycle of documents in the
// "security_reports" collection: creation, assignment, status
// transitions, list queries, and statistics.
//
// The guaranteed status graph is pending → in_progress → resolved,
// with closed as an administrative override from any non-resolved
// state. The store does not re-validate the full graph on every
// transition; callers offer only legal moves. What the store does
// guarantee is that it never invents or drops data on a transition
// (resolving a report leaves assignedTo untouched) and that
// assignment is a single document update, so no reader can observe
// assignedTo without the matching in_progress status.
package reportstore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	userstore "github.com/civicwatch/civicwatch/internal/app/store/users"
	"github.com/civicwatch/civicwatch/internal/app/system/sanitize"
	"github.com/civicwatch/civicwatch/internal/domain/models"
)

var (
	// ErrNotFound is returned by write operations targeting a report
	// that does not exist.
	ErrNotFound = errors.New("report not found")

	// ErrAssigneeNotFound is returned by Assign when the officer ID
	// does not reference an existing user.
	ErrAssigneeNotFound = errors.New("assignee not found")

	// ErrAssigneeNotResponder is returned by Assign when the target
	// user is a citizen. Citizens file reports; they are never
	// assigned to them.
	ErrAssigneeNotResponder = errors.New("assignee cannot respond to reports")

	errBadCategory = errors.New(`category must be "theft"|"violence"|"accident"|"suspicious"|"other"`)
	errBadPriority = errors.New(`priority must be "low"|"medium"|"high"|"critical"`)
	errBadStatus   = errors.New(`status must be "pending"|"in_progress"|"resolved"|"closed"`)
)

type Store struct {
	c     *mongo.Collection
	users *userstore.Store
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:     db.Collection("security_reports"),
		users: userstore.New(db),
	}
}

// Create inserts a new report. The status is forced to pending
// regardless of what the caller supplied, assignment and resolution
// fields are cleared, and the free-text fields are sanitized.
func (s *Store) Create(ctx context.Context, r models.SecurityReport) (models.SecurityReport, error) {
	r.Title = sanitize.Text(r.Title)
	r.Description = sanitize.Text(r.Description)
	r.Notes = sanitize.Text(r.Notes)

	if !r.Category.Valid() {
		return models.SecurityReport{}, errBadCategory
	}
	if !r.Priority.Valid() {
		return models.SecurityReport{}, errBadPriority
	}

	// Written through an upsert pipeline so createdAt/updatedAt come
	// from the server clock — the same clock every later transition
	// stamps with, which keeps updatedAt non-decreasing regardless of
	// client clock skew. User-supplied values go through $literal so
	// text starting with "$" is not read as a field path. Status is
	// forced to pending; assignedTo and resolvedAt are never written,
	// so they start absent.
	set := bson.M{
		"userId":      r.UserID,
		"userEmail":   bson.M{"$literal": r.UserEmail},
		"userName":    bson.M{"$literal": r.UserName},
		"title":       bson.M{"$literal": r.Title},
		"description": bson.M{"$literal": r.Description},
		"category":    r.Category,
		"priority":    r.Priority,
		"status":      models.StatusPending,
		"location":    bson.M{"$literal": r.Location},
		"createdAt":   "$$NOW",
		"updatedAt":   "$$NOW",
	}
	if len(r.Images) > 0 {
		set["images"] = bson.M{"$literal": r.Images}
	}
	if r.Notes != "" {
		set["notes"] = bson.M{"$literal": r.Notes}
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var created models.SecurityReport
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": primitive.NewObjectID()}, mongo.Pipeline{
		{{Key: "$set", Value: set}},
	}, opts).Decode(&created)
	if err != nil {
		return models.SecurityReport{}, err
	}
	return created, nil
}

// GetByID loads a report by ObjectID. Returns (nil, nil) if no such
// report exists.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.SecurityReport, error) {
	var r models.SecurityReport
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// Assign hands a report to a responder. assignedTo and the
// in_progress status change in one document update, so a concurrent
// reader sees both or neither.
func (s *Store) Assign(ctx context.Context, reportID, officerID primitive.ObjectID) error {
	officer, err := s.users.GetByID(ctx, officerID)
	if err != nil {
		return err
	}
	if officer == nil {
		return ErrAssigneeNotFound
	}
	if !officer.Role.Responder() {
		return ErrAssigneeNotResponder
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": reportID}, mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"assignedTo": officerID,
			"status":     models.StatusInProgress,
			"updatedAt":  "$$NOW",
		}}},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus moves a report to the given status, optionally
// replacing the response notes. Transitioning into resolved stamps
// resolvedAt once; a report that already carries a resolvedAt keeps
// it even if it is resolved again. Fields the transition does not
// name are left untouched.
func (s *Store) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.Status, notes *string) error {
	if !status.Valid() {
		return errBadStatus
	}

	set := bson.M{
		"status":    status,
		"updatedAt": "$$NOW",
	}
	if notes != nil {
		// $literal so note text starting with "$" is not read as a
		// field path by the pipeline.
		set["notes"] = bson.M{"$literal": sanitize.Text(*notes)}
	}
	if status == models.StatusResolved {
		// $ifNull keeps the first resolution timestamp.
		set["resolvedAt"] = bson.M{"$ifNull": bson.A{"$resolvedAt", "$$NOW"}}
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, mongo.Pipeline{
		{{Key: "$set", Value: set}},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a report by ID. Returns the number of documents
// deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
