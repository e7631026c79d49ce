// Package userstore is the directory service over the "users"
// collection: profile CRUD, role-filtered lookups, and the
// activate/deactivate toggle.
//
// List reads filter remotely and sort locally. The backend cannot be
// assumed to have a composite index combining the filter with a
// createdAt sort, and stored timestamps arrive in mixed
// representations, so the final newest-first ordering is always done
// client-side (see the chrono package).
package userstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/civicwatch/civicwatch/internal/app/system/chrono"
	"github.com/civicwatch/civicwatch/internal/app/system/normalize"
	"github.com/civicwatch/civicwatch/internal/domain/models"
)

var (
	// ErrDuplicateEmail is returned when creating or updating a user
	// with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")

	// ErrNotFound is returned by write operations targeting a user
	// that does not exist.
	ErrNotFound = errors.New("user not found")

	errBadRole = errors.New(`role must be "citizen"|"police_officer"|"security_guard"|"emergency_responder"|"admin"`)
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// GetByID loads a user by ObjectID. Returns (nil, nil) if no such
// user exists.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks up a user by case-insensitive email. Returns
// (nil, nil) if no such user exists.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// GetByRole returns every user with the given role, newest first.
// The role filter runs remotely; the createdAt ordering is applied
// locally because a composite role+createdAt index is not guaranteed.
func (s *Store) GetByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	cur, err := s.c.Find(ctx, bson.M{"role": role})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	chrono.StableDesc(users, func(u models.User) time.Time { return u.CreatedAt.Time })
	return users, nil
}

// GetAll returns every user, newest first.
func (s *Store) GetAll(ctx context.Context) ([]models.User, error) {
	cur, err := s.c.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	chrono.StableDesc(users, func(u models.User) time.Time { return u.CreatedAt.Time })
	return users, nil
}

// Create inserts a new user after normalizing and validating fields.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.Email = normalize.Email(u.Email)
	u.Name = normalize.Name(u.Name)
	u.LastName = normalize.Name(u.LastName)
	u.PhoneNumber = normalize.Phone(u.PhoneNumber)
	u.Role = models.Role(normalize.Role(string(u.Role)))

	if !u.Role.Valid() {
		return models.User{}, errBadRole
	}

	// Written through an upsert pipeline so createdAt/updatedAt come
	// from the server clock, the same clock every later update stamps
	// with. $literal keeps profile text starting with "$" from being
	// read as a field path.
	set := bson.M{
		"email":     bson.M{"$literal": u.Email},
		"name":      bson.M{"$literal": u.Name},
		"lastName":  bson.M{"$literal": u.LastName},
		"role":      u.Role,
		"isActive":  u.IsActive,
		"createdAt": "$$NOW",
		"updatedAt": "$$NOW",
	}
	if u.PhoneNumber != "" {
		set["phoneNumber"] = bson.M{"$literal": u.PhoneNumber}
	}
	if u.Badge != "" {
		set["badge"] = bson.M{"$literal": u.Badge}
	}
	if u.Department != "" {
		set["department"] = bson.M{"$literal": u.Department}
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var created models.User
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": primitive.NewObjectID()}, mongo.Pipeline{
		{{Key: "$set", Value: set}},
	}, opts).Decode(&created)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return created, nil
}

// Update holds the profile fields an administrative edit may change.
// Nil pointers leave the stored value untouched.
type Update struct {
	Name        *string
	LastName    *string
	PhoneNumber *string
	Role        *models.Role
	Badge       *string
	Department  *string
}

// Update applies upd to the user with the given ID. Role changes are
// administrative only; the store validates the value, callers enforce
// who may ask.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd Update) error {
	set := bson.M{"updatedAt": "$$NOW"}
	if upd.Name != nil {
		set["name"] = bson.M{"$literal": normalize.Name(*upd.Name)}
	}
	if upd.LastName != nil {
		set["lastName"] = bson.M{"$literal": normalize.Name(*upd.LastName)}
	}
	if upd.PhoneNumber != nil {
		set["phoneNumber"] = bson.M{"$literal": normalize.Phone(*upd.PhoneNumber)}
	}
	if upd.Role != nil {
		role := models.Role(normalize.Role(string(*upd.Role)))
		if !role.Valid() {
			return errBadRole
		}
		set["role"] = role
	}
	if upd.Badge != nil {
		set["badge"] = bson.M{"$literal": *upd.Badge}
	}
	if upd.Department != nil {
		set["department"] = bson.M{"$literal": *upd.Department}
	}

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, mongo.Pipeline{
		{{Key: "$set", Value: set}},
	})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleStatus flips isActive. Deactivating soft-disables login
// without deleting the record.
func (s *Store) ToggleStatus(ctx context.Context, id primitive.ObjectID) error {
	// Pipeline update so the flip is atomic in the document.
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"isActive":  bson.M{"$not": bson.A{"$isActive"}},
			"updatedAt": "$$NOW",
		}}},
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, pipeline)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user by ID. Returns the number of documents
// deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
