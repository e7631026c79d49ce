package reportstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/civicwatch/civicwatch/internal/app/system/chrono"
	"github.com/civicwatch/civicwatch/internal/domain/models"
)

// All list queries return reports newest first. The filter runs
// remotely; the createdAt ordering is always applied locally. The
// backend cannot be assumed to have a composite index combining any
// of these filters with a createdAt sort, and stored timestamps
// arrive in mixed representations that a remote sort would order by
// BSON type rather than by instant. The local stable sort over
// normalized instants is load-bearing, not an optimization.
func (s *Store) find(ctx context.Context, filter bson.M) ([]models.SecurityReport, error) {
	cur, err := s.c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var reports []models.SecurityReport
	if err := cur.All(ctx, &reports); err != nil {
		return nil, err
	}
	chrono.StableDesc(reports, func(r models.SecurityReport) time.Time { return r.CreatedAt.Time })
	return reports, nil
}

// ByUser returns every report filed by the given user, newest first.
func (s *Store) ByUser(ctx context.Context, userID primitive.ObjectID) ([]models.SecurityReport, error) {
	return s.find(ctx, bson.M{"userId": userID})
}

// All returns every report, newest first.
func (s *Store) All(ctx context.Context) ([]models.SecurityReport, error) {
	return s.find(ctx, bson.M{})
}

// ByStatus returns every report in the given status, newest first.
func (s *Store) ByStatus(ctx context.Context, status models.Status) ([]models.SecurityReport, error) {
	if !status.Valid() {
		return nil, errBadStatus
	}
	return s.find(ctx, bson.M{"status": status})
}

// ByPriority returns every report with the given priority, newest first.
func (s *Store) ByPriority(ctx context.Context, priority models.Priority) ([]models.SecurityReport, error) {
	if !priority.Valid() {
		return nil, errBadPriority
	}
	return s.find(ctx, bson.M{"priority": priority})
}

// ByCategory returns every report in the given category, newest first.
func (s *Store) ByCategory(ctx context.Context, category models.Category) ([]models.SecurityReport, error) {
	if !category.Valid() {
		return nil, errBadCategory
	}
	return s.find(ctx, bson.M{"category": category})
}

// Recent returns the newest limit reports. The truncation happens
// after the local sort for the same reason the sort itself is local.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.SecurityReport, error) {
	reports, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	if limit >= 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

// CriticalPending returns unhandled critical reports, newest first.
func (s *Store) CriticalPending(ctx context.Context) ([]models.SecurityReport, error) {
	return s.find(ctx, bson.M{
		"priority": models.PriorityCritical,
		"status":   models.StatusPending,
	})
}

// UnknownOfficer is the display name used when an assigned officer
// cannot be resolved.
const UnknownOfficer = "Unknown officer"

// AssignedReport pairs a report with the display name of its
// assigned officer, when it has one.
type AssignedReport struct {
	models.SecurityReport
	AssignedToName string
}

// WithAssigneeNames decorates reports with the full name of their
// assigned officer. Each distinct officer is looked up once. A
// lookup that fails or finds nothing degrades that report's name to
// UnknownOfficer instead of failing the whole batch; unassigned
// reports keep an empty name.
func (s *Store) WithAssigneeNames(ctx context.Context, reports []models.SecurityReport) []AssignedReport {
	names := make(map[primitive.ObjectID]string)
	out := make([]AssignedReport, 0, len(reports))

	for _, r := range reports {
		ar := AssignedReport{SecurityReport: r}
		if r.AssignedTo != nil {
			name, ok := names[*r.AssignedTo]
			if !ok {
				name = UnknownOfficer
				if u, err := s.users.GetByID(ctx, *r.AssignedTo); err == nil && u != nil {
					name = u.FullName()
				}
				names[*r.AssignedTo] = name
			}
			ar.AssignedToName = name
		}
		out = append(out, ar)
	}
	return out
}
