package reportstore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/civicwatch/civicwatch/internal/domain/models"
)

// Statistics holds report counts bucketed by each enum dimension.
// Every enum value is present as a key even when its count is zero,
// so dashboards can iterate the maps without nil checks.
type Statistics struct {
	Total      int64
	ByStatus   map[models.Status]int64
	ByPriority map[models.Priority]int64
	ByCategory map[models.Category]int64
}

// Statistics runs a full-scan aggregation over the collection and
// returns counts per status, priority, and category.
func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	stats := Statistics{
		ByStatus:   make(map[models.Status]int64, len(models.Statuses())),
		ByPriority: make(map[models.Priority]int64, len(models.Priorities())),
		ByCategory: make(map[models.Category]int64, len(models.Categories())),
	}
	for _, v := range models.Statuses() {
		stats.ByStatus[v] = 0
	}
	for _, v := range models.Priorities() {
		stats.ByPriority[v] = 0
	}
	for _, v := range models.Categories() {
		stats.ByCategory[v] = 0
	}

	pipeline := []bson.M{
		{"$facet": bson.M{
			"status":   []bson.M{{"$group": bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
			"priority": []bson.M{{"$group": bson.M{"_id": "$priority", "count": bson.M{"$sum": 1}}}},
			"category": []bson.M{{"$group": bson.M{"_id": "$category", "count": bson.M{"$sum": 1}}}},
		}},
	}

	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return Statistics{}, err
	}
	defer cur.Close(ctx)

	type bucket struct {
		ID    string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	var facets []struct {
		Status   []bucket `bson:"status"`
		Priority []bucket `bson:"priority"`
		Category []bucket `bson:"category"`
	}
	if err := cur.All(ctx, &facets); err != nil {
		return Statistics{}, err
	}
	if len(facets) == 0 {
		return stats, nil
	}

	for _, b := range facets[0].Status {
		stats.ByStatus[models.Status(b.ID)] = b.Count
		stats.Total += b.Count
	}
	for _, b := range facets[0].Priority {
		stats.ByPriority[models.Priority(b.ID)] = b.Count
	}
	for _, b := range facets[0].Category {
		stats.ByCategory[models.Category(b.ID)] = b.Count
	}
	return stats, nil
}
