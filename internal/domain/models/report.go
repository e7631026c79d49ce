// internal/domain/models/report.go
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/civicwatch/civicwatch/internal/app/system/chrono"
)

// Category classifies what kind of incident a report describes.
type Category string

const (
	CategoryTheft      Category = "theft"
	CategoryViolence   Category = "violence"
	CategoryAccident   Category = "accident"
	CategorySuspicious Category = "suspicious"
	CategoryOther      Category = "other"
)

// Categories returns every valid category in a fixed order.
func Categories() []Category {
	return []Category{CategoryTheft, CategoryViolence, CategoryAccident, CategorySuspicious, CategoryOther}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryTheft, CategoryViolence, CategoryAccident, CategorySuspicious, CategoryOther:
		return true
	}
	return false
}

// Priority ranks how urgently a report needs attention.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Priorities returns every valid priority in a fixed order.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Status tracks a report through its lifecycle.
//
// The guaranteed graph is pending → in_progress → resolved.
// closed is an administrative override reachable from any
// non-resolved state and is terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// Statuses returns every valid status in a fixed order.
func Statuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusResolved, StatusClosed}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Location is where an incident happened.
type Location struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
	Address   string  `bson:"address,omitempty" json:"address,omitempty"`
}

// SecurityReport is a citizen-filed incident record.
//
// The camelCase field names are read by other clients of the same
// database; do not rename them.
//
// AssignedTo, when present, references a user whose role is not
// citizen. ResolvedAt is stamped exactly once, when the status first
// transitions into resolved.
type SecurityReport struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID  `bson:"userId" json:"userId"`
	UserEmail   string              `bson:"userEmail" json:"userEmail"`
	UserName    string              `bson:"userName" json:"userName"`
	Title       string              `bson:"title" json:"title"`
	Description string              `bson:"description" json:"description"`
	Category    Category            `bson:"category" json:"category"`
	Priority    Priority            `bson:"priority" json:"priority"`
	Status      Status              `bson:"status" json:"status"`
	Location    Location            `bson:"location" json:"location"`
	Images      []string            `bson:"images,omitempty" json:"images,omitempty"`
	AssignedTo  *primitive.ObjectID `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	Notes       string              `bson:"notes,omitempty" json:"notes,omitempty"`

	ResolvedAt *chrono.Time `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
	CreatedAt  chrono.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt  chrono.Time  `bson:"updatedAt" json:"updatedAt"`
}
