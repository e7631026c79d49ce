// internal/domain/models/user.go
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/civicwatch/civicwatch/internal/app/system/chrono"
)

// Role identifies what a user is allowed to do with reports.
// Citizens file reports; every other role responds to them.
type Role string

const (
	RoleCitizen            Role = "citizen"
	RolePoliceOfficer      Role = "police_officer"
	RoleSecurityGuard      Role = "security_guard"
	RoleEmergencyResponder Role = "emergency_responder"
	RoleAdmin              Role = "admin"
)

// Roles returns every valid role in a fixed order.
func Roles() []Role {
	return []Role{RoleCitizen, RolePoliceOfficer, RoleSecurityGuard, RoleEmergencyResponder, RoleAdmin}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RolePoliceOfficer, RoleSecurityGuard, RoleEmergencyResponder, RoleAdmin:
		return true
	}
	return false
}

// Responder reports whether r may be assigned to reports.
// Citizens create reports but never respond to them.
func (r Role) Responder() bool {
	return r.Valid() && r != RoleCitizen
}

// User is a directory profile for an authenticated account.
//
// The camelCase field names are read by other clients of the same
// database; do not rename them.
//
// IsActive=false soft-disables login without deleting the record.
type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email       string             `bson:"email" json:"email"`
	Name        string             `bson:"name" json:"name"`
	LastName    string             `bson:"lastName" json:"lastName"`
	PhoneNumber string             `bson:"phoneNumber,omitempty" json:"phoneNumber,omitempty"`
	Role        Role               `bson:"role" json:"role"`
	Badge       string             `bson:"badge,omitempty" json:"badge,omitempty"`
	Department  string             `bson:"department,omitempty" json:"department,omitempty"`
	IsActive    bool               `bson:"isActive" json:"isActive"`

	CreatedAt chrono.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt chrono.Time `bson:"updatedAt" json:"updatedAt"`
}

// FullName joins the first and last name for display.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.Name
	}
	return u.Name + " " + u.LastName
}
