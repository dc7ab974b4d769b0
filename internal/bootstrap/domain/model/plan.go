package model

import (
	"fmt"

	apperrors "franchise-bootstrap/internal/shared/errors"
)

// Default names of the franchise deployment
const (
	DefaultDatabase = "franchise_db"
	DefaultUser     = "franchise_user"
	DefaultPassword = "franchise_password"
	RoleReadWrite   = "readWrite"

	CollectionFranchises = "franchises"
	CollectionBranches   = "branches"
	CollectionProducts   = "products"
)

// RoleGrant is a role scoped to a database
type RoleGrant struct {
	Role string `json:"role" bson:"role"`
	DB   string `json:"db" bson:"db"`
}

// UserSpec is the credential principal to create
type UserSpec struct {
	Name     string      `json:"user" bson:"user"`
	Password string      `json:"-" bson:"-"`
	Roles    []RoleGrant `json:"roles" bson:"roles"`
}

// HasRole reports whether the user holds role on db
func (u UserSpec) HasRole(role, db string) bool {
	for _, r := range u.Roles {
		if r.Role == role && r.DB == db {
			return true
		}
	}
	return false
}

// Plan is everything a bootstrap run provisions in one database
type Plan struct {
	Database    string   `json:"database"`
	User        UserSpec `json:"user"`
	Collections []string `json:"collections"`
}

// DefaultCollections are the collections of the franchise application
func DefaultCollections() []string {
	return []string{CollectionFranchises, CollectionBranches, CollectionProducts}
}

// NewPlan builds a plan whose user holds role on database only
func NewPlan(database, user, password, role string, collections []string) *Plan {
	return &Plan{
		Database: database,
		User: UserSpec{
			Name:     user,
			Password: password,
			Roles:    []RoleGrant{{Role: role, DB: database}},
		},
		Collections: append([]string(nil), collections...),
	}
}

// Validate checks the plan's own consistency. Database names are not checked
// for format; the server decides what it accepts.
func (p *Plan) Validate() error {
	ve := apperrors.NewValidationErrors()

	if p.Database == "" {
		ve.Add("database", "must be set", p.Database)
	}
	if p.User.Name == "" {
		ve.Add("user.name", "must be set", p.User.Name)
	}
	if p.User.Password == "" {
		ve.Add("user.password", "must be set", nil)
	}
	if len(p.User.Roles) == 0 {
		ve.Add("user.roles", "must grant at least one role", nil)
	}
	for i, r := range p.User.Roles {
		if r.Role == "" {
			ve.Add(fmt.Sprintf("user.roles[%d].role", i), "must be set", r)
		}
		if r.DB == "" {
			ve.Add(fmt.Sprintf("user.roles[%d].db", i), "must be set", r)
		}
	}
	if len(p.Collections) == 0 {
		ve.Add("collections", "must name at least one collection", nil)
	}
	seen := make(map[string]bool, len(p.Collections))
	for _, c := range p.Collections {
		if c == "" {
			ve.Add("collections", "must not contain empty names", c)
			continue
		}
		if seen[c] {
			ve.Add("collections", "duplicate collection name", c)
		}
		seen[c] = true
	}

	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

// CompletionMessage is the line printed once every step has succeeded
func CompletionMessage(database string) string {
	return fmt.Sprintf("Base de datos %s inicializada correctamente", database)
}
