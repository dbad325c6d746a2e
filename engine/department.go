package engine

import (
	"fmt"
	"log"

	"civiclens-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Actor is the authenticated caller of an engine operation, passed in
// explicitly with every call rather than read from ambient state.
type Actor struct {
	ID         primitive.ObjectID
	Role       models.Role
	Department string
}

// DepartmentRouter maps categories to responsible departments. The slice
// order is the configured priority: when several departments service a
// category the first one wins.
type DepartmentRouter struct {
	departments []models.Department
}

func NewDepartmentRouter(departments []models.Department) *DepartmentRouter {
	return &DepartmentRouter{departments: departments}
}

// Departments returns the configured reference list.
func (r *DepartmentRouter) Departments() []models.Department {
	return r.departments
}

// Assign picks the department for a category. ok is false when no
// configured department services it, in which case the issue stays
// unrouted and cannot progress past Verified.
func (r *DepartmentRouter) Assign(category models.IssueCategory) (models.Department, bool) {
	for _, d := range r.departments {
		if d.Services(category) {
			return d, true
		}
	}
	return models.Department{}, false
}

// Known reports whether name is a configured department.
func (r *DepartmentRouter) Known(name string) bool {
	for _, d := range r.departments {
		if d.Name == name {
			return true
		}
	}
	return false
}

// Authorize checks that the actor may advance the issue. Department workers
// and heads may only touch issues routed to their own department. Admins
// may advance any issue, but only with the explicit override flag, and the
// override is audited.
func (r *DepartmentRouter) Authorize(actor Actor, issue *models.Issue, override bool) error {
	switch actor.Role {
	case models.RoleAdmin:
		if !override {
			return fmt.Errorf("%w: admin must set override to act outside quorum rules", ErrUnauthorizedTransition)
		}
		log.Printf("audit: admin %s override on issue %s", actor.ID.Hex(), issue.ID.Hex())
		return nil
	case models.RoleDepartmentWorker, models.RoleDepartmentHead:
		if actor.Department != issue.Department {
			return fmt.Errorf("%w: issue belongs to %q, actor belongs to %q",
				ErrUnauthorizedTransition, issue.Department, actor.Department)
		}
		return nil
	default:
		return fmt.Errorf("%w: role %s cannot advance issues", ErrUnauthorizedTransition, actor.Role)
	}
}
