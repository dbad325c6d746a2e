package store

import (
	"context"
	"errors"

	"civiclens-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound keeps storage 404s consistent across implementations.
	ErrNotFound = errors.New("store: issue not found")

	// ErrRevisionConflict signals a lost optimistic-concurrency race: the
	// issue was written by someone else since it was read.
	ErrRevisionConflict = errors.New("store: revision conflict")
)

// Query narrows List to storage-level fields. Status is deliberately absent:
// status is derived, never persisted, and filtered by the projector.
type Query struct {
	Category  models.IssueCategory
	CreatedBy primitive.ObjectID
	Unrouted  bool
}

// IssueStore persists issue aggregates. Update is a compare-and-swap on the
// revision counter: it succeeds only when the stored revision equals the
// one the caller read, and increments it on success.
type IssueStore interface {
	Insert(ctx context.Context, issue *models.Issue) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	Update(ctx context.Context, issue *models.Issue) error
	List(ctx context.Context, q Query) ([]models.Issue, error)
}
