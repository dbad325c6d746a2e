package store

import (
	"context"
	"testing"
	"time"

	"civiclens-be/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func memoryIssue(category models.IssueCategory) *models.Issue {
	now := time.Now()
	issue := &models.Issue{
		Title:     "test issue",
		Category:  category,
		CreatedBy: primitive.NewObjectID(),
		CreatedAt: now,
	}
	issue.Progress.Complete(models.StageReported, now)
	return issue
}

func TestMemoryStoreInsertAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	issue := memoryIssue(models.Street)
	require.NoError(t, s.Insert(ctx, issue))
	assert.False(t, issue.ID.IsZero())
	assert.Equal(t, int64(1), issue.Revision)

	got, err := s.Get(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, issue.Title, got.Title)

	_, err = s.Get(ctx, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUpdateCAS(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	issue := memoryIssue(models.Street)
	require.NoError(t, s.Insert(ctx, issue))

	// Two readers of the same revision: the first write wins, the second
	// loses with a revision conflict.
	first, err := s.Get(ctx, issue.ID)
	require.NoError(t, err)
	second, err := s.Get(ctx, issue.ID)
	require.NoError(t, err)

	first.Title = "first writer"
	require.NoError(t, s.Update(ctx, first))
	assert.Equal(t, int64(2), first.Revision)

	second.Title = "second writer"
	assert.ErrorIs(t, s.Update(ctx, second), ErrRevisionConflict)

	got, err := s.Get(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "first writer", got.Title)
}

func TestMemoryStoreUpdateMissing(t *testing.T) {
	s := NewMemoryStore()
	issue := memoryIssue(models.Street)
	issue.ID = primitive.NewObjectID()
	issue.Revision = 1
	assert.ErrorIs(t, s.Update(context.Background(), issue), ErrNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	issue := memoryIssue(models.Street)
	issue.Verification.Real = []primitive.ObjectID{primitive.NewObjectID()}
	require.NoError(t, s.Insert(ctx, issue))

	got, err := s.Get(ctx, issue.ID)
	require.NoError(t, err)
	got.Verification.Real = append(got.Verification.Real, primitive.NewObjectID())
	got.Title = "mutated"

	fresh, err := s.Get(ctx, issue.ID)
	require.NoError(t, err)
	assert.Len(t, fresh.Verification.Real, 1, "callers must not share ledger state with the store")
	assert.Equal(t, "test issue", fresh.Title)
}

func TestMemoryStoreList(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	street := memoryIssue(models.Street)
	street.Department = "Public Works"
	water := memoryIssue(models.Water)
	unrouted := memoryIssue(models.Other)

	require.NoError(t, s.Insert(ctx, street))
	require.NoError(t, s.Insert(ctx, water))
	require.NoError(t, s.Insert(ctx, unrouted))

	all, err := s.List(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	streets, err := s.List(ctx, Query{Category: models.Street})
	require.NoError(t, err)
	assert.Len(t, streets, 1)

	mine, err := s.List(ctx, Query{CreatedBy: water.CreatedBy})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	stuck, err := s.List(ctx, Query{Unrouted: true})
	require.NoError(t, err)
	assert.Len(t, stuck, 2)
}
