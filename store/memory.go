package store

import (
	"context"
	"sync"
	"time"

	"civiclens-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore keeps issues in a map guarded by a RWMutex. It backs the
// engine tests and favors clarity over performance.
type MemoryStore struct {
	mu     sync.RWMutex
	issues map[primitive.ObjectID]models.Issue
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{issues: make(map[primitive.ObjectID]models.Issue)}
}

func (s *MemoryStore) Insert(_ context.Context, issue *models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	issue.Revision = 1
	s.issues[issue.ID] = cloneIssue(*issue)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id primitive.ObjectID) (*models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneIssue(stored)
	return &out, nil
}

func (s *MemoryStore) Update(_ context.Context, issue *models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.issues[issue.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Revision != issue.Revision {
		return ErrRevisionConflict
	}
	issue.Revision++
	s.issues[issue.ID] = cloneIssue(*issue)
	return nil
}

func (s *MemoryStore) List(_ context.Context, q Query) ([]models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Issue, 0, len(s.issues))
	for _, issue := range s.issues {
		if q.Category != "" && issue.Category != q.Category {
			continue
		}
		if !q.CreatedBy.IsZero() && issue.CreatedBy != q.CreatedBy {
			continue
		}
		if q.Unrouted && issue.Department != "" {
			continue
		}
		out = append(out, cloneIssue(issue))
	}
	return out, nil
}

// cloneIssue deep-copies the slice and pointer fields so callers never
// share ledger or resolution state with the map.
func cloneIssue(in models.Issue) models.Issue {
	out := in
	out.Verification.Real = append([]primitive.ObjectID(nil), in.Verification.Real...)
	out.Verification.Fake = append([]primitive.ObjectID(nil), in.Verification.Fake...)
	if in.Resolution != nil {
		res := *in.Resolution
		out.Resolution = &res
	}
	out.Progress = cloneProgress(in.Progress)
	return out
}

func cloneProgress(in models.ProgressRecord) models.ProgressRecord {
	out := in
	out.Reported.Date = cloneTime(in.Reported.Date)
	out.Verified.Date = cloneTime(in.Verified.Date)
	out.InProgress.Date = cloneTime(in.InProgress.Date)
	out.Resolved.Date = cloneTime(in.Resolved.Date)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
