package engine

import (
	"context"
	"testing"
	"time"

	"civiclens-be/models"
	"civiclens-be/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	memory := store.NewMemoryStore()
	router := NewDepartmentRouter([]models.Department{
		{Name: "Public Works", Categories: []models.IssueCategory{models.Street}},
		{Name: "Water Board", Categories: []models.IssueCategory{models.Water}},
		{Name: "Sanitation", Categories: []models.IssueCategory{models.Sanitation}},
	})
	return NewService(memory, QuorumConfig{MinVotes: 3, MinMargin: 2}, router), memory
}

func createStreetIssue(t *testing.T, svc *Service) *models.Issue {
	t.Helper()
	issue, err := svc.CreateIssue(context.Background(), CreateIssueInput{
		Title:       "Pothole on 5th Avenue",
		Description: "Deep pothole damaging vehicles",
		Category:    models.Street,
		CreatedBy:   primitive.NewObjectID(),
		Location:    models.Coordinate{Latitude: 12.97, Longitude: 77.59},
		ReportMedia: models.MediaRef{URL: "https://media.example/report.mp4", CapturedAt: time.Now()},
	})
	require.NoError(t, err)
	return issue
}

func voteToQuorum(t *testing.T, svc *Service, issueID primitive.ObjectID) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := svc.CastVote(ctx, issueID, primitive.NewObjectID(), models.VerdictReal)
		require.NoError(t, err)
	}
	_, err := svc.CastVote(ctx, issueID, primitive.NewObjectID(), models.VerdictFake)
	require.NoError(t, err)
}

func TestCreateIssueSeedsReportedAndRoutes(t *testing.T) {
	svc, _ := newTestService(t)
	issue := createStreetIssue(t, svc)

	assert.True(t, issue.Progress.Reported.Completed)
	require.NotNil(t, issue.Progress.Reported.Date)
	assert.Equal(t, "Public Works", issue.Department)
	assert.Equal(t, models.StageReported, StatusLabel(issue))
}

func TestCreateIssueUnroutedCategory(t *testing.T) {
	svc, _ := newTestService(t)
	issue, err := svc.CreateIssue(context.Background(), CreateIssueInput{
		Title:       "Sparking transformer",
		Description: "Transformer sparking at night",
		Category:    models.Electricity,
		CreatedBy:   primitive.NewObjectID(),
		Location:    models.Coordinate{Latitude: 1, Longitude: 1},
		ReportMedia: models.MediaRef{URL: "https://media.example/t.mp4", CapturedAt: time.Now()},
	})
	require.NoError(t, err)
	assert.Empty(t, issue.Department)

	// Unrouted issues appear in the admin queue and stall past Verified.
	admin := Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin}
	unrouted, err := svc.UnroutedIssues(context.Background(), admin)
	require.NoError(t, err)
	require.Len(t, unrouted, 1)

	citizen := Actor{ID: primitive.NewObjectID(), Role: models.RoleCitizen}
	_, err = svc.UnroutedIssues(context.Background(), citizen)
	assert.ErrorIs(t, err, ErrUnauthorizedTransition)

	_, err = svc.Advance(context.Background(), issue.ID, AdvanceRequest{
		Target: models.StageVerified, Actor: admin, Override: true,
	})
	require.NoError(t, err)
	_, err = svc.Advance(context.Background(), issue.ID, AdvanceRequest{
		Target: models.StageInProgress, Actor: admin, Override: true,
	})
	assert.ErrorIs(t, err, ErrUnroutedDepartment)
}

func TestQuorumScenario(t *testing.T) {
	// Five real votes, one fake, quorum {3,2}: quorum reached, Verified
	// advance succeeds for a plain caller.
	svc, _ := newTestService(t)
	issue := createStreetIssue(t, svc)
	voteToQuorum(t, svc, issue.ID)

	system := Actor{ID: primitive.NewObjectID(), Role: models.RoleCitizen}
	advanced, err := svc.Advance(context.Background(), issue.ID, AdvanceRequest{
		Target: models.StageVerified, Actor: system,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StageVerified, StatusLabel(advanced))

	// Voting is closed now.
	_, err = svc.CastVote(context.Background(), issue.ID, primitive.NewObjectID(), models.VerdictReal)
	assert.ErrorIs(t, err, ErrStaleVote)
}

func TestVerifyWithoutQuorum(t *testing.T) {
	svc, _ := newTestService(t)
	issue := createStreetIssue(t, svc)

	citizen := Actor{ID: primitive.NewObjectID(), Role: models.RoleCitizen}
	_, err := svc.Advance(context.Background(), issue.ID, AdvanceRequest{
		Target: models.StageVerified, Actor: citizen,
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Admin override is the only bypass.
	admin := Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin}
	_, err = svc.Advance(context.Background(), issue.ID, AdvanceRequest{
		Target: models.StageVerified, Actor: admin,
	})
	assert.ErrorIs(t, err, ErrInvalidTransition, "admin without override follows quorum rules")

	advanced, err := svc.Advance(context.Background(), issue.ID, AdvanceRequest{
		Target: models.StageVerified, Actor: admin, Override: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StageVerified, StatusLabel(advanced))
}

func TestDepartmentMismatchScenario(t *testing.T) {
	svc, _ := newTestService(t)
	issue := createStreetIssue(t, svc)
	voteToQuorum(t, svc, issue.ID)

	_, err := svc.Advance(context.Background(), issue.ID, AdvanceRequest{
		Target: models.StageVerified, Actor: Actor{ID: primitive.NewObjectID(), Role: models.RoleCitizen},
	})
	require.NoError(t, err)

	sanitationWorker := Actor{ID: primitive.NewObjectID(), Role: models.RoleDepartmentWorker, Department: "Sanitation"}
	_, err = svc.Advance(context.Background(), issue.ID, AdvanceRequest{
		Target: models.StageInProgress, Actor: sanitationWorker,
	})
	assert.ErrorIs(t, err, ErrUnauthorizedTransition)
}

func TestResolutionScenario(t *testing.T) {
	svc, _ := newTestService(t)
	issue := createStreetIssue(t, svc)
	voteToQuorum(t, svc, issue.ID)
	ctx := context.Background()

	_, err := svc.Advance(ctx, issue.ID, AdvanceRequest{
		Target: models.StageVerified, Actor: Actor{ID: primitive.NewObjectID(), Role: models.RoleCitizen},
	})
	require.NoError(t, err)

	worker := Actor{ID: primitive.NewObjectID(), Role: models.RoleDepartmentWorker, Department: "Public Works"}
	_, err = svc.Advance(ctx, issue.ID, AdvanceRequest{Target: models.StageInProgress, Actor: worker})
	require.NoError(t, err)

	// Location acquired after capture: rejected.
	captured := time.Now()
	bad := &EvidencePayload{
		Media:              models.MediaRef{URL: "https://media.example/fix.mp4", CapturedAt: captured},
		Location:           models.Coordinate{Latitude: 12.97, Longitude: 77.59},
		LocationAcquiredAt: captured.Add(time.Minute),
		IdempotencyKey:     issue.ID.Hex() + ":Resolved",
	}
	_, err = svc.Advance(ctx, issue.ID, AdvanceRequest{Target: models.StageResolved, Actor: worker, Evidence: bad})
	assert.ErrorIs(t, err, ErrEvidence)

	current, err := svc.GetIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Nil(t, current.Resolution, "rejected evidence must not be recorded")
	assert.Equal(t, models.StageInProgress, StatusLabel(current))

	// Corrected ordering succeeds.
	good := *bad
	good.LocationAcquiredAt = captured.Add(-time.Minute)
	resolved, err := svc.Advance(ctx, issue.ID, AdvanceRequest{Target: models.StageResolved, Actor: worker, Evidence: &good})
	require.NoError(t, err)
	assert.Equal(t, models.StageResolved, StatusLabel(resolved))
	require.NotNil(t, resolved.Resolution)
	assert.Equal(t, worker.ID, resolved.Resolution.WorkerID)
	require.NotNil(t, resolved.Progress.Resolved.Date)

	// Stage dates never decrease.
	p := resolved.Progress
	assert.False(t, p.Verified.Date.Before(*p.Reported.Date))
	assert.False(t, p.InProgress.Date.Before(*p.Verified.Date))
	assert.False(t, p.Resolved.Date.Before(*p.InProgress.Date))
}

func TestResolutionReplayIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	issue := createStreetIssue(t, svc)
	voteToQuorum(t, svc, issue.ID)
	ctx := context.Background()

	_, err := svc.Advance(ctx, issue.ID, AdvanceRequest{
		Target: models.StageVerified, Actor: Actor{ID: primitive.NewObjectID(), Role: models.RoleCitizen},
	})
	require.NoError(t, err)

	worker := Actor{ID: primitive.NewObjectID(), Role: models.RoleDepartmentWorker, Department: "Public Works"}
	_, err = svc.Advance(ctx, issue.ID, AdvanceRequest{Target: models.StageInProgress, Actor: worker})
	require.NoError(t, err)

	captured := time.Now()
	evidence := &EvidencePayload{
		Media:              models.MediaRef{URL: "https://media.example/fix.mp4", CapturedAt: captured},
		Location:           models.Coordinate{Latitude: 12.97, Longitude: 77.59},
		LocationAcquiredAt: captured.Add(-time.Minute),
		IdempotencyKey:     issue.ID.Hex() + ":Resolved",
	}
	first, err := svc.Advance(ctx, issue.ID, AdvanceRequest{Target: models.StageResolved, Actor: worker, Evidence: evidence})
	require.NoError(t, err)

	// The retried upload answers with current state, not a second resolution.
	replay, err := svc.Advance(ctx, issue.ID, AdvanceRequest{Target: models.StageResolved, Actor: worker, Evidence: evidence})
	require.NoError(t, err)
	assert.Equal(t, first.Resolution.Timestamp, replay.Resolution.Timestamp)

	// A different key is a genuine double-resolve and fails.
	other := *evidence
	other.IdempotencyKey = "different"
	_, err = svc.Advance(ctx, issue.ID, AdvanceRequest{Target: models.StageResolved, Actor: worker, Evidence: &other})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

// conflictingStore forces one revision conflict per configured count to
// exercise the CAS paths without real concurrency.
type conflictingStore struct {
	*store.MemoryStore
	conflicts int
}

func (s *conflictingStore) Update(ctx context.Context, issue *models.Issue) error {
	if s.conflicts > 0 {
		s.conflicts--
		return store.ErrRevisionConflict
	}
	return s.MemoryStore.Update(ctx, issue)
}

func TestAdvanceConcurrentTransition(t *testing.T) {
	memory := store.NewMemoryStore()
	conflicted := &conflictingStore{MemoryStore: memory}
	router := NewDepartmentRouter(testDepartments())
	svc := NewService(conflicted, QuorumConfig{MinVotes: 1, MinMargin: 1}, router)
	ctx := context.Background()

	issue := createStreetIssue(t, svc)
	_, err := svc.CastVote(ctx, issue.ID, primitive.NewObjectID(), models.VerdictReal)
	require.NoError(t, err)
	conflicted.conflicts = 1

	// First committed write wins; the loser surfaces the conflict.
	_, err = svc.Advance(ctx, issue.ID, AdvanceRequest{
		Target: models.StageVerified, Actor: Actor{ID: primitive.NewObjectID(), Role: models.RoleCitizen},
	})
	assert.ErrorIs(t, err, ErrConcurrentTransition)

	// The caller re-fetches and retries.
	_, err = svc.Advance(ctx, issue.ID, AdvanceRequest{
		Target: models.StageVerified, Actor: Actor{ID: primitive.NewObjectID(), Role: models.RoleCitizen},
	})
	require.NoError(t, err)
}

func TestCastVoteRetriesLostRaces(t *testing.T) {
	memory := store.NewMemoryStore()
	conflicted := &conflictingStore{MemoryStore: memory, conflicts: 2}
	router := NewDepartmentRouter(testDepartments())
	svc := NewService(conflicted, QuorumConfig{MinVotes: 3, MinMargin: 2}, router)

	issue := createStreetIssue(t, svc)
	ledger, err := svc.CastVote(context.Background(), issue.ID, primitive.NewObjectID(), models.VerdictReal)
	require.NoError(t, err, "votes replay lost CAS races on fresh state")
	assert.Len(t, ledger.Real, 1)
}

func TestReassignDepartment(t *testing.T) {
	svc, _ := newTestService(t)
	issue := createStreetIssue(t, svc)
	ctx := context.Background()

	admin := Actor{ID: primitive.NewObjectID(), Role: models.RoleAdmin}
	reassigned, err := svc.ReassignDepartment(ctx, issue.ID, admin, "Water Board")
	require.NoError(t, err)
	assert.Equal(t, "Water Board", reassigned.Department)

	_, err = svc.ReassignDepartment(ctx, issue.ID, admin, "Parks")
	assert.Error(t, err)

	worker := Actor{ID: primitive.NewObjectID(), Role: models.RoleDepartmentWorker, Department: "Water Board"}
	_, err = svc.ReassignDepartment(ctx, issue.ID, worker, "Sanitation")
	assert.ErrorIs(t, err, ErrUnauthorizedTransition)
}

func TestGetIssueNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetIssue(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListIssuesCanonicalFilter(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first := createStreetIssue(t, svc)
	createStreetIssue(t, svc)
	voteToQuorum(t, svc, first.ID)
	_, err := svc.Advance(ctx, first.ID, AdvanceRequest{
		Target: models.StageVerified, Actor: Actor{ID: primitive.NewObjectID(), Role: models.RoleCitizen},
	})
	require.NoError(t, err)

	verified, err := svc.ListIssues(ctx, ListFilter{Status: models.StageVerified})
	require.NoError(t, err)
	require.Len(t, verified, 1)
	assert.Equal(t, first.ID, verified[0].ID)

	reported, err := svc.ListIssues(ctx, ListFilter{Status: models.StageReported})
	require.NoError(t, err)
	assert.Len(t, reported, 1)

	all, err := svc.ListIssues(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
