package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"civiclens-be/models"
	"civiclens-be/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// castVoteRetries bounds the CAS retry loop for votes. Votes are idempotent
// set replacements, so replaying a lost race is safe; transitions are not
// retried and surface ErrConcurrentTransition instead.
const castVoteRetries = 3

// Service is the authoritative engine for the issue lifecycle. All
// mutations of an issue flow through it; reads go through the projector so
// every caller derives status identically.
type Service struct {
	store  store.IssueStore
	quorum QuorumConfig
	router *DepartmentRouter
	now    func() time.Time
}

func NewService(issueStore store.IssueStore, quorum QuorumConfig, router *DepartmentRouter) *Service {
	return &Service{
		store:  issueStore,
		quorum: quorum,
		router: router,
		now:    time.Now,
	}
}

// Quorum exposes the configured thresholds for read-side display.
func (s *Service) Quorum() QuorumConfig { return s.quorum }

// Router exposes the department reference data.
func (s *Service) Router() *DepartmentRouter { return s.router }

// CreateIssueInput carries everything the reporting flow captured.
type CreateIssueInput struct {
	Title       string
	Description string
	Category    models.IssueCategory
	CreatedBy   primitive.ObjectID
	Location    models.Coordinate
	ReportMedia models.MediaRef
}

// CreateIssue seeds the aggregate: the Reported stage is completed at
// creation and immutable thereafter, and the department is assigned by the
// router. An unserviced category leaves the issue unrouted.
func (s *Service) CreateIssue(ctx context.Context, in CreateIssueInput) (*models.Issue, error) {
	if !models.ValidCategory(in.Category) {
		return nil, fmt.Errorf("invalid category %q", in.Category)
	}
	now := s.now()
	issue := &models.Issue{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		CreatedBy:   in.CreatedBy,
		Location:    in.Location,
		ReportMedia: in.ReportMedia,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	issue.Progress.Complete(models.StageReported, now)

	if department, ok := s.router.Assign(in.Category); ok {
		issue.Department = department.Name
	} else {
		log.Printf("issue for category %s left unrouted", in.Category)
	}

	if err := s.store.Insert(ctx, issue); err != nil {
		return nil, fmt.Errorf("insert issue: %w", err)
	}
	return issue, nil
}

// CastVote records a citizen verdict on an issue. The ledger update is a
// set replacement keyed by user id, so a retried request is a no-op rather
// than a duplicate. Lost CAS races are replayed on fresh state.
func (s *Service) CastVote(ctx context.Context, issueID, userID primitive.ObjectID, verdict models.Verdict) (*models.VerificationLedger, error) {
	var lastErr error
	for attempt := 0; attempt < castVoteRetries; attempt++ {
		issue, err := s.getIssue(ctx, issueID)
		if err != nil {
			return nil, err
		}

		changed, err := castVote(issue, userID, verdict)
		if err != nil {
			return nil, err
		}
		if !changed {
			return &issue.Verification, nil
		}

		issue.UpdatedAt = s.now()
		err = s.store.Update(ctx, issue)
		if err == nil {
			return &issue.Verification, nil
		}
		if !errors.Is(err, store.ErrRevisionConflict) {
			return nil, fmt.Errorf("save vote: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrConcurrentTransition, lastErr)
}

// AdvanceRequest names the transition a caller wants.
type AdvanceRequest struct {
	Target models.Stage
	Actor  Actor
	// Override marks an explicit, audited admin override of the normal
	// preconditions.
	Override bool
	// Evidence is required when Target is Resolved.
	Evidence *EvidencePayload
}

// Advance is the sole mutator of an issue's progress. The target stage must
// be exactly one step past the current one, and each transition re-checks
// its preconditions; a request that fails never changes state. Writes go
// through the store's revision CAS, so a racing transition loses with
// ErrConcurrentTransition rather than being merged.
func (s *Service) Advance(ctx context.Context, issueID primitive.ObjectID, req AdvanceRequest) (*models.Issue, error) {
	issue, err := s.getIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	// At-least-once uploads: a replayed Resolved request carrying the same
	// idempotency key as the stored resolution is answered with the current
	// state instead of a second resolution.
	if req.Target == models.StageResolved &&
		issue.Progress.Resolved.Completed &&
		issue.Resolution != nil &&
		req.Evidence != nil &&
		req.Evidence.IdempotencyKey != "" &&
		req.Evidence.IdempotencyKey == issue.Resolution.IdempotencyKey {
		return issue, nil
	}

	if err := checkStep(&issue.Progress, req.Target); err != nil {
		return nil, err
	}

	now := s.now()
	switch req.Target {
	case models.StageVerified:
		if !QuorumReached(&issue.Verification, s.quorum) {
			if req.Actor.Role != models.RoleAdmin || !req.Override {
				return nil, fmt.Errorf("%w: quorum not reached (%d real, net %d)",
					ErrInvalidTransition, len(issue.Verification.Real), issue.Verification.NetCredibility())
			}
			log.Printf("audit: admin %s verified issue %s without quorum", req.Actor.ID.Hex(), issue.ID.Hex())
		}

	case models.StageInProgress:
		if issue.Department == "" {
			return nil, fmt.Errorf("%w: issue %s", ErrUnroutedDepartment, issue.ID.Hex())
		}
		if err := s.router.Authorize(req.Actor, issue, req.Override); err != nil {
			return nil, err
		}

	case models.StageResolved:
		if issue.Department == "" {
			return nil, fmt.Errorf("%w: issue %s", ErrUnroutedDepartment, issue.ID.Hex())
		}
		if err := s.router.Authorize(req.Actor, issue, req.Override); err != nil {
			return nil, err
		}
		if err := ValidateEvidence(req.Evidence); err != nil {
			return nil, err
		}
		issue.Resolution = &models.Resolution{
			Media:              req.Evidence.Media,
			Location:           req.Evidence.Location,
			LocationAcquiredAt: req.Evidence.LocationAcquiredAt,
			WorkerID:           req.Actor.ID,
			Timestamp:          now,
			IdempotencyKey:     req.Evidence.IdempotencyKey,
		}

	default:
		return nil, fmt.Errorf("%w: cannot advance to %s", ErrInvalidTransition, req.Target)
	}

	issue.Progress.Complete(req.Target, now)
	issue.UpdatedAt = now

	if err := s.store.Update(ctx, issue); err != nil {
		if errors.Is(err, store.ErrRevisionConflict) {
			return nil, fmt.Errorf("%w: issue %s", ErrConcurrentTransition, issue.ID.Hex())
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("save transition: %w", err)
	}
	return issue, nil
}

// ReassignDepartment moves a wrongly-routed issue to another configured
// department. Admin only; audited.
func (s *Service) ReassignDepartment(ctx context.Context, issueID primitive.ObjectID, actor Actor, department string) (*models.Issue, error) {
	if actor.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins may reassign departments", ErrUnauthorizedTransition)
	}
	if !s.router.Known(department) {
		return nil, fmt.Errorf("unknown department %q", department)
	}

	issue, err := s.getIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue.Department == department {
		return issue, nil
	}

	issue.Department = department
	issue.UpdatedAt = s.now()
	if err := s.store.Update(ctx, issue); err != nil {
		if errors.Is(err, store.ErrRevisionConflict) {
			return nil, fmt.Errorf("%w: issue %s", ErrConcurrentTransition, issue.ID.Hex())
		}
		return nil, fmt.Errorf("save reassignment: %w", err)
	}
	log.Printf("audit: admin %s reassigned issue %s to %q", actor.ID.Hex(), issue.ID.Hex(), department)
	return issue, nil
}

// GetIssue returns one issue or ErrNotFound.
func (s *Service) GetIssue(ctx context.Context, issueID primitive.ObjectID) (*models.Issue, error) {
	return s.getIssue(ctx, issueID)
}

// ListFilter narrows and orders ListIssues output. Status filtering happens
// on the canonical projector label, never on stored state.
type ListFilter struct {
	Status   models.Stage
	Category models.IssueCategory
	Search   string
	Sort     SortKey
}

// ListIssues fetches candidates from the store and applies the projector's
// canonical filter and sort.
func (s *Service) ListIssues(ctx context.Context, filter ListFilter) ([]models.Issue, error) {
	issues, err := s.store.List(ctx, store.Query{Category: filter.Category})
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	if filter.Status != "" {
		issues = FilterByStatus(issues, filter.Status)
	}
	if filter.Search != "" {
		issues = FilterByText(issues, filter.Search)
	}
	return Sort(issues, filter.Sort), nil
}

// IssuesByCreator lists the issues a user reported, newest first.
func (s *Service) IssuesByCreator(ctx context.Context, userID primitive.ObjectID) ([]models.Issue, error) {
	issues, err := s.store.List(ctx, store.Query{CreatedBy: userID})
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return Sort(issues, SortNewest), nil
}

// UnroutedIssues lists issues no department services. Admin only: these are
// stalled at Verified until an admin reassigns them.
func (s *Service) UnroutedIssues(ctx context.Context, actor Actor) ([]models.Issue, error) {
	if actor.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: unrouted queue is admin only", ErrUnauthorizedTransition)
	}
	issues, err := s.store.List(ctx, store.Query{Unrouted: true})
	if err != nil {
		return nil, fmt.Errorf("list unrouted issues: %w", err)
	}
	return Sort(issues, SortNewest), nil
}

func (s *Service) getIssue(ctx context.Context, issueID primitive.ObjectID) (*models.Issue, error) {
	issue, err := s.store.Get(ctx, issueID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load issue: %w", err)
	}
	return issue, nil
}
