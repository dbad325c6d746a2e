package engine

import "errors"

// Error kinds surfaced to callers. Every engine failure wraps one of these
// so handlers can match with errors.Is and map to a status code. None of
// them are retried by the engine itself.
var (
	// ErrNotFound means no issue exists for the given id.
	ErrNotFound = errors.New("issue not found")

	// ErrInvalidTransition means the target stage is not exactly one step
	// ahead of the current stage, or its preconditions are unmet.
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrStaleVote means the vote arrived after verification closed.
	ErrStaleVote = errors.New("voting closed for this issue")

	// ErrSelfVote means the issue creator voted on their own issue.
	ErrSelfVote = errors.New("creator cannot vote on own issue")

	// ErrConcurrentTransition means the optimistic-concurrency check failed
	// on write; the caller should re-fetch and retry.
	ErrConcurrentTransition = errors.New("concurrent transition, retry with fresh state")

	// ErrEvidence means the resolution payload is missing media or location,
	// or the location was acquired after capture began.
	ErrEvidence = errors.New("evidence rejected")

	// ErrUnroutedDepartment means the issue has no department assignment and
	// cannot progress past Verified.
	ErrUnroutedDepartment = errors.New("issue has no department assignment")

	// ErrUnauthorizedTransition means the actor's role or department does
	// not authorize the requested transition.
	ErrUnauthorizedTransition = errors.New("actor not authorized for this transition")
)
