package engine

import (
	"fmt"

	"civiclens-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// QuorumConfig holds the deployment-configured thresholds that promote an
// issue from Reported to Verified. There is no hard-coded quorum.
type QuorumConfig struct {
	MinVotes  int
	MinMargin int
}

// QuorumReached is true when enough citizens vouched for the report and the
// real votes outweigh the fake ones by the configured margin.
func QuorumReached(l *models.VerificationLedger, cfg QuorumConfig) bool {
	return len(l.Real) >= cfg.MinVotes && l.NetCredibility() >= cfg.MinMargin
}

// castVote applies a vote to the issue's ledger after checking the voting
// preconditions. Repeating the same verdict is a no-op, not an error.
func castVote(issue *models.Issue, userID primitive.ObjectID, verdict models.Verdict) (changed bool, err error) {
	if userID == issue.CreatedBy {
		return false, ErrSelfVote
	}
	if issue.Progress.Verified.Completed {
		return false, fmt.Errorf("%w: issue already verified", ErrStaleVote)
	}
	if verdict != models.VerdictReal && verdict != models.VerdictFake {
		return false, fmt.Errorf("invalid verdict %q", verdict)
	}
	return issue.Verification.Cast(userID, verdict), nil
}
