package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueCategory enum
type IssueCategory string

const (
	Street      IssueCategory = "Street"
	Water       IssueCategory = "Water"
	Electricity IssueCategory = "Electricity"
	Sanitation  IssueCategory = "Sanitation"
	Other       IssueCategory = "Other"
)

// Categories lists every valid issue category.
var Categories = []IssueCategory{Street, Water, Electricity, Sanitation, Other}

// ValidCategory reports whether c is a known category.
func ValidCategory(c IssueCategory) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Stage is one of the four lifecycle points of an issue.
type Stage string

const (
	StageReported   Stage = "Reported"
	StageVerified   Stage = "Verified"
	StageInProgress Stage = "InProgress"
	StageResolved   Stage = "Resolved"
)

// Coordinate is a latitude/longitude pair captured on the reporter's device.
// Immutable once set on an issue.
type Coordinate struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// MediaRef points at uploaded photo/video evidence.
type MediaRef struct {
	URL        string    `bson:"url" json:"url"`
	CapturedAt time.Time `bson:"capturedAt" json:"capturedAt"`
}

// StageRecord tracks completion of a single lifecycle stage.
type StageRecord struct {
	Completed bool       `bson:"completed" json:"completed"`
	Date      *time.Time `bson:"date,omitempty" json:"date,omitempty"`
}

// ProgressRecord holds the four ordered stages. A later stage may only be
// completed when every earlier stage is, and stage dates never decrease.
type ProgressRecord struct {
	Reported   StageRecord `bson:"reported" json:"reported"`
	Verified   StageRecord `bson:"verified" json:"verified"`
	InProgress StageRecord `bson:"inProgress" json:"inProgress"`
	Resolved   StageRecord `bson:"resolved" json:"resolved"`
}

// Record returns the record for a stage.
func (p *ProgressRecord) Record(s Stage) StageRecord {
	switch s {
	case StageVerified:
		return p.Verified
	case StageInProgress:
		return p.InProgress
	case StageResolved:
		return p.Resolved
	default:
		return p.Reported
	}
}

// Complete marks a stage done at the given time.
func (p *ProgressRecord) Complete(s Stage, at time.Time) {
	rec := StageRecord{Completed: true, Date: &at}
	switch s {
	case StageReported:
		p.Reported = rec
	case StageVerified:
		p.Verified = rec
	case StageInProgress:
		p.InProgress = rec
	case StageResolved:
		p.Resolved = rec
	}
}

// Verdict is a citizen's judgement on whether a report is credible.
type Verdict string

const (
	VerdictReal Verdict = "real"
	VerdictFake Verdict = "fake"
)

// VerificationLedger tallies citizen votes on a single issue. A user id
// appears in at most one of the two sets at any time.
type VerificationLedger struct {
	Real []primitive.ObjectID `bson:"real" json:"real"`
	Fake []primitive.ObjectID `bson:"fake" json:"fake"`
}

// Cast records a vote as a set replacement keyed by user id: the user is
// removed from the opposite set and inserted into the target set. Returns
// false when the ledger is unchanged (same verdict cast twice).
func (l *VerificationLedger) Cast(userID primitive.ObjectID, verdict Verdict) bool {
	target, opposite := &l.Real, &l.Fake
	if verdict == VerdictFake {
		target, opposite = &l.Fake, &l.Real
	}
	if containsID(*target, userID) {
		return false
	}
	*opposite = removeID(*opposite, userID)
	*target = append(*target, userID)
	return true
}

// Verdict returns the user's current vote, if any.
func (l *VerificationLedger) Verdict(userID primitive.ObjectID) (Verdict, bool) {
	if containsID(l.Real, userID) {
		return VerdictReal, true
	}
	if containsID(l.Fake, userID) {
		return VerdictFake, true
	}
	return "", false
}

// NetCredibility is |real| - |fake|.
func (l *VerificationLedger) NetCredibility() int {
	return len(l.Real) - len(l.Fake)
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, have := range ids {
		if have == id {
			return true
		}
	}
	return false
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, have := range ids {
		if have != id {
			out = append(out, have)
		}
	}
	return out
}

// Resolution is the evidence bundle recorded when an issue is resolved.
// Stored verbatim from the validated payload, never recomputed at read time.
type Resolution struct {
	Media              MediaRef           `bson:"media" json:"media"`
	Location           Coordinate         `bson:"location" json:"location"`
	LocationAcquiredAt time.Time          `bson:"locationAcquiredAt" json:"locationAcquiredAt"`
	WorkerID           primitive.ObjectID `bson:"workerId" json:"workerId"`
	Timestamp          time.Time          `bson:"timestamp" json:"timestamp"`
	IdempotencyKey     string             `bson:"idempotencyKey" json:"-"`
}

// Issue is the aggregate root for a reported civic problem. Revision is the
// optimistic-concurrency counter checked and incremented on every write.
type Issue struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title        string             `bson:"title" json:"title"`
	Description  string             `bson:"description" json:"description"`
	Category     IssueCategory      `bson:"category" json:"category"`
	CreatedBy    primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	Location     Coordinate         `bson:"location" json:"location"`
	ReportMedia  MediaRef           `bson:"reportMedia" json:"reportMedia"`
	Progress     ProgressRecord     `bson:"progress" json:"progress"`
	Verification VerificationLedger `bson:"verification" json:"verification"`
	Department   string             `bson:"department,omitempty" json:"department,omitempty"`
	Resolution   *Resolution        `bson:"resolution,omitempty" json:"resolution,omitempty"`
	Revision     int64              `bson:"revision" json:"-"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}
