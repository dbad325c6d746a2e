package engine

import (
	"fmt"
	"time"

	"civiclens-be/models"
)

// EvidencePayload is the proof bundle a worker submits with a resolving
// transition. The engine re-verifies the location-before-capture ordering
// instead of trusting client sequencing.
type EvidencePayload struct {
	Media              models.MediaRef
	Location           models.Coordinate
	LocationAcquiredAt time.Time
	IdempotencyKey     string
}

// ValidateEvidence gates transitions that require proof. The device must
// have acquired its location strictly before recording started: location
// without a fresh capture is untrustworthy, and a capture without location
// cannot be geofenced to the issue.
func ValidateEvidence(p *EvidencePayload) error {
	if p == nil {
		return fmt.Errorf("%w: evidence payload required", ErrEvidence)
	}
	if p.Media.URL == "" {
		return fmt.Errorf("%w: media missing", ErrEvidence)
	}
	if p.Media.CapturedAt.IsZero() {
		return fmt.Errorf("%w: capture time missing", ErrEvidence)
	}
	if p.Location.Latitude == 0 && p.Location.Longitude == 0 {
		return fmt.Errorf("%w: location missing", ErrEvidence)
	}
	if p.LocationAcquiredAt.IsZero() {
		return fmt.Errorf("%w: location acquisition time missing", ErrEvidence)
	}
	if !p.LocationAcquiredAt.Before(p.Media.CapturedAt) {
		return fmt.Errorf("%w: location acquired at %s, after capture began at %s",
			ErrEvidence, p.LocationAcquiredAt.Format(time.RFC3339), p.Media.CapturedAt.Format(time.RFC3339))
	}
	return nil
}
