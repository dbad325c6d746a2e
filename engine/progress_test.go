package engine

import (
	"testing"
	"time"

	"civiclens-be/models"

	"github.com/stretchr/testify/assert"
)

func TestCurrentStageHighestCompletedWins(t *testing.T) {
	now := time.Now()

	var p models.ProgressRecord
	assert.Equal(t, models.StageReported, CurrentStage(&p))

	p.Complete(models.StageReported, now)
	assert.Equal(t, models.StageReported, CurrentStage(&p))

	p.Complete(models.StageVerified, now)
	assert.Equal(t, models.StageVerified, CurrentStage(&p))

	p.Complete(models.StageInProgress, now)
	assert.Equal(t, models.StageInProgress, CurrentStage(&p))

	p.Complete(models.StageResolved, now)
	assert.Equal(t, models.StageResolved, CurrentStage(&p))
}

func TestCheckStepSingleStepOnly(t *testing.T) {
	now := time.Now()
	var p models.ProgressRecord
	p.Complete(models.StageReported, now)

	assert.NoError(t, checkStep(&p, models.StageVerified))

	// Multi-step jumps and regressions fail.
	assert.ErrorIs(t, checkStep(&p, models.StageInProgress), ErrInvalidTransition)
	assert.ErrorIs(t, checkStep(&p, models.StageResolved), ErrInvalidTransition)
	assert.ErrorIs(t, checkStep(&p, models.StageReported), ErrInvalidTransition)

	p.Complete(models.StageVerified, now)
	assert.NoError(t, checkStep(&p, models.StageInProgress))
	assert.ErrorIs(t, checkStep(&p, models.StageVerified), ErrInvalidTransition)

	p.Complete(models.StageInProgress, now)
	p.Complete(models.StageResolved, now)
	// Terminal stage: nothing follows Resolved.
	assert.ErrorIs(t, checkStep(&p, models.StageResolved), ErrInvalidTransition)
}

func TestCheckStepUnknownStage(t *testing.T) {
	var p models.ProgressRecord
	assert.ErrorIs(t, checkStep(&p, models.Stage("Closed")), ErrInvalidTransition)
}

func TestValidStage(t *testing.T) {
	assert.True(t, ValidStage(models.StageReported))
	assert.True(t, ValidStage(models.StageResolved))
	assert.False(t, ValidStage(models.Stage("Pending")))
}
