package engine

import (
	"fmt"

	"civiclens-be/models"
)

// stageOrder fixes the lifecycle: Reported -> Verified -> InProgress ->
// Resolved. Transitions never regress and never skip a stage.
var stageOrder = []models.Stage{
	models.StageReported,
	models.StageVerified,
	models.StageInProgress,
	models.StageResolved,
}

func stageIndex(s models.Stage) int {
	for i, have := range stageOrder {
		if have == s {
			return i
		}
	}
	return -1
}

// ValidStage reports whether s names a lifecycle stage.
func ValidStage(s models.Stage) bool {
	return stageIndex(s) >= 0
}

// CurrentStage returns the highest completed stage of a progress record.
// Reported is completed at creation, so it is the floor.
func CurrentStage(p *models.ProgressRecord) models.Stage {
	current := models.StageReported
	for _, s := range stageOrder {
		if p.Record(s).Completed {
			current = s
		}
	}
	return current
}

// checkStep enforces the single-step ordering rule: the target must be
// exactly one stage past the current one.
func checkStep(p *models.ProgressRecord, target models.Stage) error {
	ti := stageIndex(target)
	if ti < 0 {
		return fmt.Errorf("%w: unknown stage %q", ErrInvalidTransition, target)
	}
	ci := stageIndex(CurrentStage(p))
	if ti != ci+1 {
		return fmt.Errorf("%w: issue is at %s, cannot move to %s",
			ErrInvalidTransition, stageOrder[ci], target)
	}
	return nil
}
