package workflow

import "github.com/smartdom/crm-api/internal/domain"

// PendingTasks returns the tasks of the current stage that are not completed.
// Tasks of earlier stages never block.
func PendingTasks(current domain.StageID, tasks []domain.Task) []domain.Task {
	var pending []domain.Task
	for _, t := range tasks {
		if t.IsDeleted || t.StageID != current || t.Status == domain.TaskStatusCompleted {
			continue
		}
		pending = append(pending, t)
	}
	return pending
}

// CanAdvance reports whether the object may leave its current stage
func CanAdvance(obj *domain.Object, tasks []domain.Task, force bool) bool {
	if force {
		return true
	}
	return len(PendingTasks(obj.CurrentStage, tasks)) == 0
}
