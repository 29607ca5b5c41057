package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/artimagehub/ArtImageHub/app/models"
)

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a task repository backed by GORM.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(task *models.RestorationTask) error {
	return r.db.Create(task).Error
}

func (r *taskRepository) GetByUUID(uuid string) (*models.RestorationTask, error) {
	var task models.RestorationTask
	if err := r.db.Where("uuid = ?", uuid).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) UpdateProgress(uuid string, progress int, stage string) error {
	// Progress updates never touch terminal rows.
	return r.db.Model(&models.RestorationTask{}).
		Where("uuid = ? AND status = ?", uuid, models.TaskStatusProcessing).
		Updates(map[string]interface{}{
			"progress": progress,
			"stage":    stage,
		}).Error
}

func (r *taskRepository) MarkProcessing(uuid string) error {
	tx := r.db.Model(&models.RestorationTask{}).
		Where("uuid = ? AND status = ?", uuid, models.TaskStatusPending).
		Updates(map[string]interface{}{
			"status":   models.TaskStatusProcessing,
			"progress": 0,
			"stage":    "Starting...",
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("task %s is not pending", uuid)
	}
	return nil
}

func (r *taskRepository) MarkCompleted(uuid string, resultPath string) error {
	now := time.Now()
	return r.terminal(uuid, map[string]interface{}{
		"status":       models.TaskStatusCompleted,
		"progress":     100,
		"stage":        "Complete",
		"result_path":  resultPath,
		"completed_at": &now,
	})
}

func (r *taskRepository) MarkFailed(uuid string, errorMessage string) error {
	now := time.Now()
	return r.terminal(uuid, map[string]interface{}{
		"status":        models.TaskStatusFailed,
		"stage":         "Failed",
		"error_message": errorMessage,
		"completed_at":  &now,
	})
}

// terminal applies a one-way transition out of processing. Guarding on the
// current status keeps terminal rows immutable under replays, and pending
// rows must pass through MarkProcessing first.
func (r *taskRepository) terminal(uuid string, updates map[string]interface{}) error {
	tx := r.db.Model(&models.RestorationTask{}).
		Where("uuid = ? AND status = ?", uuid, models.TaskStatusProcessing).
		Updates(updates)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("task %s is not processing", uuid)
	}
	return nil
}
