package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/artimagehub/ArtImageHub/app/models"
	"github.com/artimagehub/ArtImageHub/app/repository"
	"github.com/artimagehub/ArtImageHub/internal/pkg/imageprocessor"
	"github.com/artimagehub/ArtImageHub/internal/pkg/restore"
	"github.com/artimagehub/ArtImageHub/internal/pkg/storage"
)

// RestoreProcessor runs restoration jobs against the configured AI provider
// and keeps the task row plus the Redis status cache in sync.
type RestoreProcessor struct {
	tasks    repository.TaskRepository
	provider restore.Provider
	queue    *Queue
	backup   *BackupProcessor // nil when no backup target is configured
}

// NewRestoreProcessor creates a restore processor
func NewRestoreProcessor(tasks repository.TaskRepository, provider restore.Provider, queue *Queue, backup *BackupProcessor) *RestoreProcessor {
	return &RestoreProcessor{
		tasks:    tasks,
		provider: provider,
		queue:    queue,
		backup:   backup,
	}
}

// Process handles a single restore job. A failed restoration is a terminal
// task outcome, not a job error: the job only errors on infrastructure
// problems worth retrying.
func (p *RestoreProcessor) Process(ctx context.Context, job *Job) error {
	payload, err := RestoreJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid restore payload: %w", err)
	}

	task, err := p.tasks.GetByUUID(payload.TaskUUID)
	if err != nil {
		return fmt.Errorf("failed to load task %s: %w", payload.TaskUUID, err)
	}
	if task.IsTerminal() {
		log.Warnf("[RestoreProcessor] Task %s already terminal (status=%s), skipping", task.UUID, task.Status)
		return nil
	}

	if err := p.tasks.MarkProcessing(task.UUID); err != nil {
		return fmt.Errorf("failed to mark task %s processing: %w", task.UUID, err)
	}
	if cerr := imageprocessor.SetTaskStatus(task.UUID, string(models.TaskStatusProcessing)); cerr != nil {
		log.Warnf("[RestoreProcessor] Failed to cache status for %s: %v", task.UUID, cerr)
	}

	opts := restore.Options{
		FaceEnhance: task.FaceEnhance,
		Colorize:    task.Colorize,
		Upscale:     task.Upscale,
	}
	outputPath := storage.ResultPath(task.UUID)

	progress := func(stage string, percent int) {
		if derr := p.tasks.UpdateProgress(task.UUID, percent, stage); derr != nil {
			log.Warnf("[RestoreProcessor] Progress update failed for %s: %v", task.UUID, derr)
		}
		if cerr := imageprocessor.SetTaskProgress(task.UUID, percent, stage); cerr != nil {
			log.Warnf("[RestoreProcessor] Progress cache failed for %s: %v", task.UUID, cerr)
		}
	}

	result := p.provider.Restore(ctx, task.UploadPath, outputPath, opts, progress)

	if !result.Success {
		log.Errorf("[RestoreProcessor] Restoration failed for task %s: %s", task.UUID, result.Error)
		if derr := p.tasks.MarkFailed(task.UUID, result.Error); derr != nil {
			return fmt.Errorf("failed to mark task %s failed: %w", task.UUID, derr)
		}
		if cerr := imageprocessor.SetTaskStatus(task.UUID, string(models.TaskStatusFailed)); cerr != nil {
			log.Warnf("[RestoreProcessor] Failed to cache status for %s: %v", task.UUID, cerr)
		}
		return nil
	}

	if err := p.tasks.MarkCompleted(task.UUID, result.OutputPath); err != nil {
		return fmt.Errorf("failed to mark task %s completed: %w", task.UUID, err)
	}
	if cerr := imageprocessor.SetTaskStatus(task.UUID, string(models.TaskStatusCompleted)); cerr != nil {
		log.Warnf("[RestoreProcessor] Failed to cache status for %s: %v", task.UUID, cerr)
	}
	if cerr := imageprocessor.SetTaskProgress(task.UUID, 100, "completed"); cerr != nil {
		log.Warnf("[RestoreProcessor] Progress cache failed for %s: %v", task.UUID, cerr)
	}
	log.Infof("[RestoreProcessor] Task %s completed, result at %s", task.UUID, result.OutputPath)

	// Hand the result off to the off-site backup when configured.
	if p.backup != nil && p.queue != nil {
		backupPayload := ResultBackupJobPayload{TaskUUID: task.UUID, ResultPath: result.OutputPath}
		if _, qerr := p.queue.EnqueueJob(JobTypeResultBackup, backupPayload.ToMap()); qerr != nil {
			log.Errorf("[RestoreProcessor] Failed to enqueue backup for %s: %v", task.UUID, qerr)
		}
	}

	return nil
}
