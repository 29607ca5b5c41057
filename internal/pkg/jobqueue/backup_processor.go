package jobqueue

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/artimagehub/ArtImageHub/internal/pkg/s3backup"
)

// BackupProcessor copies restored results to the off-site R2 bucket.
type BackupProcessor struct {
	client *s3backup.Client
	config *s3backup.Config
}

// NewBackupProcessor creates a backup processor, or nil when backup is not
// configured. A nil processor simply means no backup jobs get enqueued.
func NewBackupProcessor() *BackupProcessor {
	cfg, err := s3backup.LoadConfig()
	if err != nil {
		log.Errorf("[BackupProcessor] Invalid backup config: %v", err)
		return nil
	}
	if !cfg.IsEnabled() {
		return nil
	}

	client, err := s3backup.NewClient(cfg)
	if err != nil {
		log.Errorf("[BackupProcessor] Failed to create R2 client: %v", err)
		return nil
	}

	return &BackupProcessor{client: client, config: cfg}
}

// Process uploads a single restored result to the backup bucket.
func (p *BackupProcessor) Process(ctx context.Context, job *Job) error {
	payload, err := ResultBackupJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid backup payload: %w", err)
	}

	if _, err := os.Stat(payload.ResultPath); err != nil {
		return fmt.Errorf("result file missing for task %s: %w", payload.TaskUUID, err)
	}

	now := time.Now().UTC()
	objectKey := p.config.GetObjectKey(payload.TaskUUID, payload.ResultPath, now.Year(), int(now.Month()))

	if _, err := p.client.UploadFile(payload.ResultPath, objectKey); err != nil {
		return fmt.Errorf("backup upload failed for task %s: %w", payload.TaskUUID, err)
	}

	return nil
}
