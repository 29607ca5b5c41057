package controllers

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/artimagehub/ArtImageHub/app/models"
	"github.com/artimagehub/ArtImageHub/app/repository"
	"github.com/artimagehub/ArtImageHub/internal/pkg/imageprocessor"
	"github.com/artimagehub/ArtImageHub/internal/pkg/jobqueue"
	"github.com/artimagehub/ArtImageHub/internal/pkg/storage"
	"github.com/artimagehub/ArtImageHub/internal/pkg/upload"
)

// boolFlag reads a restoration flag from the form first, then the query.
func boolFlag(c *fiber.Ctx, name string, def bool) bool {
	v := c.FormValue(name)
	if v == "" {
		v = c.Query(name)
	}
	switch v {
	case "":
		return def
	case "1", "true", "True", "yes", "on":
		return true
	default:
		return false
	}
}

// HandleRestore accepts a photo upload and enqueues a restoration task.
// Request: multipart `file` + flags {face_enhance, colorize, upscale}
// Response: { task_id, status, message }
func HandleRestore(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}

	if err := upload.ValidateSize(int(fileHeader.Size)); err != nil {
		status := fiber.StatusBadRequest
		if errors.Is(err, upload.ErrTooLarge) {
			status = fiber.StatusRequestEntityTooLarge
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to read file"})
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to read file"})
	}

	head := content
	if len(head) > 512 {
		head = head[:512]
	}
	contentType, err := upload.ValidateImageBySniff(fileHeader.Filename, head)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	taskUUID := uuid.New().String()

	uploadPath, err := storage.SaveUpload(taskUUID, content, contentType)
	if err != nil {
		fiberlog.Errorf("[Restore] Failed to save upload: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to store upload"})
	}

	// EXIF metadata is informational; extraction failures are not fatal
	metadataJSON, err := imageprocessor.ExtractMetadata(uploadPath)
	if err != nil {
		fiberlog.Warnf("[Restore] Metadata extraction failed for %s: %v", taskUUID, err)
		metadataJSON = ""
	}

	task := &models.RestorationTask{
		UUID:         taskUUID,
		FileName:     fileHeader.Filename,
		UploadPath:   uploadPath,
		FaceEnhance:  boolFlag(c, "face_enhance", true),
		Colorize:     boolFlag(c, "colorize", false),
		Upscale:      boolFlag(c, "upscale", true),
		Status:       models.TaskStatusPending,
		Stage:        "Queued",
		MetadataJSON: metadataJSON,
	}

	taskRepo := repository.GetGlobalFactory().GetTaskRepository()
	if err := taskRepo.Create(task); err != nil {
		fiberlog.Errorf("[Restore] Failed to create task: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create task"})
	}

	if cerr := imageprocessor.SetTaskStatus(taskUUID, models.TaskStatusPending); cerr != nil {
		fiberlog.Warnf("[Restore] Failed to cache status for %s: %v", taskUUID, cerr)
	}

	payload := jobqueue.RestoreJobPayload{TaskUUID: taskUUID}
	if _, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobqueue.JobTypeRestore, payload.ToMap()); err != nil {
		fiberlog.Errorf("[Restore] Failed to enqueue task %s: %v", taskUUID, err)
		// Terminal states are only reachable from processing
		if perr := taskRepo.MarkProcessing(taskUUID); perr != nil {
			fiberlog.Warnf("[Restore] Failed to mark task %s processing: %v", taskUUID, perr)
		} else if ferr := taskRepo.MarkFailed(taskUUID, "failed to enqueue restoration job"); ferr != nil {
			fiberlog.Warnf("[Restore] Failed to mark task %s failed: %v", taskUUID, ferr)
		}
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "restoration queue unavailable"})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"task_id": taskUUID,
		"status":  models.TaskStatusPending,
		"message": "Photo accepted for restoration",
	})
}
