package controllers

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/artimagehub/ArtImageHub/app/models"
	"github.com/artimagehub/ArtImageHub/app/repository"
	"github.com/artimagehub/ArtImageHub/internal/pkg/imageprocessor"
)

// HandleTaskStatus returns the current state of a restoration task.
// Response: { task_id, status, progress, stage, result_url?, error? }
func HandleTaskStatus(c *fiber.Ctx) error {
	taskID := c.Params("task_id")
	if taskID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "task_id missing"})
	}

	taskRepo := repository.GetGlobalFactory().GetTaskRepository()
	task, err := taskRepo.GetByUUID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "task not found"})
		}
		fiberlog.Errorf("[Task] Lookup failed for %s: %v", taskID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load task"})
	}

	progress := task.Progress
	stage := task.Stage

	// For in-flight tasks the cache is fresher than the row
	if !task.IsTerminal() {
		if p, s, cerr := imageprocessor.GetTaskProgress(task.UUID); cerr == nil {
			progress = p
			if s != "" {
				stage = s
			}
		}
	}

	resp := fiber.Map{
		"task_id":  task.UUID,
		"status":   task.Status,
		"progress": progress,
		"stage":    stage,
	}
	if task.Status == models.TaskStatusCompleted {
		resp["progress"] = 100
		resp["result_url"] = fmt.Sprintf("/api/download/%s", task.UUID)
	}
	if task.Status == models.TaskStatusFailed {
		resp["error"] = task.ErrorMessage
	}

	return c.JSON(resp)
}

// HandlePreview serves the originally uploaded photo for before/after
// comparison in the client.
func HandlePreview(c *fiber.Ctx) error {
	taskID := c.Params("task_id")
	if taskID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "task_id missing"})
	}

	taskRepo := repository.GetGlobalFactory().GetTaskRepository()
	task, err := taskRepo.GetByUUID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "task not found"})
		}
		fiberlog.Errorf("[Task] Lookup failed for %s: %v", taskID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load task"})
	}

	if _, err := os.Stat(task.UploadPath); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "upload no longer available"})
	}

	return c.SendFile(task.UploadPath)
}
