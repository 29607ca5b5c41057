package controllers

import (
	"errors"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/artimagehub/ArtImageHub/app/models"
	"github.com/artimagehub/ArtImageHub/app/repository"
	"github.com/artimagehub/ArtImageHub/internal/pkg/imageprocessor"
	"github.com/artimagehub/ArtImageHub/internal/pkg/quota"
)

func newQuotaChecker() *quota.Checker {
	factory := repository.GetGlobalFactory()
	return quota.NewChecker(factory.GetSubscriptionRepository(), factory.GetDownloadRepository())
}

// HandleCheckLimit answers whether the caller could download right now.
// Response: { allowed, remaining, is_subscriber }
func HandleCheckLimit(c *fiber.Ctx) error {
	checker := newQuotaChecker()
	result, err := checker.Check(GetClientIP(c), c.Query("email"))
	if err != nil {
		fiberlog.Errorf("[Download] Quota check failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to check limit"})
	}
	return c.JSON(result)
}

// HandleDownload serves a restored image. Subscribers get the full-resolution
// result; free-tier callers get a downsampled watermarked preview counted
// against the daily quota.
func HandleDownload(c *fiber.Ctx) error {
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
		fiberlog.Errorf("[Download] Lookup failed for %s: %v", taskID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load task"})
	}

	if task.Status != models.TaskStatusCompleted {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "task not completed"})
	}
	if task.ResultPath == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "result not available"})
	}
	if _, err := os.Stat(task.ResultPath); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "result not available"})
	}

	ip := GetClientIP(c)
	checker := newQuotaChecker()
	result, err := checker.Check(ip, c.Query("email"))
	if err != nil {
		fiberlog.Errorf("[Download] Quota check failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to check limit"})
	}

	c.Set("X-Subscriber", strconv.FormatBool(result.IsSubscriber))

	if result.IsSubscriber {
		c.Set("X-Remaining", "unlimited")
		// Subscribers get the original unless they ask for the preview variant
		if c.Query("quality") != "preview" {
			return c.SendFile(task.ResultPath)
		}
		format := ".jpg"
		if c.Query("format") == "webp" {
			format = ".webp"
		}
		previewPath, err := imageprocessor.CreatePreview(task.ResultPath, task.UUID, format)
		if err != nil {
			fiberlog.Errorf("[Download] Preview generation failed for %s: %v", task.UUID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to prepare preview"})
		}
		return c.SendFile(previewPath)
	}

	if !result.Allowed {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":     "daily download limit reached",
			"remaining": 0,
			"limit":     checker.Limit(),
		})
	}

	format := ".jpg"
	if c.Query("format") == "webp" {
		format = ".webp"
	}
	previewPath, err := imageprocessor.CreatePreview(task.ResultPath, task.UUID, format)
	if err != nil {
		fiberlog.Errorf("[Download] Preview generation failed for %s: %v", task.UUID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to prepare preview"})
	}

	if err := c.SendFile(previewPath); err != nil {
		return err
	}

	// The quota only charges downloads actually served
	if err := checker.Record(ip, task.UUID); err != nil {
		fiberlog.Errorf("[Download] Failed to record download for %s: %v", ip, err)
	}
	c.Set("X-Remaining", strconv.Itoa(result.Remaining-1))

	return nil
}
