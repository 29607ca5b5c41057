package router

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/artimagehub/ArtImageHub/internal/pkg/cache"
	"github.com/artimagehub/ArtImageHub/internal/pkg/database"
	"github.com/artimagehub/ArtImageHub/internal/pkg/restore"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"name":    "ArtImageHub API",
			"message": "AI photo restoration backend",
			"docs":    "/docs/api/v1",
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		dbOK := false
		if db := database.GetDB(); db != nil {
			if sqlDB, err := db.DB(); err == nil && sqlDB.PingContext(ctx) == nil {
				dbOK = true
			}
		}

		cacheOK := false
		if client := cache.GetClient(); client != nil && client.Ping(ctx).Err() == nil {
			cacheOK = true
		}

		status := fiber.StatusOK
		health := "ok"
		if !dbOK {
			status = fiber.StatusServiceUnavailable
		}
		if !dbOK || !cacheOK {
			health = "degraded"
		}

		return c.Status(status).JSON(fiber.Map{
			"status":      health,
			"database":    dbOK,
			"cache":       cacheOK,
			"ai_provider": restore.ProviderName(),
		})
	})
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
