package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/artimagehub/ArtImageHub/internal/pkg/cache"
	"github.com/artimagehub/ArtImageHub/internal/pkg/database"
	"github.com/artimagehub/ArtImageHub/internal/pkg/env"
	"github.com/artimagehub/ArtImageHub/internal/pkg/jobqueue"
	"github.com/artimagehub/ArtImageHub/internal/pkg/router"
	"github.com/artimagehub/ArtImageHub/internal/pkg/storage"
)

func main() {
	app := NewApplication()

	// Restoration workers run in-process alongside the HTTP layer
	manager := jobqueue.GetManager()
	manager.Start()

	// Graceful shutdown: drain workers before the listener closes
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		fiberlog.Info("Shutting down...")
		manager.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	if err := storage.EnsureDirs(); err != nil {
		log.Fatal(err)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 25 * 1024 * 1024, // 20 MiB uploads plus multipart overhead
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app
}
