package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/artimagehub/ArtImageHub/app/controllers"
	"github.com/artimagehub/ArtImageHub/internal/pkg/cache"
	"github.com/artimagehub/ArtImageHub/internal/pkg/env"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        apiRateLimit(),
		Expiration: time.Minute,
		Storage:    limiterStorage(),
		KeyGenerator: func(c *fiber.Ctx) string {
			return controllers.GetClientIP(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many requests"})
		},
		// The processor retries webhooks aggressively; never throttle them
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/api/payment/webhook"
		},
	}))

	api.Post("/restore", controllers.HandleRestore)
	api.Get("/tasks/:task_id", controllers.HandleTaskStatus)
	api.Get("/preview/:task_id", controllers.HandlePreview)

	api.Get("/download/check-limit", controllers.HandleCheckLimit)
	api.Get("/download/:task_id", controllers.HandleDownload)

	payment := api.Group("/payment")
	payment.Post("/start-trial", controllers.HandleStartTrial)
	payment.Get("/subscription/:email", controllers.HandleGetSubscription)
	payment.Post("/cancel", controllers.HandleCancelSubscription)
	payment.Post("/create-portal-session", controllers.HandleCreatePortalSession)
	payment.Get("/verify-session/:session_id", controllers.HandleVerifySession)
	payment.Post("/webhook", controllers.HandleWebhook)
}

func apiRateLimit() int {
	if v, err := strconv.Atoi(env.GetEnv("API_RATE_LIMIT", "60")); err == nil && v > 0 {
		return v
	}
	return 60
}

// limiterStorage backs the API limiter with Redis so counters survive
// restarts and are shared across instances. Database 1 keeps limiter keys
// away from the task status cache on DB 0.
func limiterStorage() fiber.Storage {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := 6379
	if client := cache.GetClient(); client != nil {
		if h, p, err := net.SplitHostPort(client.Options().Addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
	}

	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		Database: 1,
		Reset:    false,
	})
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
