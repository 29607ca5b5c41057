package controllers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/artimagehub/ArtImageHub/app/models"
	"github.com/artimagehub/ArtImageHub/internal/pkg/billing"
	"github.com/artimagehub/ArtImageHub/internal/pkg/database"
	"github.com/artimagehub/ArtImageHub/internal/pkg/entitlements"
	"github.com/artimagehub/ArtImageHub/internal/pkg/env"
)

func billingService() *billing.Service {
	return billing.NewServiceFromDB(database.GetDB())
}

// HandleStartTrial creates a processor checkout session for a trial signup.
// Response: { checkout_url, session_id }
func HandleStartTrial(c *fiber.Ctx) error {
	email, err := parseEmailBody(c)
	if email == "" {
		return err
	}

	svc := billingService()
	sub, err := svc.GetSubscription(c.Context(), email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		fiberlog.Errorf("[Payment] Subscription lookup failed for %s: %v", email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load subscription"})
	}
	if sub != nil && entitlements.IsEntitled(sub, svc.Now()) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "subscription already active"})
	}

	client := billing.NewProcessorClientFromEnv()
	session, err := client.CreateCheckoutSession(c.Context(), email)
	if err != nil {
		if errors.Is(err, billing.ErrNotConfigured) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "payment processor not configured"})
		}
		fiberlog.Errorf("[Payment] Checkout session creation failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "payment processor error"})
	}

	return c.JSON(fiber.Map{
		"checkout_url": session.URL,
		"session_id":   session.ID,
	})
}

// HandleGetSubscription returns the subscription snapshot for an email.
func HandleGetSubscription(c *fiber.Ctx) error {
	email := c.Params("email")
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email missing"})
	}

	svc := billingService()
	sub, err := svc.GetSubscription(c.Context(), email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{
				"email":     email,
				"is_active": false,
				"status":    models.SubscriptionStatusNone,
			})
		}
		fiberlog.Errorf("[Payment] Subscription lookup failed for %s: %v", email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load subscription"})
	}

	return c.JSON(fiber.Map{
		"email":                sub.Email,
		"is_active":            entitlements.IsEntitled(sub, svc.Now()),
		"status":               sub.Status,
		"trial_end":            sub.TrialEnd,
		"current_period_end":   sub.CurrentPeriodEnd,
		"cancel_at_period_end": sub.CancelAtPeriodEnd,
	})
}

// HandleCancelSubscription requests a processor-side cancel and flags the
// local row. Entitlement runs until the current period end.
func HandleCancelSubscription(c *fiber.Ctx) error {
	email, err := parseEmailBody(c)
	if email == "" {
		return err
	}

	svc := billingService()
	sub, err := svc.GetSubscription(c.Context(), email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no subscription for email"})
		}
		fiberlog.Errorf("[Payment] Subscription lookup failed for %s: %v", email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load subscription"})
	}
	if sub.ProcessorSubscriptionID == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no active subscription"})
	}

	client := billing.NewProcessorClientFromEnv()
	if err := client.CancelSubscription(c.Context(), sub.ProcessorSubscriptionID); err != nil {
		if errors.Is(err, billing.ErrNotConfigured) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "payment processor not configured"})
		}
		fiberlog.Errorf("[Payment] Processor cancel failed for %s: %v", email, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "payment processor error"})
	}

	if err := svc.MarkCancelRequested(c.Context(), email); err != nil {
		fiberlog.Errorf("[Payment] Local cancel flag failed for %s: %v", email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update subscription"})
	}

	return c.JSON(fiber.Map{
		"message": "cancellation scheduled",
		"email":   email,
	})
}

// HandleCreatePortalSession creates a processor billing-portal session.
func HandleCreatePortalSession(c *fiber.Ctx) error {
	email, err := parseEmailBody(c)
	if email == "" {
		return err
	}

	svc := billingService()
	sub, err := svc.GetSubscription(c.Context(), email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no subscription for email"})
		}
		fiberlog.Errorf("[Payment] Subscription lookup failed for %s: %v", email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load subscription"})
	}
	if sub.ProcessorCustomerID == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no processor customer for email"})
	}

	client := billing.NewProcessorClientFromEnv()
	session, err := client.CreatePortalSession(c.Context(), sub.ProcessorCustomerID)
	if err != nil {
		if errors.Is(err, billing.ErrNotConfigured) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "payment processor not configured"})
		}
		fiberlog.Errorf("[Payment] Portal session creation failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "payment processor error"})
	}

	return c.JSON(fiber.Map{"url": session.URL})
}

// HandleVerifySession returns the completion state of a checkout session.
func HandleVerifySession(c *fiber.Ctx) error {
	sessionID := c.Params("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "session_id missing"})
	}

	client := billing.NewProcessorClientFromEnv()
	session, err := client.GetCheckoutSession(c.Context(), sessionID)
	if err != nil {
		if errors.Is(err, billing.ErrNotConfigured) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "payment processor not configured"})
		}
		fiberlog.Errorf("[Payment] Session fetch failed for %s: %v", sessionID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "payment processor error"})
	}

	return c.JSON(fiber.Map{
		"session_id":     session.ID,
		"status":         session.Status,
		"payment_status": session.PaymentStatus,
		"customer_email": session.CustomerEmail,
	})
}

// HandleWebhook is the processor's delivery endpoint. The signature is
// verified over the raw body before anything is parsed or persisted.
func HandleWebhook(c *fiber.Ctx) error {
	secret := env.GetEnv("PAYMENT_WEBHOOK_SECRET", "")
	if secret == "" {
		fiberlog.Warn("[Payment] PAYMENT_WEBHOOK_SECRET not set; refusing webhook")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "webhook secret not configured"})
	}

	body := c.Body()
	if !billing.VerifyWebhookSignature(body, c.Get("X-Signature"), secret) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid signature"})
	}

	var envelope billing.WebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	if envelope.ID == "" || envelope.Type == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing event id or type"})
	}

	duplicate, err := billingService().HandleEvent(c.Context(), envelope.ID, envelope.Type, body)
	if err != nil {
		// 5xx so the processor's retry redelivers; the ledger makes that safe
		fiberlog.Errorf("[Payment] Webhook %s failed: %v", envelope.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to process event"})
	}

	return c.JSON(fiber.Map{
		"received":  true,
		"duplicate": duplicate,
	})
}
