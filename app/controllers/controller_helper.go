package controllers

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// emailRequest is the shared body shape for the payment endpoints.
type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// parseEmailBody parses and validates a `{email}` JSON body. An empty string
// return means the caller already sent the 400 response.
func parseEmailBody(c *fiber.Ctx) (string, error) {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return "", c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		return "", c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "valid email is required"})
	}
	return req.Email, nil
}

// GetClientIP determines the actual client IP address considering proxies.
// The quota log is keyed by whatever single address this resolves to.
func GetClientIP(c *fiber.Ctx) string {
	// 1. Cloudflare passes the original client IP in this header
	if cfIP := strings.TrimSpace(c.Get("CF-Connecting-IP")); cfIP != "" {
		return cfIP
	}

	// 2. X-Forwarded-For can contain a list of IPs - the first one is the original client IP
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	// 3. No proxy headers; use the connection address
	ipAddr := c.IP()

	// Unwrap IPv4-mapped-IPv6 addresses (::ffff:192.168.1.1)
	if strings.HasPrefix(ipAddr, "::ffff:") && strings.Contains(ipAddr, ".") {
		return strings.TrimPrefix(ipAddr, "::ffff:")
	}

	return ipAddr
}
