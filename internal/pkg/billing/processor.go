package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/artimagehub/ArtImageHub/internal/pkg/env"
)

const defaultProcessorAPIBaseURL = "https://api.paymentprocessor.example/v1"

// ErrNotConfigured signals a missing processor API key; the HTTP layer maps it
// to 503.
var ErrNotConfigured = errors.New("payment processor is not configured")

// ProcessorClient talks to the payment processor's REST API for checkout
// sessions, billing portal sessions and subscription cancellation.
type ProcessorClient struct {
	APIKey     string
	APIBaseURL string
	SuccessURL string
	CancelURL  string
	TrialDays  int

	HTTPClient *http.Client
}

// NewProcessorClientFromEnv builds the client from environment settings.
func NewProcessorClientFromEnv() *ProcessorClient {
	frontend := strings.TrimRight(env.GetEnv("FRONTEND_URL", "http://localhost:3000"), "/")
	trialDays := DefaultTrialDays
	if v := env.GetEnv("TRIAL_DAYS", ""); v != "" {
		fmt.Sscanf(v, "%d", &trialDays)
	}
	return &ProcessorClient{
		APIKey:     strings.TrimSpace(env.GetEnv("PAYMENT_API_KEY", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("PAYMENT_API_BASE_URL", defaultProcessorAPIBaseURL), "/"),
		SuccessURL: frontend + "/payment/success",
		CancelURL:  frontend + "/payment/cancel",
		TrialDays:  trialDays,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// IsConfigured reports whether an API key is present.
func (c *ProcessorClient) IsConfigured() bool {
	return c.APIKey != ""
}

// CreateCheckoutSession starts a subscription checkout with a free trial for
// the given email and returns the hosted checkout session.
func (c *ProcessorClient) CreateCheckoutSession(ctx context.Context, email string) (*CheckoutSession, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	payload := map[string]interface{}{
		"mode":              "subscription",
		"customer_email":    email,
		"trial_period_days": c.TrialDays,
		"success_url":       c.SuccessURL,
		"cancel_url":        c.CancelURL,
	}

	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/checkout/sessions", payload, &session); err != nil {
		return nil, err
	}
	if session.URL == "" {
		return nil, errors.New("checkout session response missing url")
	}
	return &session, nil
}

// GetCheckoutSession fetches a checkout session by id for post-checkout
// verification.
func (c *ProcessorClient) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	var session CheckoutSession
	if err := c.do(ctx, http.MethodGet, "/checkout/sessions/"+sessionID, nil, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CreatePortalSession returns the hosted subscription-management URL for a
// processor customer.
func (c *ProcessorClient) CreatePortalSession(ctx context.Context, customerID string) (*PortalSession, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	var session PortalSession
	err := c.do(ctx, http.MethodPost, "/billing_portal/sessions", map[string]interface{}{"customer": customerID}, &session)
	if err != nil {
		return nil, err
	}
	if session.URL == "" {
		return nil, errors.New("portal session response missing url")
	}
	return &session, nil
}

// CancelSubscription requests cancellation at period end on the processor
// side. The local flag is set separately by the billing service.
func (c *ProcessorClient) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	return c.do(ctx, http.MethodDelete, "/subscriptions/"+subscriptionID, nil, nil)
}

func (c *ProcessorClient) do(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("processor request %s %s failed: status=%d body=%s", method, path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}
