package billing

import (
	"strings"
	"time"

	"github.com/artimagehub/ArtImageHub/app/models"
)

// Processor webhook event types handled by the reconciler. Everything else is
// recorded in the ledger and ignored.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// WebhookEnvelope is the outer shape of a processor webhook delivery.
type WebhookEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object WebhookObject `json:"object"`
	} `json:"data"`
}

// WebhookObject carries the event payload fields the reconciler reads. The
// processor sends many more; unknown fields are ignored.
type WebhookObject struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Subscription       string `json:"subscription"`
	CustomerEmail      string `json:"customer_email"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
}

// CheckoutSession is the processor's checkout-session resource.
type CheckoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Status        string `json:"status"`
	CustomerEmail string `json:"customer_email"`
	PaymentStatus string `json:"payment_status"`
}

// PortalSession is the processor's billing-portal-session resource.
type PortalSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ProcessorStatusToSubscriptionStatus normalizes the processor's subscription
// status vocabulary onto the local one.
func ProcessorStatusToSubscriptionStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "trialing", "on_trial":
		return models.SubscriptionStatusTrialing
	case "active":
		return models.SubscriptionStatusActive
	case "past_due", "unpaid":
		return models.SubscriptionStatusPastDue
	case "canceled", "cancelled", "expired":
		return models.SubscriptionStatusCanceled
	default:
		return models.SubscriptionStatusNone
	}
}

func unixToTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
