package entitlements

import (
	"time"

	"github.com/artimagehub/ArtImageHub/app/models"
)

// IsEntitled reports whether a subscription grants unrestricted downloads at
// the given instant. Trialing and active subscriptions entitle until their
// period end; a canceled subscription keeps entitlement until the paid period
// runs out, matching the processor's cancel-at-period-end semantics.
// cancel_at_period_end alone never revokes access early.
func IsEntitled(sub *models.Subscription, now time.Time) bool {
	if sub == nil {
		return false
	}

	switch sub.Status {
	case models.SubscriptionStatusTrialing, models.SubscriptionStatusActive:
		end := periodEnd(sub)
		return end == nil || end.After(now)
	case models.SubscriptionStatusCanceled:
		return sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.After(now)
	default:
		return false
	}
}

// periodEnd picks the timestamp that bounds the current entitlement window.
func periodEnd(sub *models.Subscription) *time.Time {
	if sub.CurrentPeriodEnd != nil {
		return sub.CurrentPeriodEnd
	}
	return sub.TrialEnd
}
