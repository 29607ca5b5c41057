package entitlements

import (
	"testing"
	"time"

	"github.com/artimagehub/ArtImageHub/app/models"
)

func TestIsEntitled(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name string
		sub  *models.Subscription
		want bool
	}{
		{name: "nil subscription", sub: nil, want: false},
		{name: "status none", sub: &models.Subscription{Status: models.SubscriptionStatusNone}, want: false},
		{name: "past due", sub: &models.Subscription{Status: models.SubscriptionStatusPastDue, CurrentPeriodEnd: &future}, want: false},
		{name: "active no period end", sub: &models.Subscription{Status: models.SubscriptionStatusActive}, want: true},
		{name: "active period end future", sub: &models.Subscription{Status: models.SubscriptionStatusActive, CurrentPeriodEnd: &future}, want: true},
		{name: "active period end past", sub: &models.Subscription{Status: models.SubscriptionStatusActive, CurrentPeriodEnd: &past}, want: false},
		{name: "trialing trial end future", sub: &models.Subscription{Status: models.SubscriptionStatusTrialing, TrialEnd: &future}, want: true},
		{name: "trialing trial end past", sub: &models.Subscription{Status: models.SubscriptionStatusTrialing, TrialEnd: &past}, want: false},
		{name: "active cancel scheduled still entitled", sub: &models.Subscription{Status: models.SubscriptionStatusActive, CurrentPeriodEnd: &future, CancelAtPeriodEnd: true}, want: true},
		{name: "canceled period not ended", sub: &models.Subscription{Status: models.SubscriptionStatusCanceled, CurrentPeriodEnd: &future}, want: true},
		{name: "canceled period ended", sub: &models.Subscription{Status: models.SubscriptionStatusCanceled, CurrentPeriodEnd: &past}, want: false},
		{name: "canceled no period end", sub: &models.Subscription{Status: models.SubscriptionStatusCanceled}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEntitled(tt.sub, now); got != tt.want {
				t.Fatalf("IsEntitled(%s) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestPeriodEndPrefersCurrentPeriod(t *testing.T) {
	trialEnd := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	periodEndTime := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	sub := &models.Subscription{TrialEnd: &trialEnd, CurrentPeriodEnd: &periodEndTime}
	if got := periodEnd(sub); !got.Equal(periodEndTime) {
		t.Fatalf("expected current_period_end to win, got %v", got)
	}

	sub = &models.Subscription{TrialEnd: &trialEnd}
	if got := periodEnd(sub); !got.Equal(trialEnd) {
		t.Fatalf("expected trial_end fallback, got %v", got)
	}
}
