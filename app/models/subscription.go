package models

import "time"

// Subscription status constants. Transitions are driven exclusively by
// processor webhook events or an explicit cancel request.
const (
	SubscriptionStatusNone     = "none"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// Subscription mirrors the payment processor's subscription state for one
// customer. Email is the customer key; at most one row per email.
type Subscription struct {
	ID                      uint       `gorm:"primaryKey" json:"id"`
	Email                   string     `gorm:"type:varchar(200);not null;uniqueIndex" json:"email"`
	ProcessorCustomerID     string     `gorm:"type:varchar(191);default:'';index" json:"processor_customer_id"`
	ProcessorSubscriptionID string     `gorm:"type:varchar(191);default:'';index" json:"processor_subscription_id"`
	Status                  string     `gorm:"type:varchar(32);not null;default:'none';index" json:"status"`
	TrialStart              *time.Time `gorm:"type:timestamp;default:null" json:"trial_start,omitempty"`
	TrialEnd                *time.Time `gorm:"type:timestamp;default:null" json:"trial_end,omitempty"`
	CurrentPeriodStart      *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd        *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd       bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CreatedAt               time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
