package models

import "time"

// WebhookEvent is the dedup ledger for processor webhook deliveries. The
// processor retries deliveries, so an event id may arrive more than once;
// the unique key makes effective processing at-most-once.
type WebhookEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EventID     string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"event_id"`
	EventType   string    `gorm:"type:varchar(100);not null;index" json:"event_type"`
	ProcessedAt time.Time `gorm:"type:timestamp;not null" json:"processed_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
