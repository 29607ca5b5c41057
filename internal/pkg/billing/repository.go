package billing

import (
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/artimagehub/ArtImageHub/app/models"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	GetSubscriptionByEmail(email string) (*models.Subscription, error)
	GetSubscriptionByCustomerID(customerID string) (*models.Subscription, error)
	SetCancelAtPeriodEnd(email string) error
	// ProcessEvent inserts the event into the dedup ledger and runs the
	// state mutation inside one transaction. Returns applied=false without
	// calling mutate when the event id was already in the ledger.
	ProcessEvent(event *models.WebhookEvent, mutate func(tx *gorm.DB) error) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetSubscriptionByEmail(email string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) GetSubscriptionByCustomerID(customerID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("processor_customer_id = ?", customerID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) SetCancelAtPeriodEnd(email string) error {
	return r.db.Model(&models.Subscription{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		Update("cancel_at_period_end", true).Error
}

func (r *gormRepository) ProcessEvent(event *models.WebhookEvent, mutate func(tx *gorm.DB) error) (bool, error) {
	applied := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if event.ProcessedAt.IsZero() {
			event.ProcessedAt = time.Now().UTC()
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).Create(event)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Replay: ledger already holds this event id.
			return nil
		}
		applied = true
		if mutate == nil {
			return nil
		}
		return mutate(tx)
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}
