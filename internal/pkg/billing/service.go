package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/artimagehub/ArtImageHub/app/models"
	"github.com/artimagehub/ArtImageHub/internal/pkg/env"
)

// DefaultTrialDays is the trial length granted on checkout completion.
const DefaultTrialDays = 7

// Service reconciles processor webhook events into local subscription state.
type Service struct {
	repo      Repository
	trialDays int
	now       func() time.Time
}

// NewService creates a billing service from an injected repository. The trial
// length is read from TRIAL_DAYS, falling back to 7.
func NewService(repo Repository) *Service {
	trialDays := DefaultTrialDays
	if v, err := strconv.Atoi(env.GetEnv("TRIAL_DAYS", "")); err == nil && v > 0 {
		trialDays = v
	}
	return &Service{repo: repo, trialDays: trialDays, now: time.Now}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// NewServiceWithClock is NewService with an explicit clock; used by tests.
func NewServiceWithClock(repo Repository, trialDays int, now func() time.Time) *Service {
	return &Service{repo: repo, trialDays: trialDays, now: now}
}

// Now exposes the service clock for entitlement checks.
func (s *Service) Now() time.Time {
	return s.now()
}

// GetSubscription returns the stored subscription for an email.
func (s *Service) GetSubscription(ctx context.Context, email string) (*models.Subscription, error) {
	_ = ctx
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, errors.New("email is required")
	}
	return s.repo.GetSubscriptionByEmail(email)
}

// MarkCancelRequested flags the local row after a processor-side cancel.
// Entitlement continues until the current period end.
func (s *Service) MarkCancelRequested(ctx context.Context, email string) error {
	_ = ctx
	return s.repo.SetCancelAtPeriodEnd(email)
}

// HandleEvent applies one webhook delivery. Replays of an already-processed
// event id return duplicate=true and change nothing; otherwise the ledger
// insert and the subscription mutation commit atomically.
func (s *Service) HandleEvent(ctx context.Context, eventID, eventType string, payload []byte) (duplicate bool, err error) {
	_ = ctx
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return false, errors.New("event id is required")
	}

	var envelope WebhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return false, fmt.Errorf("malformed webhook payload: %w", err)
	}
	obj := envelope.Data.Object

	var mutate func(tx *gorm.DB) error
	switch eventType {
	case EventCheckoutCompleted:
		mutate = s.applyCheckoutCompleted(obj)
	case EventSubscriptionUpdated:
		mutate = s.applySubscriptionUpdated(obj)
	case EventSubscriptionDeleted:
		mutate = s.applySubscriptionDeleted(obj)
	default:
		log.Infof("[Billing] Ignoring webhook event type %s (%s)", eventType, eventID)
	}

	applied, err := s.repo.ProcessEvent(&models.WebhookEvent{
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: s.now().UTC(),
	}, mutate)
	if err != nil {
		return false, err
	}
	if !applied {
		log.Infof("[Billing] Webhook event already processed: %s", eventID)
		return true, nil
	}
	log.Infof("[Billing] Processed webhook %s (%s)", eventType, eventID)
	return false, nil
}

// applyCheckoutCompleted starts the trial: upsert by email, status trialing,
// trial window now..now+trialDays, store the processor ids.
func (s *Service) applyCheckoutCompleted(obj WebhookObject) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error {
		email := strings.ToLower(strings.TrimSpace(obj.CustomerEmail))
		if email == "" {
			return errors.New("checkout event missing customer email")
		}

		sub, err := fetchOrInit(tx, email)
		if err != nil {
			return err
		}
		s.fillCheckoutCompleted(sub, obj)
		return tx.Save(sub).Error
	}
}

// fillCheckoutCompleted sets the trial fields on a subscription row.
func (s *Service) fillCheckoutCompleted(sub *models.Subscription, obj WebhookObject) {
	now := s.now().UTC()
	trialEnd := now.Add(time.Duration(s.trialDays) * 24 * time.Hour)

	sub.Status = models.SubscriptionStatusTrialing
	sub.TrialStart = &now
	sub.TrialEnd = &trialEnd
	if obj.Customer != "" {
		sub.ProcessorCustomerID = obj.Customer
	}
	if obj.Subscription != "" {
		sub.ProcessorSubscriptionID = obj.Subscription
	}
	sub.CancelAtPeriodEnd = false
}

// applySubscriptionUpdated overwrites status, billing period and the
// cancel-at-period-end flag from the payload (last writer wins).
func (s *Service) applySubscriptionUpdated(obj WebhookObject) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error {
		sub, err := s.resolveSubscription(tx, obj)
		if errors.Is(err, errSkipEvent) {
			// Still ledger the event so the processor stops retrying.
			return nil
		}
		if err != nil {
			return err
		}

		fillSubscriptionUpdated(sub, obj)
		return tx.Save(sub).Error
	}
}

// fillSubscriptionUpdated overwrites the mutable fields from the payload.
func fillSubscriptionUpdated(sub *models.Subscription, obj WebhookObject) {
	sub.Status = ProcessorStatusToSubscriptionStatus(obj.Status)
	sub.CurrentPeriodStart = unixToTime(obj.CurrentPeriodStart)
	sub.CurrentPeriodEnd = unixToTime(obj.CurrentPeriodEnd)
	sub.CancelAtPeriodEnd = obj.CancelAtPeriodEnd
	if obj.Customer != "" {
		sub.ProcessorCustomerID = obj.Customer
	}
	if obj.ID != "" {
		sub.ProcessorSubscriptionID = obj.ID
	}
}

func (s *Service) applySubscriptionDeleted(obj WebhookObject) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error {
		sub, err := s.resolveSubscription(tx, obj)
		if errors.Is(err, errSkipEvent) {
			return nil
		}
		if err != nil {
			return err
		}
		sub.Status = models.SubscriptionStatusCanceled
		return tx.Save(sub).Error
	}
}

// resolveSubscription locates the row for a subscription event, preferring the
// payload email and falling back to the stored customer id linkage. Events for
// unknown customers are dropped, not failed: the processor would otherwise
// retry them forever.
func (s *Service) resolveSubscription(tx *gorm.DB, obj WebhookObject) (*models.Subscription, error) {
	if email := strings.ToLower(strings.TrimSpace(obj.CustomerEmail)); email != "" {
		return fetchOrInit(tx, email)
	}

	var sub models.Subscription
	err := tx.Where("processor_customer_id = ?", obj.Customer).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Billing] No local subscription for processor customer %s, skipping", obj.Customer)
			return nil, errSkipEvent
		}
		return nil, err
	}
	return &sub, nil
}

// errSkipEvent marks an event that should be ledgered but applies no mutation.
var errSkipEvent = errors.New("skip event")

func fetchOrInit(tx *gorm.DB, email string) (*models.Subscription, error) {
	var sub models.Subscription
	err := tx.Where("email = ?", email).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.Subscription{Email: email, Status: models.SubscriptionStatusNone}, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
