package billing

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/artimagehub/ArtImageHub/app/models"
)

type fakeRepository struct {
	ledger      map[string]*models.WebhookEvent
	mutateCalls int
	failNext    error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{ledger: map[string]*models.WebhookEvent{}}
}

func (f *fakeRepository) GetSubscriptionByEmail(email string) (*models.Subscription, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) GetSubscriptionByCustomerID(customerID string) (*models.Subscription, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) SetCancelAtPeriodEnd(email string) error {
	return nil
}

func (f *fakeRepository) ProcessEvent(event *models.WebhookEvent, mutate func(tx *gorm.DB) error) (bool, error) {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return false, err
	}
	if _, seen := f.ledger[event.EventID]; seen {
		return false, nil
	}
	f.ledger[event.EventID] = event
	if mutate != nil {
		f.mutateCalls++
	}
	return true, nil
}

func testClock() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func TestHandleEventReplayIsDuplicate(t *testing.T) {
	repo := newFakeRepository()
	svc := NewServiceWithClock(repo, 7, testClock)

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"customer_email":"a@example.com"}}}`)

	duplicate, err := svc.HandleEvent(context.Background(), "evt_1", EventCheckoutCompleted, payload)
	if err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if duplicate {
		t.Fatalf("first delivery flagged as duplicate")
	}

	duplicate, err = svc.HandleEvent(context.Background(), "evt_1", EventCheckoutCompleted, payload)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !duplicate {
		t.Fatalf("replay not flagged as duplicate")
	}
	if repo.mutateCalls != 1 {
		t.Fatalf("mutation ran %d times, want 1", repo.mutateCalls)
	}
}

func TestHandleEventUnknownTypeIsLedgeredWithoutMutation(t *testing.T) {
	repo := newFakeRepository()
	svc := NewServiceWithClock(repo, 7, testClock)

	duplicate, err := svc.HandleEvent(context.Background(), "evt_2", "invoice.paid", []byte(`{"id":"evt_2","type":"invoice.paid"}`))
	if err != nil {
		t.Fatalf("unknown type failed: %v", err)
	}
	if duplicate {
		t.Fatalf("unknown type flagged as duplicate")
	}
	if repo.mutateCalls != 0 {
		t.Fatalf("unknown type triggered a mutation")
	}
	if _, ok := repo.ledger["evt_2"]; !ok {
		t.Fatalf("unknown type was not ledgered")
	}
}

func TestHandleEventValidation(t *testing.T) {
	svc := NewServiceWithClock(newFakeRepository(), 7, testClock)

	if _, err := svc.HandleEvent(context.Background(), "", EventCheckoutCompleted, []byte(`{}`)); err == nil {
		t.Fatalf("expected error for missing event id")
	}
	if _, err := svc.HandleEvent(context.Background(), "evt_3", EventCheckoutCompleted, []byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}

func TestFillCheckoutCompleted(t *testing.T) {
	svc := NewServiceWithClock(newFakeRepository(), 7, testClock)

	sub := &models.Subscription{Email: "a@example.com", Status: models.SubscriptionStatusNone, CancelAtPeriodEnd: true}
	svc.fillCheckoutCompleted(sub, WebhookObject{
		Customer:     "cus_123",
		Subscription: "sub_456",
	})

	if sub.Status != models.SubscriptionStatusTrialing {
		t.Fatalf("status = %q, want trialing", sub.Status)
	}
	if sub.TrialStart == nil || !sub.TrialStart.Equal(testClock()) {
		t.Fatalf("trial_start = %v, want %v", sub.TrialStart, testClock())
	}
	wantEnd := testClock().Add(7 * 24 * time.Hour)
	if sub.TrialEnd == nil || !sub.TrialEnd.Equal(wantEnd) {
		t.Fatalf("trial_end = %v, want %v", sub.TrialEnd, wantEnd)
	}
	if sub.ProcessorCustomerID != "cus_123" || sub.ProcessorSubscriptionID != "sub_456" {
		t.Fatalf("processor ids not stored: %+v", sub)
	}
	if sub.CancelAtPeriodEnd {
		t.Fatalf("checkout must clear cancel_at_period_end")
	}
}

func TestFillSubscriptionUpdated(t *testing.T) {
	periodStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	sub := &models.Subscription{
		Email:  "a@example.com",
		Status: models.SubscriptionStatusTrialing,
	}
	fillSubscriptionUpdated(sub, WebhookObject{
		ID:                 "sub_789",
		Customer:           "cus_123",
		Status:             "active",
		CurrentPeriodStart: periodStart.Unix(),
		CurrentPeriodEnd:   periodEnd.Unix(),
		CancelAtPeriodEnd:  true,
	})

	if sub.Status != models.SubscriptionStatusActive {
		t.Fatalf("status = %q, want active", sub.Status)
	}
	if sub.CurrentPeriodStart == nil || !sub.CurrentPeriodStart.Equal(periodStart) {
		t.Fatalf("current_period_start = %v, want %v", sub.CurrentPeriodStart, periodStart)
	}
	if sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.Equal(periodEnd) {
		t.Fatalf("current_period_end = %v, want %v", sub.CurrentPeriodEnd, periodEnd)
	}
	if !sub.CancelAtPeriodEnd {
		t.Fatalf("cancel_at_period_end not carried over")
	}
	if sub.ProcessorSubscriptionID != "sub_789" {
		t.Fatalf("subscription id not stored: %+v", sub)
	}
}

func TestProcessorStatusToSubscriptionStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "trialing", want: models.SubscriptionStatusTrialing},
		{in: "on_trial", want: models.SubscriptionStatusTrialing},
		{in: "active", want: models.SubscriptionStatusActive},
		{in: "past_due", want: models.SubscriptionStatusPastDue},
		{in: "unpaid", want: models.SubscriptionStatusPastDue},
		{in: "canceled", want: models.SubscriptionStatusCanceled},
		{in: "cancelled", want: models.SubscriptionStatusCanceled},
		{in: "expired", want: models.SubscriptionStatusCanceled},
		{in: "something_else", want: models.SubscriptionStatusNone},
		{in: "  Active ", want: models.SubscriptionStatusActive},
	}

	for _, tt := range tests {
		if got := ProcessorStatusToSubscriptionStatus(tt.in); got != tt.want {
			t.Fatalf("ProcessorStatusToSubscriptionStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUnixToTime(t *testing.T) {
	if got := unixToTime(0); got != nil {
		t.Fatalf("unixToTime(0) = %v, want nil", got)
	}
	ts := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	got := unixToTime(ts.Unix())
	if got == nil || !got.Equal(ts) {
		t.Fatalf("unixToTime = %v, want %v", got, ts)
	}
}
