package quota

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/artimagehub/ArtImageHub/app/repository"
	"github.com/artimagehub/ArtImageHub/internal/pkg/entitlements"
	"github.com/artimagehub/ArtImageHub/internal/pkg/env"
)

// DefaultDailyLimit is the free-tier download quota per IP per calendar day.
const DefaultDailyLimit = 3

// Result answers a quota check. Remaining is -1 for subscribers (unlimited).
type Result struct {
	Allowed      bool `json:"allowed"`
	Remaining    int  `json:"remaining"`
	IsSubscriber bool `json:"is_subscriber"`
}

// Checker enforces the freemium download quota.
type Checker struct {
	subs      repository.SubscriptionRepository
	downloads repository.DownloadRepository
	limit     int
	now       func() time.Time
}

// NewChecker builds a quota checker over the given repositories. The limit is
// read from FREE_DAILY_LIMIT, falling back to the default of 3.
func NewChecker(subs repository.SubscriptionRepository, downloads repository.DownloadRepository) *Checker {
	limit := DefaultDailyLimit
	if v, err := strconv.Atoi(env.GetEnv("FREE_DAILY_LIMIT", "")); err == nil && v > 0 {
		limit = v
	}
	return &Checker{subs: subs, downloads: downloads, limit: limit, now: time.Now}
}

// NewCheckerWithLimit is NewChecker with an explicit limit and clock; used by tests.
func NewCheckerWithLimit(subs repository.SubscriptionRepository, downloads repository.DownloadRepository, limit int, now func() time.Time) *Checker {
	return &Checker{subs: subs, downloads: downloads, limit: limit, now: now}
}

// Limit returns the configured free-tier daily limit.
func (c *Checker) Limit() int {
	return c.limit
}

// Check answers whether a download would be allowed right now. It is a pure
// read: nothing is recorded until Record is called after the download is
// actually served.
func (c *Checker) Check(ip, email string) (Result, error) {
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		sub, err := c.subs.GetByEmail(email)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return Result{}, err
		}
		if err == nil && entitlements.IsEntitled(sub, c.now()) {
			return Result{Allowed: true, Remaining: -1, IsSubscriber: true}, nil
		}
	}

	count, err := c.downloads.CountByIPAndDate(ip, c.now())
	if err != nil {
		return Result{}, err
	}

	remaining := c.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: remaining > 0, Remaining: remaining, IsSubscriber: false}, nil
}

// Record logs a served download for the IP's daily count.
func (c *Checker) Record(ip, taskUUID string) error {
	return c.downloads.Record(ip, taskUUID, c.now())
}
