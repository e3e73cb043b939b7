package pankind

import (
	"time"

	"github.com/shopspring/decimal"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

type DonationInterval string

const (
	DonationIntervalWeekly    DonationInterval = "weekly"
	DonationIntervalMonthly   DonationInterval = "monthly"
	DonationIntervalQuarterly DonationInterval = "quarterly"
	DonationIntervalYearly    DonationInterval = "yearly"
)

func ValidDonationInterval(interval DonationInterval) bool {
	switch interval {
	case DonationIntervalWeekly, DonationIntervalMonthly, DonationIntervalQuarterly, DonationIntervalYearly:
		return true
	}
	return false
}

type Subscription struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	DonorID    int `json:"donor_id" db:"donor_id"`
	CampaignID int `json:"campaign_id" db:"campaign_id"`

	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PaymentMethod PaymentMethod   `json:"payment_method" db:"payment_method"`

	Interval  DonationInterval `json:"interval"`
	NextDueAt time.Time        `json:"next_due_at" db:"next_due_at"`

	Status        SubscriptionStatus `json:"status"`
	FailureStreak int                `json:"failure_streak" db:"failure_streak"`

	CancelledAt *time.Time `json:"cancelled_at" db:"cancelled_at"`
}

// ValidSubscriptionTransition reports whether a subscription may move
// between the two statuses. cancelled is terminal.
func ValidSubscriptionTransition(from, to SubscriptionStatus) bool {
	switch from {
	case SubscriptionStatusActive:
		return to == SubscriptionStatusPaused || to == SubscriptionStatusCancelled
	case SubscriptionStatusPaused:
		return to == SubscriptionStatusActive || to == SubscriptionStatusCancelled
	}
	return false
}

// NextChargeTime advances a due time by one subscription interval.
// Month-based intervals clamp to the last day of shorter months instead of
// spilling into the next one, so a subscription due on Jan 31 comes due on
// Feb 28 (or 29), not Mar 2.
func NextChargeTime(t time.Time, interval DonationInterval) time.Time {
	switch interval {
	case DonationIntervalWeekly:
		return t.AddDate(0, 0, 7)
	case DonationIntervalMonthly:
		return addMonthsClamped(t, 1)
	case DonationIntervalQuarterly:
		return addMonthsClamped(t, 3)
	case DonationIntervalYearly:
		return addMonthsClamped(t, 12)
	}
	return t
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if lastDay := firstOfTarget.AddDate(0, 1, -1).Day(); day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

type SubscriptionFilter struct {
	ID         *int `json:"id"`
	DonorID    *int `json:"donor_id"`
	CampaignID *int `json:"campaign_id"`

	Status *SubscriptionStatus `json:"status"`

	// DueBefore selects subscriptions whose next charge is due at or
	// before the given time.
	DueBefore *time.Time `json:"due_before"`

	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
