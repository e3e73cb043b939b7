package pankind

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventKind string

const (
	EventDonationCreated    EventKind = "donation.created"
	EventDonationProcessing EventKind = "donation.processing"
	EventDonationCompleted  EventKind = "donation.completed"
	EventDonationFailed     EventKind = "donation.failed"
	EventDonationCancelled  EventKind = "donation.cancelled"
	EventDonationRefunded   EventKind = "donation.refunded"

	EventCampaignMilestone EventKind = "campaign.milestone"
	EventCampaignCompleted EventKind = "campaign.completed"

	EventSubscriptionAutopaused EventKind = "subscription.autopaused"
)

// LedgerEvent is an append-only record of a state transition. Rows are
// written in the same transaction as the transition they describe.
type LedgerEvent struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Kind EventKind `json:"kind"`

	DonationID     *int `json:"donation_id,omitempty" db:"donation_id"`
	CampaignID     *int `json:"campaign_id,omitempty" db:"campaign_id"`
	SubscriptionID *int `json:"subscription_id,omitempty" db:"subscription_id"`

	Amount *decimal.Decimal `json:"amount,omitempty"`
	Detail string           `json:"detail,omitempty"`
}

type LedgerEventFilter struct {
	DonationID     *int       `json:"donation_id"`
	CampaignID     *int       `json:"campaign_id"`
	SubscriptionID *int       `json:"subscription_id"`
	Kind           *EventKind `json:"kind"`

	Since *time.Time `json:"since"`

	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
