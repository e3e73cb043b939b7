package pankind

import (
	"time"

	"github.com/shopspring/decimal"
)

type DonationStatus string

const (
	DonationStatusPending    DonationStatus = "pending"
	DonationStatusProcessing DonationStatus = "processing"
	DonationStatusCompleted  DonationStatus = "completed"
	DonationStatusFailed     DonationStatus = "failed"
	DonationStatusCancelled  DonationStatus = "cancelled"
	DonationStatusRefunded   DonationStatus = "refunded"
)

type PaymentMethod string

// Payment methods priced by the default fee schedule. The column is a free
// tag, gateways may report methods the schedule doesn't know about.
const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

type DedicationType string

const (
	DedicationInHonorOf  DedicationType = "in_honor_of"
	DedicationInMemoryOf DedicationType = "in_memory_of"
)

type Dedication struct {
	Type        DedicationType `json:"type"`
	HonoreeName string         `json:"honoree_name"`
	NotifyEmail string         `json:"notify_email,omitempty"`
}

type Donation struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	DonorID    *int `json:"donor_id" db:"donor_id"`
	CampaignID int  `json:"campaign_id" db:"campaign_id"`

	GrossAmount   decimal.Decimal `json:"gross_amount" db:"gross_amount"`
	Currency      string          `json:"currency"`
	PaymentMethod PaymentMethod   `json:"payment_method" db:"payment_method"`

	// Frozen at creation time, never recomputed afterwards.
	PlatformFee   decimal.Decimal `json:"platform_fee" db:"platform_fee"`
	ProcessingFee decimal.Decimal `json:"processing_fee" db:"processing_fee"`
	NetAmount     decimal.Decimal `json:"net_amount" db:"net_amount"`

	Status DonationStatus `json:"status"`

	Anonymous  bool        `json:"anonymous"`
	Message    string      `json:"message,omitempty"`
	Dedication *Dedication `json:"dedication,omitempty"`

	ReceiptID        *string `json:"receipt_id" db:"receipt_id"`
	PaymentReference *string `json:"payment_reference" db:"payment_reference"`
	SubscriptionID   *int    `json:"subscription_id" db:"subscription_id"`

	FailReason  *string    `json:"fail_reason,omitempty" db:"fail_reason"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
	RefundedAt  *time.Time `json:"refunded_at" db:"refunded_at"`
}

// Attributed returns true if the donation counts towards donor statistics.
// The anonymity flag only hides the donor from public display, a donation
// with a recorded donor still updates their lifetime stats.
func (d *Donation) Attributed() bool {
	return d.DonorID != nil
}

var donationTransitions = map[DonationStatus][]DonationStatus{
	DonationStatusPending:    {DonationStatusProcessing, DonationStatusCompleted, DonationStatusFailed, DonationStatusCancelled},
	DonationStatusProcessing: {DonationStatusCompleted, DonationStatusFailed},
	DonationStatusCompleted:  {DonationStatusRefunded},
}

// ValidDonationTransition reports whether a donation may move between the
// two statuses. failed, cancelled and refunded have no exits.
func ValidDonationTransition(from, to DonationStatus) bool {
	for _, next := range donationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Refund struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	DonationID int `json:"donation_id" db:"donation_id"`

	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
	Actor  string          `json:"actor"`

	IdempotencyKey *string `json:"idempotency_key,omitempty" db:"idempotency_key"`
}

// DonationFilter is the struct with all filterable fields on the donation
// It also provides a Limit and Offset field, for pagination
type DonationFilter struct {
	ID         *int `json:"id"`
	DonorID    *int `json:"donor_id"`
	CampaignID *int `json:"campaign_id"`

	SubscriptionID *int `json:"subscription_id"`

	Status           *DonationStatus `json:"status"`
	PaymentReference *string         `json:"payment_reference"`
	ReceiptID        *string         `json:"receipt_id"`

	Since *time.Time `json:"since"`
	Until *time.Time `json:"until"`

	Limit  int `json:"limit"`
	Offset int `json:"offset"`

	Ordering   string `json:"ordering"`
	Descending bool   `json:"descending"`
}
