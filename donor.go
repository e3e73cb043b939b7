package pankind

import (
	"time"

	"github.com/shopspring/decimal"
)

type Donor struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Name  string `json:"name"`
	Email string `json:"email"`

	// Lifetime stats, owned by the donor synchronizer. The timestamps are
	// historical facts and survive refunds.
	TotalDonated    decimal.Decimal `json:"total_donated" db:"total_donated"`
	DonationCount   int             `json:"donation_count" db:"donation_count"`
	FirstDonationAt *time.Time      `json:"first_donation_at" db:"first_donation_at"`
	LastDonationAt  *time.Time      `json:"last_donation_at" db:"last_donation_at"`
}

type DonorFilter struct {
	ID    *int    `json:"id"`
	Email *string `json:"email"`
	Name  *string `json:"name"`

	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
