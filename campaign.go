package pankind

import (
	"time"

	"github.com/shopspring/decimal"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

type Campaign struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Title string `json:"title"`
	Slug  string `json:"slug"`

	GoalAmount decimal.Decimal `json:"goal_amount" db:"goal_amount"`
	Currency   string          `json:"currency"`

	// Derived aggregates, owned by the campaign synchronizer. Do not
	// write to them outside a donation/refund transaction.
	RaisedAmount decimal.Decimal `json:"raised_amount" db:"raised_amount"`
	DonorCount   int             `json:"donor_count" db:"donor_count"`

	Status      CampaignStatus `json:"status"`
	CompletedAt *time.Time     `json:"completed_at" db:"completed_at"`
}

func (c *Campaign) AcceptsDonations() bool {
	return c != nil && c.Status == CampaignStatusActive
}

var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignStatusDraft:  {CampaignStatusActive, CampaignStatusCancelled},
	CampaignStatusActive: {CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusCancelled},
	CampaignStatusPaused: {CampaignStatusActive, CampaignStatusCancelled},
}

// ValidCampaignTransition reports whether a campaign may move between the
// two statuses. completed and cancelled have no exits, reaching the goal is
// a one-way door.
func ValidCampaignTransition(from, to CampaignStatus) bool {
	for _, next := range campaignTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type CampaignMilestone struct {
	ID         int `json:"id"`
	CampaignID int `json:"campaign_id" db:"campaign_id"`

	Threshold decimal.Decimal `json:"threshold"`
	Label     string          `json:"label"`

	Achieved   bool       `json:"achieved"`
	AchievedAt *time.Time `json:"achieved_at" db:"achieved_at"`
}

// CampaignProgress is the read model behind the public progress widget.
// It is served from a short-lived cache, small staleness is acceptable.
type CampaignProgress struct {
	CampaignID int            `json:"campaign_id"`
	Title      string         `json:"title"`
	Slug       string         `json:"slug"`
	Status     CampaignStatus `json:"status"`

	GoalAmount   decimal.Decimal `json:"goal_amount"`
	RaisedAmount decimal.Decimal `json:"raised_amount"`
	DonorCount   int             `json:"donor_count"`
	Percent      float64         `json:"percent"`

	Milestones []*CampaignMilestone `json:"milestones"`
}

type CampaignFilter struct {
	ID     *int            `json:"id"`
	Slug   *string         `json:"slug"`
	Status *CampaignStatus `json:"status"`

	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
