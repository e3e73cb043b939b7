package sudoapi

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PankindProjects/pankind"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gosimple/slug"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type MilestoneSpec struct {
	Threshold decimal.Decimal `json:"threshold"`
	Label     string          `json:"label"`
}

type CampaignRequest struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`

	GoalAmount decimal.Decimal `json:"goal_amount"`
	Currency   string          `json:"currency"`

	Milestones []MilestoneSpec `json:"milestones"`
}

func (r CampaignRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.RuneLength(1, 128)),
		validation.Field(&r.Currency, validation.Required, validation.Length(3, 3)),
	)
}

// CreateCampaign inserts a draft campaign together with its initial
// milestones. It starts collecting donations only once activated.
func (s *BaseAPI) CreateCampaign(ctx context.Context, req CampaignRequest) (*pankind.Campaign, error) {
	if err := req.Validate(); err != nil {
		return nil, Statusf(400, "Invalid campaign: %s", err)
	}
	if !req.GoalAmount.IsPositive() {
		return nil, Statusf(400, "Campaign goal must be positive")
	}
	unit, err := currency.ParseISO(req.Currency)
	if err != nil {
		return nil, Statusf(400, "Unknown currency code")
	}
	for _, m := range req.Milestones {
		if !m.Threshold.IsPositive() {
			return nil, Statusf(400, "Milestone thresholds must be positive")
		}
	}

	c := &pankind.Campaign{
		Title:      strings.TrimSpace(bluemonday.StrictPolicy().Sanitize(req.Title)),
		GoalAmount: req.GoalAmount,
		Currency:   unit.String(),
	}
	if req.Slug == "" {
		req.Slug = c.Title
	}
	c.Slug = slug.Make(req.Slug)

	if err := s.db.CreateCampaign(ctx, c); err != nil {
		return nil, fmt.Errorf("couldn't create campaign: %w", err)
	}
	for _, m := range req.Milestones {
		milestone := &pankind.CampaignMilestone{
			CampaignID: c.ID,
			Threshold:  m.Threshold,
			Label:      strings.TrimSpace(bluemonday.StrictPolicy().Sanitize(m.Label)),
		}
		if err := s.db.CreateMilestone(ctx, milestone); err != nil {
			return nil, fmt.Errorf("couldn't create milestone: %w", err)
		}
	}
	slog.InfoContext(ctx, "Campaign created", slog.Int("campaign_id", c.ID), slog.String("slug", c.Slug))
	return c, nil
}

// AddMilestone attaches another milestone to an existing campaign. Adding
// one below the current raised amount is allowed, the next completed
// donation sweeps it.
func (s *BaseAPI) AddMilestone(ctx context.Context, campaignID int, spec MilestoneSpec) (*pankind.CampaignMilestone, error) {
	if !spec.Threshold.IsPositive() {
		return nil, Statusf(400, "Milestone thresholds must be positive")
	}
	campaign, err := s.Campaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	milestone := &pankind.CampaignMilestone{
		CampaignID: campaign.ID,
		Threshold:  spec.Threshold,
		Label:      strings.TrimSpace(bluemonday.StrictPolicy().Sanitize(spec.Label)),
	}
	if err := s.db.CreateMilestone(ctx, milestone); err != nil {
		return nil, fmt.Errorf("couldn't create milestone: %w", err)
	}
	s.progressCache.Delete(campaignID)
	return milestone, nil
}

func (s *BaseAPI) Campaign(ctx context.Context, id int) (*pankind.Campaign, error) {
	c, err := s.db.Campaign(ctx, id)
	if err != nil || c == nil {
		return nil, fmt.Errorf("campaign not found: %w", ErrNotFound)
	}
	return c, nil
}

func (s *BaseAPI) CampaignBySlug(ctx context.Context, campaignSlug string) (*pankind.Campaign, error) {
	c, err := s.db.CampaignBySlug(ctx, campaignSlug)
	if err != nil || c == nil {
		return nil, fmt.Errorf("campaign not found: %w", ErrNotFound)
	}
	return c, nil
}

func (s *BaseAPI) Campaigns(ctx context.Context, filter pankind.CampaignFilter) ([]*pankind.Campaign, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 100
	}
	campaigns, err := s.db.Campaigns(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("couldn't get campaigns: %w", err)
	}
	return campaigns, nil
}

func (s *BaseAPI) CampaignMilestones(ctx context.Context, campaignID int) ([]*pankind.CampaignMilestone, error) {
	milestones, err := s.db.CampaignMilestones(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("couldn't get campaign milestones: %w", err)
	}
	return milestones, nil
}

// UpdateCampaignStatus drives a manual lifecycle transition. The status
// read here is the compare guard for the conditional update, two racing
// admins can't both win.
func (s *BaseAPI) UpdateCampaignStatus(ctx context.Context, id int, to pankind.CampaignStatus) (*pankind.Campaign, error) {
	campaign, err := s.Campaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.UpdateCampaignStatus(ctx, id, campaign.Status, to, time.Now()); err != nil {
		return nil, err
	}
	s.progressCache.Delete(id)
	slog.InfoContext(ctx, "Campaign status updated",
		slog.Int("campaign_id", id),
		slog.String("from", string(campaign.Status)),
		slog.String("to", string(to)))
	return s.Campaign(ctx, id)
}

// CampaignProgress serves the public progress read model. It comes out of a
// short-TTL cache, a just-completed donation may take a few seconds to show.
func (s *BaseAPI) CampaignProgress(ctx context.Context, campaignID int) (*pankind.CampaignProgress, error) {
	progress, err := s.progressCache.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return progress, nil
}

func (s *BaseAPI) loadCampaignProgress(ctx context.Context, campaignID int) (*pankind.CampaignProgress, error) {
	c, err := s.Campaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	milestones, err := s.db.CampaignMilestones(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("couldn't get campaign milestones: %w", err)
	}

	progress := &pankind.CampaignProgress{
		CampaignID: c.ID,
		Title:      c.Title,
		Slug:       c.Slug,
		Status:     c.Status,

		GoalAmount:   c.GoalAmount,
		RaisedAmount: c.RaisedAmount,
		DonorCount:   c.DonorCount,

		Milestones: milestones,
	}
	if c.GoalAmount.IsPositive() {
		progress.Percent = c.RaisedAmount.Div(c.GoalAmount).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	return progress, nil
}
