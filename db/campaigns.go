package db

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/PankindProjects/pankind"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const campaignCreateQuery = `INSERT INTO campaigns (
	title, slug, goal_amount, currency, status
) VALUES (
	$1, $2, $3, $4, $5
) RETURNING id, created_at;`

// CreateCampaign inserts a campaign shell. Aggregate fields start at zero
// and are only ever touched by donation/refund transactions.
func (s *DB) CreateCampaign(ctx context.Context, c *pankind.Campaign) error {
	if c.Title == "" || c.Slug == "" {
		return pankind.ErrMissingRequired
	}
	if c.Status == "" {
		c.Status = pankind.CampaignStatusDraft
	}
	err := s.conn.QueryRow(ctx, campaignCreateQuery,
		c.Title, c.Slug, c.GoalAmount, c.Currency, c.Status,
	).Scan(&c.ID, &c.CreatedAt)
	if isUniqueViolation(err, "campaigns_slug_key") {
		return pankind.Statusf(400, "Campaign slug already in use")
	}
	return err
}

const milestoneCreateQuery = `INSERT INTO campaign_milestones (
	campaign_id, threshold, label
) VALUES (
	$1, $2, $3
) RETURNING id;`

func (s *DB) CreateMilestone(ctx context.Context, m *pankind.CampaignMilestone) error {
	err := s.conn.QueryRow(ctx, milestoneCreateQuery, m.CampaignID, m.Threshold, m.Label).Scan(&m.ID)
	if isUniqueViolation(err, "campaign_milestones_campaign_id_threshold_key") {
		return pankind.Statusf(400, "Milestone threshold already defined for campaign")
	}
	return err
}

func (s *DB) Campaign(ctx context.Context, id int) (*pankind.Campaign, error) {
	return s.singleCampaign(ctx, pankind.CampaignFilter{ID: &id})
}

func (s *DB) CampaignBySlug(ctx context.Context, slug string) (*pankind.Campaign, error) {
	return s.singleCampaign(ctx, pankind.CampaignFilter{Slug: &slug})
}

func (s *DB) singleCampaign(ctx context.Context, filter pankind.CampaignFilter) (*pankind.Campaign, error) {
	filter.Limit = 1
	campaigns, err := s.Campaigns(ctx, filter)
	if err != nil || len(campaigns) == 0 {
		return nil, err
	}
	return campaigns[0], nil
}

// Campaigns retrieves campaigns based on a filter.
func (s *DB) Campaigns(ctx context.Context, filter pankind.CampaignFilter) ([]*pankind.Campaign, error) {
	sb := sq.Select("*").From("campaigns")
	sb = campaignFilterQuery(&filter, sb)
	query, args, err := sb.OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, err
	}

	rows, _ := s.conn.Query(ctx, query, args...)
	campaigns, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[pankind.Campaign])
	if errors.Is(err, pgx.ErrNoRows) {
		return []*pankind.Campaign{}, nil
	}
	return campaigns, err
}

// CampaignMilestones retrieves a campaign's milestones in threshold order.
func (s *DB) CampaignMilestones(ctx context.Context, campaignID int) ([]*pankind.CampaignMilestone, error) {
	rows, _ := s.conn.Query(ctx, "SELECT * FROM campaign_milestones WHERE campaign_id = $1 ORDER BY threshold ASC", campaignID)
	milestones, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[pankind.CampaignMilestone])
	if errors.Is(err, pgx.ErrNoRows) {
		return []*pankind.CampaignMilestone{}, nil
	}
	return milestones, err
}

// UpdateCampaignStatus performs a manual campaign lifecycle transition. The
// status is checked and written in a single conditional update so concurrent
// transitions can't race each other.
func (s *DB) UpdateCampaignStatus(ctx context.Context, id int, from, to pankind.CampaignStatus, now time.Time) error {
	if !pankind.ValidCampaignTransition(from, to) {
		return pankind.ErrIllegalTransition
	}
	var completedAt *time.Time
	if to == pankind.CampaignStatusCompleted {
		completedAt = &now
	}
	tag, err := s.conn.Exec(ctx, "UPDATE campaigns SET status = $3, completed_at = COALESCE($4, completed_at) WHERE id = $1 AND status = $2", id, from, to, completedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		c, err := s.Campaign(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return pankind.ErrNotFound
		}
		return pankind.ErrIllegalTransition
	}
	return nil
}

// applyCampaignDonationTx credits a completed donation to its campaign:
// atomic raised_amount increment, donor count on the donor's first completed
// donation to the campaign, milestone sweep and goal auto-completion. Runs
// inside the donation's completion transaction, it is never visible without
// the status write that justifies it.
func applyCampaignDonationTx(ctx context.Context, tx pgx.Tx, d *pankind.Donation, now time.Time) ([]*pankind.CampaignMilestone, bool, error) {
	var raised, goal decimal.Decimal
	var status pankind.CampaignStatus
	err := tx.QueryRow(ctx,
		"UPDATE campaigns SET raised_amount = raised_amount + $2 WHERE id = $1 RETURNING raised_amount, goal_amount, status",
		d.CampaignID, d.NetAmount,
	).Scan(&raised, &goal, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, pankind.ErrNotFound
	}
	if err != nil {
		return nil, false, err
	}

	if d.Attributed() {
		first, err := donorFirstOnCampaignTx(ctx, tx, d.CampaignID, *d.DonorID, d.ID)
		if err != nil {
			return nil, false, err
		}
		if first {
			if _, err := tx.Exec(ctx, "UPDATE campaigns SET donor_count = donor_count + 1 WHERE id = $1", d.CampaignID); err != nil {
				return nil, false, err
			}
		}
	}

	rows, _ := tx.Query(ctx,
		"UPDATE campaign_milestones SET achieved = TRUE, achieved_at = $3 WHERE campaign_id = $1 AND NOT achieved AND threshold <= $2 RETURNING *",
		d.CampaignID, raised, now,
	)
	milestones, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[pankind.CampaignMilestone])
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}
	for _, m := range milestones {
		threshold := m.Threshold
		if err := insertLedgerEventTx(ctx, tx, &pankind.LedgerEvent{
			Kind:       pankind.EventCampaignMilestone,
			CampaignID: &d.CampaignID,
			DonationID: &d.ID,
			Amount:     &threshold,
			Detail:     m.Label,
		}); err != nil {
			return nil, false, err
		}
	}

	var completed bool
	if status == pankind.CampaignStatusActive && raised.GreaterThanOrEqual(goal) {
		tag, err := tx.Exec(ctx,
			"UPDATE campaigns SET status = 'completed', completed_at = $2 WHERE id = $1 AND status = 'active'",
			d.CampaignID, now,
		)
		if err != nil {
			return nil, false, err
		}
		if tag.RowsAffected() > 0 {
			completed = true
			if err := insertLedgerEventTx(ctx, tx, &pankind.LedgerEvent{
				Kind:       pankind.EventCampaignCompleted,
				CampaignID: &d.CampaignID,
				DonationID: &d.ID,
				Amount:     &raised,
			}); err != nil {
				return nil, false, err
			}
		}
	}

	return milestones, completed, nil
}

// reverseCampaignDonationTx takes a refunded amount back out of the campaign
// aggregate. The decrement is conditional on the current value, a campaign
// that would go negative means some other write bypassed this engine and the
// whole transaction is rejected instead of clamping silently. Completion and
// milestones are historical facts and are left alone.
func reverseCampaignDonationTx(ctx context.Context, tx pgx.Tx, d *pankind.Donation, amount decimal.Decimal, fullyRefunded bool) error {
	tag, err := tx.Exec(ctx,
		"UPDATE campaigns SET raised_amount = raised_amount - $2 WHERE id = $1 AND raised_amount >= $2",
		d.CampaignID, amount,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pankind.ErrAggregateUnderflow
	}

	if fullyRefunded && d.Attributed() {
		remaining, err := donorFirstOnCampaignTx(ctx, tx, d.CampaignID, *d.DonorID, d.ID)
		if err != nil {
			return err
		}
		// donorFirstOnCampaignTx reports no other completed donation left
		if remaining {
			tag, err := tx.Exec(ctx, "UPDATE campaigns SET donor_count = donor_count - 1 WHERE id = $1 AND donor_count >= 1", d.CampaignID)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return pankind.ErrAggregateUnderflow
			}
		}
	}

	return nil
}

// donorFirstOnCampaignTx reports whether the donor has no completed donation
// on the campaign other than the one currently transitioning. Used both ways:
// at completion it decides whether the donor is new to the campaign, at full
// refund whether they just stopped counting.
func donorFirstOnCampaignTx(ctx context.Context, tx pgx.Tx, campaignID, donorID, exceptDonationID int) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM donations WHERE campaign_id = $1 AND donor_id = $2 AND status = 'completed' AND id <> $3)",
		campaignID, donorID, exceptDonationID,
	).Scan(&exists)
	return !exists, err
}

func campaignFilterQuery(filter *pankind.CampaignFilter, sb sq.SelectBuilder) sq.SelectBuilder {
	where := sq.And{}
	if v := filter.ID; v != nil {
		where = append(where, sq.Eq{"id": v})
	}
	if v := filter.Slug; v != nil {
		where = append(where, sq.Eq{"slug": v})
	}
	if v := filter.Status; v != nil {
		where = append(where, sq.Eq{"status": v})
	}

	if v := filter.Limit; v > 0 {
		sb = sb.Limit(uint64(v))
	}
	if v := filter.Offset; v > 0 {
		sb = sb.Offset(uint64(v))
	}

	return sb.Where(where)
}
