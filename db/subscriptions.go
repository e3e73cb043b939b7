package db

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/PankindProjects/pankind"
	"github.com/jackc/pgx/v5"
)

const subscriptionCreateQuery = `INSERT INTO subscriptions (
	donor_id, campaign_id, amount, currency, payment_method, interval, next_due_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
) RETURNING id, created_at;`

func (s *DB) CreateSubscription(ctx context.Context, sub *pankind.Subscription) error {
	if sub.DonorID == 0 || sub.CampaignID == 0 {
		return pankind.ErrMissingRequired
	}
	sub.Status = pankind.SubscriptionStatusActive
	return s.conn.QueryRow(ctx, subscriptionCreateQuery,
		sub.DonorID, sub.CampaignID, sub.Amount, sub.Currency, sub.PaymentMethod, sub.Interval, sub.NextDueAt,
	).Scan(&sub.ID, &sub.CreatedAt)
}

func (s *DB) Subscription(ctx context.Context, id int) (*pankind.Subscription, error) {
	subs, err := s.Subscriptions(ctx, pankind.SubscriptionFilter{ID: &id, Limit: 1})
	if err != nil || len(subs) == 0 {
		return nil, err
	}
	return subs[0], nil
}

// Subscriptions retrieves subscriptions based on a filter.
func (s *DB) Subscriptions(ctx context.Context, filter pankind.SubscriptionFilter) ([]*pankind.Subscription, error) {
	sb := sq.Select("*").From("subscriptions")
	sb = subscriptionFilterQuery(&filter, sb)
	query, args, err := sb.OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, err
	}

	rows, _ := s.conn.Query(ctx, query, args...)
	subs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[pankind.Subscription])
	if errors.Is(err, pgx.ErrNoRows) {
		return []*pankind.Subscription{}, nil
	}
	return subs, err
}

// UpdateSubscriptionStatus performs a donor/admin-initiated subscription
// transition. Resuming a paused subscription clears the failure streak so
// the next charge starts with a clean slate.
func (s *DB) UpdateSubscriptionStatus(ctx context.Context, id int, to pankind.SubscriptionStatus, now time.Time) (*pankind.Subscription, error) {
	var subscription *pankind.Subscription
	err := s.InTx(ctx, func(tx pgx.Tx) error {
		sub, err := subscriptionForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return pankind.ErrNotFound
		}
		if !pankind.ValidSubscriptionTransition(sub.Status, to) {
			return pankind.ErrIllegalTransition
		}

		switch to {
		case pankind.SubscriptionStatusCancelled:
			if _, err := tx.Exec(ctx, "UPDATE subscriptions SET status = 'cancelled', cancelled_at = $2 WHERE id = $1", id, now); err != nil {
				return err
			}
			sub.CancelledAt = &now
		case pankind.SubscriptionStatusActive:
			if _, err := tx.Exec(ctx, "UPDATE subscriptions SET status = 'active', failure_streak = 0 WHERE id = $1", id); err != nil {
				return err
			}
			sub.FailureStreak = 0
		default:
			if _, err := tx.Exec(ctx, "UPDATE subscriptions SET status = $2 WHERE id = $1", id, to); err != nil {
				return err
			}
		}
		sub.Status = to
		subscription = sub
		return nil
	})
	return subscription, err
}

// DueSubscriptionIDs lists active subscriptions whose next charge is due.
// The sweep claims each one individually afterwards, so this read is only a
// candidate list and doesn't need to lock anything.
func (s *DB) DueSubscriptionIDs(ctx context.Context, now time.Time, limit int) ([]int, error) {
	rows, _ := s.conn.Query(ctx,
		"SELECT id FROM subscriptions WHERE status = 'active' AND next_due_at <= $1 ORDER BY next_due_at ASC "+FormatLimitOffset(limit, 0),
		now,
	)
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if errors.Is(err, pgx.ErrNoRows) {
		return []int{}, nil
	}
	return ids, err
}

// ChargeSubscription claims a due subscription and creates its pending
// donation in one transaction. The claim re-checks due time and status under
// a SKIP LOCKED row lock, so overlapping sweeps can't double-charge: whoever
// locks first advances next_due_at, everyone else sees nothing to do.
// A subscription that fell several periods behind catches up one charge per
// sweep instead of bursting them all at once.
//
// The build callback turns the claimed subscription into the pending
// donation to insert (the caller owns fee policy). Returns false if the
// subscription was not claimable.
func (s *DB) ChargeSubscription(ctx context.Context, id int, now time.Time, build func(sub *pankind.Subscription) (*pankind.Donation, error)) (*pankind.Donation, bool, error) {
	var donation *pankind.Donation
	var charged bool
	err := s.InTx(ctx, func(tx pgx.Tx) error {
		donation, charged = nil, false
		rows, _ := tx.Query(ctx,
			"SELECT * FROM subscriptions WHERE id = $1 AND status = 'active' AND next_due_at <= $2 FOR UPDATE SKIP LOCKED",
			id, now,
		)
		sub, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[pankind.Subscription])
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		nextDue := pankind.NextChargeTime(sub.NextDueAt, sub.Interval)
		if _, err := tx.Exec(ctx, "UPDATE subscriptions SET next_due_at = $2 WHERE id = $1", id, nextDue); err != nil {
			return err
		}

		d, err := build(sub)
		if err != nil {
			return err
		}
		d.SubscriptionID = &sub.ID
		if err := createDonationTx(ctx, tx, d); err != nil {
			return err
		}
		gross := d.GrossAmount
		if err := insertLedgerEventTx(ctx, tx, &pankind.LedgerEvent{
			Kind:           pankind.EventDonationCreated,
			DonationID:     &d.ID,
			CampaignID:     &d.CampaignID,
			SubscriptionID: &sub.ID,
			Amount:         &gross,
		}); err != nil {
			return err
		}

		donation, charged = d, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return donation, charged, nil
}

func subscriptionForUpdate(ctx context.Context, tx pgx.Tx, id int) (*pankind.Subscription, error) {
	rows, _ := tx.Query(ctx, "SELECT * FROM subscriptions WHERE id = $1 FOR UPDATE", id)
	sub, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[pankind.Subscription])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

// bumpFailureStreakTx counts a failed charge against the subscription and
// auto-pauses it once the streak hits the threshold. The pause is recorded
// as a ledger event so the external notifier can pick it up.
func bumpFailureStreakTx(ctx context.Context, tx pgx.Tx, id int, threshold int) (bool, error) {
	var streak int
	var status pankind.SubscriptionStatus
	err := tx.QueryRow(ctx,
		"UPDATE subscriptions SET failure_streak = failure_streak + 1 WHERE id = $1 RETURNING failure_streak, status",
		id,
	).Scan(&streak, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, pankind.ErrNotFound
	}
	if err != nil {
		return false, err
	}

	if threshold <= 0 || streak < threshold || status != pankind.SubscriptionStatusActive {
		return false, nil
	}

	tag, err := tx.Exec(ctx, "UPDATE subscriptions SET status = 'paused' WHERE id = $1 AND status = 'active'", id)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := insertLedgerEventTx(ctx, tx, &pankind.LedgerEvent{
		Kind:           pankind.EventSubscriptionAutopaused,
		SubscriptionID: &id,
		Detail:         "consecutive charge failures",
	}); err != nil {
		return false, err
	}
	return true, nil
}

func resetFailureStreakTx(ctx context.Context, tx pgx.Tx, id int) error {
	_, err := tx.Exec(ctx, "UPDATE subscriptions SET failure_streak = 0 WHERE id = $1 AND failure_streak <> 0", id)
	return err
}

func subscriptionFilterQuery(filter *pankind.SubscriptionFilter, sb sq.SelectBuilder) sq.SelectBuilder {
	where := sq.And{}
	if v := filter.ID; v != nil {
		where = append(where, sq.Eq{"id": v})
	}
	if v := filter.DonorID; v != nil {
		where = append(where, sq.Eq{"donor_id": v})
	}
	if v := filter.CampaignID; v != nil {
		where = append(where, sq.Eq{"campaign_id": v})
	}
	if v := filter.Status; v != nil {
		where = append(where, sq.Eq{"status": v})
	}
	if v := filter.DueBefore; v != nil {
		where = append(where, sq.Expr("next_due_at <= ?", v))
	}

	if v := filter.Limit; v > 0 {
		sb = sb.Limit(uint64(v))
	}
	if v := filter.Offset; v > 0 {
		sb = sb.Offset(uint64(v))
	}

	return sb.Where(where)
}
