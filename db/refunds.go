package db

import (
	"context"
	"errors"
	"time"

	"github.com/PankindProjects/pankind"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// RefundArgs describes one refund request. Amount nil means "everything
// still refundable". The actor is recorded verbatim, authorization happened
// upstream.
type RefundArgs struct {
	DonationID int
	Amount     *decimal.Decimal
	Reason     string
	Actor      string

	// IdempotencyKey makes retries safe: a replayed key returns the
	// refund that was originally stored instead of reversing twice.
	IdempotencyKey *string
}

const refundCreateQuery = `INSERT INTO refunds (
	donation_id, amount, reason, actor, idempotency_key
) VALUES (
	$1, $2, $3, $4, $5
) RETURNING id, created_at;`

// RefundDonation reverses part or all of a completed donation: refund row,
// donation status flip when the net is exhausted, ledger event, campaign and
// donor reversals, all in one transaction.
func (s *DB) RefundDonation(ctx context.Context, args RefundArgs, now time.Time) (*pankind.Refund, *DonationEffects, error) {
	var refund *pankind.Refund
	effects := &DonationEffects{}
	err := s.InTx(ctx, func(tx pgx.Tx) error {
		*effects = DonationEffects{}

		// Replay check comes before any state validation: a retry of a
		// refund that has since exhausted the donation must still succeed.
		if args.IdempotencyKey != nil {
			prev, err := refundByKeyTx(ctx, tx, *args.IdempotencyKey)
			if err != nil {
				return err
			}
			if prev != nil {
				refund, effects.AlreadyApplied = prev, true
				return nil
			}
		}

		d, err := donationForUpdate(ctx, tx, args.DonationID)
		if err != nil {
			return err
		}
		if d == nil {
			return pankind.ErrNotFound
		}
		if d.Status != pankind.DonationStatusCompleted {
			return pankind.ErrIllegalTransition
		}

		var prior decimal.Decimal
		if err := tx.QueryRow(ctx, "SELECT COALESCE(SUM(amount), 0) FROM refunds WHERE donation_id = $1", d.ID).Scan(&prior); err != nil {
			return err
		}
		remaining := d.NetAmount.Sub(prior)

		amount := remaining
		if args.Amount != nil {
			amount = *args.Amount
		}
		if !amount.IsPositive() || amount.GreaterThan(remaining) {
			return pankind.ErrInvalidRefundAmount
		}

		r := &pankind.Refund{
			DonationID:     d.ID,
			Amount:         amount,
			Reason:         args.Reason,
			Actor:          args.Actor,
			IdempotencyKey: args.IdempotencyKey,
		}
		if err := tx.QueryRow(ctx, refundCreateQuery,
			r.DonationID, r.Amount, r.Reason, r.Actor, r.IdempotencyKey,
		).Scan(&r.ID, &r.CreatedAt); err != nil {
			return err
		}

		fullyRefunded := prior.Add(amount).Equal(d.NetAmount)
		if fullyRefunded {
			if _, err := tx.Exec(ctx, "UPDATE donations SET status = 'refunded', refunded_at = $2 WHERE id = $1", d.ID, now); err != nil {
				return err
			}
			d.Status = pankind.DonationStatusRefunded
			d.RefundedAt = &now
		}
		effects.FullyRefunded = fullyRefunded

		if err := insertLedgerEventTx(ctx, tx, &pankind.LedgerEvent{
			Kind:           pankind.EventDonationRefunded,
			DonationID:     &d.ID,
			CampaignID:     &d.CampaignID,
			SubscriptionID: d.SubscriptionID,
			Amount:         &amount,
			Detail:         args.Reason,
		}); err != nil {
			return err
		}

		if err := reverseCampaignDonationTx(ctx, tx, d, amount, fullyRefunded); err != nil {
			return err
		}
		if d.Attributed() {
			if err := reverseDonorStatsTx(ctx, tx, *d.DonorID, amount, fullyRefunded); err != nil {
				return err
			}
		}

		refund = r
		return nil
	})
	if err != nil {
		// Two replays racing: the slower insert trips the unique key, the
		// stored refund is the answer for both.
		if args.IdempotencyKey != nil && isUniqueViolation(err, "refunds_idempotency_key_key") {
			prev, lookupErr := s.RefundByKey(ctx, *args.IdempotencyKey)
			if lookupErr == nil && prev != nil {
				return prev, &DonationEffects{AlreadyApplied: true}, nil
			}
		}
		return nil, nil, err
	}
	return refund, effects, nil
}

// Refunds retrieves a donation's refunds, oldest first.
func (s *DB) Refunds(ctx context.Context, donationID int) ([]*pankind.Refund, error) {
	rows, _ := s.conn.Query(ctx, "SELECT * FROM refunds WHERE donation_id = $1 ORDER BY id ASC", donationID)
	refunds, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[pankind.Refund])
	if errors.Is(err, pgx.ErrNoRows) {
		return []*pankind.Refund{}, nil
	}
	return refunds, err
}

func (s *DB) RefundByKey(ctx context.Context, key string) (*pankind.Refund, error) {
	rows, _ := s.conn.Query(ctx, "SELECT * FROM refunds WHERE idempotency_key = $1", key)
	refund, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[pankind.Refund])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return refund, err
}

func refundByKeyTx(ctx context.Context, tx pgx.Tx, key string) (*pankind.Refund, error) {
	rows, _ := tx.Query(ctx, "SELECT * FROM refunds WHERE idempotency_key = $1", key)
	refund, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[pankind.Refund])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return refund, err
}

// RefundedAmount reports the cumulative refunded amount of a donation, read
// from the refund_totals view.
func (s *DB) RefundedAmount(ctx context.Context, donationID int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.conn.QueryRow(ctx, "SELECT COALESCE((SELECT refunded_amount FROM refund_totals WHERE donation_id = $1), 0)", donationID).Scan(&total)
	return total, err
}
