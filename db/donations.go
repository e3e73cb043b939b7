package db

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/PankindProjects/pankind"
	"github.com/jackc/pgx/v5"
)

// DonationEffects describes what a transition did beyond the donation row
// itself, so callers can emit signals after the transaction commits.
type DonationEffects struct {
	// AlreadyApplied marks an idempotent replay. Nothing was changed and
	// the returned donation is the previously stored record.
	AlreadyApplied bool

	MilestonesReached  []*pankind.CampaignMilestone
	CampaignCompleted  bool
	SubscriptionPaused bool
	FullyRefunded      bool
}

// CreateDonation inserts d as a pending donation. The fee fields must
// already be computed, they are frozen from this point on.
func (s *DB) CreateDonation(ctx context.Context, d *pankind.Donation) error {
	if d.CampaignID == 0 {
		return pankind.ErrMissingRequired
	}
	return s.InTx(ctx, func(tx pgx.Tx) error {
		if err := createDonationTx(ctx, tx, d); err != nil {
			return err
		}
		gross := d.GrossAmount
		return insertLedgerEventTx(ctx, tx, &pankind.LedgerEvent{
			Kind:           pankind.EventDonationCreated,
			DonationID:     &d.ID,
			CampaignID:     &d.CampaignID,
			SubscriptionID: d.SubscriptionID,
			Amount:         &gross,
		})
	})
}

func createDonationTx(ctx context.Context, tx pgx.Tx, d *pankind.Donation) error {
	var dedication any
	if d.Dedication != nil {
		dedication = d.Dedication
	}
	d.Status = pankind.DonationStatusPending
	return tx.QueryRow(ctx, `INSERT INTO donations (
	donor_id, campaign_id, gross_amount, currency, payment_method,
	platform_fee, processing_fee, net_amount, status, anonymous, message, dedication, subscription_id
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
) RETURNING id, created_at;`,
		d.DonorID, d.CampaignID, d.GrossAmount, d.Currency, d.PaymentMethod,
		d.PlatformFee, d.ProcessingFee, d.NetAmount, d.Status, d.Anonymous, d.Message, dedication, d.SubscriptionID,
	).Scan(&d.ID, &d.CreatedAt)
}

func (s *DB) Donation(ctx context.Context, id int) (*pankind.Donation, error) {
	return s.singleDonation(ctx, pankind.DonationFilter{ID: &id})
}

func (s *DB) DonationByReference(ctx context.Context, reference string) (*pankind.Donation, error) {
	return s.singleDonation(ctx, pankind.DonationFilter{PaymentReference: &reference})
}

func (s *DB) DonationByReceipt(ctx context.Context, receiptID string) (*pankind.Donation, error) {
	return s.singleDonation(ctx, pankind.DonationFilter{ReceiptID: &receiptID})
}

func (s *DB) singleDonation(ctx context.Context, filter pankind.DonationFilter) (*pankind.Donation, error) {
	filter.Limit = 1
	donations, err := s.Donations(ctx, filter)
	if err != nil || len(donations) == 0 {
		return nil, err
	}
	return donations[0], nil
}

// Donations retrieves donations based on a filter.
func (s *DB) Donations(ctx context.Context, filter pankind.DonationFilter) ([]*pankind.Donation, error) {
	sb := sq.Select("*").From("donations")
	sb = donationFilterQuery(&filter, sb)
	query, args, err := sb.OrderBy(getDonationOrdering(filter.Ordering, filter.Descending)).ToSql()
	if err != nil {
		return nil, err
	}

	rows, _ := s.conn.Query(ctx, query, args...)
	donations, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[pankind.Donation])
	if errors.Is(err, pgx.ErrNoRows) {
		return []*pankind.Donation{}, nil
	}
	return donations, err
}

// CountDonations retrieves the number of donations matching a filter. It ignores the limit fields in `filter`.
func (s *DB) CountDonations(ctx context.Context, filter pankind.DonationFilter) (int, error) {
	sb := sq.Select("COUNT(*)").From("donations")
	sb = donationFilterQuery(&filter, sb).RemoveLimit().RemoveOffset()
	query, args, err := sb.ToSql()
	if err != nil {
		return -1, err
	}

	var count int
	err = s.conn.QueryRow(ctx, query, args...).Scan(&count)
	return count, err
}

// MarkDonationProcessing records the gateway's payment reference and moves
// the donation to processing. Replays with the same reference are no-ops.
func (s *DB) MarkDonationProcessing(ctx context.Context, id int, reference string) (*pankind.Donation, *DonationEffects, error) {
	var donation *pankind.Donation
	effects := &DonationEffects{}
	err := s.InTx(ctx, func(tx pgx.Tx) error {
		d, err := donationForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if d == nil {
			return pankind.ErrNotFound
		}
		if d.Status == pankind.DonationStatusProcessing && d.PaymentReference != nil && *d.PaymentReference == reference {
			donation, effects.AlreadyApplied = d, true
			return nil
		}
		if !pankind.ValidDonationTransition(d.Status, pankind.DonationStatusProcessing) {
			return pankind.ErrIllegalTransition
		}
		if d.PaymentReference != nil && *d.PaymentReference != reference {
			return pankind.ErrIllegalTransition
		}

		if _, err := tx.Exec(ctx, "UPDATE donations SET status = 'processing', payment_reference = $2 WHERE id = $1", id, reference); err != nil {
			if isUniqueViolation(err, "donations_payment_reference_key") {
				// Reference already claimed by another donation
				return pankind.ErrIllegalTransition
			}
			return err
		}
		d.Status = pankind.DonationStatusProcessing
		d.PaymentReference = &reference

		if err := insertLedgerEventTx(ctx, tx, &pankind.LedgerEvent{
			Kind:       pankind.EventDonationProcessing,
			DonationID: &d.ID,
			CampaignID: &d.CampaignID,
		}); err != nil {
			return err
		}
		donation = d
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return donation, effects, nil
}

// CompleteDonation settles a donation: receipt assignment, status write,
// ledger event, campaign and donor aggregates, all in one transaction.
// A replay carrying the reference of an already applied completion returns
// the stored record without touching anything.
func (s *DB) CompleteDonation(ctx context.Context, id int, reference string, receiptAttempts int, now time.Time) (*pankind.Donation, *DonationEffects, error) {
	var donation *pankind.Donation
	effects := &DonationEffects{}
	err := s.InTx(ctx, func(tx pgx.Tx) error {
		*effects = DonationEffects{}
		d, err := donationForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if d == nil {
			return pankind.ErrNotFound
		}
		if d.Status == pankind.DonationStatusCompleted {
			if d.PaymentReference != nil && *d.PaymentReference == reference {
				donation, effects.AlreadyApplied = d, true
				return nil
			}
			return pankind.ErrIllegalTransition
		}
		if !pankind.ValidDonationTransition(d.Status, pankind.DonationStatusCompleted) {
			return pankind.ErrIllegalTransition
		}
		if d.PaymentReference != nil && *d.PaymentReference != reference {
			return pankind.ErrIllegalTransition
		}

		receipt, err := assignReceipt(ctx, tx, id, receiptAttempts, now)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, "UPDATE donations SET status = 'completed', payment_reference = $2, completed_at = $3 WHERE id = $1", id, reference, now); err != nil {
			if isUniqueViolation(err, "donations_payment_reference_key") {
				return pankind.ErrIllegalTransition
			}
			return err
		}
		d.Status = pankind.DonationStatusCompleted
		d.PaymentReference = &reference
		d.ReceiptID = &receipt
		d.CompletedAt = &now

		net := d.NetAmount
		if err := insertLedgerEventTx(ctx, tx, &pankind.LedgerEvent{
			Kind:           pankind.EventDonationCompleted,
			DonationID:     &d.ID,
			CampaignID:     &d.CampaignID,
			SubscriptionID: d.SubscriptionID,
			Amount:         &net,
		}); err != nil {
			return err
		}

		milestones, campaignDone, err := applyCampaignDonationTx(ctx, tx, d, now)
		if err != nil {
			return err
		}
		effects.MilestonesReached = milestones
		effects.CampaignCompleted = campaignDone

		if d.Attributed() {
			if err := applyDonorStatsTx(ctx, tx, *d.DonorID, d.NetAmount, now); err != nil {
				return err
			}
		}

		if d.SubscriptionID != nil {
			if err := resetFailureStreakTx(ctx, tx, *d.SubscriptionID); err != nil {
				return err
			}
		}

		donation = d
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return donation, effects, nil
}

// CompleteDonationByReference resolves the payment reference reported by the
// gateway and settles the matching donation.
func (s *DB) CompleteDonationByReference(ctx context.Context, reference string, receiptAttempts int, now time.Time) (*pankind.Donation, *DonationEffects, error) {
	d, err := s.DonationByReference(ctx, reference)
	if err != nil {
		return nil, nil, err
	}
	if d == nil {
		return nil, nil, pankind.ErrNotFound
	}
	return s.CompleteDonation(ctx, d.ID, reference, receiptAttempts, now)
}

// FailDonation records a gateway failure. Subscription-linked donations bump
// the subscription's failure streak, pausing it once the threshold is hit.
func (s *DB) FailDonation(ctx context.Context, id int, reason string, pauseThreshold int) (*pankind.Donation, *DonationEffects, error) {
	var donation *pankind.Donation
	effects := &DonationEffects{}
	err := s.InTx(ctx, func(tx pgx.Tx) error {
		*effects = DonationEffects{}
		d, err := donationForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if d == nil {
			return pankind.ErrNotFound
		}
		if d.Status == pankind.DonationStatusFailed {
			donation, effects.AlreadyApplied = d, true
			return nil
		}
		if !pankind.ValidDonationTransition(d.Status, pankind.DonationStatusFailed) {
			return pankind.ErrIllegalTransition
		}

		if _, err := tx.Exec(ctx, "UPDATE donations SET status = 'failed', fail_reason = $2 WHERE id = $1", id, reason); err != nil {
			return err
		}
		d.Status = pankind.DonationStatusFailed
		d.FailReason = &reason

		if err := insertLedgerEventTx(ctx, tx, &pankind.LedgerEvent{
			Kind:           pankind.EventDonationFailed,
			DonationID:     &d.ID,
			CampaignID:     &d.CampaignID,
			SubscriptionID: d.SubscriptionID,
			Detail:         reason,
		}); err != nil {
			return err
		}

		if d.SubscriptionID != nil {
			paused, err := bumpFailureStreakTx(ctx, tx, *d.SubscriptionID, pauseThreshold)
			if err != nil {
				return err
			}
			effects.SubscriptionPaused = paused
		}

		donation = d
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return donation, effects, nil
}

// FailDonationByReference resolves the payment reference reported by the
// gateway and fails the matching donation.
func (s *DB) FailDonationByReference(ctx context.Context, reference string, reason string, pauseThreshold int) (*pankind.Donation, *DonationEffects, error) {
	d, err := s.DonationByReference(ctx, reference)
	if err != nil {
		return nil, nil, err
	}
	if d == nil {
		return nil, nil, pankind.ErrNotFound
	}
	return s.FailDonation(ctx, d.ID, reason, pauseThreshold)
}

// CancelDonation is the donor-initiated abort of a donation that was never
// handed to the gateway. Legal only from pending.
func (s *DB) CancelDonation(ctx context.Context, id int) (*pankind.Donation, error) {
	var donation *pankind.Donation
	err := s.InTx(ctx, func(tx pgx.Tx) error {
		d, err := donationForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if d == nil {
			return pankind.ErrNotFound
		}
		if !pankind.ValidDonationTransition(d.Status, pankind.DonationStatusCancelled) {
			return pankind.ErrIllegalTransition
		}

		if _, err := tx.Exec(ctx, "UPDATE donations SET status = 'cancelled' WHERE id = $1", id); err != nil {
			return err
		}
		d.Status = pankind.DonationStatusCancelled

		if err := insertLedgerEventTx(ctx, tx, &pankind.LedgerEvent{
			Kind:       pankind.EventDonationCancelled,
			DonationID: &d.ID,
			CampaignID: &d.CampaignID,
		}); err != nil {
			return err
		}
		donation = d
		return nil
	})
	return donation, err
}

func donationForUpdate(ctx context.Context, tx pgx.Tx, id int) (*pankind.Donation, error) {
	rows, _ := tx.Query(ctx, "SELECT * FROM donations WHERE id = $1 FOR UPDATE", id)
	donation, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[pankind.Donation])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return donation, err
}

// assignReceipt stamps a fresh receipt code on the donation. Codes collide
// very rarely, so each attempt runs in a savepoint and conflicting ones are
// rolled back and retried with a new code.
func assignReceipt(ctx context.Context, tx pgx.Tx, id int, attempts int, now time.Time) (string, error) {
	for i := 0; i < attempts; i++ {
		code := pankind.ReceiptCode(now)
		sp, err := tx.Begin(ctx)
		if err != nil {
			return "", err
		}
		if _, err := sp.Exec(ctx, "UPDATE donations SET receipt_id = $2 WHERE id = $1", id, code); err != nil {
			if rbErr := sp.Rollback(ctx); rbErr != nil {
				return "", rbErr
			}
			if isUniqueViolation(err, "donations_receipt_id_key") {
				continue
			}
			return "", err
		}
		if err := sp.Commit(ctx); err != nil {
			return "", err
		}
		return code, nil
	}
	return "", pankind.ErrReceiptGeneration
}

func donationFilterQuery(filter *pankind.DonationFilter, sb sq.SelectBuilder) sq.SelectBuilder {
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
	if v := filter.SubscriptionID; v != nil {
		where = append(where, sq.Eq{"subscription_id": v})
	}
	if v := filter.Status; v != nil {
		where = append(where, sq.Eq{"status": v})
	}
	if v := filter.PaymentReference; v != nil {
		where = append(where, sq.Eq{"payment_reference": v})
	}
	if v := filter.ReceiptID; v != nil {
		where = append(where, sq.Eq{"receipt_id": v})
	}
	if v := filter.Since; v != nil {
		where = append(where, sq.Expr("created_at >= ?", v))
	}
	if v := filter.Until; v != nil {
		where = append(where, sq.Expr("created_at < ?", v))
	}

	if v := filter.Limit; v > 0 {
		sb = sb.Limit(uint64(v))
	}
	if v := filter.Offset; v > 0 {
		sb = sb.Offset(uint64(v))
	}

	return sb.Where(where)
}

func getDonationOrdering(ordering string, descending bool) string {
	ord := " ASC"
	if descending {
		ord = " DESC"
	}
	switch ordering {
	case "amount":
		return "gross_amount" + ord
	case "completed_at":
		return "completed_at" + ord + " NULLS LAST"
	default:
		return "id" + ord
	}
}
