package sudoapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PankindProjects/pankind"
	"github.com/PankindProjects/pankind/db"
	"github.com/PankindProjects/pankind/integrations/prometheus"
	"github.com/shopspring/decimal"
)

type RefundRequest struct {
	DonationID int              `json:"donation_id"`
	Amount     *decimal.Decimal `json:"amount"`
	Reason     string           `json:"reason"`
	Actor      string           `json:"actor"`

	IdempotencyKey *string `json:"idempotency_key"`
}

// RefundDonation reverses part or all of a completed donation and takes the
// money back out of every aggregate it touched. Replays of the same
// idempotency key return the originally stored refund.
func (s *BaseAPI) RefundDonation(ctx context.Context, req RefundRequest) (*pankind.Refund, error) {
	req.Actor = strings.TrimSpace(req.Actor)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.DonationID <= 0 || req.Actor == "" || req.Reason == "" {
		return nil, ErrMissingRequired
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		return nil, pankind.ErrInvalidRefundAmount
	}
	if req.IdempotencyKey != nil && *req.IdempotencyKey == "" {
		return nil, Statusf(400, "Idempotency key must not be empty")
	}

	refund, effects, err := s.db.RefundDonation(ctx, db.RefundArgs{
		DonationID:     req.DonationID,
		Amount:         req.Amount,
		Reason:         req.Reason,
		Actor:          req.Actor,
		IdempotencyKey: req.IdempotencyKey,
	}, time.Now())
	if err != nil {
		if errors.Is(err, pankind.ErrAggregateUnderflow) {
			// Aggregates no longer cover a refund they should include, the
			// books need manual repair before this donation can be reversed.
			slog.ErrorContext(ctx, "Aggregate underflow during refund reversal",
				slog.Int("donation_id", req.DonationID), slog.Any("err", err))
		}
		return nil, err
	}
	if effects.AlreadyApplied {
		return refund, nil
	}

	prometheus.Refunds.Inc()
	s.LogActorAction(ctx, req.Actor, "Refunded %s from donation #%d (%s)", refund.Amount, refund.DonationID, req.Reason)
	return refund, nil
}

// Refunds lists the refunds recorded against a donation, oldest first.
func (s *BaseAPI) Refunds(ctx context.Context, donationID int) ([]*pankind.Refund, error) {
	refunds, err := s.db.Refunds(ctx, donationID)
	if err != nil {
		return nil, fmt.Errorf("couldn't get refunds: %w", err)
	}
	return refunds, nil
}

// RefundedAmount totals what has been given back from a donation so far.
func (s *BaseAPI) RefundedAmount(ctx context.Context, donationID int) (decimal.Decimal, error) {
	total, err := s.db.RefundedAmount(ctx, donationID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("couldn't get refunded amount: %w", err)
	}
	return total, nil
}
