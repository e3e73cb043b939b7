package sudoapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PankindProjects/pankind"
	"github.com/PankindProjects/pankind/integrations/prometheus"
	"github.com/PankindProjects/pankind/internal/config"
	"github.com/dustin/go-humanize"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"
	"golang.org/x/text/currency"
)

var (
	SubscriptionsEnabled = config.GenFlag("subscriptions.enabled", true, "Accept new recurring donation subscriptions")

	FailureThreshold = config.GenFlag("subscriptions.failure_threshold", 3, "Consecutive failed charges before a subscription is auto-paused")

	SweepEnabled     = config.GenFlag("subscriptions.sweep.enabled", true, "Run the recurring donation sweep on this instance")
	SweepInterval    = config.GenFlag("subscriptions.sweep.interval_minutes", 5, "Minutes between recurring donation sweeps")
	SweepBatchSize   = config.GenFlag("subscriptions.sweep.batch_size", 200, "Maximum due subscriptions picked up per sweep")
	SweepConcurrency = config.GenFlag("subscriptions.sweep.concurrency", 4, "Concurrent charges during a sweep")
)

type SubscriptionRequest struct {
	DonorID    int `json:"donor_id"`
	CampaignID int `json:"campaign_id"`

	Amount        decimal.Decimal       `json:"amount"`
	Currency      string                `json:"currency"`
	PaymentMethod pankind.PaymentMethod `json:"payment_method"`

	Interval pankind.DonationInterval `json:"interval"`

	// FirstChargeAt defaults to "now", i.e. the next sweep picks it up.
	FirstChargeAt *time.Time `json:"first_charge_at"`
}

func (r SubscriptionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.DonorID, validation.Required, validation.Min(1)),
		validation.Field(&r.CampaignID, validation.Required, validation.Min(1)),
		validation.Field(&r.Currency, validation.Required, validation.Length(3, 3)),
		validation.Field(&r.PaymentMethod, validation.Required, validation.Length(1, 32)),
		validation.Field(&r.Interval, validation.Required),
	)
}

// CreateSubscription registers a standing donation instruction. No money
// moves here, charges are minted by the sweep when they come due.
func (s *BaseAPI) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*pankind.Subscription, error) {
	if !SubscriptionsEnabled.Value() {
		return nil, ErrFeatureDisabled
	}
	if err := req.Validate(); err != nil {
		return nil, Statusf(400, "Invalid subscription: %s", err)
	}
	if !pankind.ValidDonationInterval(req.Interval) {
		return nil, Statusf(400, "Unknown donation interval")
	}
	if req.Amount.LessThan(MinDonationAmount.Value()) || req.Amount.GreaterThan(MaxDonationAmount.Value()) {
		return nil, pankind.ErrInvalidAmount
	}
	unit, err := currency.ParseISO(req.Currency)
	if err != nil {
		return nil, Statusf(400, "Unknown currency code")
	}

	campaign, err := s.Campaign(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.AcceptsDonations() {
		return nil, Statusf(400, "Campaign is not accepting donations")
	}
	if unit.String() != campaign.Currency {
		return nil, Statusf(400, "Subscription currency must match campaign currency (%s)", campaign.Currency)
	}
	if _, err := s.Donor(ctx, req.DonorID); err != nil {
		return nil, err
	}

	nextDue := time.Now()
	if req.FirstChargeAt != nil {
		nextDue = *req.FirstChargeAt
	}

	sub := &pankind.Subscription{
		DonorID:    req.DonorID,
		CampaignID: req.CampaignID,

		Amount:        req.Amount,
		Currency:      unit.String(),
		PaymentMethod: req.PaymentMethod,

		Interval:  req.Interval,
		NextDueAt: nextDue,
	}
	if err := s.db.CreateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("couldn't create subscription: %w", err)
	}
	slog.InfoContext(ctx, "Subscription created",
		slog.Int("subscription_id", sub.ID),
		slog.Int("campaign_id", sub.CampaignID),
		slog.String("interval", string(sub.Interval)))
	return sub, nil
}

func (s *BaseAPI) Subscription(ctx context.Context, id int) (*pankind.Subscription, error) {
	sub, err := s.db.Subscription(ctx, id)
	if err != nil || sub == nil {
		return nil, fmt.Errorf("subscription not found: %w", ErrNotFound)
	}
	return sub, nil
}

func (s *BaseAPI) Subscriptions(ctx context.Context, filter pankind.SubscriptionFilter) ([]*pankind.Subscription, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 100
	}
	subs, err := s.db.Subscriptions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("couldn't get subscriptions: %w", err)
	}
	return subs, nil
}

func (s *BaseAPI) PauseSubscription(ctx context.Context, id int) (*pankind.Subscription, error) {
	return s.db.UpdateSubscriptionStatus(ctx, id, pankind.SubscriptionStatusPaused, time.Now())
}

// ResumeSubscription reactivates a paused subscription and forgives its
// failure streak.
func (s *BaseAPI) ResumeSubscription(ctx context.Context, id int) (*pankind.Subscription, error) {
	return s.db.UpdateSubscriptionStatus(ctx, id, pankind.SubscriptionStatusActive, time.Now())
}

func (s *BaseAPI) CancelSubscription(ctx context.Context, id int) (*pankind.Subscription, error) {
	return s.db.UpdateSubscriptionStatus(ctx, id, pankind.SubscriptionStatusCancelled, time.Now())
}

func (s *BaseAPI) buildSubscriptionDonation(ctx context.Context, sub *pankind.Subscription) (*pankind.Donation, error) {
	breakdown, err := s.schedule.Compute(sub.Amount, sub.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if breakdown.Unpriced {
		slog.WarnContext(ctx, "Unpriced payment method on subscription, applying platform fee only",
			slog.Int("subscription_id", sub.ID),
			slog.String("method", string(sub.PaymentMethod)))
	}
	return &pankind.Donation{
		CampaignID:    sub.CampaignID,
		DonorID:       &sub.DonorID,
		GrossAmount:   sub.Amount,
		Currency:      sub.Currency,
		PaymentMethod: sub.PaymentMethod,

		PlatformFee:   breakdown.PlatformFee,
		ProcessingFee: breakdown.ProcessingFee,
		NetAmount:     breakdown.NetAmount,
	}, nil
}

// ChargeSubscription mints the pending donation for one due subscription.
// Returns false if someone else already claimed it or it is no longer due.
func (s *BaseAPI) ChargeSubscription(ctx context.Context, id int, now time.Time) (*pankind.Donation, bool, error) {
	return s.db.ChargeSubscription(ctx, id, now, func(sub *pankind.Subscription) (*pankind.Donation, error) {
		return s.buildSubscriptionDonation(ctx, sub)
	})
}

type SweepReport struct {
	Due     int `json:"due"`
	Charged int `json:"charged"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// RunSubscriptionSweep charges everything that came due. Due subscriptions
// are claimed one by one under row locks, so overlapping sweeps (another
// instance, an admin triggering one by hand) split the work instead of
// double-charging, with the loser of each claim counted as skipped.
func (s *BaseAPI) RunSubscriptionSweep(ctx context.Context, now time.Time) (*SweepReport, error) {
	ids, err := s.db.DueSubscriptionIDs(ctx, now, SweepBatchSize.Value())
	if err != nil {
		return nil, fmt.Errorf("couldn't list due subscriptions: %w", err)
	}
	prometheus.SweepRuns.Inc()

	report := &SweepReport{Due: len(ids)}
	if len(ids) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := semaphore.NewWeighted(int64(max(SweepConcurrency.Value(), 1)))
	for _, id := range ids {
		id := id
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			_, charged, err := s.ChargeSubscription(ctx, id, now)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
				slog.WarnContext(ctx, "Couldn't charge subscription", slog.Int("subscription_id", id), slog.Any("err", err))
			case charged:
				report.Charged++
			default:
				report.Skipped++
			}
		}()
	}
	wg.Wait()

	prometheus.SweepCharges.Add(float64(report.Charged))
	prometheus.SweepErrors.Add(float64(report.Failed))
	if report.Charged > 0 || report.Failed > 0 {
		s.LogSystemAction(ctx, fmt.Sprintf(
			"Recurring sweep: %s charges minted (%d due, %d skipped, %d failed)",
			humanize.Comma(int64(report.Charged)), report.Due, report.Skipped, report.Failed,
		))
	}
	return report, nil
}

func (s *BaseAPI) subscriptionSweepJob(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.Canceled) {
				return ctx.Err()
			}
			return nil
		case <-t.C:
			if !SweepEnabled.Value() {
				continue
			}
			// A tick never outlives its slot, so a wedged store can't pile
			// up overlapping sweeps.
			tickCtx, cancel := context.WithTimeout(ctx, interval)
			if _, err := s.RunSubscriptionSweep(tickCtx, time.Now()); err != nil {
				slog.WarnContext(ctx, "Subscription sweep failed", slog.Any("err", err))
			}
			cancel()
		}
	}
}
