package db

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/PankindProjects/pankind"
	"github.com/shopspring/decimal"
)

func testSubscription(t *testing.T, s *DB, campaignID, donorID int, due time.Time) *pankind.Subscription {
	t.Helper()
	sub := &pankind.Subscription{
		DonorID:       donorID,
		CampaignID:    campaignID,
		Amount:        dec("25.00"),
		Currency:      "USD",
		PaymentMethod: pankind.PaymentMethodCard,
		Interval:      pankind.DonationIntervalMonthly,
		NextDueAt:     due,
	}
	if err := s.CreateSubscription(ctx, sub); err != nil {
		t.Fatalf("Expected subscription fixture, got %v", err)
	}
	return sub
}

// zeroFeeCharge builds the pending donation for a claimed subscription
// without any fee split, tests don't care about the schedule here.
func zeroFeeCharge(sub *pankind.Subscription) (*pankind.Donation, error) {
	return &pankind.Donation{
		DonorID:       &sub.DonorID,
		CampaignID:    sub.CampaignID,
		GrossAmount:   sub.Amount,
		Currency:      sub.Currency,
		PaymentMethod: sub.PaymentMethod,
		PlatformFee:   decimal.Zero,
		ProcessingFee: decimal.Zero,
		NetAmount:     sub.Amount,
	}, nil
}

func rewindSubscription(t *testing.T, s *DB, id int, due time.Time) {
	t.Helper()
	if _, err := s.conn.Exec(ctx, "UPDATE subscriptions SET next_due_at = $2 WHERE id = $1", id, due); err != nil {
		t.Fatalf("Expected due rewind, got %v", err)
	}
}

func TestChargeSubscription(t *testing.T) {
	s := testDB(t)
	campaign := testCampaign(t, s, "1000.00")
	donor := testDonor(t, s)

	due := time.Now().Add(-time.Hour)
	sub := testSubscription(t, s, campaign.ID, donor.ID, due)

	now := time.Now()
	d, charged, err := s.ChargeSubscription(ctx, sub.ID, now, zeroFeeCharge)
	if err != nil {
		t.Fatalf("Expected charge, got %v", err)
	}
	if !charged {
		t.Fatal("Expected the due subscription to be claimed")
	}
	if d.Status != pankind.DonationStatusPending {
		t.Fatalf("Expected pending donation, got %s", d.Status)
	}
	if d.SubscriptionID == nil || *d.SubscriptionID != sub.ID {
		t.Fatalf("Expected donation linked to subscription %d, got %v", sub.ID, d.SubscriptionID)
	}

	// The next due time advances from the old due time, not from now, so
	// charging late doesn't shift the donor's anniversary.
	got, err := s.Subscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Expected subscription, got %v", err)
	}
	wantDue := pankind.NextChargeTime(due, sub.Interval)
	if got.NextDueAt.Sub(wantDue).Abs() > time.Millisecond {
		t.Fatalf("Expected next due %s, got %s", wantDue, got.NextDueAt)
	}

	// No longer due, a second sweep finds nothing to claim
	_, charged, err = s.ChargeSubscription(ctx, sub.ID, now, zeroFeeCharge)
	if err != nil {
		t.Fatalf("Expected no-op charge, got %v", err)
	}
	if charged {
		t.Fatal("Expected the advanced subscription to not be claimable")
	}

	donations, _ := s.Donations(ctx, pankind.DonationFilter{SubscriptionID: &sub.ID})
	if len(donations) != 1 {
		t.Fatalf("Expected a single donation, got %d", len(donations))
	}
}

func TestChargeSubscriptionCatchesUpOnePeriod(t *testing.T) {
	s := testDB(t)
	campaign := testCampaign(t, s, "1000.00")
	donor := testDonor(t, s)

	// Three months behind
	due := time.Now().AddDate(0, -3, 0)
	sub := testSubscription(t, s, campaign.ID, donor.ID, due)

	now := time.Now()
	charges := 0
	for i := 0; i < 5; i++ {
		_, charged, err := s.ChargeSubscription(ctx, sub.ID, now, zeroFeeCharge)
		if err != nil {
			t.Fatalf("Expected charge attempt, got %v", err)
		}
		if !charged {
			break
		}
		charges++
	}
	if charges != 3 {
		t.Fatalf("Expected 3 catch-up charges, got %d", charges)
	}

	got, _ := s.Subscription(ctx, sub.ID)
	if !got.NextDueAt.After(now) {
		t.Fatalf("Expected next due in the future, got %s", got.NextDueAt)
	}
}

func TestChargeSubscriptionBuildFailureRollsBack(t *testing.T) {
	s := testDB(t)
	campaign := testCampaign(t, s, "1000.00")
	donor := testDonor(t, s)

	due := time.Now().Add(-time.Hour)
	sub := testSubscription(t, s, campaign.ID, donor.ID, due)

	boom := errors.New("schedule exploded")
	_, _, err := s.ChargeSubscription(ctx, sub.ID, time.Now(), func(sub *pankind.Subscription) (*pankind.Donation, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected build error to surface, got %v", err)
	}

	// The claim rolled back with it, the subscription is still due
	got, _ := s.Subscription(ctx, sub.ID)
	if got.NextDueAt.Sub(due).Abs() > time.Millisecond {
		t.Fatalf("Expected due time to be untouched, got %s", got.NextDueAt)
	}
	donations, _ := s.Donations(ctx, pankind.DonationFilter{SubscriptionID: &sub.ID})
	if len(donations) != 0 {
		t.Fatalf("Expected no donations, got %d", len(donations))
	}
}

func TestSubscriptionAutopause(t *testing.T) {
	s := testDB(t)
	campaign := testCampaign(t, s, "1000.00")
	donor := testDonor(t, s)

	sub := testSubscription(t, s, campaign.ID, donor.ID, time.Now().Add(-time.Hour))

	const threshold = 3
	for i := 0; i < threshold; i++ {
		rewindSubscription(t, s, sub.ID, time.Now().Add(-time.Hour))
		d, charged, err := s.ChargeSubscription(ctx, sub.ID, time.Now(), zeroFeeCharge)
		if err != nil || !charged {
			t.Fatalf("Expected charge %d, got %v (charged: %v)", i+1, err, charged)
		}

		_, effects, err := s.FailDonation(ctx, d.ID, "card_declined", threshold)
		if err != nil {
			t.Fatalf("Expected failure %d, got %v", i+1, err)
		}
		if paused := i == threshold-1; effects.SubscriptionPaused != paused {
			t.Fatalf("Expected paused=%v on failure %d, got %v", paused, i+1, effects.SubscriptionPaused)
		}
	}

	got, _ := s.Subscription(ctx, sub.ID)
	if got.Status != pankind.SubscriptionStatusPaused {
		t.Fatalf("Expected paused subscription, got %s", got.Status)
	}
	if got.FailureStreak != threshold {
		t.Fatalf("Expected failure streak %d, got %d", threshold, got.FailureStreak)
	}

	kind := pankind.EventSubscriptionAutopaused
	count, _ := s.CountLedgerEvents(ctx, pankind.LedgerEventFilter{SubscriptionID: &sub.ID, Kind: &kind})
	if count != 1 {
		t.Fatalf("Expected one autopause event, got %d", count)
	}

	// Paused subscriptions are not claimable even when due
	rewindSubscription(t, s, sub.ID, time.Now().Add(-time.Hour))
	_, charged, err := s.ChargeSubscription(ctx, sub.ID, time.Now(), zeroFeeCharge)
	if err != nil {
		t.Fatalf("Expected no-op charge, got %v", err)
	}
	if charged {
		t.Fatal("Expected paused subscription to not be claimable")
	}

	// Resuming wipes the streak
	resumed, err := s.UpdateSubscriptionStatus(ctx, sub.ID, pankind.SubscriptionStatusActive, time.Now())
	if err != nil {
		t.Fatalf("Expected resume, got %v", err)
	}
	if resumed.FailureStreak != 0 {
		t.Fatalf("Expected cleared streak, got %d", resumed.FailureStreak)
	}
}

func TestCompletionResetsFailureStreak(t *testing.T) {
	s := testDB(t)
	campaign := testCampaign(t, s, "1000.00")
	donor := testDonor(t, s)

	sub := testSubscription(t, s, campaign.ID, donor.ID, time.Now().Add(-time.Hour))

	// Two failures, one short of the threshold
	for i := 0; i < 2; i++ {
		rewindSubscription(t, s, sub.ID, time.Now().Add(-time.Hour))
		d, _, err := s.ChargeSubscription(ctx, sub.ID, time.Now(), zeroFeeCharge)
		if err != nil {
			t.Fatalf("Expected charge, got %v", err)
		}
		if _, _, err := s.FailDonation(ctx, d.ID, "card_declined", 3); err != nil {
			t.Fatalf("Expected failure, got %v", err)
		}
	}

	got, _ := s.Subscription(ctx, sub.ID)
	if got.FailureStreak != 2 || got.Status != pankind.SubscriptionStatusActive {
		t.Fatalf("Expected active subscription with streak 2, got %s/%d", got.Status, got.FailureStreak)
	}

	// A successful charge breaks the streak
	rewindSubscription(t, s, sub.ID, time.Now().Add(-time.Hour))
	d, _, err := s.ChargeSubscription(ctx, sub.ID, time.Now(), zeroFeeCharge)
	if err != nil {
		t.Fatalf("Expected charge, got %v", err)
	}
	completeTestDonation(t, s, d.ID)

	got, _ = s.Subscription(ctx, sub.ID)
	if got.FailureStreak != 0 {
		t.Fatalf("Expected streak 0 after success, got %d", got.FailureStreak)
	}
}

func TestSubscriptionStatusTransitions(t *testing.T) {
	s := testDB(t)
	campaign := testCampaign(t, s, "1000.00")
	donor := testDonor(t, s)

	sub := testSubscription(t, s, campaign.ID, donor.ID, time.Now().AddDate(0, 1, 0))

	paused, err := s.UpdateSubscriptionStatus(ctx, sub.ID, pankind.SubscriptionStatusPaused, time.Now())
	if err != nil || paused.Status != pankind.SubscriptionStatusPaused {
		t.Fatalf("Expected paused, got %v (%v)", paused, err)
	}

	cancelled, err := s.UpdateSubscriptionStatus(ctx, sub.ID, pankind.SubscriptionStatusCancelled, time.Now())
	if err != nil {
		t.Fatalf("Expected cancel, got %v", err)
	}
	if cancelled.CancelledAt == nil {
		t.Fatal("Expected cancelled_at to be set")
	}

	// Cancelled is terminal
	if _, err := s.UpdateSubscriptionStatus(ctx, sub.ID, pankind.SubscriptionStatusActive, time.Now()); !errors.Is(err, pankind.ErrIllegalTransition) {
		t.Fatalf("Expected ErrIllegalTransition, got %v", err)
	}

	if _, err := s.UpdateSubscriptionStatus(ctx, -1, pankind.SubscriptionStatusPaused, time.Now()); !errors.Is(err, pankind.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestDueSubscriptionIDs(t *testing.T) {
	s := testDB(t)
	campaign := testCampaign(t, s, "1000.00")
	donor := testDonor(t, s)

	now := time.Now()
	due1 := testSubscription(t, s, campaign.ID, donor.ID, now.Add(-time.Hour))
	due2 := testSubscription(t, s, campaign.ID, donor.ID, now.Add(-time.Minute))
	future := testSubscription(t, s, campaign.ID, donor.ID, now.AddDate(0, 1, 0))
	pausedDue := testSubscription(t, s, campaign.ID, donor.ID, now.Add(-time.Hour))
	if _, err := s.UpdateSubscriptionStatus(ctx, pausedDue.ID, pankind.SubscriptionStatusPaused, now); err != nil {
		t.Fatalf("Expected pause, got %v", err)
	}

	ids, err := s.DueSubscriptionIDs(ctx, now, 0)
	if err != nil {
		t.Fatalf("Expected due ids, got %v", err)
	}
	if !slices.Contains(ids, due1.ID) || !slices.Contains(ids, due2.ID) {
		t.Fatalf("Expected both due subscriptions in %v", ids)
	}
	if slices.Contains(ids, future.ID) {
		t.Fatal("Expected future subscription to not be due")
	}
	if slices.Contains(ids, pausedDue.ID) {
		t.Fatal("Expected paused subscription to not be due")
	}
}
