package db

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/PankindProjects/pankind"
	"github.com/google/uuid"
)

func TestDonationLifecycle(t *testing.T) {
	s := testDB(t)
	campaign := testCampaign(t, s, "1000.00")
	donor := testDonor(t, s)

	d := testFeeDonation(t, s, campaign.ID, &donor.ID, "100.00")
	if d.Status != pankind.DonationStatusPending {
		t.Fatalf("Expected pending, got %s", d.Status)
	}
	if !d.NetAmount.Equal(dec("94.30")) {
		t.Fatalf("Expected net 94.30, got %s", d.NetAmount)
	}

	ref := "pay_" + uuid.NewString()
	d, effects, err := s.MarkDonationProcessing(ctx, d.ID, ref)
	if err != nil {
		t.Fatalf("Expected processing transition, got %v", err)
	}
	if d.Status != pankind.DonationStatusProcessing || effects.AlreadyApplied {
		t.Fatalf("Expected fresh processing donation, got %s (replay: %v)", d.Status, effects.AlreadyApplied)
	}

	// Gateway retries the processing notification
	_, effects, err = s.MarkDonationProcessing(ctx, d.ID, ref)
	if err != nil {
		t.Fatalf("Expected replay to be absorbed, got %v", err)
	}
	if !effects.AlreadyApplied {
		t.Fatal("Expected replay to be flagged as already applied")
	}

	// A different reference on the same donation is a protocol violation
	if _, _, err := s.MarkDonationProcessing(ctx, d.ID, "pay_"+uuid.NewString()); !errors.Is(err, pankind.ErrIllegalTransition) {
		t.Fatalf("Expected ErrIllegalTransition, got %v", err)
	}

	now := time.Now()
	d, effects, err = s.CompleteDonation(ctx, d.ID, ref, 5, now)
	if err != nil {
		t.Fatalf("Expected completion, got %v", err)
	}
	if d.Status != pankind.DonationStatusCompleted || effects.AlreadyApplied {
		t.Fatalf("Expected fresh completed donation, got %s (replay: %v)", d.Status, effects.AlreadyApplied)
	}
	if d.ReceiptID == nil || !pankind.ValidReceiptCode(*d.ReceiptID) {
		t.Fatalf("Expected a receipt code, got %v", d.ReceiptID)
	}
	if d.CompletedAt == nil {
		t.Fatal("Expected completed_at to be set")
	}

	byReceipt, err := s.DonationByReceipt(ctx, *d.ReceiptID)
	if err != nil || byReceipt == nil || byReceipt.ID != d.ID {
		t.Fatalf("Expected receipt lookup to find donation %d, got %v (%v)", d.ID, byReceipt, err)
	}

	c, err := s.Campaign(ctx, campaign.ID)
	if err != nil {
		t.Fatalf("Expected campaign, got %v", err)
	}
	if !c.RaisedAmount.Equal(dec("94.30")) {
		t.Fatalf("Expected raised 94.30, got %s", c.RaisedAmount)
	}
	if c.DonorCount != 1 {
		t.Fatalf("Expected donor count 1, got %d", c.DonorCount)
	}

	dn, err := s.Donor(ctx, donor.ID)
	if err != nil {
		t.Fatalf("Expected donor, got %v", err)
	}
	if !dn.TotalDonated.Equal(dec("94.30")) || dn.DonationCount != 1 {
		t.Fatalf("Expected donor stats 94.30/1, got %s/%d", dn.TotalDonated, dn.DonationCount)
	}
	if dn.FirstDonationAt == nil || dn.LastDonationAt == nil {
		t.Fatal("Expected first/last donation timestamps to be set")
	}

	// Completed donations can't be cancelled
	if _, err := s.CancelDonation(ctx, d.ID); !errors.Is(err, pankind.ErrIllegalTransition) {
		t.Fatalf("Expected ErrIllegalTransition, got %v", err)
	}
}

func TestCompleteDonationReplay(t *testing.T) {
	s := testDB(t)
	campaign := testCampaign(t, s, "1000.00")
	donor := testDonor(t, s)

	d := testDonation(t, s, campaign.ID, &donor.ID, "40.00")
	_, ref := completeTestDonation(t, s, d.ID)

	// Same reference again: absorbed, nothing moves
	replayed, effects, err := s.CompleteDonation(ctx, d.ID, ref, 5, time.Now())
	if err != nil {
		t.Fatalf("Expected replay to be absorbed, got %v", err)
	}
	if !effects.AlreadyApplied {
		t.Fatal("Expected replay to be flagged as already applied")
	}
	if replayed.ReceiptID == nil {
		t.Fatal("Expected replay to return the stored receipt")
	}

	// A different reference for an already completed donation is rejected
	if _, _, err := s.CompleteDonation(ctx, d.ID, "pay_"+uuid.NewString(), 5, time.Now()); !errors.Is(err, pankind.ErrIllegalTransition) {
		t.Fatalf("Expected ErrIllegalTransition, got %v", err)
	}

	c, _ := s.Campaign(ctx, campaign.ID)
	if !c.RaisedAmount.Equal(dec("40.00")) {
		t.Fatalf("Expected raised 40.00 after replay, got %s", c.RaisedAmount)
	}
	dn, _ := s.Donor(ctx, donor.ID)
	if dn.DonationCount != 1 {
		t.Fatalf("Expected donation count 1 after replay, got %d", dn.DonationCount)
	}
}

func TestCompleteDonationConcurrentReplay(t *testing.T) {
	s := testDB(t)
	campaign := testCampaign(t, s, "1000.00")

	d := testDonation(t, s, campaign.ID, nil, "25.00")
	ref := "pay_" + uuid.NewString()

	const workers = 4
	var wg sync.WaitGroup
	replays := make([]bool, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, effects, err := s.CompleteDonation(ctx, d.ID, ref, 5, time.Now())
			errs[i] = err
			if err == nil {
				replays[i] = effects.AlreadyApplied
			}
		}(i)
	}
	wg.Wait()

	applied := 0
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("Expected all completions to succeed, got %v", errs[i])
		}
		if !replays[i] {
			applied++
		}
	}
	if applied != 1 {
		t.Fatalf("Expected exactly one fresh completion, got %d", applied)
	}

	c, _ := s.Campaign(ctx, campaign.ID)
	if !c.RaisedAmount.Equal(dec("25.00")) {
		t.Fatalf("Expected raised 25.00, got %s", c.RaisedAmount)
	}

	kind := pankind.EventDonationCompleted
	count, err := s.CountLedgerEvents(ctx, pankind.LedgerEventFilter{DonationID: &d.ID, Kind: &kind})
	if err != nil {
		t.Fatalf("Expected ledger count, got %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected one completion event, got %d", count)
	}
}

func TestConcurrentCompletionsCrossGoal(t *testing.T) {
	s := testDB(t)
	campaign := testCampaign(t, s, "80.00")

	first := testDonation(t, s, campaign.ID, nil, "50.00")
	second := testDonation(t, s, campaign.ID, nil, "50.00")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []int{first.ID, second.ID} {
		wg.Add(1)
		go func(i, id int) {
			defer wg.Done()
			_, _, errs[i] = s.CompleteDonation(ctx, id, "pay_"+uuid.NewString(), 5, time.Now())
		}(i, id)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatalf("Expected both completions to succeed, got %v", err)
		}
	}

	c, err := s.Campaign(ctx, campaign.ID)
	if err != nil {
		t.Fatalf("Expected campaign, got %v", err)
	}
	if !c.RaisedAmount.Equal(dec("100.00")) {
		t.Fatalf("Expected raised 100.00, got %s", c.RaisedAmount)
	}
	if c.Status != pankind.CampaignStatusCompleted {
		t.Fatalf("Expected completed campaign, got %s", c.Status)
	}
	if c.CompletedAt == nil {
		t.Fatal("Expected campaign completed_at to be set")
	}

	kind := pankind.EventCampaignCompleted
	count, err := s.CountLedgerEvents(ctx, pankind.LedgerEventFilter{CampaignID: &campaign.ID, Kind: &kind})
	if err != nil {
		t.Fatalf("Expected ledger count, got %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected the goal to be crossed exactly once, got %d events", count)
	}
}

func TestFailDonation(t *testing.T) {
	s := testDB(t)
	campaign := testCampaign(t, s, "1000.00")
	donor := testDonor(t, s)

	d := testDonation(t, s, campaign.ID, &donor.ID, "30.00")
	ref := "pay_" + uuid.NewString()
	if _, _, err := s.MarkDonationProcessing(ctx, d.ID, ref); err != nil {
		t.Fatalf("Expected processing transition, got %v", err)
	}

	failed, effects, err := s.FailDonation(ctx, d.ID, "card_declined", 3)
	if err != nil {
		t.Fatalf("Expected failure transition, got %v", err)
	}
	if failed.Status != pankind.DonationStatusFailed {
		t.Fatalf("Expected failed, got %s", failed.Status)
	}
	if failed.FailReason == nil || *failed.FailReason != "card_declined" {
		t.Fatalf("Expected fail reason to be recorded, got %v", failed.FailReason)
	}
	if effects.SubscriptionPaused {
		t.Fatal("Expected no subscription effects on a one-time donation")
	}

	// Replayed failure notification
	_, effects, err = s.FailDonation(ctx, d.ID, "card_declined", 3)
	if err != nil || !effects.AlreadyApplied {
		t.Fatalf("Expected absorbed replay, got %v (replay: %v)", err, effects.AlreadyApplied)
	}

	// Failures add nothing to the campaign
	c, _ := s.Campaign(ctx, campaign.ID)
	if !c.RaisedAmount.Equal(dec("0.00")) {
		t.Fatalf("Expected raised 0.00, got %s", c.RaisedAmount)
	}
	dn, _ := s.Donor(ctx, donor.ID)
	if dn.DonationCount != 0 {
		t.Fatalf("Expected donor stats untouched, got count %d", dn.DonationCount)
	}

	// Terminal: a late success notification for a failed donation is rejected
	if _, _, err := s.CompleteDonation(ctx, d.ID, ref, 5, time.Now()); !errors.Is(err, pankind.ErrIllegalTransition) {
		t.Fatalf("Expected ErrIllegalTransition, got %v", err)
	}
}

func TestCancelDonation(t *testing.T) {
	s := testDB(t)
	campaign := testCampaign(t, s, "1000.00")

	d := testDonation(t, s, campaign.ID, nil, "15.00")
	cancelled, err := s.CancelDonation(ctx, d.ID)
	if err != nil {
		t.Fatalf("Expected cancel, got %v", err)
	}
	if cancelled.Status != pankind.DonationStatusCancelled {
		t.Fatalf("Expected cancelled, got %s", cancelled.Status)
	}

	// Once handed to the gateway the donor can no longer abort
	d2 := testDonation(t, s, campaign.ID, nil, "15.00")
	if _, _, err := s.MarkDonationProcessing(ctx, d2.ID, "pay_"+uuid.NewString()); err != nil {
		t.Fatalf("Expected processing transition, got %v", err)
	}
	if _, err := s.CancelDonation(ctx, d2.ID); !errors.Is(err, pankind.ErrIllegalTransition) {
		t.Fatalf("Expected ErrIllegalTransition, got %v", err)
	}
}

func TestDonationNotFound(t *testing.T) {
	s := testDB(t)

	if _, _, err := s.CompleteDonation(ctx, -1, "pay_nope", 5, time.Now()); !errors.Is(err, pankind.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.CompleteDonationByReference(ctx, "pay_"+uuid.NewString(), 5, time.Now()); !errors.Is(err, pankind.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	d, err := s.Donation(ctx, -1)
	if err != nil || d != nil {
		t.Fatalf("Expected nil donation without error, got %v (%v)", d, err)
	}
}

func TestDonationFilters(t *testing.T) {
	s := testDB(t)
	campaign := testCampaign(t, s, "1000.00")
	donor := testDonor(t, s)

	testDonation(t, s, campaign.ID, &donor.ID, "10.00")
	d2 := testDonation(t, s, campaign.ID, &donor.ID, "20.00")
	completeTestDonation(t, s, d2.ID)

	status := pankind.DonationStatusCompleted
	donations, err := s.Donations(ctx, pankind.DonationFilter{CampaignID: &campaign.ID, Status: &status})
	if err != nil {
		t.Fatalf("Expected donations, got %v", err)
	}
	if len(donations) != 1 || donations[0].ID != d2.ID {
		t.Fatalf("Expected only the completed donation, got %d rows", len(donations))
	}

	count, err := s.CountDonations(ctx, pankind.DonationFilter{CampaignID: &campaign.ID})
	if err != nil {
		t.Fatalf("Expected donation count, got %v", err)
	}
	if count != 2 {
		t.Fatalf("Expected 2 donations, got %d", count)
	}

	ordered, err := s.Donations(ctx, pankind.DonationFilter{CampaignID: &campaign.ID, Ordering: "amount", Descending: true})
	if err != nil {
		t.Fatalf("Expected donations, got %v", err)
	}
	if len(ordered) != 2 || !ordered[0].GrossAmount.Equal(dec("20.00")) {
		t.Fatalf("Expected descending amount ordering, got %+v", ordered)
	}
}
