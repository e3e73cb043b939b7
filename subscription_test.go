package pankind

import (
	"testing"
	"time"
)

func TestNextChargeTime(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
	}

	tests := []struct {
		name     string
		from     time.Time
		interval DonationInterval
		want     time.Time
	}{
		{"weekly", day(2026, time.March, 10), DonationIntervalWeekly, day(2026, time.March, 17)},
		{"weekly across month", day(2026, time.January, 28), DonationIntervalWeekly, day(2026, time.February, 4)},
		{"monthly plain", day(2026, time.April, 15), DonationIntervalMonthly, day(2026, time.May, 15)},
		{"monthly clamps to february", day(2026, time.January, 31), DonationIntervalMonthly, day(2026, time.February, 28)},
		{"monthly clamps to leap february", day(2024, time.January, 31), DonationIntervalMonthly, day(2024, time.February, 29)},
		{"monthly clamps 31 to 30", day(2026, time.March, 31), DonationIntervalMonthly, day(2026, time.April, 30)},
		{"quarterly", day(2026, time.February, 10), DonationIntervalQuarterly, day(2026, time.May, 10)},
		{"quarterly clamps", day(2025, time.November, 30), DonationIntervalQuarterly, day(2026, time.February, 28)},
		{"yearly", day(2026, time.July, 4), DonationIntervalYearly, day(2027, time.July, 4)},
		{"yearly from leap day", day(2024, time.February, 29), DonationIntervalYearly, day(2025, time.February, 28)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := NextChargeTime(test.from, test.interval)
			if !got.Equal(test.want) {
				t.Fatalf("Expected %s, got %s", test.want, got)
			}
		})
	}
}

func TestNextChargeTimeKeepsClock(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	from := time.Date(2026, time.May, 31, 23, 45, 12, 0, loc)
	got := NextChargeTime(from, DonationIntervalMonthly)
	want := time.Date(2026, time.June, 30, 23, 45, 12, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("Expected %s, got %s", want, got)
	}
}

func TestSubscriptionTransitions(t *testing.T) {
	legal := [][2]SubscriptionStatus{
		{SubscriptionStatusActive, SubscriptionStatusPaused},
		{SubscriptionStatusActive, SubscriptionStatusCancelled},
		{SubscriptionStatusPaused, SubscriptionStatusActive},
		{SubscriptionStatusPaused, SubscriptionStatusCancelled},
	}
	for _, pair := range legal {
		if !ValidSubscriptionTransition(pair[0], pair[1]) {
			t.Fatalf("Expected %s -> %s to be legal", pair[0], pair[1])
		}
	}

	illegal := [][2]SubscriptionStatus{
		{SubscriptionStatusCancelled, SubscriptionStatusActive},
		{SubscriptionStatusCancelled, SubscriptionStatusPaused},
		{SubscriptionStatusActive, SubscriptionStatusActive},
		{SubscriptionStatusPaused, SubscriptionStatusPaused},
	}
	for _, pair := range illegal {
		if ValidSubscriptionTransition(pair[0], pair[1]) {
			t.Fatalf("Expected %s -> %s to be rejected", pair[0], pair[1])
		}
	}
}
