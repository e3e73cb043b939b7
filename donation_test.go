package pankind

import "testing"

func TestDonationTransitions(t *testing.T) {
	legal := [][2]DonationStatus{
		{DonationStatusPending, DonationStatusProcessing},
		{DonationStatusPending, DonationStatusCompleted},
		{DonationStatusPending, DonationStatusFailed},
		{DonationStatusPending, DonationStatusCancelled},
		{DonationStatusProcessing, DonationStatusCompleted},
		{DonationStatusProcessing, DonationStatusFailed},
		{DonationStatusCompleted, DonationStatusRefunded},
	}
	for _, pair := range legal {
		if !ValidDonationTransition(pair[0], pair[1]) {
			t.Fatalf("Expected %s -> %s to be legal", pair[0], pair[1])
		}
	}
}

func TestDonationTerminalStatuses(t *testing.T) {
	all := []DonationStatus{
		DonationStatusPending, DonationStatusProcessing, DonationStatusCompleted,
		DonationStatusFailed, DonationStatusCancelled, DonationStatusRefunded,
	}
	for _, terminal := range []DonationStatus{DonationStatusFailed, DonationStatusCancelled, DonationStatusRefunded} {
		for _, to := range all {
			if ValidDonationTransition(terminal, to) {
				t.Fatalf("Expected terminal status %s to have no exit, found %s", terminal, to)
			}
		}
	}
}

func TestDonationNoReentry(t *testing.T) {
	illegal := [][2]DonationStatus{
		{DonationStatusProcessing, DonationStatusPending},
		{DonationStatusCompleted, DonationStatusPending},
		{DonationStatusCompleted, DonationStatusProcessing},
		{DonationStatusCompleted, DonationStatusCompleted},
		{DonationStatusProcessing, DonationStatusCancelled},
	}
	for _, pair := range illegal {
		if ValidDonationTransition(pair[0], pair[1]) {
			t.Fatalf("Expected %s -> %s to be rejected", pair[0], pair[1])
		}
	}
}

func TestDonationAttribution(t *testing.T) {
	id := 4
	tests := []struct {
		name string
		d    Donation
		want bool
	}{
		{"attributed", Donation{DonorID: &id}, true},
		{"anonymous but recorded", Donation{DonorID: &id, Anonymous: true}, true},
		{"unattributed", Donation{}, false},
	}
	for _, test := range tests {
		if got := test.d.Attributed(); got != test.want {
			t.Fatalf("%s: expected %v, got %v", test.name, test.want, got)
		}
	}
}
