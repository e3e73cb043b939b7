package sudoapi

import (
	"strings"
	"testing"

	"github.com/PankindProjects/pankind"
	"github.com/shopspring/decimal"
)

func TestDonationRequestValidate(t *testing.T) {
	base := DonationRequest{
		CampaignID:    1,
		Amount:        decimal.RequireFromString("20.00"),
		Currency:      "USD",
		PaymentMethod: pankind.PaymentMethodCard,
	}

	tests := map[string]struct {
		mutate func(r *DonationRequest)
		valid  bool
	}{
		"ok":               {mutate: func(r *DonationRequest) {}, valid: true},
		"with message":     {mutate: func(r *DonationRequest) { r.Message = "Get well soon" }, valid: true},
		"missing campaign": {mutate: func(r *DonationRequest) { r.CampaignID = 0 }, valid: false},
		"missing currency": {mutate: func(r *DonationRequest) { r.Currency = "" }, valid: false},
		"long currency":    {mutate: func(r *DonationRequest) { r.Currency = "EURO" }, valid: false},
		"missing method":   {mutate: func(r *DonationRequest) { r.PaymentMethod = "" }, valid: false},
		"huge message":     {mutate: func(r *DonationRequest) { r.Message = strings.Repeat("x", 501) }, valid: false},
	}
	for name, test := range tests {
		test := test
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			req := base
			test.mutate(&req)
			err := req.Validate()
			if test.valid && err != nil {
				t.Fatalf("Expected valid request, got %v", err)
			}
			if !test.valid && err == nil {
				t.Fatalf("Expected validation error, got none")
			}
		})
	}
}

func TestValidateDedication(t *testing.T) {
	tests := map[string]struct {
		ded   pankind.Dedication
		valid bool
	}{
		"in honor":         {pankind.Dedication{Type: pankind.DedicationInHonorOf, HonoreeName: "Ada"}, true},
		"in memory":        {pankind.Dedication{Type: pankind.DedicationInMemoryOf, HonoreeName: "Grace", NotifyEmail: "family@example.org"}, true},
		"unknown type":     {pankind.Dedication{Type: "in_spite_of", HonoreeName: "Bob"}, false},
		"blank honoree":    {pankind.Dedication{Type: pankind.DedicationInHonorOf, HonoreeName: "   "}, false},
		"malformed email":  {pankind.Dedication{Type: pankind.DedicationInMemoryOf, HonoreeName: "Grace", NotifyEmail: "not-an-email"}, false},
		"email left empty": {pankind.Dedication{Type: pankind.DedicationInMemoryOf, HonoreeName: "Grace"}, true},
	}
	for name, test := range tests {
		test := test
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			err := validateDedication(&test.ded)
			if test.valid && err != nil {
				t.Fatalf("Expected valid dedication, got %v", err)
			}
			if !test.valid && err == nil {
				t.Fatalf("Expected validation error, got none")
			}
		})
	}
}

func TestDefaultFeeSchedule(t *testing.T) {
	s := &BaseAPI{schedule: feeScheduleFromFlags()}
	gross := decimal.RequireFromString("100.00")

	card, err := s.FeeBreakdown(gross, pankind.PaymentMethodCard)
	if err != nil {
		t.Fatalf("Expected card breakdown, got %v", err)
	}
	if want := decimal.RequireFromString("2.50"); !card.PlatformFee.Equal(want) {
		t.Fatalf("Expected platform fee %s, got %s", want, card.PlatformFee)
	}
	if want := decimal.RequireFromString("3.20"); !card.ProcessingFee.Equal(want) {
		t.Fatalf("Expected processing fee %s, got %s", want, card.ProcessingFee)
	}
	if want := decimal.RequireFromString("94.30"); !card.NetAmount.Equal(want) {
		t.Fatalf("Expected net %s, got %s", want, card.NetAmount)
	}

	bank, err := s.FeeBreakdown(gross, pankind.PaymentMethodBankTransfer)
	if err != nil {
		t.Fatalf("Expected bank transfer breakdown, got %v", err)
	}
	if want := decimal.RequireFromString("0.25"); !bank.ProcessingFee.Equal(want) {
		t.Fatalf("Expected processing fee %s, got %s", want, bank.ProcessingFee)
	}

	crypto, err := s.FeeBreakdown(gross, "crypto")
	if err != nil {
		t.Fatalf("Expected unpriced breakdown, got %v", err)
	}
	if !crypto.Unpriced {
		t.Fatal("Expected unknown method to be flagged unpriced")
	}
	if !crypto.ProcessingFee.IsZero() {
		t.Fatalf("Expected zero processing fee, got %s", crypto.ProcessingFee)
	}

	for name, b := range map[string]pankind.FeeBreakdown{"card": card, "bank_transfer": bank, "crypto": crypto} {
		if sum := b.PlatformFee.Add(b.ProcessingFee).Add(b.NetAmount); !sum.Equal(gross) {
			t.Fatalf("Expected %s fees to sum to %s, got %s", name, gross, sum)
		}
	}
}
