package pankind

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func testSchedule() *FeeSchedule {
	return &FeeSchedule{
		PlatformRate: decimal.RequireFromString("0.025"),
		Methods: map[PaymentMethod]MethodFee{
			PaymentMethodCard: {
				Rate:  decimal.RequireFromString("0.029"),
				Fixed: decimal.RequireFromString("0.30"),
			},
			PaymentMethodBankTransfer: {
				Fixed: decimal.RequireFromString("0.25"),
			},
		},
	}
}

func TestCardFeeBreakdown(t *testing.T) {
	s := testSchedule()
	bd, err := s.Compute(decimal.RequireFromString("100.00"), PaymentMethodCard)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !bd.PlatformFee.Equal(decimal.RequireFromString("2.50")) {
		t.Fatalf("Expected platform fee 2.50, got %s", bd.PlatformFee)
	}
	if !bd.ProcessingFee.Equal(decimal.RequireFromString("3.20")) {
		t.Fatalf("Expected processing fee 3.20, got %s", bd.ProcessingFee)
	}
	if !bd.NetAmount.Equal(decimal.RequireFromString("94.30")) {
		t.Fatalf("Expected net 94.30, got %s", bd.NetAmount)
	}
	if bd.Unpriced {
		t.Fatalf("Card should be priced by the default schedule")
	}
}

func TestFlatFeeBreakdown(t *testing.T) {
	s := testSchedule()
	bd, err := s.Compute(decimal.RequireFromString("50.00"), PaymentMethodBankTransfer)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !bd.PlatformFee.Equal(decimal.RequireFromString("1.25")) {
		t.Fatalf("Expected platform fee 1.25, got %s", bd.PlatformFee)
	}
	if !bd.ProcessingFee.Equal(decimal.RequireFromString("0.25")) {
		t.Fatalf("Expected processing fee 0.25, got %s", bd.ProcessingFee)
	}
	if !bd.NetAmount.Equal(decimal.RequireFromString("48.50")) {
		t.Fatalf("Expected net 48.50, got %s", bd.NetAmount)
	}
}

func TestFeeDeterminism(t *testing.T) {
	s := testSchedule()
	gross := decimal.RequireFromString("73.41")
	first, err := s.Compute(gross, PaymentMethodCard)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	for i := 0; i < 100; i++ {
		again, err := s.Compute(gross, PaymentMethodCard)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !again.PlatformFee.Equal(first.PlatformFee) || !again.ProcessingFee.Equal(first.ProcessingFee) || !again.NetAmount.Equal(first.NetAmount) {
			t.Fatalf("Breakdown changed between runs: %+v vs %+v", first, again)
		}
	}
}

func TestGrossIdentity(t *testing.T) {
	s := testSchedule()
	amounts := []string{"1.00", "2.37", "19.99", "100.00", "85.00", "1234.56", "9999999999.99"}
	methods := []PaymentMethod{PaymentMethodCard, PaymentMethodBankTransfer, "crypto"}

	for _, amt := range amounts {
		for _, method := range methods {
			gross := decimal.RequireFromString(amt)
			bd, err := s.Compute(gross, method)
			if err != nil {
				t.Fatalf("Compute(%s, %s): %v", amt, method, err)
			}
			sum := bd.PlatformFee.Add(bd.ProcessingFee).Add(bd.NetAmount)
			if !sum.Equal(gross) {
				t.Fatalf("Compute(%s, %s): parts sum to %s", amt, method, sum)
			}
		}
	}
}

func TestBankersRounding(t *testing.T) {
	s := testSchedule()

	// 85.00 * 0.025 = 2.125, banker's rounding goes down to 2.12
	bd, err := s.Compute(decimal.RequireFromString("85.00"), PaymentMethodBankTransfer)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !bd.PlatformFee.Equal(decimal.RequireFromString("2.12")) {
		t.Fatalf("Expected platform fee 2.12, got %s", bd.PlatformFee)
	}

	// 85.40 * 0.025 = 2.135, banker's rounding goes up to 2.14
	bd, err = s.Compute(decimal.RequireFromString("85.40"), PaymentMethodBankTransfer)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !bd.PlatformFee.Equal(decimal.RequireFromString("2.14")) {
		t.Fatalf("Expected platform fee 2.14, got %s", bd.PlatformFee)
	}
}

func TestNegativeNetRejected(t *testing.T) {
	s := testSchedule()
	// Fixed card fee alone exceeds the gross
	if _, err := s.Compute(decimal.RequireFromString("0.01"), PaymentMethodCard); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("Expected ErrInvalidAmount, got %v", err)
	}
}

func TestNonPositiveGrossRejected(t *testing.T) {
	s := testSchedule()
	for _, amt := range []string{"0", "0.00", "-5.00"} {
		if _, err := s.Compute(decimal.RequireFromString(amt), PaymentMethodCard); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("Compute(%s): expected ErrInvalidAmount, got %v", amt, err)
		}
	}
}

func TestUnknownMethodUnpriced(t *testing.T) {
	s := testSchedule()
	gross := decimal.RequireFromString("20.00")
	bd, err := s.Compute(gross, "crypto")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !bd.Unpriced {
		t.Fatalf("Expected unpriced breakdown for unknown method")
	}
	if !bd.ProcessingFee.IsZero() {
		t.Fatalf("Expected zero processing fee, got %s", bd.ProcessingFee)
	}
	if !bd.NetAmount.Equal(gross.Sub(bd.PlatformFee)) {
		t.Fatalf("Expected net = gross - platform fee, got %s", bd.NetAmount)
	}
}
