package pankind

import (
	"strings"
	"testing"
	"time"
)

func TestReceiptCodeShape(t *testing.T) {
	issued := time.Date(2026, 8, 25, 13, 37, 0, 0, time.UTC)
	for i := 0; i < 100; i++ {
		code := ReceiptCode(issued)
		if !ValidReceiptCode(code) {
			t.Fatalf("Receipt code %q doesn't match the PKD-YYYYMMDD-XXXXXX shape", code)
		}
		if !strings.HasPrefix(code, "PKD-20260825-") {
			t.Fatalf("Receipt code %q doesn't carry the issue date", code)
		}
	}
}

func TestReceiptCodeUsesUTCDate(t *testing.T) {
	east := time.FixedZone("UTC+9", 9*3600)
	// 2am on the 26th in UTC+9 is still the 25th in UTC
	code := ReceiptCode(time.Date(2026, 8, 26, 2, 0, 0, 0, east))
	if !strings.HasPrefix(code, "PKD-20260825-") {
		t.Fatalf("Expected UTC date 20260825 in %q", code)
	}
}

func TestReceiptCodeVaries(t *testing.T) {
	seen := map[string]bool{}
	now := time.Now()
	for i := 0; i < 50; i++ {
		seen[ReceiptCode(now)] = true
	}
	if len(seen) < 2 {
		t.Fatalf("Expected varying receipt suffixes, got %d distinct over 50 draws", len(seen))
	}
}
