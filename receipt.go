package pankind

import (
	"math/rand"
	"regexp"
	"strings"
	"time"
)

const receiptAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

const receiptSuffixLength = 6

var receiptRegex = regexp.MustCompile(`^PKD-\d{8}-[0-9A-Z]{6}$`)

// ReceiptCode builds a receipt identifier like PKD-20260825-4G7Q0Z for the
// given issue time. Uniqueness is enforced by the store, callers retry with
// a fresh code on conflict.
func ReceiptCode(t time.Time) string {
	sb := strings.Builder{}
	sb.Grow(len("PKD-") + len("20060102") + 1 + receiptSuffixLength)
	sb.WriteString("PKD-")
	sb.WriteString(t.UTC().Format("20060102"))
	sb.WriteByte('-')
	for i := 0; i < receiptSuffixLength; i++ {
		sb.WriteByte(receiptAlphabet[rand.Intn(len(receiptAlphabet))])
	}
	return sb.String()
}

// ValidReceiptCode checks the PKD-YYYYMMDD-XXXXXX shape.
func ValidReceiptCode(code string) bool {
	return receiptRegex.MatchString(code)
}
