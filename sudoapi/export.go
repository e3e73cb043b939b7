package sudoapi

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/PankindProjects/pankind"
	"github.com/klauspost/compress/gzip"
)

var donationsCSVHeader = []string{
	"id", "created_at", "status", "campaign_id", "donor_id", "subscription_id",
	"gross_amount", "platform_fee", "processing_fee", "net_amount", "currency",
	"payment_method", "receipt_id", "payment_reference", "completed_at",
}

// DonationsCSV streams every donation matching the filter as CSV, in id
// order. Rows are paged through the regular listing so an export doesn't
// pin the whole table in memory.
func (s *BaseAPI) DonationsCSV(ctx context.Context, w io.Writer, filter pankind.DonationFilter) error {
	wr := csv.NewWriter(w)
	if err := wr.Write(donationsCSVHeader); err != nil {
		return fmt.Errorf("couldn't write CSV header: %w", err)
	}

	filter.Ordering, filter.Descending = "", false
	filter.Limit, filter.Offset = 500, 0
	for {
		donations, err := s.db.Donations(ctx, filter)
		if err != nil {
			return fmt.Errorf("couldn't get donations: %w", err)
		}
		for _, d := range donations {
			if err := wr.Write(donationCSVLine(d)); err != nil {
				return fmt.Errorf("couldn't write CSV row: %w", err)
			}
		}
		if len(donations) < filter.Limit {
			break
		}
		filter.Offset += filter.Limit
	}

	wr.Flush()
	return wr.Error()
}

var gzipWriterPool = &sync.Pool{
	New: func() any {
		return gzip.NewWriter(nil)
	},
}

// DonationsCSVGzip writes the same export as DonationsCSV, gzip-compressed.
// Bigger deployments pull these nightly, so the stream stays bounded.
func (s *BaseAPI) DonationsCSVGzip(ctx context.Context, w io.Writer, filter pankind.DonationFilter) error {
	gw := gzipWriterPool.Get().(*gzip.Writer)
	gw.Reset(w)

	if err := s.DonationsCSV(ctx, gw, filter); err != nil {
		return err
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("couldn't flush gzip stream: %w", err)
	}
	// Only reuse writers that closed cleanly
	gzipWriterPool.Put(gw)
	return nil
}

func donationCSVLine(d *pankind.Donation) []string {
	completedAt := ""
	if d.CompletedAt != nil {
		completedAt = d.CompletedAt.Format(time.RFC3339)
	}
	return []string{
		strconv.Itoa(d.ID),
		d.CreatedAt.Format(time.RFC3339),
		string(d.Status),
		strconv.Itoa(d.CampaignID),
		intCSVField(d.DonorID),
		intCSVField(d.SubscriptionID),
		d.GrossAmount.String(),
		d.PlatformFee.String(),
		d.ProcessingFee.String(),
		d.NetAmount.String(),
		d.Currency,
		string(d.PaymentMethod),
		stringCSVField(d.ReceiptID),
		stringCSVField(d.PaymentReference),
		completedAt,
	}
}

func intCSVField(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func stringCSVField(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
