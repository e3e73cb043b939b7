package sudoapi

import (
	"context"
	"fmt"

	"github.com/PankindProjects/pankind"
)

type LedgerEventList struct {
	Events []*pankind.LedgerEvent `json:"events"`
	Count  int                    `json:"count"`
}

func (s *BaseAPI) LedgerEvents(ctx context.Context, filter pankind.LedgerEventFilter) (*LedgerEventList, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 200
	}
	events, err := s.db.LedgerEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("couldn't get ledger events: %w", err)
	}
	count, err := s.db.CountLedgerEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("couldn't count ledger events: %w", err)
	}
	return &LedgerEventList{Events: events, Count: count}, nil
}

// DonationTimeline reconstructs a donation's history from the ledger,
// oldest entry first.
func (s *BaseAPI) DonationTimeline(ctx context.Context, donationID int) ([]*pankind.LedgerEvent, error) {
	if _, err := s.Donation(ctx, donationID); err != nil {
		return nil, err
	}
	events, err := s.db.LedgerEvents(ctx, pankind.LedgerEventFilter{DonationID: &donationID})
	if err != nil {
		return nil, fmt.Errorf("couldn't get donation timeline: %w", err)
	}
	return events, nil
}
