package util

import (
	"net/http"

	"github.com/PankindProjects/pankind"
)

// PKDContextType is the string type for all context values
type PKDContextType string

const (
	// DonationKey is the key to be used for adding donations to context
	DonationKey = PKDContextType("donation")
	// CampaignKey is the key to be used for adding campaigns to context
	CampaignKey = PKDContextType("campaign")
	// DonorKey is the key to be used for adding donors to context
	DonorKey = PKDContextType("donor")
	// SubscriptionKey is the key to be used for adding subscriptions to context
	SubscriptionKey = PKDContextType("subscription")
)

// Donation returns the donation from request context
func Donation(r *http.Request) *pankind.Donation {
	switch v := r.Context().Value(DonationKey).(type) {
	case pankind.Donation:
		return &v
	case *pankind.Donation:
		return v
	default:
		return nil
	}
}

// Campaign returns the campaign from request context
func Campaign(r *http.Request) *pankind.Campaign {
	switch v := r.Context().Value(CampaignKey).(type) {
	case pankind.Campaign:
		return &v
	case *pankind.Campaign:
		return v
	default:
		return nil
	}
}

// Donor returns the donor from request context
func Donor(r *http.Request) *pankind.Donor {
	switch v := r.Context().Value(DonorKey).(type) {
	case pankind.Donor:
		return &v
	case *pankind.Donor:
		return v
	default:
		return nil
	}
}

// Subscription returns the subscription from request context
func Subscription(r *http.Request) *pankind.Subscription {
	switch v := r.Context().Value(SubscriptionKey).(type) {
	case pankind.Subscription:
		return &v
	case *pankind.Subscription:
		return v
	default:
		return nil
	}
}
