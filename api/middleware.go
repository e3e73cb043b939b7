package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/PankindProjects/pankind/internal/util"
	"github.com/go-chi/chi/v5"
)

// validateDonationID pre-emptively returns if there isn't a valid donation ID in the URL params
// Also, it fetches the donation from the DB and makes sure it exists
func (s *API) validateDonationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		donationID, err := strconv.Atoi(chi.URLParam(r, "donationID"))
		if err != nil {
			errorData(w, "invalid donation ID", http.StatusBadRequest)
			return
		}
		donation, err1 := s.base.Donation(r.Context(), donationID)
		if err1 != nil {
			statusError(w, err1)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), util.DonationKey, donation)))
	})
}

func (s *API) validateCampaignID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		campaignID, err := strconv.Atoi(chi.URLParam(r, "campaignID"))
		if err != nil {
			errorData(w, "invalid campaign ID", http.StatusBadRequest)
			return
		}
		campaign, err1 := s.base.Campaign(r.Context(), campaignID)
		if err1 != nil {
			statusError(w, err1)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), util.CampaignKey, campaign)))
	})
}

func (s *API) validateDonorID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		donorID, err := strconv.Atoi(chi.URLParam(r, "donorID"))
		if err != nil {
			errorData(w, "invalid donor ID", http.StatusBadRequest)
			return
		}
		donor, err1 := s.base.Donor(r.Context(), donorID)
		if err1 != nil {
			statusError(w, err1)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), util.DonorKey, donor)))
	})
}

func (s *API) validateSubscriptionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subID, err := strconv.Atoi(chi.URLParam(r, "subscriptionID"))
		if err != nil {
			errorData(w, "invalid subscription ID", http.StatusBadRequest)
			return
		}
		sub, err1 := s.base.Subscription(r.Context(), subID)
		if err1 != nil {
			statusError(w, err1)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), util.SubscriptionKey, sub)))
	})
}
