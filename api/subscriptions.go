package api

import (
	"net/http"

	"github.com/PankindProjects/pankind"
	"github.com/PankindProjects/pankind/internal/util"
	"github.com/PankindProjects/pankind/sudoapi"
)

func (s *API) createSubscription(w http.ResponseWriter, r *http.Request) {
	var args sudoapi.SubscriptionRequest
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}

	sub, err := s.base.CreateSubscription(r.Context(), args)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, sub)
}

func (s *API) getSubscription(w http.ResponseWriter, r *http.Request) {
	returnData(w, util.Subscription(r))
}

func (s *API) filterSubscriptions(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	var query pankind.SubscriptionFilter
	if err := decoder.Decode(&query, r.Form); err != nil {
		errorData(w, "Invalid request parameters", 400)
		return
	}
	subs, err := s.base.Subscriptions(r.Context(), query)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, subs)
}

// subscriptionDonations lists the charges minted from a subscription.
func (s *API) subscriptionDonations(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	var query pankind.DonationFilter
	if err := decoder.Decode(&query, r.Form); err != nil {
		errorData(w, "Invalid request parameters", 400)
		return
	}
	query.SubscriptionID = &util.Subscription(r).ID

	list, err := s.base.Donations(r.Context(), query)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, list)
}

func (s *API) pauseSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.base.PauseSubscription(r.Context(), util.Subscription(r).ID)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, sub)
}

func (s *API) resumeSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.base.ResumeSubscription(r.Context(), util.Subscription(r).ID)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, sub)
}

func (s *API) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.base.CancelSubscription(r.Context(), util.Subscription(r).ID)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, sub)
}
