package api

import (
	"net/http"

	"github.com/PankindProjects/pankind"
	"github.com/PankindProjects/pankind/internal/util"
	"github.com/PankindProjects/pankind/sudoapi"
	"github.com/shopspring/decimal"
)

func (s *API) createDonation(w http.ResponseWriter, r *http.Request) {
	var args sudoapi.DonationRequest
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}

	donation, err := s.base.CreateDonation(r.Context(), args)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, donation)
}

func (s *API) getDonation(w http.ResponseWriter, r *http.Request) {
	returnData(w, util.Donation(r))
}

func (s *API) filterDonations(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	var query pankind.DonationFilter
	if err := decoder.Decode(&query, r.Form); err != nil {
		errorData(w, "Invalid request parameters", 400)
		return
	}
	list, err := s.base.Donations(r.Context(), query)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, list)
}

// donationQuote previews the fee split for a prospective donation without
// writing anything.
func (s *API) donationQuote(w http.ResponseWriter, r *http.Request) {
	var args struct {
		Amount        decimal.Decimal       `json:"amount"`
		PaymentMethod pankind.PaymentMethod `json:"payment_method"`
	}
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}

	breakdown, err := s.base.FeeBreakdown(args.Amount, args.PaymentMethod)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, breakdown)
}

func (s *API) donationByReceipt(w http.ResponseWriter, r *http.Request) {
	var args struct {
		ReceiptID string `json:"receipt_id"`
	}
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}

	donation, err := s.base.DonationByReceipt(r.Context(), args.ReceiptID)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, donation)
}

func (s *API) donationTimeline(w http.ResponseWriter, r *http.Request) {
	events, err := s.base.DonationTimeline(r.Context(), util.Donation(r).ID)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, events)
}

func (s *API) donationRefunds(w http.ResponseWriter, r *http.Request) {
	refunds, err := s.base.Refunds(r.Context(), util.Donation(r).ID)
	if err != nil {
		statusError(w, err)
		return
	}
	refunded, err := s.base.RefundedAmount(r.Context(), util.Donation(r).ID)
	if err != nil {
		statusError(w, err)
		return
	}

	returnData(w, struct {
		Refunds []*pankind.Refund `json:"refunds"`

		RefundedAmount decimal.Decimal `json:"refunded_amount"`
	}{Refunds: refunds, RefundedAmount: refunded})
}

func (s *API) markDonationProcessing(w http.ResponseWriter, r *http.Request) {
	var args struct {
		PaymentReference string `json:"payment_reference"`
	}
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}

	donation, err := s.base.MarkDonationProcessing(r.Context(), util.Donation(r).ID, args.PaymentReference)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, donation)
}

func (s *API) completeDonation(w http.ResponseWriter, r *http.Request) {
	var args struct {
		PaymentReference string `json:"payment_reference"`
	}
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}

	donation, err := s.base.CompleteDonation(r.Context(), util.Donation(r).ID, args.PaymentReference)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, donation)
}

func (s *API) failDonation(w http.ResponseWriter, r *http.Request) {
	var args struct {
		Reason string `json:"reason"`
	}
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}

	donation, err := s.base.FailDonation(r.Context(), util.Donation(r).ID, args.Reason)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, donation)
}

func (s *API) cancelDonation(w http.ResponseWriter, r *http.Request) {
	donation, err := s.base.CancelDonation(r.Context(), util.Donation(r).ID)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, donation)
}
