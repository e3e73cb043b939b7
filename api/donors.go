package api

import (
	"net/http"

	"github.com/PankindProjects/pankind"
	"github.com/PankindProjects/pankind/internal/util"
)

func (s *API) createDonor(w http.ResponseWriter, r *http.Request) {
	var args struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}

	donor, err := s.base.CreateDonor(r.Context(), args.Name, args.Email)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, donor)
}

func (s *API) getDonor(w http.ResponseWriter, r *http.Request) {
	returnData(w, util.Donor(r))
}

func (s *API) donorByEmail(w http.ResponseWriter, r *http.Request) {
	var args struct {
		Email string `json:"email"`
	}
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}

	donor, err := s.base.DonorByEmail(r.Context(), args.Email)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, donor)
}

func (s *API) filterDonors(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	var query pankind.DonorFilter
	if err := decoder.Decode(&query, r.Form); err != nil {
		errorData(w, "Invalid request parameters", 400)
		return
	}
	donors, err := s.base.Donors(r.Context(), query)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, donors)
}

// donorDonations lists a donor's donations, newest first by default.
func (s *API) donorDonations(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	var query pankind.DonationFilter
	if err := decoder.Decode(&query, r.Form); err != nil {
		errorData(w, "Invalid request parameters", 400)
		return
	}
	query.DonorID = &util.Donor(r).ID

	list, err := s.base.Donations(r.Context(), query)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, list)
}
