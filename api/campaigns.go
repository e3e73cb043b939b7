package api

import (
	"net/http"

	"github.com/PankindProjects/pankind"
	"github.com/PankindProjects/pankind/internal/util"
	"github.com/PankindProjects/pankind/sudoapi"
)

func (s *API) createCampaign(w http.ResponseWriter, r *http.Request) {
	var args sudoapi.CampaignRequest
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}

	campaign, err := s.base.CreateCampaign(r.Context(), args)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, campaign)
}

func (s *API) getCampaign(w http.ResponseWriter, r *http.Request) {
	returnData(w, util.Campaign(r))
}

func (s *API) campaignBySlug(w http.ResponseWriter, r *http.Request) {
	var args struct {
		Slug string `json:"slug"`
	}
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}

	campaign, err := s.base.CampaignBySlug(r.Context(), args.Slug)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, campaign)
}

func (s *API) filterCampaigns(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	var query pankind.CampaignFilter
	if err := decoder.Decode(&query, r.Form); err != nil {
		errorData(w, "Invalid request parameters", 400)
		return
	}
	campaigns, err := s.base.Campaigns(r.Context(), query)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, campaigns)
}

func (s *API) campaignProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.base.CampaignProgress(r.Context(), util.Campaign(r).ID)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, progress)
}

func (s *API) campaignMilestones(w http.ResponseWriter, r *http.Request) {
	milestones, err := s.base.CampaignMilestones(r.Context(), util.Campaign(r).ID)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, milestones)
}

func (s *API) addMilestone(w http.ResponseWriter, r *http.Request) {
	var args sudoapi.MilestoneSpec
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}

	milestone, err := s.base.AddMilestone(r.Context(), util.Campaign(r).ID, args)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, milestone)
}

func (s *API) updateCampaignStatus(w http.ResponseWriter, r *http.Request) {
	var args struct {
		Status pankind.CampaignStatus `json:"status"`
	}
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}

	campaign, err := s.base.UpdateCampaignStatus(r.Context(), util.Campaign(r).ID, args.Status)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, campaign)
}
