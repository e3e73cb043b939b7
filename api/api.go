package api

import (
	"log/slog"
	"net/http"

	"github.com/PankindProjects/pankind/sudoapi"
	"github.com/go-chi/chi/v5"
)

// API is the base
type API struct {
	base *sudoapi.BaseAPI
}

// New declares a new API instance
func New(base *sudoapi.BaseAPI) *API {
	return &API{base}
}

// Handler is the magic behind the API
func (s *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Route("/donations", func(r chi.Router) {
		r.Post("/", s.createDonation)
		r.Get("/", s.filterDonations)
		r.Get("/quote", s.donationQuote)
		r.Get("/byReceipt", s.donationByReceipt)

		r.Route("/{donationID}", func(r chi.Router) {
			r.Use(s.validateDonationID)
			r.Get("/", s.getDonation)
			r.Get("/timeline", s.donationTimeline)
			r.Get("/refunds", s.donationRefunds)
			r.Post("/processing", s.markDonationProcessing)
			r.Post("/complete", s.completeDonation)
			r.Post("/fail", s.failDonation)
			r.Post("/cancel", s.cancelDonation)
		})
	})

	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", s.createCampaign)
		r.Get("/", s.filterCampaigns)
		r.Get("/bySlug", s.campaignBySlug)

		r.Route("/{campaignID}", func(r chi.Router) {
			r.Use(s.validateCampaignID)
			r.Get("/", s.getCampaign)
			r.Get("/progress", s.campaignProgress)
			r.Get("/milestones", s.campaignMilestones)
			r.Post("/milestones", s.addMilestone)
			r.Post("/status", s.updateCampaignStatus)
		})
	})

	r.Route("/donors", func(r chi.Router) {
		r.Post("/", s.createDonor)
		r.Get("/", s.filterDonors)
		r.Get("/byEmail", s.donorByEmail)

		r.Route("/{donorID}", func(r chi.Router) {
			r.Use(s.validateDonorID)
			r.Get("/", s.getDonor)
			r.Get("/donations", s.donorDonations)
		})
	})

	r.Route("/subscriptions", func(r chi.Router) {
		r.Post("/", s.createSubscription)
		r.Get("/", s.filterSubscriptions)

		r.Route("/{subscriptionID}", func(r chi.Router) {
			r.Use(s.validateSubscriptionID)
			r.Get("/", s.getSubscription)
			r.Get("/donations", s.subscriptionDonations)
			r.Post("/pause", s.pauseSubscription)
			r.Post("/resume", s.resumeSubscription)
			r.Post("/cancel", s.cancelSubscription)
		})
	})

	r.Route("/events", func(r chi.Router) {
		r.Get("/", s.filterLedgerEvents)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/refund", s.refundDonation)
		r.Post("/runSweep", s.runSubscriptionSweep)
		r.Get("/auditLogs", s.getAuditLogs)
		r.Get("/flags", s.getFlags)
		r.Post("/updateFlags", s.updateFlags)
		r.Get("/donations.csv", s.donationsCSV)
	})

	r.Post("/webhooks/payment", s.paymentEvent)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errorData(w, "Endpoint not found", 404)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		slog.WarnContext(r.Context(), "Tried to use unknown method")
		errorData(w, "Method not allowed", 405)
	})

	return r
}
