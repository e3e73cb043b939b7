package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PankindProjects/pankind"
	"github.com/PankindProjects/pankind/internal/config"
	"github.com/PankindProjects/pankind/sudoapi"
	"github.com/shopspring/decimal"
)

func (s *API) refundDonation(w http.ResponseWriter, r *http.Request) {
	var args sudoapi.RefundRequest
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}

	refund, err := s.base.RefundDonation(r.Context(), args)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, refund)
}

func (s *API) runSubscriptionSweep(w http.ResponseWriter, r *http.Request) {
	report, err := s.base.RunSubscriptionSweep(r.Context(), time.Now())
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, report)
}

func (s *API) getAuditLogs(w http.ResponseWriter, r *http.Request) {
	var args struct {
		Count  int `json:"count"`
		Offset int `json:"offset"`
	}
	if err := parseRequest(r, &args); err != nil {
		statusError(w, err)
		return
	}
	if args.Count <= 0 || args.Count > 50 {
		args.Count = 50
	}

	logs, err := s.base.AuditLogs(r.Context(), args.Count, args.Offset)
	if err != nil {
		statusError(w, err)
		return
	}
	cnt, err := s.base.AuditLogCount(r.Context())
	if err != nil {
		statusError(w, err)
		return
	}

	returnData(w, struct {
		Logs []*pankind.AuditLog `json:"logs"`

		Count int `json:"total_count"`
	}{Logs: logs, Count: cnt})
}

func (s *API) getFlags(w http.ResponseWriter, r *http.Request) {
	returnData(w, struct {
		BoolFlags    []config.Flag[bool]            `json:"bool_flags"`
		StringFlags  []config.Flag[string]          `json:"string_flags"`
		IntFlags     []config.Flag[int]             `json:"int_flags"`
		DecimalFlags []config.Flag[decimal.Decimal] `json:"decimal_flags"`
	}{
		BoolFlags:    config.GetFlags[bool](),
		StringFlags:  config.GetFlags[string](),
		IntFlags:     config.GetFlags[int](),
		DecimalFlags: config.GetFlags[decimal.Decimal](),
	})
}

func (s *API) updateFlags(w http.ResponseWriter, r *http.Request) {
	var args struct {
		BoolFlags    map[string]bool            `json:"bool_flags"`
		StringFlags  map[string]string          `json:"string_flags"`
		IntFlags     map[string]int             `json:"int_flags"`
		DecimalFlags map[string]decimal.Decimal `json:"decimal_flags"`
	}
	if err := parseJsonBody(r, &args); err != nil {
		statusError(w, err)
		return
	}
	for k, v := range args.BoolFlags {
		flg, ok := config.GetFlag[bool](k)
		if !ok {
			slog.WarnContext(r.Context(), "Flag not found", slog.String("name", k))
			continue
		}
		flg.Update(v)
	}
	for k, v := range args.StringFlags {
		flg, ok := config.GetFlag[string](k)
		if !ok {
			slog.WarnContext(r.Context(), "Flag not found", slog.String("name", k))
			continue
		}
		flg.Update(v)
	}
	for k, v := range args.IntFlags {
		flg, ok := config.GetFlag[int](k)
		if !ok {
			slog.WarnContext(r.Context(), "Flag not found", slog.String("name", k))
			continue
		}
		flg.Update(v)
	}
	for k, v := range args.DecimalFlags {
		flg, ok := config.GetFlag[decimal.Decimal](k)
		if !ok {
			slog.WarnContext(r.Context(), "Flag not found", slog.String("name", k))
			continue
		}
		flg.Update(v)
	}
	returnData(w, "Updated flags. Some changes may only apply after a restart")
}

func (s *API) donationsCSV(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	var query pankind.DonationFilter
	if err := decoder.Decode(&query, r.Form); err != nil {
		errorData(w, "Invalid request parameters", 400)
		return
	}

	w.Header().Add("Content-Type", "text/csv")
	w.Header().Add("Content-Disposition", `attachment; filename="donations.csv"`)

	if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		w.Header().Add("Content-Encoding", "gzip")
		if err := s.base.DonationsCSVGzip(r.Context(), w, query); err != nil {
			slog.WarnContext(r.Context(), "Couldn't export donations", slog.Any("err", err))
		}
		return
	}

	if err := s.base.DonationsCSV(r.Context(), w, query); err != nil {
		slog.WarnContext(r.Context(), "Couldn't export donations", slog.Any("err", err))
	}
}
