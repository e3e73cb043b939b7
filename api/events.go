package api

import (
	"net/http"

	"github.com/PankindProjects/pankind"
)

func (s *API) filterLedgerEvents(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	var query pankind.LedgerEventFilter
	if err := decoder.Decode(&query, r.Form); err != nil {
		errorData(w, "Invalid request parameters", 400)
		return
	}
	list, err := s.base.LedgerEvents(r.Context(), query)
	if err != nil {
		statusError(w, err)
		return
	}
	returnData(w, list)
}
