package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/PankindProjects/pankind"
	"github.com/gorilla/schema"
)

var decoder *schema.Decoder

func init() {
	decoder = schema.NewDecoder()
	decoder.SetAliasTag("json")
}

func returnData(w http.ResponseWriter, retData any) {
	pankind.StatusData(w, "success", retData, 200)
}

func errorData(w http.ResponseWriter, retData any, errCode int) {
	pankind.StatusData(w, "error", retData, errCode)
}

func statusError(w http.ResponseWriter, err error) {
	errorData(w, err, pankind.ErrorCode(err))
}

func parseJsonBody[T any](r *http.Request, output *T) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(output); err != nil {
		return pankind.Statusf(400, "Invalid JSON input.")
	}
	return nil
}

// parseRequest decodes JSON bodies and form/query parameters into the same
// args struct, so handlers don't care how the caller packed the request.
func parseRequest[T any](r *http.Request, args *T) error {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return parseJsonBody(r, args)
	}
	if err := r.ParseForm(); err != nil {
		return pankind.Statusf(400, "Could not parse request form")
	}
	if err := decoder.Decode(args, r.Form); err != nil {
		return pankind.Statusf(400, "Invalid request parameters")
	}
	return nil
}
