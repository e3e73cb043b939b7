package pankind

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// StatusData writes the JSON envelope every API response uses. Errors sent
// as data are reduced to their message, status errors override the HTTP
// code with their own.
func StatusData(w http.ResponseWriter, status string, retData any, statusCode int) {
	if err, ok := retData.(error); ok {
		var sErr *statusError
		if errors.As(err, &sErr) {
			statusCode = sErr.Code
		}
		retData = err.Error()
	}
	w.Header().Add("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
		Data   any    `json:"data"`
	}{
		Status: status,
		Data:   retData,
	})
	if err != nil {
		if strings.Contains(err.Error(), "broken pipe") {
			return
		}
		slog.Error("Couldn't send return data", slog.Any("err", err))
	}
}
