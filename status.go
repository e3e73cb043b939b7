package pankind

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	ErrMissingRequired = Statusf(400, "Missing required fields")

	ErrNotFound = Statusf(404, "Not found")

	ErrFeatureDisabled = Statusf(400, "Feature disabled by administrator")

	ErrInvalidAmount       = Statusf(400, "Invalid donation amount")
	ErrInvalidRefundAmount = Statusf(400, "Refund amount out of bounds")

	ErrIllegalTransition = Statusf(409, "Transition not allowed from current status")

	ErrAggregateUnderflow = Statusf(500, "Aggregate reversal would go negative")
	ErrReceiptGeneration  = Statusf(500, "Could not allocate receipt code")

	ErrTransientStore = Statusf(503, "Datastore temporarily unavailable")
)

var _ error = &statusError{}

type statusError struct {
	Code int
	Text string

	WrappedError error
}

func (s *statusError) LogValue() slog.Value {
	if s == nil {
		return slog.Value{}
	}
	return slog.StringValue(s.Text)
}

func (s *statusError) Error() string {
	return s.Text
}

func (s *statusError) Unwrap() error {
	return s.WrappedError
}

func (s *statusError) Is(target error) bool {
	if err, ok := target.(*statusError); ok {
		return err.Text == s.Text
	}
	return false
}

func Statusf(status int, format string, args ...any) error {
	return &statusError{Code: status, Text: fmt.Sprintf(format, args...)}
}

func ErrorCode(err error) int {
	if err == nil {
		return 200
	}
	var err2 *statusError
	if errors.As(err, &err2) {
		return err2.Code
	}
	return 500
}
