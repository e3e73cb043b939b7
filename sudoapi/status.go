package sudoapi

import (
	"github.com/PankindProjects/pankind"
)

var (
	ErrMissingRequired = pankind.ErrMissingRequired
	ErrFeatureDisabled = pankind.ErrFeatureDisabled

	ErrNotFound = pankind.ErrNotFound
)

// Reimplement Statusf here for faster reference

func Statusf(status int, format string, args ...any) error {
	return pankind.Statusf(status, format, args...)
}
