package sudoapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/PankindProjects/pankind"
	"github.com/asaskevich/govalidator"
	"github.com/microcosm-cc/bluemonday"
)

// CreateDonor registers a donor identity. Email is the natural key, the
// same address donating twice keeps one set of lifetime stats.
func (s *BaseAPI) CreateDonor(ctx context.Context, name, email string) (*pankind.Donor, error) {
	name = strings.TrimSpace(bluemonday.StrictPolicy().Sanitize(name))
	email = strings.TrimSpace(email)
	if !(len(name) >= 1 && len(name) <= 128) {
		return nil, Statusf(400, "Invalid donor name")
	}
	if !govalidator.IsExistingEmail(email) {
		return nil, Statusf(400, "Invalid email")
	}

	donor := &pankind.Donor{Name: name, Email: email}
	if err := s.db.CreateDonor(ctx, donor); err != nil {
		return nil, fmt.Errorf("couldn't create donor: %w", err)
	}
	return donor, nil
}

func (s *BaseAPI) Donor(ctx context.Context, id int) (*pankind.Donor, error) {
	donor, err := s.db.Donor(ctx, id)
	if err != nil || donor == nil {
		return nil, fmt.Errorf("donor not found: %w", ErrNotFound)
	}
	return donor, nil
}

func (s *BaseAPI) DonorByEmail(ctx context.Context, email string) (*pankind.Donor, error) {
	donor, err := s.db.DonorByEmail(ctx, email)
	if err != nil || donor == nil {
		return nil, fmt.Errorf("donor not found: %w", ErrNotFound)
	}
	return donor, nil
}

func (s *BaseAPI) Donors(ctx context.Context, filter pankind.DonorFilter) ([]*pankind.Donor, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 100
	}
	donors, err := s.db.Donors(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("couldn't get donors: %w", err)
	}
	return donors, nil
}
