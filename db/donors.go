package db

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/PankindProjects/pankind"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const donorCreateQuery = `INSERT INTO donors (
	name, email
) VALUES (
	$1, $2
) RETURNING id, created_at;`

func (s *DB) CreateDonor(ctx context.Context, d *pankind.Donor) error {
	if d.Name == "" || d.Email == "" {
		return pankind.ErrMissingRequired
	}
	err := s.conn.QueryRow(ctx, donorCreateQuery, d.Name, d.Email).Scan(&d.ID, &d.CreatedAt)
	if isUniqueViolation(err, "donors_email_key") {
		return pankind.Statusf(400, "Email already registered")
	}
	return err
}

func (s *DB) Donor(ctx context.Context, id int) (*pankind.Donor, error) {
	return s.singleDonor(ctx, pankind.DonorFilter{ID: &id})
}

func (s *DB) DonorByEmail(ctx context.Context, email string) (*pankind.Donor, error) {
	return s.singleDonor(ctx, pankind.DonorFilter{Email: &email})
}

func (s *DB) singleDonor(ctx context.Context, filter pankind.DonorFilter) (*pankind.Donor, error) {
	filter.Limit = 1
	donors, err := s.Donors(ctx, filter)
	if err != nil || len(donors) == 0 {
		return nil, err
	}
	return donors[0], nil
}

// Donors retrieves donors based on a filter.
func (s *DB) Donors(ctx context.Context, filter pankind.DonorFilter) ([]*pankind.Donor, error) {
	sb := sq.Select("*").From("donors")
	sb = donorFilterQuery(&filter, sb)
	query, args, err := sb.OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, err
	}

	rows, _ := s.conn.Query(ctx, query, args...)
	donors, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[pankind.Donor])
	if errors.Is(err, pgx.ErrNoRows) {
		return []*pankind.Donor{}, nil
	}
	return donors, err
}

// applyDonorStatsTx records a completed donation on the donor's lifetime
// stats. A single statement, the timestamps collapse to LEAST/GREATEST so
// out-of-order completions still end up with correct first/last markers.
func applyDonorStatsTx(ctx context.Context, tx pgx.Tx, donorID int, net decimal.Decimal, now time.Time) error {
	tag, err := tx.Exec(ctx, `UPDATE donors SET
		total_donated = total_donated + $2,
		donation_count = donation_count + 1,
		first_donation_at = LEAST(COALESCE(first_donation_at, $3), $3),
		last_donation_at = GREATEST(COALESCE(last_donation_at, $3), $3)
	WHERE id = $1`, donorID, net, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pankind.ErrNotFound
	}
	return nil
}

// reverseDonorStatsTx takes a refunded amount back out of the donor's
// lifetime total. The donation count only drops when the donation became
// fully refunded, partial refunds shrink the total without un-counting the
// gift. First/last donation timestamps are historical facts and stay.
func reverseDonorStatsTx(ctx context.Context, tx pgx.Tx, donorID int, amount decimal.Decimal, fullyRefunded bool) error {
	tag, err := tx.Exec(ctx, "UPDATE donors SET total_donated = total_donated - $2 WHERE id = $1 AND total_donated >= $2", donorID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pankind.ErrAggregateUnderflow
	}

	if fullyRefunded {
		tag, err := tx.Exec(ctx, "UPDATE donors SET donation_count = donation_count - 1 WHERE id = $1 AND donation_count >= 1", donorID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pankind.ErrAggregateUnderflow
		}
	}

	return nil
}

func donorFilterQuery(filter *pankind.DonorFilter, sb sq.SelectBuilder) sq.SelectBuilder {
	where := sq.And{}
	if v := filter.ID; v != nil {
		where = append(where, sq.Eq{"id": v})
	}
	if v := filter.Email; v != nil {
		where = append(where, sq.Eq{"email": v})
	}
	if v := filter.Name; v != nil {
		where = append(where, sq.ILike{"name": "%" + *v + "%"})
	}

	if v := filter.Limit; v > 0 {
		sb = sb.Limit(uint64(v))
	}
	if v := filter.Offset; v > 0 {
		sb = sb.Offset(uint64(v))
	}

	return sb.Where(where)
}
