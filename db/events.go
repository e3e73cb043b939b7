package db

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/PankindProjects/pankind"
	"github.com/jackc/pgx/v5"
)

const ledgerEventCreateQuery = `INSERT INTO ledger_events (
	kind, donation_id, campaign_id, subscription_id, amount, detail
) VALUES (
	$1, $2, $3, $4, $5, $6
) RETURNING id, created_at;`

// insertLedgerEventTx appends an event to the ledger inside the transaction
// of the transition it describes, so the audit trail can never disagree with
// the state it records.
func insertLedgerEventTx(ctx context.Context, tx pgx.Tx, ev *pankind.LedgerEvent) error {
	return tx.QueryRow(ctx, ledgerEventCreateQuery,
		ev.Kind, ev.DonationID, ev.CampaignID, ev.SubscriptionID, ev.Amount, ev.Detail,
	).Scan(&ev.ID, &ev.CreatedAt)
}

// LedgerEvents retrieves ledger events based on a filter, oldest first.
func (s *DB) LedgerEvents(ctx context.Context, filter pankind.LedgerEventFilter) ([]*pankind.LedgerEvent, error) {
	sb := sq.Select("*").From("ledger_events")
	sb = ledgerEventFilterQuery(&filter, sb)
	query, args, err := sb.OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, err
	}

	rows, _ := s.conn.Query(ctx, query, args...)
	events, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[pankind.LedgerEvent])
	if errors.Is(err, pgx.ErrNoRows) {
		return []*pankind.LedgerEvent{}, nil
	}
	return events, err
}

// CountLedgerEvents retrieves the number of ledger events matching a filter. It ignores the limit fields in `filter`.
func (s *DB) CountLedgerEvents(ctx context.Context, filter pankind.LedgerEventFilter) (int, error) {
	sb := sq.Select("COUNT(*)").From("ledger_events")
	sb = ledgerEventFilterQuery(&filter, sb).RemoveLimit().RemoveOffset()
	query, args, err := sb.ToSql()
	if err != nil {
		return -1, err
	}

	var count int
	err = s.conn.QueryRow(ctx, query, args...).Scan(&count)
	return count, err
}

func ledgerEventFilterQuery(filter *pankind.LedgerEventFilter, sb sq.SelectBuilder) sq.SelectBuilder {
	where := sq.And{}
	if v := filter.DonationID; v != nil {
		where = append(where, sq.Eq{"donation_id": v})
	}
	if v := filter.CampaignID; v != nil {
		where = append(where, sq.Eq{"campaign_id": v})
	}
	if v := filter.SubscriptionID; v != nil {
		where = append(where, sq.Eq{"subscription_id": v})
	}
	if v := filter.Kind; v != nil {
		where = append(where, sq.Eq{"kind": v})
	}
	if v := filter.Since; v != nil {
		where = append(where, sq.Expr("created_at >= ?", v))
	}

	if v := filter.Limit; v > 0 {
		sb = sb.Limit(uint64(v))
	}
	if v := filter.Offset; v > 0 {
		sb = sb.Offset(uint64(v))
	}

	return sb.Where(where)
}
