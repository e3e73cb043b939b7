package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/PankindProjects/pankind"
	"github.com/jackc/pgx/v5"
)

type auditLog struct {
	ID        int       `db:"id"`
	LogTime   time.Time `db:"logged_at"`
	SystemLog bool      `db:"system_log"`
	Message   string    `db:"msg"`
	Actor     *string   `db:"actor"`
}

const auditLogCreateQuery = `INSERT INTO audit_logs (
	system_log, msg, actor
) VALUES (
	$1, $2, $3
) RETURNING id;`

func (s *DB) CreateAuditLog(ctx context.Context, msg string, actor *string, system bool) (int, error) {
	var id int
	err := s.conn.QueryRow(ctx, auditLogCreateQuery, system, strings.TrimSpace(msg), actor).Scan(&id)
	return id, err
}

func (s *DB) AuditLogs(ctx context.Context, limit, offset int) ([]*pankind.AuditLog, error) {
	rows, _ := s.conn.Query(ctx, "SELECT * FROM audit_logs ORDER BY logged_at DESC, id DESC "+FormatLimitOffset(limit, offset))
	logs, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[auditLog])
	if errors.Is(err, pgx.ErrNoRows) {
		return []*pankind.AuditLog{}, nil
	}
	if err != nil {
		return nil, err
	}

	realLogs := make([]*pankind.AuditLog, 0, len(logs))
	for _, log := range logs {
		realLogs = append(realLogs, &pankind.AuditLog{
			ID:        log.ID,
			LogTime:   log.LogTime,
			SystemLog: log.SystemLog,
			Message:   log.Message,
			Actor:     log.Actor,
		})
	}
	return realLogs, nil
}

func (s *DB) AuditLogCount(ctx context.Context) (int, error) {
	var cnt int
	err := s.conn.QueryRow(ctx, "SELECT COUNT(id) FROM audit_logs").Scan(&cnt)
	return cnt, err
}
