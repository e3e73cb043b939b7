package sudoapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PankindProjects/pankind"
	"github.com/PankindProjects/pankind/internal/config"
)

var (
	UpdatesWebhook = config.GenFlag[string]("admin.updates_webhook", "", "Webhook URL for audit log updates (Discord-compatible form post)")
)

type logEntry struct {
	Message string
	Actor   *string
	System  bool
}

func (s *BaseAPI) LogSystemAction(ctx context.Context, msg string) {
	s.logChan <- &logEntry{
		Message: msg,
		Actor:   nil,
		System:  true,
	}
}

func (s *BaseAPI) LogActorAction(ctx context.Context, actor string, msg string, args ...any) {
	s.logChan <- &logEntry{
		Message: fmt.Sprintf(msg, args...),
		Actor:   &actor,
		System:  false,
	}
}

func (s *BaseAPI) AuditLogs(ctx context.Context, count int, offset int) ([]*pankind.AuditLog, error) {
	logs, err := s.db.AuditLogs(ctx, count, offset)
	if err != nil {
		return nil, fmt.Errorf("couldn't fetch audit logs: %w", err)
	}
	return logs, nil
}

func (s *BaseAPI) AuditLogCount(ctx context.Context) (int, error) {
	cnt, err := s.db.AuditLogCount(ctx)
	if err != nil {
		return -1, fmt.Errorf("couldn't get audit log count: %w", err)
	}
	return cnt, nil
}

func (s *BaseAPI) ingestAuditLogs(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.Canceled) {
				return ctx.Err()
			}
			return nil
		case val := <-s.logChan:
			if _, err := s.db.CreateAuditLog(ctx, val.Message, val.Actor, val.System); err != nil {
				slog.WarnContext(ctx, "Couldn't store audit log entry to database", slog.Any("err", err))
			}

			var msg strings.Builder
			msg.WriteString("Action")
			if val.Actor != nil {
				msg.WriteString(fmt.Sprintf(" (by %s)", *val.Actor))
			}
			if val.System {
				msg.WriteString(" (system)")
			}
			msg.WriteString(": " + val.Message)

			slog.InfoContext(ctx, msg.String())
			if webhook := UpdatesWebhook.Value(); webhook != "" {
				vals := make(url.Values)
				vals.Add("content", msg.String())
				vals.Add("username", "Pankind Audit Log")
				if _, err := http.PostForm(webhook, vals); err != nil {
					slog.WarnContext(ctx, "Couldn't post audit log update", slog.Any("err", err))
				}
			}
		}
	}
}
