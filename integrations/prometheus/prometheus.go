package prometheus

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/PankindProjects/pankind/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled = config.GenFlag[bool]("integrations.prometheus.enabled", false, "Enable Prometheus metrics")
	port    = config.GenFlag[int]("integrations.prometheus.port", 8071, "Prometheus metrics port")
)

// InitMetrics exposes the engine counters on their own listener, separate
// from the API port.
func InitMetrics(ctx context.Context) {
	if !enabled.Value() {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf(":%d", port.Value()), mux); err != nil {
			slog.ErrorContext(ctx, "Error with Prometheus metrics", slog.Any("err", err))
		}
	}()
	slog.InfoContext(ctx, "Prometheus metrics enabled", slog.Int("port", port.Value()))
}
