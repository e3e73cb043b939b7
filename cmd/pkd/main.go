package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/PankindProjects/pankind"
	"github.com/PankindProjects/pankind/api"
	"github.com/PankindProjects/pankind/integrations/otel"
	"github.com/PankindProjects/pankind/integrations/prometheus"
	"github.com/PankindProjects/pankind/internal/config"
	"github.com/PankindProjects/pankind/sudoapi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/riandyrn/otelchi"
	slogmulti "github.com/samber/slog-multi"
)

var (
	confPath = flag.String("config", "./config.toml", "Config path")
)

func main() {
	godotenv.Load()
	flag.Parse()

	if err := config.Load(*confPath); err != nil {
		fmt.Fprintln(os.Stderr, "Couldn't load config:", err)
		os.Exit(1)
	}

	// save the config for formatting
	if err := config.Save(*confPath); err != nil {
		fmt.Fprintln(os.Stderr, "Couldn't resave config:", err)
		os.Exit(1)
	}

	if err := initLogger(config.C.Common.LogDir, config.C.Common.Debug); err != nil {
		fmt.Fprintln(os.Stderr, "Couldn't initialize logger:", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if config.C.Common.FlagsPath != "" {
		config.SetFlagsPath(config.C.Common.FlagsPath)
		if err := config.LoadFlags(ctx, true); err != nil {
			slog.ErrorContext(ctx, "Couldn't load flags", slog.Any("err", err))
			os.Exit(1)
		}
	}

	if err := Pankind(ctx); err != nil {
		slog.ErrorContext(ctx, "Error running ledger engine", slog.Any("err", err))
		os.Exit(1)
	}
}

func Pankind(ctx context.Context) error {
	slog.InfoContext(ctx, "Starting Pankind", slog.String("version", pankind.Version))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTracing, err := otel.InitTracing(ctx)
	if err != nil {
		return fmt.Errorf("couldn't initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.WarnContext(ctx, "Couldn't shut down tracing", slog.Any("err", err))
		}
	}()

	base, err := sudoapi.InitializeBaseAPI(ctx)
	if err != nil {
		return err
	}
	defer base.Close()

	base.Start(ctx)
	prometheus.InitMetrics(ctx)

	r := chi.NewRouter()

	corsConfig := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(corsConfig.Handler)

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Timeout(20 * time.Second))
	r.Use(otelchi.Middleware("pankind", otelchi.WithChiRoutes(r)))

	r.Mount("/api", api.New(base).Handler())

	server := &http.Server{
		Addr:    config.C.Common.Listen,
		Handler: r,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "Server error", slog.Any("err", err))
			cancel()
		}
	}()

	slog.InfoContext(ctx, "Successfully started", slog.String("addr", server.Addr))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		signal.Stop(stop)
		cancel()
	case <-ctx.Done():
	}

	slog.InfoContext(ctx, "Shutting down")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := server.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("couldn't shut down server: %w", err)
	}

	return nil
}

func initLogger(logDir string, debug bool) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	handler := slogmulti.Fanout(
		pankind.GetSlogHandler(debug, os.Stdout),
		pankind.GetRotatingFileHandler(path.Join(logDir, "engine.log"), debug),
	)
	slog.SetDefault(slog.New(handler))
	return nil
}
