package sudoapi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PankindProjects/pankind"
	"github.com/PankindProjects/pankind/db"
	"github.com/PankindProjects/pankind/internal/config"
	"github.com/Yiling-J/theine-go"
)

var (
	MigrateOnStart = config.GenFlag("behavior.db.run_migrations", true, "Run PostgreSQL migrations on engine start")
)

type BaseAPI struct {
	db *db.DB

	// schedule is frozen at wire-up, fee flag changes need a restart to
	// take effect. Stored donations keep whatever split they were born
	// with either way.
	schedule *pankind.FeeSchedule

	logChan chan *logEntry

	progressCache *theine.LoadingCache[int, *pankind.CampaignProgress]
}

func (s *BaseAPI) Start(ctx context.Context) {
	go s.ingestAuditLogs(ctx)
	go s.subscriptionSweepJob(ctx, time.Duration(SweepInterval.Value())*time.Minute)
}

func (s *BaseAPI) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("couldn't close DB: %w", err)
	}
	return nil
}

func GetBaseAPI(ctx context.Context, dbClient *db.DB) (*BaseAPI, error) {
	base := &BaseAPI{
		db:       dbClient,
		schedule: feeScheduleFromFlags(),
		logChan:  make(chan *logEntry, 50),
	}
	progressCache, err := theine.NewBuilder[int, *pankind.CampaignProgress](500).BuildWithLoader(func(ctx context.Context, campaignID int) (theine.Loaded[*pankind.CampaignProgress], error) {
		progress, err := base.loadCampaignProgress(ctx, campaignID)
		if err != nil {
			return theine.Loaded[*pankind.CampaignProgress]{}, err
		}
		return theine.Loaded[*pankind.CampaignProgress]{
			Value: progress,
			Cost:  1,
			TTL:   5 * time.Second,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not build campaign progress cache: %w", err)
	}
	base.progressCache = progressCache
	return base, nil
}

func InitializeBaseAPI(ctx context.Context) (*BaseAPI, error) {
	dbClient, err := db.NewDB(ctx, config.C.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("couldn't connect to DB: %w", err)
	}
	slog.InfoContext(ctx, "Connected to DB")

	if MigrateOnStart.Value() {
		if err := dbClient.RunMigrations(ctx); err != nil {
			return nil, fmt.Errorf("couldn't run migrations: %w", err)
		}
	}

	return GetBaseAPI(ctx, dbClient)
}
