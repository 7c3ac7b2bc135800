package service

import (
	"context"
	"database/sql"
	"fmt"

	"wisefido-health-sync/common/database"
	mqttpkg "wisefido-health-sync/common/mqtt"
	redispkg "wisefido-health-sync/common/redis"
	"wisefido-health-sync/internal/aggregator"
	"wisefido-health-sync/internal/config"
	"wisefido-health-sync/internal/extractor"
	"wisefido-health-sync/internal/importer"
	"wisefido-health-sync/internal/notify"
	"wisefido-health-sync/internal/provider"
	"wisefido-health-sync/internal/remote"
	"wisefido-health-sync/internal/signals"
	"wisefido-health-sync/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// HealthSyncService owns the connections and the sync pipeline.
type HealthSyncService struct {
	config *config.Config
	logger *zap.Logger

	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttpkg.Client
	badger      *store.BadgerKV

	orchestrator *Orchestrator
	scheduler    *Scheduler
	uploader     *remote.Client
	parser       *importer.Parser
	events       EventLog
}

// NewHealthSyncService connects the configured backends and builds the
// pipeline.
func NewHealthSyncService(cfg *config.Config, logger *zap.Logger) (*HealthSyncService, error) {
	s := &HealthSyncService{config: cfg, logger: logger}
	if err := s.init(); err != nil {
		_ = s.Stop(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *HealthSyncService) init() error {
	cfg := s.config

	if cfg.Provider.Backend == "postgres" || cfg.Remote.Backend == "postgres" {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
	}

	if cfg.Redis.Enabled {
		s.redisClient = redispkg.NewRedisClient(&cfg.Redis)
		if err := redispkg.Ping(context.Background(), s.redisClient); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	var p provider.Provider
	switch cfg.Provider.Backend {
	case "postgres":
		p = provider.NewPostgresProvider(s.db, s.logger)
	default:
		s.logger.Warn("Using in-memory health provider, no data will be synced")
		p = provider.NewMemoryProvider()
	}

	s.uploader = remote.NewClient(NewRemoteStore(cfg, s.db, s.logger), cfg.Remote.OwnerID, cfg.Remote.BatchSize, s.logger)

	var kv store.KV
	switch cfg.Store.Backend {
	case "redis":
		kv = store.NewRedisKV(s.redisClient, "health:")
	default:
		b, err := store.OpenBadgerKV(cfg.Store.Path)
		if err != nil {
			return err
		}
		s.badger = b
		kv = b
	}

	var sched notify.Scheduler
	switch cfg.Notify.Backend {
	case "desktop":
		sched = notify.NewDesktopScheduler("Health Sync")
	case "mqtt":
		client, err := mqttpkg.NewClient(&cfg.MQTT, s.logger)
		if err != nil {
			return err
		}
		s.mqttClient = client
		sched = notify.NewMQTTScheduler(client, cfg.Notify.TopicPrefix)
	default:
		sched = notify.NewLogScheduler(s.logger)
	}

	if s.redisClient != nil {
		s.events = NewRedisEventLog(s.redisClient, cfg.Sync.EventStream)
	} else {
		s.events = NewMemoryEventLog(100)
	}

	deps := Deps{
		Authorizer: p,
		Extractor: extractor.New(p, s.logger, extractor.Options{
			SampleLimit:         cfg.Sync.SampleLimit,
			WorkoutLookbackDays: cfg.Sync.WorkoutLookbackDays,
			Parallelism:         cfg.Sync.ExtractParallelism,
			QueryTimeout:        cfg.Sync.QueryTimeout,
		}),
		Uploader: s.uploader,
		Aggregator: aggregator.New(p, s.logger, aggregator.Options{
			BaselineDays: cfg.Sync.BaselineDays,
			QueryTimeout: cfg.Sync.QueryTimeout,
			Location:     cfg.Location(),
		}),
		Dispatcher:  notify.NewDispatcher(kv, sched, s.logger),
		Checkpoints: store.NewCheckpointStore(kv),
		Events:      s.events,
	}
	if cfg.Signals.Enabled {
		deps.Alerts = signals.NewClient(signals.Config{
			BaseURL:   cfg.Signals.BaseURL,
			UserEmail: cfg.Signals.UserEmail,
			CacheTTL:  cfg.Signals.CacheTTL,
		}, s.logger)
	}

	s.orchestrator = NewOrchestrator(deps, s.logger, Options{
		FirstSyncDays: cfg.Sync.FirstSyncDays,
		Interval:      cfg.Sync.Interval,
	})
	s.scheduler = NewScheduler(s.orchestrator, cfg.Sync.Interval, cfg.Sync.CheckInterval, s.logger)

	s.parser = importer.NewParser(importer.Options{
		Location: cfg.Location(),
		Undated:  importer.UndatedPolicy(cfg.Import.UndatedRows),
		Logger:   s.logger,
	})

	s.logger.Info("Health sync service initialized",
		zap.String("provider", cfg.Provider.Backend),
		zap.String("remote", cfg.Remote.Backend),
		zap.String("store", cfg.Store.Backend),
		zap.String("notify", cfg.Notify.Backend),
		zap.Bool("signals", cfg.Signals.Enabled),
	)
	return nil
}

// NewRemoteStore builds the configured remote backend. db is only used by
// the postgres backend.
func NewRemoteStore(cfg *config.Config, db *sql.DB, logger *zap.Logger) remote.Store {
	switch cfg.Remote.Backend {
	case "postgrest":
		return remote.NewPostgRESTStore(remote.PostgRESTConfig{
			BaseURL: cfg.Remote.BaseURL,
			APIKey:  cfg.Remote.APIKey,
			Timeout: cfg.Remote.Timeout,
			Retries: 2,
		}, logger)
	case "postgres":
		return remote.NewPostgresStore(db, logger)
	default:
		return remote.NewMemoryStore()
	}
}

func (s *HealthSyncService) Orchestrator() *Orchestrator { return s.orchestrator }
func (s *HealthSyncService) Uploader() *remote.Client { return s.uploader }
func (s *HealthSyncService) Parser() *importer.Parser { return s.parser }
func (s *HealthSyncService) Events() EventLog { return s.events }

// Start runs the scheduler until ctx is cancelled.
func (s *HealthSyncService) Start(ctx context.Context) error {
	return s.scheduler.Run(ctx)
}

// Stop releases every connection opened by the service.
func (s *HealthSyncService) Stop(ctx context.Context) error {
	var err error
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if s.badger != nil {
		err = multierr.Append(err, s.badger.Close())
	}
	if s.redisClient != nil {
		err = multierr.Append(err, redispkg.Close(s.redisClient))
	}
	if s.db != nil {
		err = multierr.Append(err, database.Close(s.db))
	}
	return err
}
