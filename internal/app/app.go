// Package app wires configuration into stores, adapters and services.
package app

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/juanse07/nexa-sub001/config"
	"github.com/juanse07/nexa-sub001/internal/billing"
	"github.com/juanse07/nexa-sub001/internal/notify"
	"github.com/juanse07/nexa-sub001/internal/repository"
	"github.com/juanse07/nexa-sub001/internal/service"
	"github.com/juanse07/nexa-sub001/pkg/database"
	"github.com/juanse07/nexa-sub001/pkg/jwt"
	"github.com/juanse07/nexa-sub001/pkg/mongodb"
	"github.com/juanse07/nexa-sub001/pkg/redis"
)

const seatRetryKey = "nexa:billing:seat_retry"

// App holds the long-lived dependencies of a process.
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Mongo    *mongo.Client
	Redis    *redis.Client // nil when Redis is not configured or unreachable
	JWT      *jwt.Manager
	Repo     *repository.Repository
	Services *service.Service

	logger *zap.Logger
}

// New connects the stores and builds the services.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, JWT: jwt.NewManager(&cfg.Auth), logger: logger}

	// 1. PostgreSQL and migrations
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.DB = db

	sqlDB, err := db.DB()
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Repo = repository.NewRepository(db)

	// 2. optional MongoDB event store
	if cfg.Storage.EventBackend == "mongo" {
		client, err := mongodb.Connect(ctx, &cfg.Mongo, logger)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.Mongo = client

		mdb := client.Database(cfg.Mongo.Database)
		if err := repository.EnsureEventIndexes(ctx, mdb); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("ensure event indexes: %w", err)
		}
		a.Repo = a.Repo.WithEventStore(repository.NewEventMongoRepo(mdb))
	}

	// 3. optional Redis, degraded operation without it
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("redis unavailable, revocation, rate limits and push fan-out disabled", zap.Error(err))
		} else {
			a.Redis = rdb
		}
	}

	// 4. adapters
	var (
		notifier notify.Notifier
		seats    billing.SeatSink
		retry    billing.RetryQueue
	)
	inbox := notify.NewInboxNotifier(a.Repo.Notification)
	if a.Redis != nil {
		notifier = notify.Multi{inbox, notify.NewPubSubNotifier(a.Redis, cfg.Notify.Channel)}
		seats = billing.NewQueueSink(a.Redis, cfg.Billing.Queue)
		retry = billing.NewRedisRetryQueue(a.Redis, seatRetryKey)
	} else {
		notifier = notify.Multi{inbox, notify.NewLogNotifier(logger)}
		seats = billing.NewLogSink(logger)
		retry = billing.NewMemoryRetryQueue()
	}

	a.Services = service.NewService(cfg, a.Repo, notifier, seats, retry, logger)

	logger.Info("application wired",
		zap.String("event_backend", cfg.Storage.EventBackend),
		zap.Bool("redis", a.Redis != nil),
	)
	return a, nil
}

// Close waits for background seat syncs and releases every connection.
func (a *App) Close(ctx context.Context) {
	if a.Services != nil {
		a.Services.Organization.Drain()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if a.Mongo != nil {
		if err := a.Mongo.Disconnect(ctx); err != nil {
			a.logger.Warn("mongodb disconnect failed", zap.Error(err))
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
}
