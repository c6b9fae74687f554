// Package bootstrap собирает адаптеры по конфигурации для cmd/api и cmd/worker
package bootstrap

import (
	"context"
	"fmt"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/services/feed-service/config"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/adapters/blob"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/adapters/jobstore"
	postgres "github.com/athebyme/gomarket-platform/services/feed-service/internal/adapters/storage"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/jobs"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/utils"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPostgresPool открывает пул соединений по настройкам Postgres
func NewPostgresPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	conn, err := utils.GenerateConnectionString(utils.PostgresParams{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		DBName:   cfg.Postgres.DBName,
		SSLMode:  cfg.Postgres.SSLMode,
		PoolSize: cfg.Postgres.PoolSize,
		Timeout:  cfg.Postgres.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid postgres settings: %w", err)
	}
	return postgres.NewPool(ctx, conn)
}

// NewJobStore создает хранилище состояний задач.
// api и worker должны смотреть в одно хранилище, поэтому memory годится только для одного процесса.
func NewJobStore(ctx context.Context, cfg *config.Config) (jobs.Store, error) {
	switch cfg.Queue.Store {
	case config.QueueStoreRedis:
		store, err := jobstore.NewRedisStore(ctx, jobstore.RedisOptions{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Queue.JobTTL,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.QueueStoreSQLite:
		store, err := jobstore.NewSQLiteStore(cfg.Queue.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.QueueStoreMemory:
		return jobs.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown queue store %q", cfg.Queue.Store)
	}
}

// NewBlobStore создает хранилище файлов фидов
func NewBlobStore(ctx context.Context, cfg *config.Config) (interfaces.BlobStorePort, error) {
	switch cfg.Storage.Driver {
	case config.StorageFS:
		store, err := blob.NewOsFSStore(cfg.Storage.Root)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageS3:
		store, err := blob.NewS3Store(ctx, blob.S3Options{
			Bucket:    cfg.Storage.S3.Bucket,
			Region:    cfg.Storage.S3.Region,
			Endpoint:  cfg.Storage.S3.Endpoint,
			Prefix:    cfg.Storage.S3.Prefix,
			PathStyle: cfg.Storage.S3.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
