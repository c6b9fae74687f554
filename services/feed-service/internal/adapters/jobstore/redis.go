package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/services/feed-service/internal/jobs"
	"github.com/go-redis/redis/v8"
)

const (
	jobKeyPrefix  = "feed:job:"
	openKeyPrefix = "feed:jobs:open:"
)

// RedisStore хранит задачи в Redis: запись задачи в JSON и отсортированное
// по времени создания множество незавершенных задач для каждой очереди
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOptions параметры подключения к Redis
type RedisOptions struct {
	Host     string
	Port     int
	Password string
	DB       int
	// TTL срок хранения завершенной задачи, 0 без ограничения
	TTL time.Duration
}

// NewRedisStore подключается к Redis и проверяет соединение
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient(client, opts.TTL), nil
}

// NewRedisStoreWithClient создает хранилище поверх готового клиента
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func jobKey(id string) string { return jobKeyPrefix + id }
func openKey(queue string) string { return openKeyPrefix + queue }

func (s *RedisStore) Save(ctx context.Context, job *jobs.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if job.State.Terminal() {
			pipe.Set(ctx, jobKey(job.ID), raw, s.ttl)
			pipe.ZRem(ctx, openKey(job.Queue), job.ID)
		} else {
			// незавершенная задача хранится без срока, иначе она пропадет из очереди
			pipe.Set(ctx, jobKey(job.ID), raw, 0)
			pipe.ZAdd(ctx, openKey(job.Queue), &redis.Z{
				Score:  float64(job.CreatedAt.UnixNano()),
				Member: job.ID,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*jobs.Job, error) {
	raw, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job jobs.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	return &job, nil
}

func (s *RedisStore) ListOpen(ctx context.Context, queue string) ([]*jobs.Job, error) {
	ids, err := s.client.ZRange(ctx, openKey(queue), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list open jobs: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = jobKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load open jobs: %w", err)
	}

	var (
		open  []*jobs.Job
		stale []interface{}
	)
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// запись задачи удалена
			stale = append(stale, ids[i])
			continue
		}
		var job jobs.Job
		if err := json.Unmarshal([]byte(str), &job); err != nil {
			return nil, fmt.Errorf("failed to decode job %s: %w", ids[i], err)
		}
		if job.State.Terminal() {
			stale = append(stale, ids[i])
			continue
		}
		open = append(open, &job)
	}

	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, openKey(queue), stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to drop stale jobs: %w", err)
		}
	}
	return open, nil
}

// Ping проверяет соединение с Redis
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
