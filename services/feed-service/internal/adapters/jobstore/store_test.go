package jobstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/jobs"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreWithClient(client, ttl)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newJob(t *testing.T, queue, tenantID string, created time.Time) *jobs.Job {
	t.Helper()
	job, err := jobs.NewJob(queue, tenantID, map[string]string{"tenant_id": tenantID})
	require.NoError(t, err)
	job.CreatedAt = created
	return job
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) jobs.Store{
		"memory": func(t *testing.T) jobs.Store { return jobs.NewMemoryStore() },
		"redis": func(t *testing.T) jobs.Store {
			s, _ := newRedisStore(t, 0)
			return s
		},
		"sqlite": func(t *testing.T) jobs.Store { return newSQLiteStore(t) },
	}

	for name, factory := range stores {
		t.Run(name, func(t *testing.T) {
			t.Run("get missing", func(t *testing.T) {
				store := factory(t)
				job, err := store.Get(context.Background(), "missing")
				require.NoError(t, err)
				assert.Nil(t, job)
			})

			t.Run("save and get", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				job := newJob(t, "build", "t1", time.Now().UTC().Truncate(time.Microsecond))
				require.NoError(t, store.Save(ctx, job))

				job.State = jobs.StateCompleted
				job.Progress = 100
				job.Result = []byte(`{"success":true,"total_count":3}`)
				finished := job.CreatedAt.Add(time.Second)
				job.FinishedAt = &finished
				require.NoError(t, store.Save(ctx, job))

				got, err := store.Get(ctx, job.ID)
				require.NoError(t, err)
				require.NotNil(t, got)
				assert.Equal(t, jobs.StateCompleted, got.State)
				assert.Equal(t, 100, got.Progress)
				assert.JSONEq(t, `{"success":true,"total_count":3}`, string(got.Result))
				assert.JSONEq(t, `{"tenant_id":"t1"}`, string(got.Payload))
				assert.True(t, job.CreatedAt.Equal(got.CreatedAt))
				require.NotNil(t, got.FinishedAt)
				assert.True(t, finished.Equal(*got.FinishedAt))
				assert.Nil(t, got.StartedAt)
			})

			t.Run("list open", func(t *testing.T) {
				store := factory(t)
				ctx := context.Background()
				base := time.Now().UTC()

				second := newJob(t, "build", "t2", base.Add(time.Second))
				first := newJob(t, "build", "t1", base)
				done := newJob(t, "build", "t3", base.Add(2*time.Second))
				done.State = jobs.StateFailed
				other := newJob(t, "upload", "t1", base)

				for _, j := range []*jobs.Job{second, first, done, other} {
					require.NoError(t, store.Save(ctx, j))
				}

				open, err := store.ListOpen(ctx, "build")
				require.NoError(t, err)
				require.Len(t, open, 2)
				assert.Equal(t, first.ID, open[0].ID)
				assert.Equal(t, second.ID, open[1].ID)

				first.State = jobs.StateCompleted
				require.NoError(t, store.Save(ctx, first))
				open, err = store.ListOpen(ctx, "build")
				require.NoError(t, err)
				require.Len(t, open, 1)
				assert.Equal(t, second.ID, open[0].ID)
			})
		})
	}
}

func TestRedisStore_TTLAppliesOnlyToFinishedJobs(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	job := newJob(t, "build", "t1", time.Now())
	require.NoError(t, store.Save(ctx, job))
	assert.Zero(t, mr.TTL(jobKey(job.ID)))

	mr.FastForward(2 * time.Minute)

	open, err := store.ListOpen(ctx, "build")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, job.ID, open[0].ID)

	job.State = jobs.StateCompleted
	require.NoError(t, store.Save(ctx, job))
	assert.Equal(t, time.Minute, mr.TTL(jobKey(job.ID)))

	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_DropsMissingRecordsFromOpenSet(t *testing.T) {
	store, mr := newRedisStore(t, 0)
	ctx := context.Background()

	job := newJob(t, "build", "t1", time.Now())
	require.NoError(t, store.Save(ctx, job))
	mr.Del(jobKey(job.ID))

	open, err := store.ListOpen(ctx, "build")
	require.NoError(t, err)
	assert.Empty(t, open)

	members, err := mr.ZMembers(openKey("build"))
	if err == nil {
		assert.Empty(t, members)
	}
}
