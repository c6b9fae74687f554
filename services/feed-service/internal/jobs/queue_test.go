package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/athebyme/gomarket-platform/services/feed-service/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	TenantID string `json:"tenant_id"`
}

type testResult struct {
	Done bool `json:"done"`
}

func startQueue[P any](t *testing.T, q *Queue[P]) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitTerminal(t *testing.T, store Store, id string) *Job {
	t.Helper()
	var job *Job
	require.Eventually(t, func() bool {
		var err error
		job, err = store.Get(context.Background(), id)
		return err == nil && job != nil && job.State.Terminal()
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestQueue_CompletesJobWithResult(t *testing.T) {
	store := NewMemoryStore()
	q := NewQueue[testPayload]("build", store, func(ctx context.Context, p testPayload, progress ProgressFunc) (any, error) {
		progress(40)
		progress(20)
		progress(100)
		return testResult{Done: p.TenantID == "t1"}, nil
	}, logger.NewNop())
	startQueue(t, q)

	job, err := q.Enqueue(context.Background(), "t1", testPayload{TenantID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, StateQueued, job.State)

	job = waitTerminal(t, store, job.ID)
	assert.Equal(t, StateCompleted, job.State)
	assert.Equal(t, 100, job.Progress)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.FinishedAt)

	var res testResult
	require.NoError(t, json.Unmarshal(job.Result, &res))
	assert.True(t, res.Done)
}

func TestQueue_ProgressIsMonotonic(t *testing.T) {
	store := NewMemoryStore()
	var seen []int
	var mu sync.Mutex
	release := make(chan struct{})

	q := NewQueue[testPayload]("build", store, func(ctx context.Context, p testPayload, progress ProgressFunc) (any, error) {
		progress(34)
		progress(10)
		<-release
		return nil, nil
	}, logger.NewNop())
	startQueue(t, q)

	job, err := q.Enqueue(context.Background(), "t1", testPayload{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, _ := store.Get(context.Background(), job.ID)
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, j.Progress)
		return j.State == StateRunning && j.Progress == 34
	}, 2*time.Second, 5*time.Millisecond)
	close(release)

	waitTerminal(t, store, job.ID)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
}

func TestQueue_FailureIsTerminalWithoutRetry(t *testing.T) {
	store := NewMemoryStore()
	var calls atomic.Int32
	q := NewQueue[testPayload]("upload", store, func(ctx context.Context, p testPayload, progress ProgressFunc) (any, error) {
		calls.Add(1)
		return nil, errors.New("connection refused")
	}, logger.NewNop())
	startQueue(t, q)

	job, err := q.Enqueue(context.Background(), "t1", testPayload{})
	require.NoError(t, err)

	job = waitTerminal(t, store, job.ID)
	assert.Equal(t, StateFailed, job.State)
	assert.Equal(t, "connection refused", job.Error)

	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, calls.Load())
}

func TestQueue_PanicFailsJob(t *testing.T) {
	store := NewMemoryStore()
	q := NewQueue[testPayload]("build", store, func(ctx context.Context, p testPayload, progress ProgressFunc) (any, error) {
		panic("boom")
	}, logger.NewNop())
	startQueue(t, q)

	job, err := q.Enqueue(context.Background(), "t1", testPayload{})
	require.NoError(t, err)

	job = waitTerminal(t, store, job.ID)
	assert.Equal(t, StateFailed, job.State)
	assert.Contains(t, job.Error, "boom")
}

func TestQueue_FIFOSingleWorker(t *testing.T) {
	store := NewMemoryStore()
	var (
		mu      sync.Mutex
		order   []string
		active  int
		overlap bool
	)
	q := NewQueue[testPayload]("build", store, func(ctx context.Context, p testPayload, progress ProgressFunc) (any, error) {
		mu.Lock()
		active++
		if active > 1 {
			overlap = true
		}
		order = append(order, p.TenantID)
		mu.Unlock()

		time.Sleep(2 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return nil, nil
	}, logger.NewNop())

	var ids []string
	for _, tenant := range []string{"a", "b", "c", "d"} {
		job, err := q.Enqueue(context.Background(), tenant, testPayload{TenantID: tenant})
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}
	assert.Equal(t, 4, q.Depth())

	startQueue(t, q)
	for _, id := range ids {
		waitTerminal(t, store, id)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, overlap)
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

func TestQueue_InvalidPayload(t *testing.T) {
	store := NewMemoryStore()
	job := &Job{ID: "bad", Queue: "build", TenantID: "t1", State: StateQueued, Payload: json.RawMessage(`"not an object"`), CreatedAt: time.Now()}
	require.NoError(t, store.Save(context.Background(), job))

	called := false
	q := NewQueue[testPayload]("build", store, func(ctx context.Context, p testPayload, progress ProgressFunc) (any, error) {
		called = true
		return nil, nil
	}, logger.NewNop())
	require.NoError(t, q.Accept(context.Background(), "bad"))
	startQueue(t, q)

	job = waitTerminal(t, store, "bad")
	assert.Equal(t, StateFailed, job.State)
	assert.Contains(t, job.Error, utils.ErrInvalidPayload.Error())
	assert.False(t, called)
}

func TestQueue_Accept(t *testing.T) {
	store := NewMemoryStore()
	q := NewQueue[testPayload]("build", store, func(ctx context.Context, p testPayload, progress ProgressFunc) (any, error) {
		return nil, nil
	}, logger.NewNop())

	err := q.Accept(context.Background(), "missing")
	assert.ErrorIs(t, err, utils.ErrJobNotFound)

	other, err := NewJob("upload", "t1", testPayload{})
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), other))
	assert.Error(t, q.Accept(context.Background(), other.ID))

	done, err := NewJob("build", "t1", testPayload{})
	require.NoError(t, err)
	done.complete(nil, time.Now())
	require.NoError(t, store.Save(context.Background(), done))
	require.NoError(t, q.Accept(context.Background(), done.ID))
	assert.Equal(t, 0, q.Depth())

	queued, err := NewJob("build", "t1", testPayload{})
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), queued))
	require.NoError(t, q.Accept(context.Background(), queued.ID))
	require.NoError(t, q.Accept(context.Background(), queued.ID))
	assert.Equal(t, 1, q.Depth())
}

func TestQueue_Recover(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	running, err := NewJob("build", "t1", testPayload{TenantID: "t1"})
	require.NoError(t, err)
	running.start(time.Now())
	require.NoError(t, store.Save(ctx, running))

	queued, err := NewJob("build", "t2", testPayload{TenantID: "t2"})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, queued))

	q := NewQueue[testPayload]("build", store, func(ctx context.Context, p testPayload, progress ProgressFunc) (any, error) {
		return nil, nil
	}, logger.NewNop())

	restored, err := q.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, restored)

	interrupted, err := store.Get(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, interrupted.State)

	startQueue(t, q)
	assert.Equal(t, StateCompleted, waitTerminal(t, store, queued.ID).State)
}

func TestQueue_Get(t *testing.T) {
	store := NewMemoryStore()
	q := NewQueue[testPayload]("build", store, nil, logger.NewNop())

	_, err := q.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, utils.ErrJobNotFound)

	job, err := q.Enqueue(context.Background(), "t1", testPayload{})
	require.NoError(t, err)
	got, err := q.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "t1", got.TenantID)
}

// unreliableStore отвечает ошибкой на первые failGets вызовов Get
type unreliableStore struct {
	*MemoryStore
	failGets atomic.Int32
}

func (s *unreliableStore) Get(ctx context.Context, id string) (*Job, error) {
	if s.failGets.Add(-1) >= 0 {
		return nil, errors.New("redis: connection refused")
	}
	return s.MemoryStore.Get(ctx, id)
}

func TestQueue_RequeuesAfterStoreReadError(t *testing.T) {
	store := &unreliableStore{MemoryStore: NewMemoryStore()}
	store.failGets.Store(1)

	var calls atomic.Int32
	q := NewQueue[testPayload]("upload", store, func(context.Context, testPayload, ProgressFunc) (any, error) {
		calls.Add(1)
		return testResult{Done: true}, nil
	}, logger.NewNop())
	q.retryDelay = 10 * time.Millisecond

	job, err := q.Enqueue(context.Background(), "t1", testPayload{TenantID: "t1"})
	require.NoError(t, err)
	startQueue(t, q)

	job = waitTerminal(t, store.MemoryStore, job.ID)
	assert.Equal(t, StateCompleted, job.State)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, q.Depth())
}
