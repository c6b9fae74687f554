package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/utils"
)

// Имена очередей сервиса
const (
	BuildQueue  = "product-feed-build"
	UploadQueue = "product-feed-upload"
)

// finalizeTimeout время на сохранение итогового состояния задачи после отмены контекста
const finalizeTimeout = 5 * time.Second

// defaultRetryDelay пауза перед повторной постановкой задачи, которую не удалось прочитать из хранилища
const defaultRetryDelay = time.Second

// ProgressFunc сообщает прогресс выполнения задачи в процентах
type ProgressFunc func(percent int)

// Handler обработчик полезной нагрузки задачи.
// Возвращаемый результат сериализуется в JSON и сохраняется в задаче.
type Handler[P any] func(ctx context.Context, payload P, progress ProgressFunc) (any, error)

// Queue именованная очередь с одним обработчиком.
// Задачи выполняются строго по одной в порядке постановки, повторов нет.
type Queue[P any] struct {
	name    string
	store   Store
	handler Handler[P]
	logger  interfaces.LoggerPort

	mu      sync.Mutex
	pending []string
	known   map[string]struct{}
	wake    chan struct{}

	retryDelay time.Duration
	now        func() time.Time
}

// NewQueue создает очередь
func NewQueue[P any](name string, store Store, handler Handler[P], logger interfaces.LoggerPort) *Queue[P] {
	return &Queue[P]{
		name:    name,
		store:   store,
		handler: handler,
		logger:  logger.WithField("queue", name),
		known:   make(map[string]struct{}),
		wake:    make(chan struct{}, 1),

		retryDelay: defaultRetryDelay,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Name возвращает имя очереди
func (q *Queue[P]) Name() string {
	return q.name
}

// Enqueue сохраняет новую задачу и ставит ее в очередь
func (q *Queue[P]) Enqueue(ctx context.Context, tenantID string, payload P) (*Job, error) {
	job, err := NewJob(q.name, tenantID, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job payload: %w", err)
	}
	if err := q.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	q.push(job.ID)
	jobsTotal.WithLabelValues(q.name, string(StateQueued)).Inc()
	q.logger.InfoWithContext(ctx, "Задача поставлена в очередь",
		interfaces.Field("job_id", job.ID),
		interfaces.Field("tenant_id", tenantID),
	)
	return job.Clone(), nil
}

// Accept ставит в очередь задачу, уже сохраненную в хранилище другим процессом.
// Задачи в любом состоянии, кроме queued, пропускаются.
func (q *Queue[P]) Accept(ctx context.Context, jobID string) error {
	job, err := q.store.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return utils.ErrJobNotFound
	}
	if job.Queue != q.name {
		return fmt.Errorf("job %s belongs to queue %s", job.ID, job.Queue)
	}
	if job.State != StateQueued {
		q.logger.Debug("Задача уже обработана, пропускаем",
			interfaces.Field("job_id", job.ID),
			interfaces.Field("state", job.State),
		)
		return nil
	}

	q.push(job.ID)
	return nil
}

// Recover восстанавливает очередь после перезапуска: задачи queued возвращаются в очередь,
// задачи running помечаются как прерванные.
func (q *Queue[P]) Recover(ctx context.Context) (int, error) {
	open, err := q.store.ListOpen(ctx, q.name)
	if err != nil {
		return 0, fmt.Errorf("failed to list open jobs: %w", err)
	}

	restored := 0
	for _, job := range open {
		switch job.State {
		case StateRunning:
			job.fail("interrupted by worker restart", q.now())
			if err := q.store.Save(ctx, job); err != nil {
				return restored, fmt.Errorf("failed to save interrupted job: %w", err)
			}
			jobsTotal.WithLabelValues(q.name, string(StateFailed)).Inc()
			q.logger.Warn("Задача прервана перезапуском", interfaces.Field("job_id", job.ID))
		case StateQueued:
			q.push(job.ID)
			restored++
		}
	}

	if restored > 0 {
		q.logger.Info("Очередь восстановлена", interfaces.Field("jobs", restored))
	}
	return restored, nil
}

// Get возвращает задачу очереди по ID
func (q *Queue[P]) Get(ctx context.Context, id string) (*Job, error) {
	job, err := q.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil || job.Queue != q.name {
		return nil, utils.ErrJobNotFound
	}
	return job, nil
}

// Depth количество задач, ожидающих выполнения
func (q *Queue[P]) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Run запускает обработчик очереди и блокируется до отмены контекста
func (q *Queue[P]) Run(ctx context.Context) error {
	q.logger.Info("Обработчик очереди запущен")
	defer q.logger.Info("Обработчик очереди остановлен")

	for {
		if ctx.Err() != nil {
			return nil
		}

		id, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-q.wake:
			}
			continue
		}

		q.process(ctx, id)
	}
}

func (q *Queue[P]) push(id string) {
	q.mu.Lock()
	if _, ok := q.known[id]; ok {
		q.mu.Unlock()
		return
	}
	q.known[id] = struct{}{}
	q.pending = append(q.pending, id)
	queueDepth.WithLabelValues(q.name).Set(float64(len(q.pending)))
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// pushLater возвращает задачу в очередь после паузы; при остановке задача останется queued до Recover
func (q *Queue[P]) pushLater(ctx context.Context, id string) {
	go func() {
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
			q.push(id)
		case <-ctx.Done():
		}
	}()
}

func (q *Queue[P]) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return "", false
	}
	id := q.pending[0]
	q.pending[0] = ""
	q.pending = q.pending[1:]
	delete(q.known, id)
	queueDepth.WithLabelValues(q.name).Set(float64(len(q.pending)))
	return id, true
}

func (q *Queue[P]) process(ctx context.Context, id string) {
	job, err := q.store.Get(ctx, id)
	if err != nil {
		q.logger.Error("Не удалось загрузить задачу, повтор позже",
			interfaces.Field("job_id", id),
			interfaces.Field("retry_in", q.retryDelay.String()),
			interfaces.ErrField(err),
		)
		q.pushLater(ctx, id)
		return
	}
	if job == nil {
		q.logger.Warn("Задача не найдена в хранилище, пропускаем", interfaces.Field("job_id", id))
		return
	}
	if job.State != StateQueued {
		return
	}

	jobCtx := interfaces.WithJobID(interfaces.WithTenantID(ctx, job.TenantID), job.ID)

	var payload P
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		q.finish(jobCtx, job, nil, fmt.Errorf("%w: %v", utils.ErrInvalidPayload, err), 0)
		return
	}

	job.start(q.now())
	if err := q.store.Save(jobCtx, job); err != nil {
		q.logger.WarnWithContext(jobCtx, "Не удалось сохранить состояние задачи", interfaces.ErrField(err))
	}
	jobProgress.WithLabelValues(q.name).Set(0)
	q.logger.InfoWithContext(jobCtx, "Задача запущена")

	progress := func(percent int) {
		if percent > 100 {
			percent = 100
		}
		if percent <= job.Progress {
			return
		}
		job.Progress = percent
		jobProgress.WithLabelValues(q.name).Set(float64(percent))
		if err := q.store.Save(jobCtx, job); err != nil {
			q.logger.WarnWithContext(jobCtx, "Не удалось сохранить прогресс задачи", interfaces.ErrField(err))
		}
	}

	started := time.Now()
	result, err := q.call(jobCtx, payload, progress)
	q.finish(jobCtx, job, result, err, time.Since(started))
}

func (q *Queue[P]) call(ctx context.Context, payload P, progress ProgressFunc) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.ErrorWithContext(ctx, "Паника в обработчике задачи",
				interfaces.Field("panic", r),
				interfaces.Field("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return q.handler(ctx, payload, progress)
}

func (q *Queue[P]) finish(ctx context.Context, job *Job, result any, err error, elapsed time.Duration) {
	if err == nil {
		raw, mErr := json.Marshal(result)
		if mErr != nil {
			err = fmt.Errorf("failed to encode job result: %w", mErr)
		} else {
			job.complete(raw, q.now())
		}
	}
	if err != nil {
		job.fail(err.Error(), q.now())
	}

	// итоговое состояние сохраняется даже при остановке процесса
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if sErr := q.store.Save(saveCtx, job); sErr != nil {
		q.logger.ErrorWithContext(ctx, "Не удалось сохранить итог задачи", interfaces.ErrField(sErr))
	}

	jobsTotal.WithLabelValues(q.name, string(job.State)).Inc()
	jobDuration.WithLabelValues(q.name).Observe(elapsed.Seconds())

	if err != nil {
		fields := []interface{}{interfaces.ErrField(err)}
		if errors.Is(err, context.Canceled) {
			q.logger.WarnWithContext(ctx, "Задача прервана остановкой", fields...)
			return
		}
		q.logger.ErrorWithContext(ctx, "Задача завершилась ошибкой", fields...)
		return
	}
	q.logger.InfoWithContext(ctx, "Задача выполнена", interfaces.Field("duration", elapsed.String()))
}
