package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"path"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/jobs"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/utils"
)

const defaultContentType = "application/octet-stream"

// FeedServiceInterface определяет операции публичного контура фида
type FeedServiceInterface interface {
	// EnqueueBuild ставит сборку фида арендатора в очередь и сразу возвращает задачу
	EnqueueBuild(ctx context.Context, tenantID string) (*jobs.Job, error)

	// SweepDirtyTenants ставит сборку для каждого арендатора с флагом пересборки
	SweepDirtyTenants(ctx context.Context) ([]*jobs.Job, error)

	GetCurrentFeedLocation(ctx context.Context, tenantID string) (*models.FeedLocation, error)
	GetFeed(ctx context.Context, tenantID string) (*models.FeedFile, error)
	GetFeedByToken(ctx context.Context, token string) (*models.FeedFile, error)
	GetJob(ctx context.Context, jobID string) (*jobs.Job, error)
}

// QueueScheduler ставит сборки в локальную очередь процесса
type QueueScheduler struct {
	queue *jobs.Queue[models.BuildPayload]
}

// NewQueueScheduler создает планировщик поверх очереди сборки
func NewQueueScheduler(queue *jobs.Queue[models.BuildPayload]) *QueueScheduler {
	return &QueueScheduler{queue: queue}
}

func (s *QueueScheduler) ScheduleBuild(ctx context.Context, tenantID string) (*jobs.Job, error) {
	return s.queue.Enqueue(ctx, tenantID, models.BuildPayload{TenantID: tenantID})
}

// FeedService реализация FeedServiceInterface
type FeedService struct {
	tenants   TenantStore
	scheduler BuildScheduler
	jobs      JobReader
	blobs     interfaces.BlobStorePort
	logger    interfaces.LoggerPort
}

// NewFeedService создает сервис фида
func NewFeedService(
	tenants TenantStore,
	scheduler BuildScheduler,
	jobReader JobReader,
	blobs interfaces.BlobStorePort,
	logger interfaces.LoggerPort,
) *FeedService {
	return &FeedService{
		tenants:   tenants,
		scheduler: scheduler,
		jobs:      jobReader,
		blobs:     blobs,
		logger:    logger,
	}
}

// EnqueueBuild проверяет наличие арендатора и ставит сборку в очередь
func (s *FeedService) EnqueueBuild(ctx context.Context, tenantID string) (*jobs.Job, error) {
	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	if tenant == nil {
		return nil, utils.ErrTenantNotFound
	}

	job, err := s.scheduler.ScheduleBuild(ctx, tenant.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule build: %w", err)
	}

	s.logger.InfoWithContext(interfaces.WithJobID(ctx, job.ID), "Сборка фида поставлена в очередь",
		interfaces.Field("tenant_id", tenant.ID),
	)
	return job, nil
}

// SweepDirtyTenants ставит сборку для каждого арендатора с флагом пересборки.
// Флаг не снимается: его снимает только успешная сборка.
// Ошибка постановки одного арендатора не останавливает остальных.
func (s *FeedService) SweepDirtyTenants(ctx context.Context) ([]*jobs.Job, error) {
	dirty, err := s.tenants.ListDirty(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list dirty tenants: %w", err)
	}

	var (
		scheduled []*jobs.Job
		errs      []error
	)
	for _, tenant := range dirty {
		job, err := s.scheduler.ScheduleBuild(ctx, tenant.ID)
		if err != nil {
			s.logger.ErrorWithContext(ctx, "Не удалось поставить сборку в очередь",
				interfaces.Field("tenant_id", tenant.ID),
				interfaces.ErrField(err),
			)
			errs = append(errs, fmt.Errorf("tenant %s: %w", tenant.ID, err))
			continue
		}
		scheduled = append(scheduled, job)
	}

	if len(dirty) > 0 {
		s.logger.InfoWithContext(ctx, "Обход устаревших фидов завершен",
			interfaces.Field("dirty", len(dirty)),
			interfaces.Field("scheduled", len(scheduled)),
		)
	}
	return scheduled, errors.Join(errs...)
}

// GetCurrentFeedLocation возвращает путь и имя последнего собранного файла
func (s *FeedService) GetCurrentFeedLocation(ctx context.Context, tenantID string) (*models.FeedLocation, error) {
	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	if tenant == nil {
		return nil, utils.ErrTenantNotFound
	}
	if !tenant.HasFeed() {
		return nil, utils.ErrFeedNotFound
	}
	return &models.FeedLocation{Path: tenant.FeedFile, FileName: tenant.FeedFileName()}, nil
}

// GetFeed отдает содержимое фида арендатора с режимом доставки url
func (s *FeedService) GetFeed(ctx context.Context, tenantID string) (*models.FeedFile, error) {
	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return s.readFeed(ctx, tenant)
}

// GetFeedByToken отдает фид арендатора по токену канала
func (s *FeedService) GetFeedByToken(ctx context.Context, token string) (*models.FeedFile, error) {
	if token == "" {
		return nil, utils.ErrFeedNotFound
	}
	tenant, err := s.tenants.GetTenantByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return s.readFeed(ctx, tenant)
}

func (s *FeedService) readFeed(ctx context.Context, tenant *models.Tenant) (*models.FeedFile, error) {
	if tenant == nil || tenant.DeliveryMode != models.DeliveryURL || !tenant.HasFeed() {
		return nil, utils.ErrFeedNotFound
	}

	r, err := s.blobs.Open(ctx, tenant.FeedFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.WarnWithContext(ctx, "Файл фида отсутствует в хранилище",
				interfaces.Field("tenant_id", tenant.ID),
				interfaces.Field("file_path", tenant.FeedFile),
			)
			return nil, utils.ErrFeedNotFound
		}
		return nil, fmt.Errorf("%w: %v", utils.ErrStorageIO, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrStorageIO, err)
	}

	return &models.FeedFile{
		FileName:    tenant.FeedFileName(),
		ContentType: contentType(tenant.FeedFile),
		Data:        data,
	}, nil
}

// GetJob возвращает состояние задачи
func (s *FeedService) GetJob(ctx context.Context, jobID string) (*jobs.Job, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, utils.ErrJobNotFound
	}
	return job, nil
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return defaultContentType
}
