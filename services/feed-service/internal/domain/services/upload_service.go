package services

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/jobs"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/utils"
)

// UploadScheduler ставит выгрузку в очередь
type UploadScheduler interface {
	Enqueue(ctx context.Context, tenantID string, payload models.UploadPayload) (*jobs.Job, error)
}

// UploadService доставляет собранные фиды на SFTP арендатора
type UploadService struct {
	tenants  TenantStore
	blobs    interfaces.BlobStorePort
	transfer interfaces.TransferPort
	logger   interfaces.LoggerPort

	scheduler UploadScheduler
}

// NewUploadService создает сервис выгрузки.
// scheduler может быть nil, если сервис только исполняет задачи.
func NewUploadService(
	tenants TenantStore,
	blobs interfaces.BlobStorePort,
	transfer interfaces.TransferPort,
	scheduler UploadScheduler,
	logger interfaces.LoggerPort,
) *UploadService {
	return &UploadService{
		tenants:   tenants,
		blobs:     blobs,
		transfer:  transfer,
		scheduler: scheduler,
		logger:    logger,
	}
}

// HandleFeedUpdated ставит выгрузку для арендаторов с режимом доставки sftp
func (s *UploadService) HandleFeedUpdated(ctx context.Context, msg *interfaces.Message) error {
	var event models.FeedUpdated
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		s.logger.WarnWithContext(ctx, "Некорректное событие обновления фида",
			interfaces.Field("message_id", msg.ID),
			interfaces.ErrField(err),
		)
		return nil
	}
	ctx = interfaces.WithTenantID(ctx, event.TenantID)

	tenant, err := s.tenants.GetTenant(ctx, event.TenantID)
	if err != nil {
		return fmt.Errorf("failed to get tenant: %w", err)
	}
	if tenant == nil || tenant.DeliveryMode != models.DeliverySFTP {
		return nil
	}

	fileName := event.FileName
	if fileName == "" {
		fileName = path.Base(event.FilePath)
	}
	_, err = s.scheduler.Enqueue(ctx, tenant.ID, models.UploadPayload{
		TenantID: tenant.ID,
		FilePath: event.FilePath,
		FileName: fileName,
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue upload: %w", err)
	}
	return nil
}

// Handle обработчик задач очереди выгрузки.
// Неполные реквизиты дают ErrTransferConfig до попытки соединения.
func (s *UploadService) Handle(ctx context.Context, payload models.UploadPayload, progress jobs.ProgressFunc) (any, error) {
	tenant, err := s.tenants.GetTenant(ctx, payload.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	if tenant == nil {
		return nil, fmt.Errorf("%w: %s", utils.ErrTenantNotFound, payload.TenantID)
	}
	if !tenant.SFTP.Complete() {
		return nil, utils.ErrTransferConfig
	}

	log := s.logger.WithTenant(tenant.ID)
	if err := s.upload(ctx, tenant, payload); err != nil {
		log.ErrorWithContext(ctx, "Ошибка выгрузки фида",
			interfaces.Field("host", tenant.SFTP.Host),
			interfaces.Field("file_name", payload.FileName),
			interfaces.ErrField(err),
		)
		return nil, err
	}
	progress(100)

	log.InfoWithContext(ctx, "Фид выгружен",
		interfaces.Field("host", tenant.SFTP.Host),
		interfaces.Field("file_name", payload.FileName),
	)
	return models.UploadResult{File: payload.FileName}, nil
}

func (s *UploadService) upload(ctx context.Context, tenant *models.Tenant, payload models.UploadPayload) (err error) {
	src, err := s.blobs.Open(ctx, payload.FilePath)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrStorageIO, err)
	}
	defer src.Close()

	session, err := s.transfer.Connect(ctx, interfaces.TransferCredentials{
		Host:     tenant.SFTP.Host,
		Port:     tenant.SFTP.Port,
		User:     tenant.SFTP.User,
		Password: tenant.SFTP.Password,
	})
	if err != nil {
		return fmt.Errorf("%w: connect: %v", utils.ErrTransfer, err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: close: %v", utils.ErrTransfer, closeErr)
		}
	}()

	if err := session.Remove(payload.FileName); err != nil {
		return fmt.Errorf("%w: remove: %v", utils.ErrTransfer, err)
	}
	if err := session.Put(ctx, src, payload.FileName); err != nil {
		return fmt.Errorf("%w: put: %v", utils.ErrTransfer, err)
	}
	return nil
}
