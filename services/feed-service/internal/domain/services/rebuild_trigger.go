package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/models"
)

// RebuildTrigger помечает фиды арендаторов устаревшими при изменении каталога
type RebuildTrigger struct {
	tenants TenantStore
	logger  interfaces.LoggerPort
}

// NewRebuildTrigger создает обработчик событий каталога
func NewRebuildTrigger(tenants TenantStore, logger interfaces.LoggerPort) *RebuildTrigger {
	return &RebuildTrigger{tenants: tenants, logger: logger}
}

// HandleCatalogEvent обработчик сообщений топика событий каталога.
// Нераспознанные сообщения подтверждаются без действий.
func (t *RebuildTrigger) HandleCatalogEvent(ctx context.Context, msg *interfaces.Message) error {
	var event models.CatalogEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		t.logger.WarnWithContext(ctx, "Некорректное событие каталога",
			interfaces.Field("message_id", msg.ID),
			interfaces.ErrField(err),
		)
		return nil
	}

	switch event.EventType {
	case models.ProductChangedEvent, models.ProductVariantChangedEvent:
	default:
		return nil
	}

	tenantID := event.TenantID
	if tenantID == "" {
		tenantID = msg.TenantID
	}
	if tenantID == "" {
		t.logger.WarnWithContext(ctx, "Событие каталога без арендатора",
			interfaces.Field("event_type", event.EventType),
		)
		return nil
	}

	_, err := t.MarkForRebuild(interfaces.WithTenantID(ctx, tenantID), tenantID)
	return err
}

// MarkForRebuild выставляет флаг пересборки арендатору.
// Выключенный фид и уже выставленный флаг не дают записи. Возвращает true, если флаг был записан.
func (t *RebuildTrigger) MarkForRebuild(ctx context.Context, tenantID string) (bool, error) {
	tenant, err := t.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return false, fmt.Errorf("failed to get tenant: %w", err)
	}
	if tenant == nil {
		t.logger.DebugWithContext(ctx, "Арендатор без конфигурации фида, событие пропущено")
		return false, nil
	}
	if tenant.DeliveryMode == models.DeliveryDisabled || tenant.RebuildPending {
		return false, nil
	}

	marked, err := t.tenants.MarkDirty(ctx, tenant.ID)
	if err != nil {
		return false, fmt.Errorf("failed to mark tenant for rebuild: %w", err)
	}
	if marked {
		t.logger.InfoWithContext(ctx, "Фид помечен на пересборку")
	}
	return marked, nil
}
