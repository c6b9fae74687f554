package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/pkg/tx"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/utils"
	"github.com/google/uuid"
)

// Значения новой конфигурации по умолчанию
const (
	DefaultLanguage = "en"
	DefaultCurrency = "USD"
)

// TenantConfigUpdate частичное обновление конфигурации фида; nil поля не меняются
type TenantConfigUpdate struct {
	Code            *string              `json:"code,omitempty"`
	DeliveryMode    *models.DeliveryMode `json:"delivery_mode,omitempty"`
	ShopURL         *string              `json:"shop_url,omitempty"`
	SFTPHost        *string              `json:"sftp_host,omitempty"`
	SFTPPort        *int                 `json:"sftp_port,omitempty"`
	SFTPUser        *string              `json:"sftp_user,omitempty"`
	SFTPPassword    *string              `json:"sftp_password,omitempty"`
	DefaultLanguage *string              `json:"default_language,omitempty"`
	DefaultTaxZone  *string              `json:"default_tax_zone,omitempty"`
	CurrencyCode    *string              `json:"currency_code,omitempty"`
	// RegenerateToken выдает новый токен ссылки на фид
	RegenerateToken bool `json:"regenerate_token,omitempty"`
}

// TenantConfigService чтение и изменение конфигурации фида арендатора
type TenantConfigService struct {
	tenants TenantStore
	tx      tx.TxManager
	logger  interfaces.LoggerPort
}

// NewTenantConfigService создает сервис конфигурации
func NewTenantConfigService(tenants TenantStore, txManager tx.TxManager, logger interfaces.LoggerPort) *TenantConfigService {
	return &TenantConfigService{tenants: tenants, tx: txManager, logger: logger}
}

// Get возвращает конфигурацию арендатора
func (s *TenantConfigService) Get(ctx context.Context, tenantID string) (*models.Tenant, error) {
	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	if tenant == nil {
		return nil, utils.ErrTenantNotFound
	}
	return tenant, nil
}

// Update применяет изменения в одной транзакции под блокировкой строки.
// Отсутствующая конфигурация создается. Включение доставки из disabled выставляет флаг пересборки.
func (s *TenantConfigService) Update(ctx context.Context, tenantID string, upd TenantConfigUpdate) (*models.Tenant, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("%w: tenant id is empty", utils.ErrInvalidConfig)
	}
	if upd.DeliveryMode != nil && !upd.DeliveryMode.Valid() {
		return nil, fmt.Errorf("%w: unknown delivery mode %q", utils.ErrInvalidConfig, *upd.DeliveryMode)
	}
	if upd.SFTPPort != nil && (*upd.SFTPPort < 1 || *upd.SFTPPort > 65535) {
		return nil, fmt.Errorf("%w: sftp port %d", utils.ErrInvalidConfig, *upd.SFTPPort)
	}

	var result *models.Tenant
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		tenant, err := s.tenants.GetTenantForUpdate(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("failed to lock tenant: %w", err)
		}
		if tenant == nil {
			tenant = newTenant(tenantID)
		}

		wasDisabled := tenant.DeliveryMode == models.DeliveryDisabled
		applyUpdate(tenant, upd)
		if wasDisabled && tenant.DeliveryMode != models.DeliveryDisabled {
			tenant.RebuildPending = true
		}

		if err := s.tenants.SaveTenant(ctx, tenant); err != nil {
			return err
		}
		result = tenant
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoWithContext(ctx, "Конфигурация фида обновлена",
		interfaces.Field("tenant_id", result.ID),
		interfaces.Field("delivery_mode", result.DeliveryMode),
		interfaces.Field("rebuild_pending", result.RebuildPending),
	)
	return result, nil
}

func newTenant(tenantID string) *models.Tenant {
	return &models.Tenant{
		ID:              tenantID,
		Code:            tenantID,
		Token:           uuid.New().String(),
		DeliveryMode:    models.DeliveryDisabled,
		SFTP:            models.SFTPCredentials{Port: models.DefaultSFTPPort},
		DefaultLanguage: DefaultLanguage,
		CurrencyCode:    DefaultCurrency,
	}
}

func applyUpdate(t *models.Tenant, upd TenantConfigUpdate) {
	if upd.Code != nil {
		t.Code = *upd.Code
	}
	if upd.DeliveryMode != nil {
		t.DeliveryMode = *upd.DeliveryMode
	}
	if upd.ShopURL != nil {
		t.ShopURL = *upd.ShopURL
	}
	if upd.SFTPHost != nil {
		t.SFTP.Host = *upd.SFTPHost
	}
	if upd.SFTPPort != nil {
		t.SFTP.Port = *upd.SFTPPort
	}
	if upd.SFTPUser != nil {
		t.SFTP.User = *upd.SFTPUser
	}
	if upd.SFTPPassword != nil {
		t.SFTP.Password = *upd.SFTPPassword
	}
	if upd.DefaultLanguage != nil {
		t.DefaultLanguage = *upd.DefaultLanguage
	}
	if upd.DefaultTaxZone != nil {
		t.DefaultTaxZone = *upd.DefaultTaxZone
	}
	if upd.CurrencyCode != nil {
		t.CurrencyCode = *upd.CurrencyCode
	}
	if upd.RegenerateToken || t.Token == "" {
		t.Token = uuid.New().String()
	}
	if t.SFTP.Port == 0 {
		t.SFTP.Port = models.DefaultSFTPPort
	}
}
