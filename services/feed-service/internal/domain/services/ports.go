package services

import (
	"context"

	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/jobs"
)

// VariantSource постраничное чтение вариантов арендатора.
// Порядок стабилен в пределах одной сборки.
type VariantSource interface {
	CountVariants(ctx context.Context, tenantID string) (int, error)
	ListVariants(ctx context.Context, tenantID string, offset, limit int) ([]*models.Variant, error)
}

// PriceApplicator рассчитывает цену варианта с налогом для арендатора
type PriceApplicator interface {
	ApplyPriceAndTax(ctx context.Context, tenant *models.Tenant, v *models.Variant) error
}

// Translator применяет перевод варианта на язык арендатора
type Translator interface {
	Translate(tenant *models.Tenant, v *models.Variant)
}

// StockReader возвращает доступный остаток варианта
type StockReader interface {
	GetAvailableStock(ctx context.Context, tenant *models.Tenant, variantID string) (models.Stock, error)
}

// Catalog объединяет все операции чтения каталога, нужные сборщику
type Catalog interface {
	VariantSource
	PriceApplicator
	Translator
	StockReader
}

// TenantStore хранилище конфигураций фидов.
// Get-методы возвращают nil, nil если арендатор не найден.
type TenantStore interface {
	GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error)
	GetTenantByToken(ctx context.Context, token string) (*models.Tenant, error)
	GetTenantForUpdate(ctx context.Context, tenantID string) (*models.Tenant, error)
	SaveTenant(ctx context.Context, t *models.Tenant) error

	// MarkDirty выставляет флаг пересборки, если он еще не стоит; true если запись произошла
	MarkDirty(ctx context.Context, tenantID string) (bool, error)
	ListDirty(ctx context.Context) ([]*models.Tenant, error)

	// SaveFeedFile сохраняет ссылку на файл и снимает флаг пересборки одной записью
	SaveFeedFile(ctx context.Context, tenantID, fileRef string) error
}

// BuildScheduler ставит сборку фида в очередь.
// Реализуется локальной очередью воркера или отправкой команды воркеру из api.
type BuildScheduler interface {
	ScheduleBuild(ctx context.Context, tenantID string) (*jobs.Job, error)
}

// JobReader чтение состояния задач
type JobReader interface {
	Get(ctx context.Context, id string) (*jobs.Job, error)
}
