package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/patrickmn/go-cache"
)

// CatalogStorage чтение каталога для сборки фида: варианты, цены, налоги и остатки
type CatalogStorage struct {
	pool     *pgxpool.Pool
	taxRates *cache.Cache
}

// NewCatalogStorage создает хранилище каталога.
// Ставки налогов кешируются на taxRateTTL.
func NewCatalogStorage(pool *pgxpool.Pool, taxRateTTL time.Duration) (*CatalogStorage, error) {
	if pool == nil {
		return nil, errors.New("pool is nil")
	}
	if taxRateTTL <= 0 {
		taxRateTTL = 5 * time.Minute
	}
	return &CatalogStorage{
		pool:     pool,
		taxRates: cache.New(taxRateTTL, 2*taxRateTTL),
	}, nil
}

// CountVariants количество вариантов, продукты которых назначены арендатору
func (s *CatalogStorage) CountVariants(ctx context.Context, tenantID string) (int, error) {
	var total int
	err := getExecutor(ctx, s.pool).QueryRow(ctx, `
		SELECT COUNT(*)
		FROM catalog.product_variants v
		JOIN catalog.product_channels pc ON pc.product_id = v.product_id
		WHERE pc.tenant_id = $1 AND v.deleted_at IS NULL`, tenantID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count variants: %w", err)
	}
	return total, nil
}

// ListVariants страница вариантов арендатора в стабильном порядке по id
func (s *CatalogStorage) ListVariants(ctx context.Context, tenantID string, offset, limit int) ([]*models.Variant, error) {
	exec := getExecutor(ctx, s.pool)

	rows, err := exec.Query(ctx, `
		SELECT v.id, v.product_id, v.sku, COALESCE(v.featured_asset, ''), COALESCE(p.featured_asset, ''),
			COALESCE(v.tax_category_id, ''), v.track_inventory
		FROM catalog.product_variants v
		JOIN catalog.products p ON p.id = v.product_id
		JOIN catalog.product_channels pc ON pc.product_id = v.product_id
		WHERE pc.tenant_id = $1 AND v.deleted_at IS NULL
		ORDER BY v.id
		LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list variants: %w", err)
	}
	defer rows.Close()

	var (
		variants []*models.Variant
		ids      []string
	)
	index := make(map[string]*models.Variant)
	for rows.Next() {
		var v models.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.FeaturedAsset, &v.ProductAsset,
			&v.TaxCategoryID, &v.TrackInventory); err != nil {
			return nil, fmt.Errorf("failed to scan variant row: %w", err)
		}
		variants = append(variants, &v)
		ids = append(ids, v.ID)
		index[v.ID] = &v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate variants: %w", err)
	}
	if len(ids) == 0 {
		return variants, nil
	}

	trows, err := exec.Query(ctx, `
		SELECT vt.variant_id, vt.language_code, vt.name,
			COALESCE(pt.name, ''), COALESCE(pt.description, ''), COALESCE(pt.slug, '')
		FROM catalog.variant_translations vt
		JOIN catalog.product_variants v ON v.id = vt.variant_id
		LEFT JOIN catalog.product_translations pt
			ON pt.product_id = v.product_id AND pt.language_code = vt.language_code
		WHERE vt.variant_id = ANY($1)
		ORDER BY vt.variant_id, vt.language_code`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load translations: %w", err)
	}
	defer trows.Close()

	for trows.Next() {
		var (
			variantID string
			tr        models.Translation
		)
		if err := trows.Scan(&variantID, &tr.LanguageCode, &tr.Name,
			&tr.ProductName, &tr.ProductDescription, &tr.ProductSlug); err != nil {
			return nil, fmt.Errorf("failed to scan translation row: %w", err)
		}
		if v, ok := index[variantID]; ok {
			v.Translations = append(v.Translations, tr)
		}
	}
	if err := trows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate translations: %w", err)
	}

	return variants, nil
}

// ApplyPriceAndTax заполняет цену варианта в канале арендатора и цену с налогом
// по ставке зоны арендатора. Без цены в канале возвращает ErrPriceNotFound.
func (s *CatalogStorage) ApplyPriceAndTax(ctx context.Context, tenant *models.Tenant, v *models.Variant) error {
	var (
		price    int64
		currency string
	)
	err := getExecutor(ctx, s.pool).QueryRow(ctx, `
		SELECT price, currency_code
		FROM catalog.variant_prices
		WHERE variant_id = $1 AND tenant_id = $2`, v.ID, tenant.ID).Scan(&price, &currency)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%w: variant %s", utils.ErrPriceNotFound, v.ID)
	case err != nil:
		return fmt.Errorf("failed to get variant price: %w", err)
	}

	rate, err := s.taxRate(ctx, tenant.DefaultTaxZone, v.TaxCategoryID)
	if err != nil {
		return err
	}

	v.Price = price
	v.CurrencyCode = currency
	v.PriceWithTax = WithTax(price, rate)
	return nil
}

// WithTax цена с налогом в минорных единицах, ставка в процентах
func WithTax(price int64, ratePercent float64) int64 {
	return int64(math.Round(float64(price) * (1 + ratePercent/100)))
}

func (s *CatalogStorage) taxRate(ctx context.Context, zoneID, categoryID string) (float64, error) {
	if zoneID == "" || categoryID == "" {
		return 0, nil
	}

	key := zoneID + ":" + categoryID
	if cached, ok := s.taxRates.Get(key); ok {
		return cached.(float64), nil
	}

	var rate float64
	err := getExecutor(ctx, s.pool).QueryRow(ctx, `
		SELECT rate
		FROM catalog.tax_rates
		WHERE zone_id = $1 AND category_id = $2 AND enabled`, zoneID, categoryID).Scan(&rate)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to get tax rate: %w", err)
	}

	s.taxRates.SetDefault(key, rate)
	return rate, nil
}

// Translate применяет перевод на язык арендатора; при его отсутствии берется первый доступный
func (s *CatalogStorage) Translate(tenant *models.Tenant, v *models.Variant) {
	TranslateVariant(tenant.DefaultLanguage, v)
}

// TranslateVariant заполняет название, описание и slug варианта из перевода
func TranslateVariant(language string, v *models.Variant) {
	if len(v.Translations) == 0 {
		return
	}
	tr := v.Translations[0]
	for _, candidate := range v.Translations {
		if candidate.LanguageCode == language {
			tr = candidate
			break
		}
	}
	v.Name = tr.Name
	v.Description = tr.ProductDescription
	v.ProductSlug = tr.ProductSlug
}

// GetAvailableStock суммарный остаток варианта по всем складам
func (s *CatalogStorage) GetAvailableStock(ctx context.Context, tenant *models.Tenant, variantID string) (models.Stock, error) {
	var stock models.Stock
	err := getExecutor(ctx, s.pool).QueryRow(ctx, `
		SELECT COALESCE(SUM(stock_on_hand), 0), COALESCE(SUM(stock_allocated), 0)
		FROM catalog.stock_levels
		WHERE variant_id = $1`, variantID).Scan(&stock.StockOnHand, &stock.StockAllocated)
	if err != nil {
		return models.Stock{}, fmt.Errorf("failed to get stock for variant %s: %w", variantID, err)
	}
	return stock, nil
}
