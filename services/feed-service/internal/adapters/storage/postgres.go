package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/pkg/tx"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool создает пул соединений и проверяет доступность базы
func NewPool(ctx context.Context, connectionString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return pool, nil
}

type executor interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// getExecutor возвращает транзакцию из контекста или пул
func getExecutor(ctx context.Context, pool *pgxpool.Pool) executor {
	if t, ok := tx.GetTxFromContext(ctx); ok {
		return t
	}
	return pool
}

// TenantStorage хранилище конфигураций фидов арендаторов
type TenantStorage struct {
	pool *pgxpool.Pool
}

// NewTenantStorage создает хранилище поверх пула
func NewTenantStorage(pool *pgxpool.Pool) (*TenantStorage, error) {
	if pool == nil {
		return nil, errors.New("pool is nil")
	}
	return &TenantStorage{pool: pool}, nil
}

const tenantColumns = `
	id, code, token, delivery_mode, shop_url,
	sftp_host, sftp_port, sftp_user, sftp_password,
	default_language, default_tax_zone, currency_code,
	rebuild_pending, feed_file, updated_at`

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var (
		t        models.Tenant
		mode     string
		taxZone  *string
		feedFile *string
	)
	err := row.Scan(&t.ID, &t.Code, &t.Token, &mode, &t.ShopURL,
		&t.SFTP.Host, &t.SFTP.Port, &t.SFTP.User, &t.SFTP.Password,
		&t.DefaultLanguage, &taxZone, &t.CurrencyCode,
		&t.RebuildPending, &feedFile, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.DeliveryMode = models.DeliveryMode(mode)
	if taxZone != nil {
		t.DefaultTaxZone = *taxZone
	}
	if feedFile != nil {
		t.FeedFile = *feedFile
	}
	return &t, nil
}

func (s *TenantStorage) getOne(ctx context.Context, query string, args ...interface{}) (*models.Tenant, error) {
	t, err := scanTenant(getExecutor(ctx, s.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return t, nil
}

// GetTenant возвращает конфигурацию арендатора, nil если не найдена
func (s *TenantStorage) GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	return s.getOne(ctx, `SELECT `+tenantColumns+` FROM feed.tenant_configs WHERE id = $1`, tenantID)
}

// GetTenantByToken ищет арендатора по токену канала
func (s *TenantStorage) GetTenantByToken(ctx context.Context, token string) (*models.Tenant, error) {
	return s.getOne(ctx, `SELECT `+tenantColumns+` FROM feed.tenant_configs WHERE token = $1`, token)
}

// GetTenantForUpdate блокирует строку арендатора до конца транзакции
func (s *TenantStorage) GetTenantForUpdate(ctx context.Context, tenantID string) (*models.Tenant, error) {
	if _, ok := tx.GetTxFromContext(ctx); !ok {
		return nil, errors.New("GetTenantForUpdate requires a transaction")
	}
	return s.getOne(ctx, `SELECT `+tenantColumns+` FROM feed.tenant_configs WHERE id = $1 FOR UPDATE`, tenantID)
}

// SaveTenant создает или обновляет конфигурацию арендатора.
// Ссылка на файл фида не меняется: ее пишет только SaveFeedFile.
func (s *TenantStorage) SaveTenant(ctx context.Context, t *models.Tenant) error {
	query := `
		INSERT INTO feed.tenant_configs (
			id, code, token, delivery_mode, shop_url,
			sftp_host, sftp_port, sftp_user, sftp_password,
			default_language, default_tax_zone, currency_code,
			rebuild_pending, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13, $14)
		ON CONFLICT (id)
		DO UPDATE SET
			code = $2,
			token = $3,
			delivery_mode = $4,
			shop_url = $5,
			sftp_host = $6,
			sftp_port = $7,
			sftp_user = $8,
			sftp_password = $9,
			default_language = $10,
			default_tax_zone = NULLIF($11, ''),
			currency_code = $12,
			rebuild_pending = $13,
			updated_at = $14
	`

	t.UpdatedAt = time.Now().UTC()
	_, err := getExecutor(ctx, s.pool).Exec(ctx, query,
		t.ID, t.Code, t.Token, string(t.DeliveryMode), t.ShopURL,
		t.SFTP.Host, t.SFTP.Port, t.SFTP.User, t.SFTP.Password,
		t.DefaultLanguage, t.DefaultTaxZone, t.CurrencyCode,
		t.RebuildPending, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save tenant: %w", err)
	}
	return nil
}

// MarkDirty выставляет флаг пересборки одним условным UPDATE.
// Возвращает false, если флаг уже стоял, доставка выключена или арендатора нет.
func (s *TenantStorage) MarkDirty(ctx context.Context, tenantID string) (bool, error) {
	tag, err := getExecutor(ctx, s.pool).Exec(ctx, `
		UPDATE feed.tenant_configs
		SET rebuild_pending = TRUE, updated_at = $2
		WHERE id = $1 AND NOT rebuild_pending AND delivery_mode <> $3`,
		tenantID, time.Now().UTC(), string(models.DeliveryDisabled))
	if err != nil {
		return false, fmt.Errorf("failed to mark tenant dirty: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListDirty возвращает арендаторов с выставленным флагом пересборки
func (s *TenantStorage) ListDirty(ctx context.Context) ([]*models.Tenant, error) {
	rows, err := getExecutor(ctx, s.pool).Query(ctx,
		`SELECT `+tenantColumns+` FROM feed.tenant_configs WHERE rebuild_pending ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list dirty tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant row: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tenants: %w", err)
	}
	return tenants, nil
}

// SaveFeedFile записывает ссылку на собранный файл и снимает флаг пересборки одним UPDATE
func (s *TenantStorage) SaveFeedFile(ctx context.Context, tenantID, fileRef string) error {
	tag, err := getExecutor(ctx, s.pool).Exec(ctx, `
		UPDATE feed.tenant_configs
		SET feed_file = $2, rebuild_pending = FALSE, updated_at = $3
		WHERE id = $1`,
		tenantID, fileRef, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save feed file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrTenantNotFound
	}
	return nil
}

// Ping проверяет соединение с базой
func (s *TenantStorage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close закрывает пул
func (s *TenantStorage) Close() error {
	s.pool.Close()
	return nil
}
