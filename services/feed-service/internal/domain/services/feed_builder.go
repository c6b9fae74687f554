package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"path"
	"strings"
	"time"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/pkg/utils"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/encoder"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/jobs"
	errs "github.com/athebyme/gomarket-platform/services/feed-service/internal/utils"
)

const (
	// DefaultBatchSize размер страницы вариантов
	DefaultBatchSize = 1000
	// DefaultFolder каталог фидов в хранилище
	DefaultFolder = "product-feed"
)

// errBuildStopped потребитель прогресса прекратил чтение
var errBuildStopped = errors.New("build stopped by consumer")

// FileNamer возвращает имя файла фида арендатора без расширения
type FileNamer func(t *models.Tenant) string

// NewFileNamer строит FileNamer из шаблона с подстановками {code} и {id}.
// Пустой шаблон дает код арендатора.
func NewFileNamer(tpl string) FileNamer {
	if strings.TrimSpace(tpl) == "" {
		tpl = "{code}"
	}
	return func(t *models.Tenant) string {
		return strings.NewReplacer("{code}", t.Code, "{id}", t.ID).Replace(tpl)
	}
}

// BuilderOptions настройки сборщика
type BuilderOptions struct {
	Folder    string
	FileName  FileNamer
	BatchSize int
	// FeedTopic топик события FeedUpdated
	FeedTopic string
	Encoder   encoder.Options
}

// FeedBuilder собирает фид арендатора потоково, пакетами вариантов
type FeedBuilder struct {
	tenants TenantStore
	catalog Catalog
	enc     encoder.Encoder
	blobs   interfaces.BlobStorePort
	events  interfaces.MessagingPort
	opts    BuilderOptions
	logger  interfaces.LoggerPort
	now     func() time.Time
}

// NewFeedBuilder создает сборщик
func NewFeedBuilder(
	tenants TenantStore,
	catalog Catalog,
	enc encoder.Encoder,
	blobs interfaces.BlobStorePort,
	events interfaces.MessagingPort,
	opts BuilderOptions,
	logger interfaces.LoggerPort,
) *FeedBuilder {
	if opts.Folder == "" {
		opts.Folder = DefaultFolder
	}
	if opts.FileName == nil {
		opts.FileName = NewFileNamer("")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &FeedBuilder{
		tenants: tenants,
		catalog: catalog,
		enc:     enc,
		blobs:   blobs,
		events:  events,
		opts:    opts,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Build возвращает ленивую последовательность прогресса сборки.
// Сборка начинается при первой итерации; прекращение итерации отменяет сборку без публикации файла.
// Последнее событие {total, total} приходит только после сохранения файла и обновления арендатора.
func (b *FeedBuilder) Build(ctx context.Context, tenantID string) iter.Seq2[models.Progress, error] {
	return func(yield func(models.Progress, error) bool) {
		if err := b.build(ctx, tenantID, yield); err != nil && !errors.Is(err, errBuildStopped) {
			yield(models.Progress{}, err)
		}
	}
}

// Handle обработчик задач очереди сборки
func (b *FeedBuilder) Handle(ctx context.Context, payload models.BuildPayload, progress jobs.ProgressFunc) (any, error) {
	var last models.Progress
	for p, err := range b.Build(ctx, payload.TenantID) {
		if err != nil {
			return nil, err
		}
		last = p
		progress(p.Percent())
	}
	return models.BuildResult{Success: true, TotalCount: last.Total}, nil
}

func (b *FeedBuilder) build(ctx context.Context, tenantID string, yield func(models.Progress, error) bool) (err error) {
	tenant, err := b.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to load tenant: %w", err)
	}
	if tenant == nil {
		return fmt.Errorf("%w: %s", errs.ErrTenantNotFound, tenantID)
	}
	log := b.logger.WithTenant(tenant.ID)

	total, err := b.catalog.CountVariants(ctx, tenant.ID)
	if err != nil {
		return fmt.Errorf("failed to count variants: %w", err)
	}
	plan := utils.NewBatchPlan(total, b.opts.BatchSize)

	fileName := b.opts.FileName(tenant) + "." + b.enc.Extension()
	filePath := path.Join(b.opts.Folder, fileName)
	log.InfoWithContext(ctx, "Начата сборка фида",
		interfaces.Field("variants", total),
		interfaces.Field("batches", plan.Count()),
		interfaces.Field("file_path", filePath),
	)

	blob, err := b.blobs.Create(ctx, filePath)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStorageIO, err)
	}
	committed := false
	defer func() {
		if !committed {
			blob.Abort(err)
		}
	}()

	feed, err := b.enc.Open(blob, encoder.Context{Tenant: tenant, Options: b.opts.Encoder})
	if err != nil {
		return fmt.Errorf("%w: open feed: %v", errs.ErrStorageIO, err)
	}

	for _, batch := range plan.Batches() {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.DebugWithContext(ctx, "Обработка пакета",
			interfaces.Field("batch", batch.Index+1),
			interfaces.Field("batches", plan.Count()),
		)

		variants, err := b.catalog.ListVariants(ctx, tenant.ID, batch.Offset, batch.Limit)
		if err != nil {
			return fmt.Errorf("failed to list variants: %w", err)
		}
		for _, v := range variants {
			if err := b.appendVariant(ctx, feed, tenant, v); err != nil {
				return err
			}
		}

		// финальное событие отправляется после публикации файла
		if !batch.Last && !yield(models.Progress{Completed: batch.Completed, Total: total}, nil) {
			return errBuildStopped
		}
	}

	if err := feed.Close(); err != nil {
		return fmt.Errorf("%w: close feed: %v", errs.ErrStorageIO, err)
	}

	committed = true
	location, err := blob.Commit()
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStorageIO, err)
	}

	if err := b.tenants.SaveFeedFile(ctx, tenant.ID, location); err != nil {
		return fmt.Errorf("failed to save feed file: %w", err)
	}

	b.publishUpdated(ctx, log, models.FeedUpdated{
		TenantID:  tenant.ID,
		FileName:  fileName,
		FilePath:  location,
		Timestamp: b.now(),
	})

	log.InfoWithContext(ctx, "Фид собран",
		interfaces.Field("variants", total),
		interfaces.Field("file_path", location),
	)
	yield(models.Progress{Completed: total, Total: total}, nil)
	return nil
}

func (b *FeedBuilder) appendVariant(ctx context.Context, feed encoder.Writer, tenant *models.Tenant, v *models.Variant) error {
	if err := b.catalog.ApplyPriceAndTax(ctx, tenant, v); err != nil {
		if errors.Is(err, errs.ErrPriceNotFound) {
			// без цены позиция не попадает в фид
			b.logger.WarnWithContext(ctx, "Вариант без цены пропущен",
				interfaces.Field("tenant_id", tenant.ID),
				interfaces.Field("variant_id", v.ID),
				interfaces.Field("sku", v.SKU),
			)
			return nil
		}
		return fmt.Errorf("failed to apply price to variant %s: %w", v.ID, err)
	}
	b.catalog.Translate(tenant, v)

	stock, err := b.catalog.GetAvailableStock(ctx, tenant, v.ID)
	if err != nil {
		return fmt.Errorf("failed to get stock of variant %s: %w", v.ID, err)
	}

	if err := feed.Append(v, stock); err != nil {
		return fmt.Errorf("%w: append variant %s: %v", errs.ErrStorageIO, v.ID, err)
	}
	return nil
}

// publishUpdated публикует FeedUpdated; ошибка публикации не отменяет сборку,
// файл уже сохранен и привязан к арендатору
func (b *FeedBuilder) publishUpdated(ctx context.Context, log interfaces.LoggerPort, event models.FeedUpdated) {
	if b.events == nil || b.opts.FeedTopic == "" {
		return
	}
	raw, err := json.Marshal(event)
	if err != nil {
		log.ErrorWithContext(ctx, "Ошибка сериализации события обновления фида", interfaces.ErrField(err))
		return
	}
	if err := b.events.PublishForTenant(ctx, b.opts.FeedTopic, raw, event.TenantID); err != nil {
		log.ErrorWithContext(ctx, "Не удалось опубликовать событие обновления фида", interfaces.ErrField(err))
	}
}
