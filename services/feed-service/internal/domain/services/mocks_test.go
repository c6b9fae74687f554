package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/jobs"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/utils"
	"github.com/stretchr/testify/mock"
)

// --- TenantStore ---

type MockTenantStore struct{ mock.Mock }

func (m *MockTenantStore) tenant(args mock.Arguments) (*models.Tenant, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantStore) GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	return m.tenant(m.Called(ctx, tenantID))
}

func (m *MockTenantStore) GetTenantByToken(ctx context.Context, token string) (*models.Tenant, error) {
	return m.tenant(m.Called(ctx, token))
}

func (m *MockTenantStore) GetTenantForUpdate(ctx context.Context, tenantID string) (*models.Tenant, error) {
	return m.tenant(m.Called(ctx, tenantID))
}

func (m *MockTenantStore) SaveTenant(ctx context.Context, t *models.Tenant) error {
	return m.Called(ctx, t).Error(0)
}

func (m *MockTenantStore) MarkDirty(ctx context.Context, tenantID string) (bool, error) {
	args := m.Called(ctx, tenantID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTenantStore) ListDirty(ctx context.Context) ([]*models.Tenant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Tenant), args.Error(1)
}

func (m *MockTenantStore) SaveFeedFile(ctx context.Context, tenantID, fileRef string) error {
	return m.Called(ctx, tenantID, fileRef).Error(0)
}

// --- BuildScheduler ---

type MockScheduler struct{ mock.Mock }

func (m *MockScheduler) ScheduleBuild(ctx context.Context, tenantID string) (*jobs.Job, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jobs.Job), args.Error(1)
}

// --- TransferPort ---

type MockTransfer struct{ mock.Mock }

func (m *MockTransfer) Connect(ctx context.Context, creds interfaces.TransferCredentials) (interfaces.TransferSession, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(interfaces.TransferSession), args.Error(1)
}

type MockSession struct {
	mock.Mock
	received []byte
}

func (m *MockSession) Remove(name string) error {
	return m.Called(name).Error(0)
}

func (m *MockSession) Put(ctx context.Context, r io.Reader, name string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.received = data
	return m.Called(ctx, name).Error(0)
}

func (m *MockSession) Close() error {
	return m.Called().Error(0)
}

// --- Catalog ---

// fakeCatalog генерирует n вариантов с ценой 10.00 и без налога
type fakeCatalog struct {
	n int
	// failOffset страница, на которой ListVariants вернет ошибку; -1 отключает
	failOffset int
	// unpriced варианты без цены в канале арендатора
	unpriced map[string]bool

	mu    sync.Mutex
	pages []int
}

func newFakeCatalog(n int) *fakeCatalog {
	return &fakeCatalog{n: n, failOffset: -1}
}

func (c *fakeCatalog) CountVariants(context.Context, string) (int, error) {
	return c.n, nil
}

func (c *fakeCatalog) ListVariants(_ context.Context, _ string, offset, limit int) ([]*models.Variant, error) {
	c.mu.Lock()
	c.pages = append(c.pages, offset)
	c.mu.Unlock()

	if offset == c.failOffset {
		return nil, errors.New("connection reset")
	}
	var out []*models.Variant
	for i := offset; i < min(offset+limit, c.n); i++ {
		out = append(out, &models.Variant{
			ID:          fmt.Sprintf("v%05d", i),
			SKU:         fmt.Sprintf("SKU-%d", i),
			ProductSlug: fmt.Sprintf("product-%d", i),
			Translations: []models.Translation{
				{LanguageCode: "en", Name: fmt.Sprintf("Item %d", i), ProductDescription: "desc"},
			},
		})
	}
	return out, nil
}

func (c *fakeCatalog) ApplyPriceAndTax(_ context.Context, tenant *models.Tenant, v *models.Variant) error {
	if c.unpriced[v.ID] {
		return fmt.Errorf("%w: variant %s", utils.ErrPriceNotFound, v.ID)
	}
	v.Price = 1000
	v.PriceWithTax = 1000
	v.CurrencyCode = tenant.CurrencyCode
	return nil
}

func (c *fakeCatalog) Translate(_ *models.Tenant, v *models.Variant) {
	if len(v.Translations) > 0 {
		v.Name = v.Translations[0].Name
		v.Description = v.Translations[0].ProductDescription
	}
}

func (c *fakeCatalog) GetAvailableStock(context.Context, *models.Tenant, string) (models.Stock, error) {
	return models.Stock{StockOnHand: 5}, nil
}

// --- MessagingPort ---

type published struct {
	topic    string
	tenantID string
	payload  []byte
}

// recordingBus запоминает опубликованные сообщения
type recordingBus struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (b *recordingBus) Publish(ctx context.Context, topic string, message []byte) error {
	return b.PublishForTenant(ctx, topic, message, "")
}

func (b *recordingBus) PublishForTenant(_ context.Context, topic string, message []byte, tenantID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.sent = append(b.sent, published{topic: topic, tenantID: tenantID, payload: message})
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string, interfaces.MessageHandler) (func() error, error) {
	return func() error { return nil }, nil
}

func (b *recordingBus) Close() error { return nil }

func (b *recordingBus) messages() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.sent...)
}

// --- TxManager ---

// passthroughTx выполняет fn без транзакции
type passthroughTx struct{}

func (passthroughTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
