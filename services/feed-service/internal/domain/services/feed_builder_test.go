package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/athebyme/gomarket-platform/services/feed-service/internal/adapters/blob"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/encoder"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/utils"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const feedTopic = "feed-events"

type builderFixture struct {
	builder *FeedBuilder
	tenants *MockTenantStore
	catalog *fakeCatalog
	blobs   *blob.FSStore
	fs      afero.Fs
	bus     *recordingBus
}

func newBuilderFixture(t *testing.T, variants int) *builderFixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	f := &builderFixture{
		tenants: new(MockTenantStore),
		catalog: newFakeCatalog(variants),
		blobs:   blob.NewFSStore(fs, "/feeds"),
		fs:      fs,
		bus:     &recordingBus{},
	}
	f.builder = NewFeedBuilder(f.tenants, f.catalog, encoder.GoogleShopping{}, f.blobs, f.bus, BuilderOptions{
		BatchSize: 1000,
		FeedTopic: feedTopic,
		Encoder:   encoder.Options{AssetURLPrefix: "https://cdn.example.com"},
	}, logger.NewNop())
	return f
}

func testTenant() *models.Tenant {
	return &models.Tenant{
		ID:              "t1",
		Code:            "acme",
		Token:           "token-1",
		DeliveryMode:    models.DeliveryURL,
		ShopURL:         "https://acme.example.com",
		DefaultLanguage: "en",
		CurrencyCode:    "EUR",
	}
}

func collect(t *testing.T, seq func(func(models.Progress, error) bool)) ([]models.Progress, error) {
	t.Helper()
	var events []models.Progress
	for p, err := range seq {
		if err != nil {
			return events, err
		}
		events = append(events, p)
	}
	return events, nil
}

func (f *builderFixture) readFeed(t *testing.T, p string) string {
	t.Helper()
	r, err := f.blobs.Open(context.Background(), p)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func (f *builderFixture) leftovers(t *testing.T) []string {
	t.Helper()
	entries, err := afero.ReadDir(f.fs, "/feeds/product-feed")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestFeedBuilder_Build(t *testing.T) {
	f := newBuilderFixture(t, 2500)
	ctx := context.Background()

	saved := false
	f.tenants.On("GetTenant", mock.Anything, "t1").Return(testTenant(), nil).Once()
	f.tenants.On("SaveFeedFile", mock.Anything, "t1", "product-feed/acme.xml").
		Run(func(mock.Arguments) { saved = true }).
		Return(nil).Once()

	var events []models.Progress
	for p, err := range f.builder.Build(ctx, "t1") {
		require.NoError(t, err)
		if p.Done() {
			assert.True(t, saved, "final event must follow the tenant update")
			assert.Len(t, f.bus.messages(), 1, "final event must follow the publish")
		} else {
			assert.False(t, saved)
		}
		events = append(events, p)
	}

	assert.Equal(t, []models.Progress{
		{Completed: 1000, Total: 2500},
		{Completed: 2000, Total: 2500},
		{Completed: 2500, Total: 2500},
	}, events)
	assert.Equal(t, []int{0, 1000, 2000}, f.catalog.pages)

	content := f.readFeed(t, "product-feed/acme.xml")
	assert.Equal(t, 2500, strings.Count(content, "<item>"))
	assert.Contains(t, content, "<title>acme product catalog</title>")
	assert.Contains(t, content, "<g:price>10 EUR</g:price>")
	assert.Equal(t, []string{"acme.xml"}, f.leftovers(t))

	msgs := f.bus.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, feedTopic, msgs[0].topic)
	assert.Equal(t, "t1", msgs[0].tenantID)
	var event models.FeedUpdated
	require.NoError(t, json.Unmarshal(msgs[0].payload, &event))
	assert.Equal(t, "acme.xml", event.FileName)
	assert.Equal(t, "product-feed/acme.xml", event.FilePath)

	f.tenants.AssertExpectations(t)
}

func TestFeedBuilder_EmptyCatalog(t *testing.T) {
	f := newBuilderFixture(t, 0)

	f.tenants.On("GetTenant", mock.Anything, "t1").Return(testTenant(), nil).Once()
	f.tenants.On("SaveFeedFile", mock.Anything, "t1", "product-feed/acme.xml").Return(nil).Once()

	events, err := collect(t, f.builder.Build(context.Background(), "t1"))
	require.NoError(t, err)
	assert.Equal(t, []models.Progress{{Completed: 0, Total: 0}}, events)
	assert.Equal(t, 100, events[0].Percent())
	assert.Empty(t, f.catalog.pages)

	content := f.readFeed(t, "product-feed/acme.xml")
	assert.Contains(t, content, "<channel>")
	assert.NotContains(t, content, "<item>")
	f.tenants.AssertExpectations(t)
}

func TestFeedBuilder_SkipsUnpricedVariants(t *testing.T) {
	f := newBuilderFixture(t, 3)
	f.catalog.unpriced = map[string]bool{"v00001": true}

	f.tenants.On("GetTenant", mock.Anything, "t1").Return(testTenant(), nil).Once()
	f.tenants.On("SaveFeedFile", mock.Anything, "t1", "product-feed/acme.xml").Return(nil).Once()

	events, err := collect(t, f.builder.Build(context.Background(), "t1"))
	require.NoError(t, err)
	assert.Equal(t, []models.Progress{{Completed: 3, Total: 3}}, events)

	content := f.readFeed(t, "product-feed/acme.xml")
	assert.Equal(t, 2, strings.Count(content, "<item>"))
	assert.Contains(t, content, "<g:id>SKU-0</g:id>")
	assert.NotContains(t, content, "<g:id>SKU-1</g:id>")
}

func TestFeedBuilder_IsLazy(t *testing.T) {
	f := newBuilderFixture(t, 10)

	_ = f.builder.Build(context.Background(), "t1")

	f.tenants.AssertNotCalled(t, "GetTenant", mock.Anything, mock.Anything)
	assert.Empty(t, f.catalog.pages)
}

func TestFeedBuilder_FailureLeavesTenantUntouched(t *testing.T) {
	f := newBuilderFixture(t, 2500)
	f.catalog.failOffset = 1000

	f.tenants.On("GetTenant", mock.Anything, "t1").Return(testTenant(), nil).Once()

	events, err := collect(t, f.builder.Build(context.Background(), "t1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, []models.Progress{{Completed: 1000, Total: 2500}}, events)

	f.tenants.AssertNotCalled(t, "SaveFeedFile", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.leftovers(t), "aborted write must not leave files")
	assert.Empty(t, f.bus.messages())
}

func TestFeedBuilder_FailureKeepsPreviousFeed(t *testing.T) {
	f := newBuilderFixture(t, 1500)
	ctx := context.Background()

	w, err := f.blobs.Create(ctx, "product-feed/acme.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte("previous"))
	require.NoError(t, err)
	_, err = w.Commit()
	require.NoError(t, err)

	f.catalog.failOffset = 1000
	f.tenants.On("GetTenant", mock.Anything, "t1").Return(testTenant(), nil).Once()

	_, err = collect(t, f.builder.Build(ctx, "t1"))
	require.Error(t, err)
	assert.Equal(t, "previous", f.readFeed(t, "product-feed/acme.xml"))
}

func TestFeedBuilder_StopEarlyAborts(t *testing.T) {
	f := newBuilderFixture(t, 2500)

	f.tenants.On("GetTenant", mock.Anything, "t1").Return(testTenant(), nil).Once()

	for p, err := range f.builder.Build(context.Background(), "t1") {
		require.NoError(t, err)
		assert.Equal(t, models.Progress{Completed: 1000, Total: 2500}, p)
		break
	}

	assert.Equal(t, []int{0}, f.catalog.pages)
	f.tenants.AssertNotCalled(t, "SaveFeedFile", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.leftovers(t))
	assert.Empty(t, f.bus.messages())
}

func TestFeedBuilder_TenantNotFound(t *testing.T) {
	f := newBuilderFixture(t, 10)

	f.tenants.On("GetTenant", mock.Anything, "missing").Return(nil, nil).Once()

	events, err := collect(t, f.builder.Build(context.Background(), "missing"))
	assert.ErrorIs(t, err, utils.ErrTenantNotFound)
	assert.Empty(t, events)
}

func TestFeedBuilder_PublishFailureDoesNotFailBuild(t *testing.T) {
	f := newBuilderFixture(t, 3)
	f.bus.err = errors.New("broker unavailable")

	f.tenants.On("GetTenant", mock.Anything, "t1").Return(testTenant(), nil).Once()
	f.tenants.On("SaveFeedFile", mock.Anything, "t1", "product-feed/acme.xml").Return(nil).Once()

	events, err := collect(t, f.builder.Build(context.Background(), "t1"))
	require.NoError(t, err)
	assert.Equal(t, []models.Progress{{Completed: 3, Total: 3}}, events)
	f.tenants.AssertExpectations(t)
}

func TestFeedBuilder_Handle(t *testing.T) {
	f := newBuilderFixture(t, 2500)

	f.tenants.On("GetTenant", mock.Anything, "t1").Return(testTenant(), nil).Once()
	f.tenants.On("SaveFeedFile", mock.Anything, "t1", "product-feed/acme.xml").Return(nil).Once()

	var percents []int
	result, err := f.builder.Handle(context.Background(), models.BuildPayload{TenantID: "t1"}, func(p int) {
		percents = append(percents, p)
	})
	require.NoError(t, err)
	assert.Equal(t, models.BuildResult{Success: true, TotalCount: 2500}, result)
	assert.Equal(t, []int{40, 80, 100}, percents)
}

func TestFileNamer(t *testing.T) {
	tenant := &models.Tenant{ID: "42", Code: "acme"}

	assert.Equal(t, "acme", NewFileNamer("")(tenant))
	assert.Equal(t, "feed-acme-42", NewFileNamer("feed-{code}-{id}")(tenant))
}
