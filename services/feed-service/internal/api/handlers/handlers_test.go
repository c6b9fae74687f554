package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/services"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/jobs"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFeedService struct {
	mock.Mock
}

func (m *MockFeedService) EnqueueBuild(ctx context.Context, tenantID string) (*jobs.Job, error) {
	args := m.Called(ctx, tenantID)
	job, _ := args.Get(0).(*jobs.Job)
	return job, args.Error(1)
}

func (m *MockFeedService) SweepDirtyTenants(ctx context.Context) ([]*jobs.Job, error) {
	args := m.Called(ctx)
	scheduled, _ := args.Get(0).([]*jobs.Job)
	return scheduled, args.Error(1)
}

func (m *MockFeedService) GetCurrentFeedLocation(ctx context.Context, tenantID string) (*models.FeedLocation, error) {
	args := m.Called(ctx, tenantID)
	loc, _ := args.Get(0).(*models.FeedLocation)
	return loc, args.Error(1)
}

func (m *MockFeedService) GetFeed(ctx context.Context, tenantID string) (*models.FeedFile, error) {
	args := m.Called(ctx, tenantID)
	feed, _ := args.Get(0).(*models.FeedFile)
	return feed, args.Error(1)
}

func (m *MockFeedService) GetFeedByToken(ctx context.Context, token string) (*models.FeedFile, error) {
	args := m.Called(ctx, token)
	feed, _ := args.Get(0).(*models.FeedFile)
	return feed, args.Error(1)
}

func (m *MockFeedService) GetJob(ctx context.Context, jobID string) (*jobs.Job, error) {
	args := m.Called(ctx, jobID)
	job, _ := args.Get(0).(*jobs.Job)
	return job, args.Error(1)
}

type MockTenantConfigurator struct {
	mock.Mock
}

func (m *MockTenantConfigurator) Get(ctx context.Context, tenantID string) (*models.Tenant, error) {
	args := m.Called(ctx, tenantID)
	t, _ := args.Get(0).(*models.Tenant)
	return t, args.Error(1)
}

func (m *MockTenantConfigurator) Update(ctx context.Context, tenantID string, upd services.TenantConfigUpdate) (*models.Tenant, error) {
	args := m.Called(ctx, tenantID, upd)
	t, _ := args.Get(0).(*models.Tenant)
	return t, args.Error(1)
}

func newTestRouter(feeds *MockFeedService, configs *MockTenantConfigurator) http.Handler {
	log := logger.NewNop()
	fh := NewFeedHandler(feeds, log)
	th := NewTenantHandler(configs, log)

	r := chi.NewRouter()
	r.Get("/feed", fh.GetFeedByToken)
	r.Get("/feed/{tenantID}", fh.GetFeed)
	r.Post("/feed/sweep", fh.SweepFeeds)
	r.Get("/jobs/{jobID}", fh.GetJob)
	r.Post("/tenants/{tenantID}/feed/rebuild", fh.RebuildFeed)
	r.Get("/tenants/{tenantID}/feed/location", fh.GetFeedLocation)
	r.Get("/tenants/{tenantID}/feed/config", th.GetConfig)
	r.Put("/tenants/{tenantID}/feed/config", th.UpdateConfig)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestGetFeed(t *testing.T) {
	feeds := &MockFeedService{}
	feeds.On("GetFeed", mock.Anything, "t1").Return(&models.FeedFile{
		FileName:    "acme.xml",
		ContentType: "application/xml",
		Data:        []byte("<rss/>"),
	}, nil)

	rec := do(t, newTestRouter(feeds, &MockTenantConfigurator{}), http.MethodGet, "/feed/t1", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, "6", rec.Header().Get("Content-Length"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "acme.xml")
	assert.Equal(t, "<rss/>", rec.Body.String())
	feeds.AssertExpectations(t)
}

func TestGetFeed_NotFound(t *testing.T) {
	feeds := &MockFeedService{}
	feeds.On("GetFeed", mock.Anything, "t1").Return(nil, fmt.Errorf("mode disabled: %w", utils.ErrFeedNotFound))

	rec := do(t, newTestRouter(feeds, &MockTenantConfigurator{}), http.MethodGet, "/feed/t1", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Error)
}

func TestGetFeedByToken(t *testing.T) {
	feeds := &MockFeedService{}
	feeds.On("GetFeedByToken", mock.Anything, "tok").Return(&models.FeedFile{
		FileName:    "acme.tsv",
		ContentType: "text/tab-separated-values",
		Data:        []byte("id\ttitle\n"),
	}, nil)
	feeds.On("GetFeedByToken", mock.Anything, "").Return(nil, utils.ErrTenantNotFound)

	router := newTestRouter(feeds, &MockTenantConfigurator{})

	rec := do(t, router, http.MethodGet, "/feed?token=tok", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "id\ttitle\n", rec.Body.String())

	rec = do(t, router, http.MethodGet, "/feed", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetFeed_InternalErrorHidesDetails(t *testing.T) {
	feeds := &MockFeedService{}
	feeds.On("GetFeed", mock.Anything, "t1").Return(nil, errors.New("pq: connection refused"))

	rec := do(t, newTestRouter(feeds, &MockTenantConfigurator{}), http.MethodGet, "/feed/t1", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestRebuildFeed(t *testing.T) {
	feeds := &MockFeedService{}
	job := &jobs.Job{ID: "job-1", Queue: jobs.BuildQueue, TenantID: "t1", State: jobs.StateQueued}
	feeds.On("EnqueueBuild", mock.Anything, "t1").Return(job, nil)
	feeds.On("EnqueueBuild", mock.Anything, "ghost").Return(nil, utils.ErrTenantNotFound)

	router := newTestRouter(feeds, &MockTenantConfigurator{})

	rec := do(t, router, http.MethodPost, "/tenants/t1/feed/rebuild", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		Success bool     `json:"success"`
		Data    jobs.Job `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "job-1", resp.Data.ID)
	assert.Equal(t, jobs.StateQueued, resp.Data.State)

	rec = do(t, router, http.MethodPost, "/tenants/ghost/feed/rebuild", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSweepFeeds(t *testing.T) {
	t.Run("all scheduled", func(t *testing.T) {
		feeds := &MockFeedService{}
		feeds.On("SweepDirtyTenants", mock.Anything).Return([]*jobs.Job{{ID: "a"}, {ID: "b"}}, nil)

		rec := do(t, newTestRouter(feeds, &MockTenantConfigurator{}), http.MethodPost, "/feed/sweep", "")
		require.Equal(t, http.StatusAccepted, rec.Code)

		var resp response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Len(t, resp.Data, 2)
		assert.Nil(t, resp.Meta)
	})

	t.Run("partial failure", func(t *testing.T) {
		feeds := &MockFeedService{}
		feeds.On("SweepDirtyTenants", mock.Anything).Return([]*jobs.Job{{ID: "a"}}, errors.New("tenant b: broker down"))

		rec := do(t, newTestRouter(feeds, &MockTenantConfigurator{}), http.MethodPost, "/feed/sweep", "")
		require.Equal(t, http.StatusAccepted, rec.Code)

		var resp response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.NotNil(t, resp.Meta)
	})

	t.Run("nothing scheduled", func(t *testing.T) {
		feeds := &MockFeedService{}
		feeds.On("SweepDirtyTenants", mock.Anything).Return(nil, errors.New("db down"))

		rec := do(t, newTestRouter(feeds, &MockTenantConfigurator{}), http.MethodPost, "/feed/sweep", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestGetJob(t *testing.T) {
	feeds := &MockFeedService{}
	feeds.On("GetJob", mock.Anything, "job-1").Return(&jobs.Job{ID: "job-1", State: jobs.StateRunning, Progress: 40}, nil)
	feeds.On("GetJob", mock.Anything, "nope").Return(nil, utils.ErrJobNotFound)

	router := newTestRouter(feeds, &MockTenantConfigurator{})

	rec := do(t, router, http.MethodGet, "/jobs/job-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"progress":40`)

	rec = do(t, router, http.MethodGet, "/jobs/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetFeedLocation(t *testing.T) {
	feeds := &MockFeedService{}
	feeds.On("GetCurrentFeedLocation", mock.Anything, "t1").Return(&models.FeedLocation{
		Path:     "product-feed/acme.xml",
		FileName: "acme.xml",
	}, nil)

	rec := do(t, newTestRouter(feeds, &MockTenantConfigurator{}), http.MethodGet, "/tenants/t1/feed/location", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"path":"product-feed/acme.xml","file_name":"acme.xml"}}`, rec.Body.String())
}

func TestTenantConfig_Get(t *testing.T) {
	configs := &MockTenantConfigurator{}
	configs.On("Get", mock.Anything, "t1").Return(&models.Tenant{
		ID:           "t1",
		Code:         "acme",
		Token:        "tok",
		DeliveryMode: models.DeliverySFTP,
		SFTP:         models.SFTPCredentials{Host: "sftp.example.com", Port: 22, User: "u", Password: "secret"},
		CurrencyCode: "EUR",
	}, nil)

	rec := do(t, newTestRouter(&MockFeedService{}, configs), http.MethodGet, "/tenants/t1/feed/config", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
	assert.Contains(t, rec.Body.String(), `"has_sftp_password":true`)
	assert.Contains(t, rec.Body.String(), `"delivery_mode":"sftp"`)
}

func TestTenantConfig_Update(t *testing.T) {
	configs := &MockTenantConfigurator{}
	mode := models.DeliveryURL
	configs.On("Update", mock.Anything, "t1", services.TenantConfigUpdate{DeliveryMode: &mode}).
		Return(&models.Tenant{ID: "t1", DeliveryMode: mode, RebuildPending: true}, nil)

	rec := do(t, newTestRouter(&MockFeedService{}, configs), http.MethodPut, "/tenants/t1/feed/config", `{"delivery_mode":"url"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rebuild_pending":true`)
	configs.AssertExpectations(t)
}

func TestTenantConfig_UpdateRejectsBadInput(t *testing.T) {
	configs := &MockTenantConfigurator{}
	mode := models.DeliveryMode("ftp")
	configs.On("Update", mock.Anything, "t1", services.TenantConfigUpdate{DeliveryMode: &mode}).
		Return(nil, fmt.Errorf("delivery mode %q: %w", mode, utils.ErrInvalidConfig))

	router := newTestRouter(&MockFeedService{}, configs)

	rec := do(t, router, http.MethodPut, "/tenants/t1/feed/config", `{"delivery_mode":"ftp"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPut, "/tenants/t1/feed/config", `{"unknown":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPut, "/tenants/t1/feed/config", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }
func (pingFunc) Close() error                     { return nil }

func TestReady(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })

	t.Run("all up", func(t *testing.T) {
		h := NewHealthHandler(map[string]interfaces.StoragePort{"postgres": ok, "kafka": ok}, logger.NewNop())
		rec := httptest.NewRecorder()
		h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok","checks":{"postgres":"ok","kafka":"ok"}}`, rec.Body.String())
	})

	t.Run("one down", func(t *testing.T) {
		h := NewHealthHandler(map[string]interfaces.StoragePort{"postgres": ok, "kafka": down}, logger.NewNop())
		rec := httptest.NewRecorder()
		h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "refused")
	})
}
