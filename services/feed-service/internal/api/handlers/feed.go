package handlers

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// FeedHandler обработчик запросов фида
type FeedHandler struct {
	feedService services.FeedServiceInterface
	logger      interfaces.LoggerPort
}

// NewFeedHandler создает новый обработчик фида
func NewFeedHandler(feedService services.FeedServiceInterface, logger interfaces.LoggerPort) *FeedHandler {
	return &FeedHandler{
		feedService: feedService,
		logger:      logger,
	}
}

// GetFeedByToken отдает фид по токену канала
// @Summary Получить фид по токену
// @Tags feed
// @Produce application/xml
// @Param token query string true "Токен канала"
// @Success 200 {file} file
// @Failure 404 {object} errorResponse
// @Router /feed [get]
func (h *FeedHandler) GetFeedByToken(w http.ResponseWriter, r *http.Request) {
	feed, err := h.feedService.GetFeedByToken(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка получения фида")
		return
	}
	writeFeed(w, feed)
}

// GetFeed отдает фид арендатора
// @Summary Получить фид арендатора
// @Tags feed
// @Produce application/xml
// @Param tenantID path string true "ID арендатора"
// @Success 200 {file} file
// @Failure 404 {object} errorResponse
// @Router /feed/{tenantID} [get]
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	ctx := interfaces.WithTenantID(r.Context(), tenantID)

	feed, err := h.feedService.GetFeed(ctx, tenantID)
	if err != nil {
		writeServiceError(w, r.WithContext(ctx), h.logger, err, "Ошибка получения фида")
		return
	}
	writeFeed(w, feed)
}

func writeFeed(w http.ResponseWriter, feed *models.FeedFile) {
	w.Header().Set("Content-Type", feed.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(feed.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": feed.FileName}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(feed.Data)
}

// RebuildFeed ставит сборку фида в очередь
// @Summary Пересобрать фид
// @Tags admin
// @Produce json
// @Param tenantID path string true "ID арендатора"
// @Success 202 {object} response
// @Failure 404 {object} errorResponse
// @Router /api/v1/tenants/{tenantID}/feed/rebuild [post]
func (h *FeedHandler) RebuildFeed(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	ctx := interfaces.WithTenantID(r.Context(), tenantID)

	job, err := h.feedService.EnqueueBuild(ctx, tenantID)
	if err != nil {
		writeServiceError(w, r.WithContext(ctx), h.logger, err, "Ошибка постановки сборки фида")
		return
	}
	writeJSON(w, r, http.StatusAccepted, job)
}

// SweepFeeds ставит сборку всех устаревших фидов
// @Summary Пересобрать устаревшие фиды
// @Tags admin
// @Produce json
// @Success 202 {object} response
// @Router /api/v1/feed/sweep [post]
func (h *FeedHandler) SweepFeeds(w http.ResponseWriter, r *http.Request) {
	scheduled, err := h.feedService.SweepDirtyTenants(r.Context())
	if err != nil && len(scheduled) == 0 {
		writeServiceError(w, r, h.logger, err, "Ошибка обхода устаревших фидов")
		return
	}

	resp := response{Success: err == nil, Data: scheduled}
	if err != nil {
		h.logger.WarnWithContext(r.Context(), "Часть сборок не поставлена в очередь", interfaces.ErrField(err))
		resp.Meta = map[string]interface{}{"error": err.Error()}
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, resp)
}

// GetJob возвращает состояние задачи
// @Summary Состояние задачи
// @Tags admin
// @Produce json
// @Param jobID path string true "ID задачи"
// @Success 200 {object} response
// @Failure 404 {object} errorResponse
// @Router /api/v1/jobs/{jobID} [get]
func (h *FeedHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.feedService.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка получения задачи")
		return
	}
	writeJSON(w, r, http.StatusOK, job)
}

// GetFeedLocation возвращает путь текущего файла фида
// @Summary Расположение фида
// @Tags admin
// @Produce json
// @Param tenantID path string true "ID арендатора"
// @Success 200 {object} response
// @Failure 404 {object} errorResponse
// @Router /api/v1/tenants/{tenantID}/feed/location [get]
func (h *FeedHandler) GetFeedLocation(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	loc, err := h.feedService.GetCurrentFeedLocation(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка получения расположения фида")
		return
	}
	writeJSON(w, r, http.StatusOK, loc)
}
