package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/services"
	"github.com/go-chi/chi/v5"
)

// TenantConfigurator чтение и изменение конфигурации фида
type TenantConfigurator interface {
	Get(ctx context.Context, tenantID string) (*models.Tenant, error)
	Update(ctx context.Context, tenantID string, upd services.TenantConfigUpdate) (*models.Tenant, error)
}

// TenantHandler обработчик конфигурации фида арендатора
type TenantHandler struct {
	configs TenantConfigurator
	logger  interfaces.LoggerPort
}

// NewTenantHandler создает обработчик конфигурации
func NewTenantHandler(configs TenantConfigurator, logger interfaces.LoggerPort) *TenantHandler {
	return &TenantHandler{configs: configs, logger: logger}
}

// tenantConfigResponse конфигурация без пароля SFTP
type tenantConfigResponse struct {
	ID              string              `json:"id"`
	Code            string              `json:"code"`
	Token           string              `json:"token"`
	DeliveryMode    models.DeliveryMode `json:"delivery_mode"`
	ShopURL         string              `json:"shop_url"`
	SFTPHost        string              `json:"sftp_host"`
	SFTPPort        int                 `json:"sftp_port"`
	SFTPUser        string              `json:"sftp_user"`
	HasSFTPPassword bool                `json:"has_sftp_password"`
	DefaultLanguage string              `json:"default_language"`
	DefaultTaxZone  string              `json:"default_tax_zone,omitempty"`
	CurrencyCode    string              `json:"currency_code"`
	RebuildPending  bool                `json:"rebuild_pending"`
	FeedFile        string              `json:"feed_file,omitempty"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func newTenantConfigResponse(t *models.Tenant) tenantConfigResponse {
	return tenantConfigResponse{
		ID:              t.ID,
		Code:            t.Code,
		Token:           t.Token,
		DeliveryMode:    t.DeliveryMode,
		ShopURL:         t.ShopURL,
		SFTPHost:        t.SFTP.Host,
		SFTPPort:        t.SFTP.Port,
		SFTPUser:        t.SFTP.User,
		HasSFTPPassword: t.SFTP.Password != "",
		DefaultLanguage: t.DefaultLanguage,
		DefaultTaxZone:  t.DefaultTaxZone,
		CurrencyCode:    t.CurrencyCode,
		RebuildPending:  t.RebuildPending,
		FeedFile:        t.FeedFile,
		UpdatedAt:       t.UpdatedAt,
	}
}

// GetConfig возвращает конфигурацию фида
// @Summary Конфигурация фида
// @Tags admin
// @Produce json
// @Param tenantID path string true "ID арендатора"
// @Success 200 {object} response
// @Failure 404 {object} errorResponse
// @Router /api/v1/tenants/{tenantID}/feed/config [get]
func (h *TenantHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.configs.Get(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Ошибка получения конфигурации фида")
		return
	}
	writeJSON(w, r, http.StatusOK, newTenantConfigResponse(tenant))
}

// UpdateConfig частично обновляет конфигурацию фида
// @Summary Изменить конфигурацию фида
// @Tags admin
// @Accept json
// @Produce json
// @Param tenantID path string true "ID арендатора"
// @Param config body services.TenantConfigUpdate true "Изменения"
// @Success 200 {object} response
// @Failure 400 {object} errorResponse
// @Router /api/v1/tenants/{tenantID}/feed/config [put]
func (h *TenantHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var upd services.TenantConfigUpdate
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&upd); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_request", "Некорректное тело запроса")
		return
	}

	ctx := interfaces.WithTenantID(r.Context(), tenantID)
	tenant, err := h.configs.Update(ctx, tenantID, upd)
	if err != nil {
		writeServiceError(w, r.WithContext(ctx), h.logger, err, "Ошибка изменения конфигурации фида")
		return
	}
	writeJSON(w, r, http.StatusOK, newTenantConfigResponse(tenant))
}
