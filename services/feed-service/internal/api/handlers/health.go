package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/go-chi/render"
)

const readinessTimeout = 2 * time.Second

// HealthHandler проверяет доступность зависимостей
type HealthHandler struct {
	checks map[string]interfaces.StoragePort
	logger interfaces.LoggerPort
}

// NewHealthHandler создает обработчик готовности
func NewHealthHandler(checks map[string]interfaces.StoragePort, logger interfaces.LoggerPort) *HealthHandler {
	return &HealthHandler{checks: checks, logger: logger}
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Ready пингует все зависимости параллельно
// @Summary Готовность сервиса
// @Tags health
// @Produce json
// @Success 200 {object} readinessResponse
// @Failure 503 {object} readinessResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		resp = readinessResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	)
	for name, dep := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := dep.Ping(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				h.logger.WarnWithContext(r.Context(), "Зависимость недоступна",
					interfaces.Field("dependency", name), interfaces.ErrField(err))
				resp.Status = "unavailable"
				resp.Checks[name] = err.Error()
				return
			}
			resp.Checks[name] = "ok"
		}()
	}
	wg.Wait()

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	render.Status(r, status)
	render.JSON(w, r, resp)
}
