package handlers

import (
	"errors"
	"net/http"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/utils"
	"github.com/go-chi/render"
)

// errorResponse представляет структуру ответа с ошибкой
type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// response представляет структуру успешного ответа
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	render.Status(r, status)
	render.JSON(w, r, response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: code, Code: status, Message: message})
}

// writeServiceError переводит ошибки сервисов в HTTP-ответ.
// Внутренние ошибки логируются, клиенту отдается только общее сообщение.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger interfaces.LoggerPort, err error, message string) {
	switch {
	case errors.Is(err, utils.ErrTenantNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "Арендатор не найден")
	case errors.Is(err, utils.ErrFeedNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "Фид не найден")
	case errors.Is(err, utils.ErrJobNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "Задача не найдена")
	case errors.Is(err, utils.ErrInvalidConfig), errors.Is(err, utils.ErrInvalidPayload):
		writeError(w, r, http.StatusBadRequest, "bad_request", err.Error())
	default:
		logger.ErrorWithContext(r.Context(), message, interfaces.ErrField(err))
		writeError(w, r, http.StatusInternalServerError, "internal_error", message)
	}
}
