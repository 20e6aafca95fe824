// status.go — обработчик GET /status: сводка состояния бота.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apierrors "github.com/arturkryukov/filekeeper/internal/api/errors"
	"github.com/arturkryukov/filekeeper/internal/service"
)

// StatusHandler отдаёт сводку состояния бота в JSON.
type StatusHandler struct {
	status *service.StatusService
	logger *slog.Logger
}

// NewStatusHandler создаёт обработчик /status.
func NewStatusHandler(status *service.StatusService, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		status: status,
		logger: logger.With(slog.String("component", "status_handler")),
	}
}

// Status обрабатывает GET /status.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.status.Current()
	if err != nil {
		h.logger.Error("Не удалось собрать сводку состояния",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Не удалось собрать сводку состояния")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(st)
}
