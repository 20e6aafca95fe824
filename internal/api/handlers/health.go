// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/arturkryukov/filekeeper/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// CatalogChecker — интерфейс для проверки читаемости каталога.
type CatalogChecker interface {
	Check() error
}

// ConnectivityChecker — интерфейс для проверки соединения с Telegram Bot API.
type ConnectivityChecker interface {
	IsConnected() bool
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// dataDir — путь к директории данных (для проверки FS)
	dataDir string
	// cat — каталог для проверки читаемости снапшота
	cat CatalogChecker
	// conn — состояние соединения с Telegram Bot API
	conn ConnectivityChecker
}

// NewHealthHandler создаёт обработчик health endpoints.
// cat и conn могут быть nil — соответствующие проверки пропускаются.
func NewHealthHandler(dataDir string, cat CatalogChecker, conn ConnectivityChecker) *HealthHandler {
	return &HealthHandler{
		version: config.Version,
		dataDir: dataDir,
		cat:     cat,
		conn:    conn,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс бота жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "filekeeper",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: файловая система, каталог, соединение с Telegram.
// Недоступность Telegram даёт degraded, а не fail: ops-API и каталог
// продолжают работать, пока supervisor переподключается.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	// Проверка файловой системы
	fsCheck := h.checkFilesystem()
	if fsCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	// Проверка каталога
	catCheck := h.checkCatalog()
	if catCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	// Проверка соединения с Telegram
	tgCheck := h.checkTelegram()
	if tgCheck["status"] != "ok" && overallStatus != statusFail {
		overallStatus = "degraded"
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "filekeeper",
		"checks": map[string]any{
			"filesystem": fsCheck,
			"catalog":    catCheck,
			"telegram":   tgCheck,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// checkFilesystem проверяет доступность директории данных на запись.
func (h *HealthHandler) checkFilesystem() map[string]any {
	if h.dataDir == "" {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	testFile := filepath.Join(h.dataDir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Директория данных недоступна для записи: " + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{
		"status": "ok",
	}
}

// checkCatalog проверяет, что снапшот каталога читается и парсится.
func (h *HealthHandler) checkCatalog() map[string]any {
	if h.cat == nil {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	if err := h.cat.Check(); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Каталог недоступен: " + err.Error(),
		}
	}

	return map[string]any{
		"status": "ok",
	}
}

// checkTelegram проверяет состояние соединения с Telegram Bot API.
func (h *HealthHandler) checkTelegram() map[string]any {
	if h.conn == nil {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	if !h.conn.IsConnected() {
		return map[string]any{
			"status":  statusFail,
			"message": "Нет соединения с Telegram Bot API",
		}
	}

	return map[string]any{
		"status": "ok",
	}
}
