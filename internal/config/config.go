// Пакет config — загрузка и валидация конфигурации бота
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации бота.
type Config struct {
	// Токен Telegram Bot API
	TelegramToken string
	// Путь к директории хранения файлов
	DataDir string
	// Путь к снимку каталога (по умолчанию <DataDir>/catalog.json)
	CatalogPath string
	// ID администраторов (доступ к /repair)
	AdminIDs []int64
	// Таймаут скачивания файла из Telegram
	FetchTimeout time.Duration
	// Максимальный размер принимаемого файла в байтах
	MaxFileSize int64
	// Таймаут long polling Telegram (секунды)
	PollTimeout int
	// Количество попыток переподключения к Telegram
	ReconnectAttempts uint
	// Задержка между попытками переподключения
	ReconnectDelay time.Duration
	// Интервал фоновой проверки соединения с Telegram
	ProbeInterval time.Duration
	// Порт ops HTTP-сервера
	OpsPort int
	// URL JWKS endpoint для защиты /status (пусто — без аутентификации)
	JWKSUrl string
	// Пропускать проверку TLS-сертификатов JWKS endpoint
	JWKSTLSSkipVerify bool
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics (BOT_DEPHEALTH_GROUP)
	DephealthGroup string
	// Имя зависимости (целевого сервиса) в метриках topologymetrics
	DephealthDepName string
	// URL для проверки доступности Telegram Bot API
	DephealthURL string
	// Имя владельца пода для метки name в topologymetrics (DEPHEALTH_NAME)
	DephealthName string
	// Таймаут graceful shutdown ops HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
// Файл .env, если присутствует, загружается в окружение (существующие
// переменные не перезаписываются).
func Load() (*Config, error) {
	// .env — удобство локальной разработки, отсутствие файла — не ошибка
	_ = godotenv.Load()

	cfg := &Config{}
	var err error

	// BOT_TELEGRAM_TOKEN — обязательный
	cfg.TelegramToken, err = getEnvRequired("BOT_TELEGRAM_TOKEN")
	if err != nil {
		return nil, err
	}

	// BOT_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("BOT_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// BOT_CATALOG_PATH — путь к снимку каталога (по умолчанию в DataDir)
	cfg.CatalogPath = getEnvDefault("BOT_CATALOG_PATH", filepath.Join(cfg.DataDir, "catalog.json"))

	// BOT_ADMIN_IDS — ID администраторов через запятую (опционально)
	cfg.AdminIDs, err = parseAdminIDs(getEnvDefault("BOT_ADMIN_IDS", ""))
	if err != nil {
		return nil, fmt.Errorf("BOT_ADMIN_IDS: %w", err)
	}

	// BOT_FETCH_TIMEOUT — таймаут скачивания файла (по умолчанию 30s)
	cfg.FetchTimeout, err = getEnvDuration("BOT_FETCH_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BOT_FETCH_TIMEOUT: %w", err)
	}

	// BOT_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 20 MB,
	// предел Bot API для скачивания через getFile)
	maxFileSize, err := getEnvInt64("BOT_MAX_FILE_SIZE", 20*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("BOT_MAX_FILE_SIZE: %w", err)
	}
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("BOT_MAX_FILE_SIZE: значение должно быть положительным")
	}
	cfg.MaxFileSize = maxFileSize

	// BOT_POLL_TIMEOUT — таймаут long polling в секундах (по умолчанию 30)
	cfg.PollTimeout, err = getEnvInt("BOT_POLL_TIMEOUT", 30)
	if err != nil {
		return nil, fmt.Errorf("BOT_POLL_TIMEOUT: %w", err)
	}
	if cfg.PollTimeout <= 0 {
		return nil, fmt.Errorf("BOT_POLL_TIMEOUT: значение должно быть положительным")
	}

	// BOT_RECONNECT_ATTEMPTS — попытки переподключения (по умолчанию 5)
	attempts, err := getEnvInt("BOT_RECONNECT_ATTEMPTS", 5)
	if err != nil {
		return nil, fmt.Errorf("BOT_RECONNECT_ATTEMPTS: %w", err)
	}
	if attempts <= 0 {
		return nil, fmt.Errorf("BOT_RECONNECT_ATTEMPTS: значение должно быть положительным")
	}
	cfg.ReconnectAttempts = uint(attempts)

	// BOT_RECONNECT_DELAY — задержка между попытками (по умолчанию 5s)
	cfg.ReconnectDelay, err = getEnvDuration("BOT_RECONNECT_DELAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BOT_RECONNECT_DELAY: %w", err)
	}

	// BOT_PROBE_INTERVAL — интервал проверки соединения (по умолчанию 60s)
	cfg.ProbeInterval, err = getEnvDuration("BOT_PROBE_INTERVAL", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BOT_PROBE_INTERVAL: %w", err)
	}

	// BOT_OPS_PORT — порт ops HTTP-сервера (по умолчанию 8080)
	cfg.OpsPort, err = getEnvInt("BOT_OPS_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("BOT_OPS_PORT: %w", err)
	}
	if cfg.OpsPort < 1 || cfg.OpsPort > 65535 {
		return nil, fmt.Errorf("BOT_OPS_PORT: значение %d вне допустимого диапазона 1-65535", cfg.OpsPort)
	}

	// BOT_JWKS_URL — опционально: пусто означает /status без аутентификации
	cfg.JWKSUrl = getEnvDefault("BOT_JWKS_URL", "")

	// BOT_JWKS_TLS_SKIP_VERIFY — пропуск проверки TLS (по умолчанию false)
	cfg.JWKSTLSSkipVerify, err = getEnvBool("BOT_JWKS_TLS_SKIP_VERIFY", false)
	if err != nil {
		return nil, fmt.Errorf("BOT_JWKS_TLS_SKIP_VERIFY: %w", err)
	}

	// BOT_JWKS_CLIENT_TIMEOUT — таймаут HTTP-клиента JWKS (по умолчанию 10s)
	cfg.JWKSClientTimeout, err = getEnvDuration("BOT_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BOT_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	// BOT_JWKS_REFRESH_INTERVAL — интервал обновления ключей (по умолчанию 5m)
	cfg.JWKSRefreshInterval, err = getEnvDuration("BOT_JWKS_REFRESH_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("BOT_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// BOT_JWT_LEEWAY — допустимое отклонение времени JWT (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("BOT_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BOT_JWT_LEEWAY: %w", err)
	}

	// BOT_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("BOT_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("BOT_LOG_LEVEL: %w", err)
	}

	// BOT_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("BOT_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("BOT_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// BOT_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("BOT_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BOT_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// BOT_DEPHEALTH_GROUP — имя группы в метриках topologymetrics (по умолчанию "filekeeper")
	cfg.DephealthGroup = getEnvDefault("BOT_DEPHEALTH_GROUP", "filekeeper")

	// BOT_DEPHEALTH_DEP_NAME — имя зависимости (по умолчанию "telegram-api")
	cfg.DephealthDepName = getEnvDefault("BOT_DEPHEALTH_DEP_NAME", "telegram-api")

	// BOT_DEPHEALTH_URL — проверяемый URL (по умолчанию Bot API)
	cfg.DephealthURL = getEnvDefault("BOT_DEPHEALTH_URL", "https://api.telegram.org")

	// DEPHEALTH_NAME — имя владельца пода для метки name в topologymetrics (без префикса модуля)
	cfg.DephealthName = getEnvDefault("DEPHEALTH_NAME", "")

	// BOT_SHUTDOWN_TIMEOUT — таймаут graceful shutdown ops-сервера (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("BOT_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("BOT_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// IsAdmin сообщает, входит ли пользователь в список администраторов.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// parseAdminIDs разбирает список ID через запятую ("123,456").
// Пустая строка — пустой список.
func parseAdminIDs(val string) ([]int64, error) {
	if val == "" {
		return nil, nil
	}

	parts := strings.Split(val, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("некорректный ID пользователя: %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
