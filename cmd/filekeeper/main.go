// Точка входа Filekeeper — Telegram-бота для хранения файлов.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arturkryukov/filekeeper/internal/api/handlers"
	"github.com/arturkryukov/filekeeper/internal/api/middleware"
	"github.com/arturkryukov/filekeeper/internal/bot"
	"github.com/arturkryukov/filekeeper/internal/catalog"
	"github.com/arturkryukov/filekeeper/internal/config"
	"github.com/arturkryukov/filekeeper/internal/server"
	"github.com/arturkryukov/filekeeper/internal/service"
	"github.com/arturkryukov/filekeeper/internal/storage/filestore"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Filekeeper запускается",
		slog.String("version", config.Version),
		slog.String("data_dir", cfg.DataDir),
		slog.String("catalog_path", cfg.CatalogPath),
		slog.Int("ops_port", cfg.OpsPort),
	)

	// --- Инициализация компонентов ---

	// 1. Файловое хранилище с бакетами категорий
	files, err := filestore.New(filepath.Join(cfg.DataDir, "downloads"))
	if err != nil {
		logger.Error("Ошибка инициализации FileStore", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Каталог
	cat := catalog.New(cfg.CatalogPath, logger)
	logStartupStats(cat, logger)

	// 3. Telegram Bot API
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		logger.Error("Ошибка подключения к Telegram Bot API", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Бот авторизован", slog.String("username", api.Self.UserName))

	// 4. Сервисы
	conn := service.NewConnectivity()
	conn.SetConnected()
	gate := service.NewRegistrationGate(cat, logger)
	statusSvc := service.NewStatusService(conn, cat)
	ingestor := service.NewIngestor(
		bot.NewFileResolver(api),
		&http.Client{Timeout: cfg.FetchTimeout},
		files,
		cat,
		cfg.MaxFileSize,
		logger,
	)

	// 5. Фоновые процессы
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5.1 Supervisor соединения с Telegram
	supervisor := bot.NewSupervisor(api, conn,
		cfg.ReconnectAttempts, cfg.ReconnectDelay, cfg.ProbeInterval, logger)
	supervisor.Start(ctx)

	// 5.2 topologymetrics — мониторинг доступности Telegram API
	botName := cfg.DephealthName
	if botName == "" {
		botName = "filekeeper"
	}
	dephealthSvc, dephealthErr := service.NewDephealthService(
		botName,
		cfg.DephealthGroup,
		cfg.DephealthDepName,
		cfg.DephealthURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("target_url", cfg.DephealthURL),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 6. Бот
	b := bot.New(api, cfg, gate, ingestor, statusSvc, cat, logger)
	go b.Run(ctx)

	// 7. JWT middleware для /status
	var jwtAuth server.JWTAuthProvider
	if cfg.JWKSUrl != "" {
		jwtMiddleware, jwtErr := middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWKSUrl,
			TLSSkipVerify:   cfg.JWKSTLSSkipVerify,
			ClientTimeout:   cfg.JWKSClientTimeout,
			RefreshInterval: cfg.JWKSRefreshInterval,
			JWTLeeway:       cfg.JWTLeeway,
		}, logger)
		if jwtErr != nil {
			logger.Warn("JWT JWKS недоступен, /status без аутентификации",
				slog.String("jwks_url", cfg.JWKSUrl),
				slog.String("error", jwtErr.Error()),
			)
		} else {
			jwtAuth = jwtMiddleware
			logger.Info("JWT аутентификация /status настроена",
				slog.String("jwks_url", cfg.JWKSUrl),
			)
		}
	}

	// 8. Ops HTTP-сервер
	healthHandler := handlers.NewHealthHandler(cfg.DataDir, cat, conn)
	statusHandler := handlers.NewStatusHandler(statusSvc, logger)
	srv := server.New(cfg, logger, healthHandler, statusHandler, jwtAuth)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка ops-сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	cancel()
	supervisor.Stop()
	if dephealthErr == nil {
		dephealthSvc.Stop()
	}

	logger.Info("Filekeeper остановлен")
}

// logStartupStats выводит сводку каталога при старте и инициализирует
// gauge-метрики. Повреждённый каталог — не фатален: /repair доступен
// администратору.
func logStartupStats(cat *catalog.Store, logger *slog.Logger) {
	stats, err := cat.Stats()
	if err != nil {
		if errors.Is(err, catalog.ErrCorruptCatalog) {
			logger.Error("Каталог повреждён, выполните /repair",
				slog.String("error", err.Error()),
			)
			return
		}
		logger.Error("Ошибка чтения каталога", slog.String("error", err.Error()))
		return
	}

	logger.Info("Стартовая сводка каталога",
		slog.Int("users", stats.Users),
		slog.Int("files", stats.Files),
	)
	for category, count := range stats.ByCategory {
		logger.Info("Распределение по категориям",
			slog.String("category", string(category)),
			slog.Int("count", count),
		)
	}

	middleware.CatalogUsers.Set(float64(stats.Users))
	for category, count := range stats.ByCategory {
		middleware.CatalogFiles.WithLabelValues(string(category)).Set(float64(count))
	}
}
