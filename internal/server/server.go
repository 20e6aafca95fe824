// Пакет server — ops HTTP-сервер бота с graceful shutdown.
// Отдаёт health probes, /status и Prometheus /metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arturkryukov/filekeeper/internal/api/handlers"
	"github.com/arturkryukov/filekeeper/internal/api/middleware"
	"github.com/arturkryukov/filekeeper/internal/config"
)

// JWTAuthProvider — интерфейс JWT middleware для защиты /status.
// nil означает запуск без аутентификации.
type JWTAuthProvider interface {
	Middleware() func(http.Handler) http.Handler
}

// Server — ops HTTP-сервер бота.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	shutdown   time.Duration
}

// New создаёт ops-сервер с настроенными routes и middleware.
// health и status — реальные обработчики, jwtAuth — опциональная защита /status.
func New(cfg *config.Config, logger *slog.Logger, health *handlers.HealthHandler, status *handlers.StatusHandler, jwtAuth JWTAuthProvider) *Server {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())

	// Публичные endpoints — без аутентификации
	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// /status — под JWT, если настроен JWKS
	if jwtAuth != nil {
		router.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware())
			r.Get("/status", status.Status)
		})
	} else {
		router.Get("/status", status.Status)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.OpsPort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		shutdown:   cfg.ShutdownTimeout,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown с таймаутом
// из конфигурации.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("Ops HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка ops HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown ops-сервера...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("Ops HTTP-сервер остановлен")
	return nil
}
