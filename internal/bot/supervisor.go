// supervisor.go — контроль соединения с Telegram Bot API.
//
// Long polling сам переживает сетевые сбои, поэтому supervisor не
// управляет циклом обновлений: он ведёт счётчики связи для /status
// и health probes, периодически проверяя доступность API через getMe.
package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arturkryukov/filekeeper/internal/service"
)

// identityAPI — минимальная поверхность Telegram API для проверки связи.
type identityAPI interface {
	GetMe() (tgbotapi.User, error)
}

// Supervisor — наблюдатель соединения с Telegram Bot API.
type Supervisor struct {
	api           identityAPI
	conn          *service.Connectivity
	attempts      uint
	delay         time.Duration
	probeInterval time.Duration
	logger        *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor создаёт supervisor соединения.
func NewSupervisor(
	api identityAPI,
	conn *service.Connectivity,
	attempts uint,
	delay time.Duration,
	probeInterval time.Duration,
	logger *slog.Logger,
) *Supervisor {
	return &Supervisor{
		api:           api,
		conn:          conn,
		attempts:      attempts,
		delay:         delay,
		probeInterval: probeInterval,
		logger:        logger.With(slog.String("component", "supervisor")),
	}
}

// Connect проверяет доступность Telegram API с ограниченным числом
// попыток. Каждая повторная попытка учитывается в счётчике
// переподключений.
func (s *Supervisor) Connect(ctx context.Context) error {
	err := retry.Do(
		func() error {
			me, err := s.api.GetMe()
			if err != nil {
				return err
			}
			s.logger.Info("Соединение с Telegram API установлено",
				slog.String("bot_username", me.UserName),
			)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			attempt := s.conn.IncReconnectAttempts()
			s.logger.Warn("Попытка переподключения к Telegram API",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		}),
	)
	if err != nil {
		s.conn.SetDisconnected()
		return err
	}

	s.conn.SetConnected()
	return nil
}

// Start запускает фоновую проверку соединения.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info("Supervisor запущен",
		slog.String("probe_interval", s.probeInterval.String()),
	)
}

// Stop останавливает фоновую проверку и дожидается завершения.
func (s *Supervisor) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("Supervisor остановлен")
}

// run — цикл периодической проверки getMe.
func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.api.GetMe(); err != nil {
				s.logger.Warn("Потеряно соединение с Telegram API",
					slog.String("error", err.Error()),
				)
				s.conn.SetDisconnected()
				if rcErr := s.Connect(ctx); rcErr != nil {
					s.logger.Error("Переподключение к Telegram API не удалось",
						slog.String("error", rcErr.Error()),
					)
				}
				continue
			}
			s.conn.SetConnected()
		}
	}
}
