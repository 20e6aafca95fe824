package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arturkryukov/filekeeper/internal/service"
)

// flakyAPI — getMe, который падает заданное число раз.
type flakyAPI struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyAPI) GetMe() (tgbotapi.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return tgbotapi.User{}, errors.New("сеть недоступна")
	}
	return tgbotapi.User{UserName: "filekeeper_bot"}, nil
}

func TestSupervisorConnect_FirstAttempt(t *testing.T) {
	conn := service.NewConnectivity()
	sup := NewSupervisor(&flakyAPI{}, conn, 3, time.Millisecond, time.Minute, testLogger())

	if err := sup.Connect(context.Background()); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	connected, attempts := conn.Snapshot()
	if !connected {
		t.Error("соединение должно быть установлено")
	}
	if attempts != 0 {
		t.Errorf("счётчик попыток должен быть сброшен, получено %d", attempts)
	}
}

func TestSupervisorConnect_RecoversAfterFailures(t *testing.T) {
	conn := service.NewConnectivity()
	api := &flakyAPI{failures: 2}
	sup := NewSupervisor(api, conn, 5, time.Millisecond, time.Minute, testLogger())

	if err := sup.Connect(context.Background()); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if connected, _ := conn.Snapshot(); !connected {
		t.Error("после успешной попытки соединение должно быть установлено")
	}
	if api.calls != 3 {
		t.Errorf("ожидалось 3 вызова getMe, получено %d", api.calls)
	}
}

func TestSupervisorConnect_ExhaustsAttempts(t *testing.T) {
	conn := service.NewConnectivity()
	api := &flakyAPI{failures: 100}
	sup := NewSupervisor(api, conn, 3, time.Millisecond, time.Minute, testLogger())

	if err := sup.Connect(context.Background()); err == nil {
		t.Fatal("ожидалась ошибка после исчерпания попыток")
	}

	connected, attempts := conn.Snapshot()
	if connected {
		t.Error("после исчерпания попыток соединения быть не должно")
	}
	// OnRetry срабатывает на каждой неудачной попытке
	if attempts != 3 {
		t.Errorf("ожидалось 3 учтённых переподключения, получено %d", attempts)
	}
}

func TestSupervisorStartStop(t *testing.T) {
	conn := service.NewConnectivity()
	sup := NewSupervisor(&flakyAPI{}, conn, 1, time.Millisecond, 5*time.Millisecond, testLogger())

	sup.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	sup.Stop()

	if connected, _ := conn.Snapshot(); !connected {
		t.Error("фоновая проверка должна была установить флаг соединения")
	}
}
