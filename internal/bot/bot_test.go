package bot

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arturkryukov/filekeeper/internal/catalog"
	"github.com/arturkryukov/filekeeper/internal/config"
	"github.com/arturkryukov/filekeeper/internal/service"
	"github.com/arturkryukov/filekeeper/internal/storage/filestore"
)

// fakeAPI — фейковый Telegram API, записывающий отправленные сообщения.
type fakeAPI struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	nextID   int
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(_ tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	ch := make(chan tgbotapi.Update)
	close(ch)
	return ch
}

func (f *fakeAPI) StopReceivingUpdates() {}

// sentTexts возвращает тексты отправленных сообщений.
func (f *fakeAPI) sentTexts() []string {
	var texts []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			texts = append(texts, m.Text)
		case tgbotapi.EditMessageTextConfig:
			texts = append(texts, m.Text)
		}
	}
	return texts
}

// stubResolver — резолвер с фиксированной ссылкой скачивания.
type stubResolver struct {
	url string
	err error
}

func (r *stubResolver) ResolveFileURL(_ context.Context, _ string) (string, error) {
	return r.url, r.err
}

// testLogger — логгер уровня error, чтобы не шуметь в тестах.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// botFixture — бот с реальным каталогом и хранилищем в t.TempDir.
type botFixture struct {
	bot  *Bot
	api  *fakeAPI
	cat  *catalog.Store
	gate *service.RegistrationGate
}

func newBotFixture(t *testing.T, resolver service.FileResolver, adminIDs []int64) *botFixture {
	t.Helper()

	logger := testLogger()
	dir := t.TempDir()

	cat := catalog.New(filepath.Join(dir, "catalog.json"), logger)
	files, err := filestore.New(filepath.Join(dir, "downloads"))
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}

	gate := service.NewRegistrationGate(cat, logger)
	conn := service.NewConnectivity()
	status := service.NewStatusService(conn, cat)
	ing := service.NewIngestor(resolver, &http.Client{Timeout: 5 * time.Second}, files, cat, 1<<20, logger)

	cfg := &config.Config{
		AdminIDs:    adminIDs,
		PollTimeout: 1,
	}

	api := &fakeAPI{}
	b := New(api, cfg, gate, ing, status, cat, logger)
	b.now = func() time.Time { return time.UnixMilli(1000) }

	return &botFixture{bot: b, api: api, cat: cat, gate: gate}
}

// registerTestUser регистрирует пользователя напрямую через гейт.
func (f *botFixture) registerTestUser(t *testing.T, id int64, name string) {
	t.Helper()
	if _, err := f.gate.EnsureRegistered(service.Profile{ID: id, FirstName: name}); err != nil {
		t.Fatalf("ошибка регистрации: %v", err)
	}
}

func TestHandleStart_Unregistered(t *testing.T) {
	f := newBotFixture(t, &stubResolver{}, nil)

	f.bot.handleStart(Event{
		Kind:   EventStart,
		ChatID: 100,
		From:   &tgbotapi.User{ID: 42, FirstName: "Иван"},
	})

	if len(f.api.sent) != 1 {
		t.Fatalf("ожидалось 1 сообщение, отправлено %d", len(f.api.sent))
	}

	msg, ok := f.api.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("неожиданный тип сообщения: %T", f.api.sent[0])
	}
	if !strings.Contains(msg.Text, "не зарегистрированы") {
		t.Errorf("ожидалось приглашение к регистрации: %q", msg.Text)
	}
	if _, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); !ok {
		t.Errorf("ожидалась inline-клавиатура регистрации, получено %T", msg.ReplyMarkup)
	}
}

func TestHandleStart_Registered(t *testing.T) {
	f := newBotFixture(t, &stubResolver{}, nil)
	f.registerTestUser(t, 42, "Иван")

	f.bot.handleStart(Event{
		Kind:   EventStart,
		ChatID: 100,
		From:   &tgbotapi.User{ID: 42, FirstName: "Иван"},
	})

	msg := f.api.sent[0].(tgbotapi.MessageConfig)
	if !strings.Contains(msg.Text, "С возвращением") {
		t.Errorf("ожидалось меню зарегистрированного пользователя: %q", msg.Text)
	}
	if _, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup); !ok {
		t.Errorf("ожидалась reply-клавиатура меню, получено %T", msg.ReplyMarkup)
	}
}

func TestHandleRegisterCallback_NewUser(t *testing.T) {
	f := newBotFixture(t, &stubResolver{}, nil)

	f.bot.handleRegisterCallback(Event{
		Kind:       EventRegisterCallback,
		ChatID:     100,
		From:       &tgbotapi.User{ID: 42, FirstName: "Иван", UserName: "ivan"},
		CallbackID: "cb-1",
	})

	registered, err := f.gate.IsRegistered(42)
	if err != nil {
		t.Fatalf("ошибка проверки регистрации: %v", err)
	}
	if !registered {
		t.Error("пользователь должен быть зарегистрирован после callback")
	}

	if len(f.api.requests) != 1 {
		t.Fatalf("ожидался 1 ответ на callback, получено %d", len(f.api.requests))
	}

	// Подтверждение регистрации + главное меню
	if len(f.api.sent) != 2 {
		t.Fatalf("ожидалось 2 сообщения, отправлено %d", len(f.api.sent))
	}
}

func TestHandleRegisterCallback_AlreadyRegistered(t *testing.T) {
	f := newBotFixture(t, &stubResolver{}, nil)
	f.registerTestUser(t, 42, "Иван")

	f.bot.handleRegisterCallback(Event{
		Kind:       EventRegisterCallback,
		ChatID:     100,
		From:       &tgbotapi.User{ID: 42, FirstName: "Иван"},
		CallbackID: "cb-1",
	})

	// Только всплывающий ответ и меню, без повторной регистрации
	cb, ok := f.api.requests[0].(tgbotapi.CallbackConfig)
	if !ok {
		t.Fatalf("неожиданный тип запроса: %T", f.api.requests[0])
	}
	if !strings.Contains(cb.Text, "уже зарегистрированы") {
		t.Errorf("ожидался ответ о повторной регистрации: %q", cb.Text)
	}
}

func TestHandleRepair_DeniedForNonAdmin(t *testing.T) {
	f := newBotFixture(t, &stubResolver{}, []int64{999})

	f.bot.handleRepair(Event{
		Kind:   EventRepair,
		ChatID: 100,
		From:   &tgbotapi.User{ID: 42},
	})

	msg := f.api.sent[0].(tgbotapi.MessageConfig)
	if !strings.Contains(msg.Text, "нет прав") {
		t.Errorf("ожидался отказ в доступе: %q", msg.Text)
	}
}

func TestHandleRepair_Admin(t *testing.T) {
	f := newBotFixture(t, &stubResolver{}, []int64{42})
	f.registerTestUser(t, 7, "Кто-то")

	f.bot.handleRepair(Event{
		Kind:   EventRepair,
		ChatID: 100,
		From:   &tgbotapi.User{ID: 42},
	})

	msg := f.api.sent[0].(tgbotapi.MessageConfig)
	if !strings.Contains(msg.Text, "восстановлен") {
		t.Errorf("ожидалось подтверждение восстановления: %q", msg.Text)
	}

	// После восстановления каталог пуст
	registered, err := f.gate.IsRegistered(7)
	if err != nil {
		t.Fatalf("ошибка проверки регистрации: %v", err)
	}
	if registered {
		t.Error("после восстановления каталог должен быть пустым")
	}
}

func TestHandleUpload_Unregistered(t *testing.T) {
	f := newBotFixture(t, &stubResolver{}, nil)

	f.bot.handleUpload(context.Background(), Event{
		Kind:   EventUpload,
		ChatID: 100,
		From:   &tgbotapi.User{ID: 42, FirstName: "Иван"},
		Upload: &Upload{RemoteFileID: "file-1", OriginalName: "a.txt"},
	})

	msg := f.api.sent[0].(tgbotapi.MessageConfig)
	if !strings.Contains(msg.Text, "не зарегистрированы") {
		t.Errorf("незарегистрированный пользователь должен получить приглашение: %q", msg.Text)
	}
}

func TestHandleUpload_FullCycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF тестовое содержимое"))
	}))
	defer srv.Close()

	f := newBotFixture(t, &stubResolver{url: srv.URL}, nil)
	f.registerTestUser(t, 42, "Иван")

	f.bot.handleUpload(context.Background(), Event{
		Kind:   EventUpload,
		ChatID: 100,
		From:   &tgbotapi.User{ID: 42, FirstName: "Иван"},
		Upload: &Upload{RemoteFileID: "file-1", OriginalName: "report.pdf"},
	})

	texts := f.api.sentTexts()
	if len(texts) != 2 {
		t.Fatalf("ожидалось промежуточное и итоговое сообщение, получено %d", len(texts))
	}
	if !strings.Contains(texts[0], "Обрабатываю") {
		t.Errorf("первое сообщение должно быть промежуточным: %q", texts[0])
	}
	if !strings.Contains(texts[1], "Файл сохранён") {
		t.Errorf("итоговое сообщение должно подтверждать сохранение: %q", texts[1])
	}
	if !strings.Contains(texts[1], "report.pdf") {
		t.Errorf("итоговое сообщение должно содержать имя файла: %q", texts[1])
	}
}

func TestHandleUpload_Duplicate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("содержимое"))
	}))
	defer srv.Close()

	f := newBotFixture(t, &stubResolver{url: srv.URL}, nil)
	f.registerTestUser(t, 42, "Иван")

	ev := Event{
		Kind:   EventUpload,
		ChatID: 100,
		From:   &tgbotapi.User{ID: 42, FirstName: "Иван"},
		Upload: &Upload{RemoteFileID: "file-1", OriginalName: "a.bin"},
	}

	f.bot.handleUpload(context.Background(), ev)
	f.bot.handleUpload(context.Background(), ev)

	texts := f.api.sentTexts()
	last := texts[len(texts)-1]
	if !strings.Contains(last, "уже сохранён") {
		t.Errorf("повторная отправка должна сообщать о дубликате: %q", last)
	}
}

func TestHandleMenu_MyFiles(t *testing.T) {
	f := newBotFixture(t, &stubResolver{}, nil)
	f.registerTestUser(t, 42, "Иван")

	f.bot.handleMenu(Event{
		Kind:     EventMenu,
		ChatID:   100,
		From:     &tgbotapi.User{ID: 42, FirstName: "Иван"},
		MenuText: menuMyFiles,
	})

	msg := f.api.sent[0].(tgbotapi.MessageConfig)
	if !strings.Contains(msg.Text, "нет сохранённых файлов") {
		t.Errorf("ожидался пустой список файлов: %q", msg.Text)
	}
}

func TestHandleMenu_MyInfo(t *testing.T) {
	f := newBotFixture(t, &stubResolver{}, nil)
	f.registerTestUser(t, 42, "Иван")

	f.bot.handleMenu(Event{
		Kind:     EventMenu,
		ChatID:   100,
		From:     &tgbotapi.User{ID: 42, FirstName: "Иван"},
		MenuText: menuMyInfo,
	})

	msg := f.api.sent[0].(tgbotapi.MessageConfig)
	if !strings.Contains(msg.Text, "Иван") {
		t.Errorf("карточка должна содержать имя пользователя: %q", msg.Text)
	}
}

func TestHandleMenu_UnknownTextShowsMenu(t *testing.T) {
	f := newBotFixture(t, &stubResolver{}, nil)
	f.registerTestUser(t, 42, "Иван")

	f.bot.handleMenu(Event{
		Kind:     EventMenu,
		ChatID:   100,
		From:     &tgbotapi.User{ID: 42, FirstName: "Иван"},
		MenuText: "произвольный текст",
	})

	msg := f.api.sent[0].(tgbotapi.MessageConfig)
	if _, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup); !ok {
		t.Errorf("на произвольный текст должно прийти главное меню, получено %T", msg.ReplyMarkup)
	}
}
