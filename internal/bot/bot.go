// Пакет bot — Telegram-транспорт бота: long polling, диспетчеризация
// событий, обработчики команд, меню и загрузок.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arturkryukov/filekeeper/internal/api/middleware"
	"github.com/arturkryukov/filekeeper/internal/catalog"
	"github.com/arturkryukov/filekeeper/internal/config"
	"github.com/arturkryukov/filekeeper/internal/service"
)

// telegramAPI — поверхность Telegram Bot API, используемая ботом.
// *tgbotapi.BotAPI реализует интерфейс; в тестах подменяется фейком.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// FileResolver — адаптер getFile для сервиса приёма файлов.
type FileResolver struct {
	api interface {
		GetFileDirectURL(fileID string) (string, error)
	}
}

// NewFileResolver создаёт резолвер ссылок скачивания поверх Bot API.
func NewFileResolver(api interface {
	GetFileDirectURL(fileID string) (string, error)
}) *FileResolver {
	return &FileResolver{api: api}
}

// ResolveFileURL возвращает прямую ссылку скачивания файла.
func (r *FileResolver) ResolveFileURL(_ context.Context, remoteFileID string) (string, error) {
	return r.api.GetFileDirectURL(remoteFileID)
}

// Проверка на этапе компиляции
var _ service.FileResolver = (*FileResolver)(nil)

// Bot — Telegram-бот: принимает обновления и вызывает сервисный слой.
type Bot struct {
	api      telegramAPI
	cfg      *config.Config
	gate     *service.RegistrationGate
	ingestor *service.Ingestor
	status   *service.StatusService
	cat      *catalog.Store
	logger   *slog.Logger

	// now — источник времени, подменяется в тестах
	now func() time.Time
}

// New создаёт бота.
func New(
	api telegramAPI,
	cfg *config.Config,
	gate *service.RegistrationGate,
	ingestor *service.Ingestor,
	status *service.StatusService,
	cat *catalog.Store,
	logger *slog.Logger,
) *Bot {
	return &Bot{
		api:      api,
		cfg:      cfg,
		gate:     gate,
		ingestor: ingestor,
		status:   status,
		cat:      cat,
		logger:   logger.With(slog.String("component", "bot")),
		now:      time.Now,
	}
}

// Run запускает цикл long polling до отмены контекста.
// Каждое обновление обрабатывается в отдельной горутине:
// медленная загрузка одного пользователя не блокирует остальных.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollTimeout

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Бот принимает обновления",
		slog.Int("poll_timeout", b.cfg.PollTimeout),
	)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("Приём обновлений остановлен")
			return
		case upd, ok := <-updates:
			if !ok {
				b.logger.Info("Канал обновлений закрыт")
				return
			}
			go b.handle(ctx, upd)
		}
	}
}

// handle классифицирует обновление и вызывает обработчик.
// Паника в обработчике не роняет процесс.
func (b *Bot) handle(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Паника при обработке обновления",
				slog.Any("panic", r),
			)
		}
	}()

	ev := ClassifyUpdate(upd, b.now())
	middleware.EventsTotal.WithLabelValues(string(ev.Kind)).Inc()

	switch ev.Kind {
	case EventStart:
		b.handleStart(ev)
	case EventStatus:
		b.handleStatus(ev)
	case EventRepair:
		b.handleRepair(ev)
	case EventRegisterCallback:
		b.handleRegisterCallback(ev)
	case EventUpload:
		b.handleUpload(ctx, ev)
	case EventMenu:
		b.handleMenu(ev)
	case EventIgnore:
		// namespace updates вроде edited_message не обрабатываются
	}
}

// handleStart — команда /start: меню для зарегистрированных,
// приглашение к регистрации для остальных.
func (b *Bot) handleStart(ev Event) {
	b.logger.Info("Команда /start",
		slog.Int64("user_id", ev.From.ID),
		slog.String("first_name", ev.From.FirstName),
	)

	registered, err := b.gate.IsRegistered(ev.From.ID)
	if err != nil {
		b.sendMarkdown(ev.ChatID, catalogUnavailableText())
		return
	}

	if registered {
		b.sendMainMenu(ev.ChatID, ev.From.FirstName)
	} else {
		b.sendWelcome(ev.ChatID, ev.From.FirstName)
	}
}

// handleStatus — команда /status: сводка состояния бота.
func (b *Bot) handleStatus(ev Event) {
	st, err := b.status.Current()
	if err != nil {
		b.logger.Error("Ошибка получения состояния",
			slog.String("error", err.Error()),
		)
		b.sendMarkdown(ev.ChatID, "❌ Не удалось получить состояние бота.")
		return
	}

	b.sendMarkdown(ev.ChatID, statusText(st))
}

// handleRepair — команда /repair: восстановление каталога.
// Доступна только администраторам из BOT_ADMIN_IDS.
func (b *Bot) handleRepair(ev Event) {
	if !b.cfg.IsAdmin(ev.From.ID) {
		b.logger.Warn("Отказ в /repair: пользователь не администратор",
			slog.Int64("user_id", ev.From.ID),
		)
		b.sendMarkdown(ev.ChatID, "❌ У вас нет прав для этой команды.")
		return
	}

	if _, err := b.cat.Repair(); err != nil {
		b.logger.Error("Ошибка восстановления каталога",
			slog.String("error", err.Error()),
		)
		b.sendMarkdown(ev.ChatID, "❌ Не удалось восстановить каталог.")
		return
	}

	b.refreshCatalogGauges()
	b.sendMarkdown(ev.ChatID, "✅ Каталог восстановлен.")
}

// handleRegisterCallback — нажатие inline-кнопки регистрации.
func (b *Bot) handleRegisterCallback(ev Event) {
	registered, err := b.gate.IsRegistered(ev.From.ID)
	if err != nil {
		b.answerCallback(ev.CallbackID, "❌ Ошибка регистрации")
		return
	}

	if registered {
		b.answerCallback(ev.CallbackID, "✅ Вы уже зарегистрированы!")
		b.sendMainMenu(ev.ChatID, ev.From.FirstName)
		return
	}

	_, err = b.gate.EnsureRegistered(service.Profile{
		ID:        ev.From.ID,
		FirstName: ev.From.FirstName,
		LastName:  ev.From.LastName,
		Username:  ev.From.UserName,
	})
	if err != nil {
		b.logger.Error("Ошибка регистрации пользователя",
			slog.Int64("user_id", ev.From.ID),
			slog.String("error", err.Error()),
		)
		b.answerCallback(ev.CallbackID, "❌ Ошибка регистрации")
		return
	}

	b.refreshCatalogGauges()
	b.answerCallback(ev.CallbackID, "🎉 Регистрация успешна!")
	b.sendMarkdown(ev.ChatID, registeredText())
	b.sendMainMenu(ev.ChatID, ev.From.FirstName)
}

// handleUpload — входящее вложение: приём через Ingestor с
// промежуточным сообщением «обрабатываю», которое затем редактируется
// в итоговый результат.
func (b *Bot) handleUpload(ctx context.Context, ev Event) {
	b.logger.Info("Получено вложение",
		slog.Int64("user_id", ev.From.ID),
		slog.String("file_name", ev.Upload.OriginalName),
		slog.Int64("declared_size", ev.Upload.DeclaredSize),
	)

	registered, err := b.gate.IsRegistered(ev.From.ID)
	if err != nil {
		b.sendMarkdown(ev.ChatID, catalogUnavailableText())
		return
	}
	if !registered {
		b.logger.Warn("Незарегистрированный пользователь отправил файл",
			slog.Int64("user_id", ev.From.ID),
		)
		b.sendWelcome(ev.ChatID, ev.From.FirstName)
		return
	}

	processing, err := b.sendMarkdownMsg(ev.ChatID, "📥 *Обрабатываю файл...*")
	if err != nil {
		b.logger.Error("Не удалось отправить промежуточное сообщение",
			slog.String("error", err.Error()),
		)
		return
	}

	res, err := b.ingestor.Ingest(ctx, ev.Upload.RemoteFileID, ev.Upload.OriginalName, ev.From.ID)
	if err != nil {
		b.editMarkdown(ev.ChatID, processing.MessageID, ingestErrorText(err))
		return
	}

	b.refreshCatalogGauges()

	if res.Duplicate {
		b.editMarkdown(ev.ChatID, processing.MessageID, ingestDuplicateText(res.Record))
		return
	}
	b.editMarkdown(ev.ChatID, processing.MessageID, ingestSuccessText(res.Record))
}

// handleMenu — текстовые пункты главного меню.
func (b *Bot) handleMenu(ev Event) {
	registered, err := b.gate.IsRegistered(ev.From.ID)
	if err != nil {
		b.sendMarkdown(ev.ChatID, catalogUnavailableText())
		return
	}
	if !registered {
		b.sendWelcome(ev.ChatID, ev.From.FirstName)
		return
	}

	switch ev.MenuText {
	case menuMyInfo:
		b.sendUserInfo(ev)
	case menuMyFiles:
		files, err := b.cat.UserFiles(ev.From.ID)
		if err != nil {
			b.sendMarkdown(ev.ChatID, catalogUnavailableText())
			return
		}
		b.sendMarkdown(ev.ChatID, filesListText(files))
	case menuUpload:
		b.sendMarkdown(ev.ChatID, uploadHelpText())
	case menuHelp:
		b.sendMarkdown(ev.ChatID, helpText())
	case menuStatus:
		b.handleStatus(ev)
	case menuSettings:
		b.sendMarkdown(ev.ChatID, settingsText())
	default:
		b.sendMainMenu(ev.ChatID, ev.From.FirstName)
	}
}

// sendUserInfo — карточка пользователя с количеством файлов.
func (b *Bot) sendUserInfo(ev Event) {
	u, err := b.cat.User(ev.From.ID)
	if err != nil || u == nil {
		b.sendMarkdown(ev.ChatID, "❌ Ваша запись не найдена в каталоге.")
		return
	}

	files, err := b.cat.UserFiles(ev.From.ID)
	if err != nil {
		b.sendMarkdown(ev.ChatID, catalogUnavailableText())
		return
	}

	b.sendMarkdown(ev.ChatID, userInfoText(u, len(files)))
}

// --- Отправка сообщений ---

// sendWelcome — приветствие с inline-кнопкой регистрации.
func (b *Bot) sendWelcome(chatID int64, name string) {
	msg := tgbotapi.NewMessage(chatID, welcomeText(name))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = registerKeyboard()
	b.send(msg)
}

// sendMainMenu — приветствие с reply-клавиатурой главного меню.
func (b *Bot) sendMainMenu(chatID int64, name string) {
	msg := tgbotapi.NewMessage(chatID, menuText(name))
	msg.ReplyMarkup = mainMenuKeyboard()
	b.send(msg)
}

// sendMarkdown отправляет Markdown-сообщение.
func (b *Bot) sendMarkdown(chatID int64, text string) {
	_, _ = b.sendMarkdownMsg(chatID, text)
}

// sendMarkdownMsg отправляет Markdown-сообщение и возвращает его.
func (b *Bot) sendMarkdownMsg(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return b.send(msg)
}

// editMarkdown редактирует ранее отправленное сообщение.
func (b *Bot) editMarkdown(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Error("Ошибка редактирования сообщения",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

// answerCallback отвечает на callback query (всплывающее уведомление).
func (b *Bot) answerCallback(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Error("Ошибка ответа на callback",
			slog.String("error", err.Error()),
		)
	}
}

// send отправляет сообщение с логированием ошибки.
func (b *Bot) send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, err := b.api.Send(c)
	if err != nil {
		b.logger.Error("Ошибка отправки сообщения",
			slog.String("error", err.Error()),
		)
	}
	return msg, err
}

// refreshCatalogGauges обновляет gauge-метрики каталога.
func (b *Bot) refreshCatalogGauges() {
	stats, err := b.cat.Stats()
	if err != nil {
		return
	}
	middleware.CatalogUsers.Set(float64(stats.Users))
	for cat, count := range stats.ByCategory {
		middleware.CatalogFiles.WithLabelValues(string(cat)).Set(float64(count))
	}
}

// catalogUnavailableText — общий ответ при сбое каталога.
func catalogUnavailableText() string {
	return "❌ Каталог временно недоступен. Попробуйте позже."
}

// ingestErrorText подбирает текст ответа по ошибке приёма файла.
func ingestErrorText(err error) string {
	switch {
	case errors.Is(err, service.ErrFileTooLarge):
		return "❌ *Файл слишком большой.* Уменьшите размер и попробуйте снова."
	case errors.Is(err, service.ErrTransportTimeout):
		return "❌ *Превышено время скачивания.* Попробуйте ещё раз."
	case errors.Is(err, service.ErrTransport):
		return "❌ *Не удалось скачать файл из Telegram.* Попробуйте ещё раз."
	case errors.Is(err, service.ErrCatalogWrite):
		return "❌ *Файл скачан, но не записан в каталог.* Отправьте его ещё раз."
	default:
		return "❌ *Ошибка при обработке файла.* Попробуйте ещё раз."
	}
}
