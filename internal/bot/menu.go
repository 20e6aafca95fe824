// menu.go — клавиатуры и тексты сообщений бота.
package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/arturkryukov/filekeeper/internal/domain/model"
	"github.com/arturkryukov/filekeeper/internal/service"
)

// Пункты главного меню.
const (
	menuMyInfo   = "📊 Моя информация"
	menuMyFiles  = "📁 Мои файлы"
	menuUpload   = "📤 Загрузить файл"
	menuHelp     = "🆘 Помощь"
	menuSettings = "⚙️ Настройки"
	menuStatus   = "🔁 Статус бота"
)

// filesListLimit — сколько файлов показывается в списке "Мои файлы".
const filesListLimit = 10

// mainMenuKeyboard — постоянная reply-клавиатура главного меню.
func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuMyInfo),
			tgbotapi.NewKeyboardButton(menuMyFiles),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuUpload),
			tgbotapi.NewKeyboardButton(menuHelp),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuSettings),
			tgbotapi.NewKeyboardButton(menuStatus),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

// registerKeyboard — inline-кнопка регистрации.
func registerKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Зарегистрироваться", registerCallbackData),
		),
	)
}

// welcomeText — приветствие незарегистрированного пользователя.
func welcomeText(name string) string {
	if name == "" {
		name = "пользователь"
	}
	return fmt.Sprintf("👋 Привет, %s!\n\n"+
		"⚠️ *Вы не зарегистрированы в системе.*\n\n"+
		"Чтобы пользоваться всеми функциями бота, включая загрузку файлов, нужно зарегистрироваться.", name)
}

// menuText — сообщение при показе главного меню.
func menuText(name string) string {
	if name == "" {
		name = "пользователь"
	}
	return fmt.Sprintf("🎉 С возвращением, %s!\n\nЧем займёмся сегодня?", name)
}

// registeredText — подтверждение завершённой регистрации.
func registeredText() string {
	return "✅ *Регистрация завершена!*\n\nТеперь вам доступны все функции бота."
}

// helpText — справка по командам и меню.
func helpText() string {
	return "🆘 *Справка*\n\n" +
		"*Команды:*\n" +
		"• /start — запустить бота\n" +
		"• /status — состояние бота\n" +
		"• /repair — восстановить каталог (только администратор)\n\n" +
		"*Пункты меню:*\n" +
		"• " + menuMyInfo + " — ваши данные\n" +
		"• " + menuMyFiles + " — сохранённые файлы\n" +
		"• " + menuUpload + " — как загрузить файл\n" +
		"• " + menuStatus + " — информация о системе"
}

// uploadHelpText — инструкция по загрузке.
func uploadHelpText() string {
	return "📤 *Загрузка файла*\n\n" +
		"Можно отправить:\n" +
		"• 📄 Документы (PDF, Word, Excel и т.д.)\n" +
		"• 🖼️ Фотографии\n" +
		"• 🎥 Видео\n" +
		"• 🎵 Аудио\n" +
		"• 📦 Другие файлы\n\n" +
		"*Просто отправьте файл, который хотите сохранить.*"
}

// settingsText — заглушка раздела настроек.
func settingsText() string {
	return "⚙️ *Настройки*\n\nСкоро здесь появятся дополнительные опции..."
}

// userInfoText — карточка пользователя.
func userInfoText(u *model.UserRecord, filesCount int) string {
	username := u.Username
	if username == "" {
		username = "не задан"
	}
	return fmt.Sprintf("👤 *Ваша информация:*\n\n"+
		"🆔 ID: %d\n"+
		"👤 Имя: %s\n"+
		"🌐 Username: @%s\n"+
		"📅 Зарегистрирован: %s\n"+
		"📁 Загружено файлов: %d",
		u.ID, u.DisplayName, username, u.RegisteredAt.Format("02.01.2006"), filesCount)
}

// filesListText — список сохранённых файлов (первые filesListLimit).
func filesListText(files []model.FileRecord) string {
	if len(files) == 0 {
		return "📭 *У вас нет сохранённых файлов.*\n\nОтправьте любой файл, чтобы сохранить его."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📂 *Ваши сохранённые файлы (%d):*\n\n", len(files))

	shown := files
	if len(shown) > filesListLimit {
		shown = shown[:filesListLimit]
	}
	for i, f := range shown {
		fmt.Fprintf(&b, "%d. 📄 %s\n   📦 Категория: %s\n   💾 %.2f KB\n   📅 %s\n\n",
			i+1, f.OriginalName, f.Category, float64(f.SizeBytes)/1024, f.UploadedAt.Format("02.01.2006"))
	}
	if len(files) > filesListLimit {
		fmt.Fprintf(&b, "\n... и ещё %d файлов.", len(files)-filesListLimit)
	}
	return b.String()
}

// statusText — сводка состояния бота.
func statusText(st *service.Status) string {
	connected := "Нет"
	if st.Connected {
		connected = "Да"
	}
	return fmt.Sprintf("🤖 *Состояние бота*\n\n"+
		"✅ Подключён: %s\n"+
		"🔄 Попыток переподключения: %d\n"+
		"📊 Зарегистрировано пользователей: %d\n"+
		"📁 Сохранено файлов: %d\n"+
		"⏰ Обновлено: %s",
		connected, st.ReconnectAttempts, st.RegisteredUsers, st.StoredFiles,
		st.Timestamp.Format(time.RFC3339))
}

// ingestSuccessText — подтверждение сохранённого файла.
func ingestSuccessText(rec model.FileRecord) string {
	return fmt.Sprintf("✅ *Файл сохранён!*\n\n"+
		"📄 *Имя:* %s\n"+
		"📦 *Категория:* %s\n"+
		"💾 *Размер:* %.2f KB\n"+
		"📅 *Сохранён:* %s",
		rec.OriginalName, rec.Category, float64(rec.SizeBytes)/1024,
		rec.UploadedAt.Format("02.01.2006 15:04:05"))
}

// ingestDuplicateText — для повторной отправки того же файла.
func ingestDuplicateText(rec model.FileRecord) string {
	return fmt.Sprintf("ℹ️ *Этот файл уже сохранён.*\n\n"+
		"📄 *Имя:* %s\n"+
		"📦 *Категория:* %s\n\n"+
		"Вторая копия не создавалась.", rec.OriginalName, rec.Category)
}
