// events.go — классификация входящих обновлений Telegram.
//
// Транспортные обновления сводятся к плоскому событию Event до
// диспетчеризации: обработчики не разбирают структуру Update сами.
package bot

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// EventKind — вид входящего события.
type EventKind string

// Виды событий. Используются и как метка kind в fk_events_total.
const (
	EventStart            EventKind = "start"
	EventStatus           EventKind = "status"
	EventRepair           EventKind = "repair"
	EventRegisterCallback EventKind = "register_callback"
	EventUpload           EventKind = "upload"
	EventMenu             EventKind = "menu"
	EventIgnore           EventKind = "ignore"
)

// Upload — вложение из входящего сообщения.
type Upload struct {
	// RemoteFileID — идентификатор файла в Telegram
	RemoteFileID string
	// OriginalName — имя файла; для вложений без имени синтезируется
	OriginalName string
	// DeclaredSize — размер, заявленный транспортом (байты)
	DeclaredSize int64
}

// Event — плоское представление обновления Telegram.
type Event struct {
	Kind   EventKind
	ChatID int64
	From   *tgbotapi.User
	// Upload — заполнено только для Kind == EventUpload
	Upload *Upload
	// MenuText — текст сообщения для Kind == EventMenu
	MenuText string
	// CallbackID — идентификатор callback query для EventRegisterCallback
	CallbackID string
	// MessageID — идентификатор исходного сообщения
	MessageID int
}

// registerCallbackData — callback_data кнопки регистрации.
const registerCallbackData = "register"

// ClassifyUpdate сводит обновление Telegram к событию.
// now используется для синтеза имён вложений без имени
// (фото, видео и аудио без file_name).
func ClassifyUpdate(upd tgbotapi.Update, now time.Time) Event {
	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		ev := Event{
			Kind:       EventIgnore,
			From:       cb.From,
			CallbackID: cb.ID,
		}
		if cb.Message != nil {
			ev.ChatID = cb.Message.Chat.ID
			ev.MessageID = cb.Message.MessageID
		}
		if cb.Data == registerCallbackData {
			ev.Kind = EventRegisterCallback
		}
		return ev
	}

	msg := upd.Message
	if msg == nil || msg.From == nil {
		return Event{Kind: EventIgnore}
	}

	ev := Event{
		ChatID:    msg.Chat.ID,
		From:      msg.From,
		MessageID: msg.MessageID,
	}

	if up := extractUpload(msg, now); up != nil {
		ev.Kind = EventUpload
		ev.Upload = up
		return ev
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			ev.Kind = EventStart
		case "status":
			ev.Kind = EventStatus
		case "repair":
			ev.Kind = EventRepair
		default:
			ev.Kind = EventIgnore
		}
		return ev
	}

	if msg.Text != "" {
		ev.Kind = EventMenu
		ev.MenuText = msg.Text
		return ev
	}

	ev.Kind = EventIgnore
	return ev
}

// extractUpload достаёт вложение из сообщения.
// Для фото берётся самый крупный вариант (последний в списке).
func extractUpload(msg *tgbotapi.Message, now time.Time) *Upload {
	switch {
	case msg.Document != nil:
		name := msg.Document.FileName
		if name == "" {
			name = fmt.Sprintf("document_%d", now.UnixMilli())
		}
		return &Upload{
			RemoteFileID: msg.Document.FileID,
			OriginalName: name,
			DeclaredSize: int64(msg.Document.FileSize),
		}
	case len(msg.Photo) > 0:
		photo := msg.Photo[len(msg.Photo)-1]
		return &Upload{
			RemoteFileID: photo.FileID,
			OriginalName: fmt.Sprintf("photo_%d.jpg", now.UnixMilli()),
			DeclaredSize: int64(photo.FileSize),
		}
	case msg.Video != nil:
		name := msg.Video.FileName
		if name == "" {
			name = fmt.Sprintf("video_%d.mp4", now.UnixMilli())
		}
		return &Upload{
			RemoteFileID: msg.Video.FileID,
			OriginalName: name,
			DeclaredSize: int64(msg.Video.FileSize),
		}
	case msg.Audio != nil:
		name := msg.Audio.FileName
		if name == "" {
			name = fmt.Sprintf("audio_%d.mp3", now.UnixMilli())
		}
		return &Upload{
			RemoteFileID: msg.Audio.FileID,
			OriginalName: name,
			DeclaredSize: int64(msg.Audio.FileSize),
		}
	default:
		return nil
	}
}
