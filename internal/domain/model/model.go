// Пакет model — доменные модели файлового каталога.
// UserRecord и FileRecord — записи каталога, Catalog — единица
// персистентности (полный снимок catalog.json на диске).
package model

import (
	"time"
)

// Category — семантическая категория файла.
type Category string

const (
	// CategoryPhoto — изображения (image/*)
	CategoryPhoto Category = "photo"
	// CategoryVideo — видео (video/*)
	CategoryVideo Category = "video"
	// CategoryAudio — аудио (audio/*)
	CategoryAudio Category = "audio"
	// CategoryDocument — документы (pdf, office, txt)
	CategoryDocument Category = "document"
	// CategoryOther — всё остальное
	CategoryOther Category = "other"
)

// Bucket возвращает имя директории-бакета для категории
// внутри корневой директории загрузок.
func (c Category) Bucket() string {
	switch c {
	case CategoryPhoto:
		return "photos"
	case CategoryVideo:
		return "videos"
	case CategoryAudio:
		return "audio"
	case CategoryDocument:
		return "documents"
	default:
		return "other"
	}
}

// Buckets возвращает полный список бакетов. Используется при старте
// для однократного создания директорий.
func Buckets() []string {
	return []string{"documents", "photos", "videos", "audio", "other"}
}

// UserRecord — запись зарегистрированного пользователя.
// Создаётся один раз при первой регистрации, далее не изменяется.
// Инвариант: не более одной записи на id.
type UserRecord struct {
	// ID — числовой идентификатор пользователя в Telegram
	ID int64 `json:"id"`

	// DisplayName — отображаемое имя. Если профиль не содержит имени,
	// подставляется явный placeholder "unspecified" (не пустая строка).
	DisplayName string `json:"display_name"`

	// Username — @username, опционален
	Username string `json:"username,omitempty"`

	// RegisteredAt — дата и время регистрации (UTC)
	RegisteredAt time.Time `json:"registered_at"`
}

// FileRecord — запись о сохранённом файле.
// Создаётся ровно один раз на успешную загрузку, далее не изменяется.
// Инвариант: не более одной записи на remote_file_id,
// owner_id всегда ссылается на существующий UserRecord.
type FileRecord struct {
	// RemoteFileID — идентификатор файла на стороне Telegram.
	// Ключ идемпотентности: повторная доставка того же файла
	// не создаёт вторую запись.
	RemoteFileID string `json:"remote_file_id"`

	// OriginalName — оригинальное имя файла при загрузке
	OriginalName string `json:"original_name"`

	// StoredName — имя файла на диске, уникально внутри бакета.
	// Формат: {owner_id}_{timestamp_ms}_{sanitized_name}
	StoredName string `json:"stored_name"`

	// StoredPath — полный путь к файлу на диске
	StoredPath string `json:"stored_path"`

	// Category — семантическая категория (photo|video|audio|document|other)
	Category Category `json:"category"`

	// ContentType — MIME-тип, заявленный при передаче
	ContentType string `json:"declared_content_type"`

	// OwnerID — id владельца (ссылка на UserRecord)
	OwnerID int64 `json:"owner_id"`

	// UploadedAt — дата и время загрузки (UTC)
	UploadedAt time.Time `json:"uploaded_at"`

	// SizeBytes — размер файла на диске в байтах
	SizeBytes int64 `json:"size_bytes"`
}

// Catalog — полный снимок каталога: пользователи и файлы.
// Загружается в память целиком, мутируется и перезаписывается
// на диск целиком при каждом коммите.
type Catalog struct {
	Users []UserRecord `json:"users"`
	Files []FileRecord `json:"files"`

	// Индексы для поиска за O(1). Строятся из слайсов в Normalize
	// и поддерживаются в AddUser/AddFile. Не сериализуются.
	usersByID map[int64]int
	fileIDs   map[string]struct{}
}

// Normalize приводит nil-слайсы к пустым и перестраивает индексы.
// Вызывается после загрузки и перед сохранением, чтобы на диск
// никогда не попадал структурно невалидный снимок (users/files = null).
func (c *Catalog) Normalize() {
	if c.Users == nil {
		c.Users = []UserRecord{}
	}
	if c.Files == nil {
		c.Files = []FileRecord{}
	}
	c.reindex()
}

// reindex перестраивает индексы из слайсов.
func (c *Catalog) reindex() {
	c.usersByID = make(map[int64]int, len(c.Users))
	for i := range c.Users {
		c.usersByID[c.Users[i].ID] = i
	}
	c.fileIDs = make(map[string]struct{}, len(c.Files))
	for i := range c.Files {
		c.fileIDs[c.Files[i].RemoteFileID] = struct{}{}
	}
}

// AddUser добавляет запись пользователя и обновляет индекс.
// Проверку уникальности делает вызывающая сторона через UserByID.
func (c *Catalog) AddUser(u UserRecord) {
	if c.usersByID == nil {
		c.reindex()
	}
	c.Users = append(c.Users, u)
	c.usersByID[u.ID] = len(c.Users) - 1
}

// AddFile добавляет запись о файле и обновляет индекс.
// Проверку уникальности делает вызывающая сторона через HasFile.
func (c *Catalog) AddFile(rec FileRecord) {
	if c.fileIDs == nil {
		c.reindex()
	}
	c.Files = append(c.Files, rec)
	c.fileIDs[rec.RemoteFileID] = struct{}{}
}

// UserByID возвращает запись пользователя или nil, если не найдена.
func (c *Catalog) UserByID(id int64) *UserRecord {
	if c.usersByID == nil {
		c.reindex()
	}
	i, ok := c.usersByID[id]
	if !ok {
		return nil
	}
	return &c.Users[i]
}

// HasFile проверяет наличие записи с указанным remote_file_id.
func (c *Catalog) HasFile(remoteFileID string) bool {
	if c.fileIDs == nil {
		c.reindex()
	}
	_, ok := c.fileIDs[remoteFileID]
	return ok
}

// FilesByOwner возвращает записи файлов владельца в порядке добавления.
func (c *Catalog) FilesByOwner(ownerID int64) []FileRecord {
	var result []FileRecord
	for i := range c.Files {
		if c.Files[i].OwnerID == ownerID {
			result = append(result, c.Files[i])
		}
	}
	return result
}
