// Пакет catalog — durable-хранилище каталога файлов и пользователей.
//
// Каталог персистится в единственный JSON-снимок (catalog.json),
// человекочитаемый (pretty-printed). Каждая мутация — полный цикл
// load → mutate → save без in-memory кэша между вызовами: это
// позволяет переживать внешние правки снимка между операциями.
//
// Все мутации сериализуются внутренним мьютексом: не более одной
// мутации в полёте, мутации линеаризуются в порядке поступления.
//
// Запись снимка атомарна: temp файл → fsync → rename. Частичная
// запись не может испортить предыдущий снимок.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/arturkryukov/filekeeper/internal/domain/model"
)

// ErrCorruptCatalog — снимок присутствует, но не парсится.
// Восстанавливается только явным Repair, автоматически данные
// не отбрасываются.
var ErrCorruptCatalog = errors.New("снимок каталога повреждён")

// Store — хранилище каталога. Единственный компонент, которому
// разрешено читать и писать снимок на диске.
type Store struct {
	// path — полный путь к catalog.json
	path string

	// mu сериализует все операции со снимком (single-writer)
	mu sync.Mutex

	logger *slog.Logger

	// now — источник времени, подменяется в тестах
	now func() time.Time
}

// Stats — сводка по каталогу для стартового лога и status-запроса.
type Stats struct {
	// Users — количество зарегистрированных пользователей
	Users int
	// Files — общее количество записей о файлах
	Files int
	// ByCategory — распределение файлов по категориям
	ByCategory map[model.Category]int
}

// New создаёт Store для снимка по указанному пути.
func New(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.With(slog.String("component", "catalog")),
		now:    time.Now,
	}
}

// Path возвращает путь к снимку на диске.
func (s *Store) Path() string {
	return s.path
}

// Load читает снимок каталога. Если снимок отсутствует —
// синтезирует пустой каталог и сразу персистит его.
// Если снимок присутствует, но не парсится — ErrCorruptCatalog.
func (s *Store) Load() (*model.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save сериализует каталог и перезаписывает снимок целиком.
// Перед записью nil-слайсы нормализуются к пустым.
func (s *Store) Save(cat *model.Catalog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(cat)
}

// IsUserRegistered проверяет наличие записи пользователя.
func (s *Store) IsUserRegistered(id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, err := s.load()
	if err != nil {
		return false, err
	}
	return cat.UserByID(id) != nil, nil
}

// RegisterUser добавляет запись пользователя. Возвращает false
// без ошибки, если запись уже существует — повторная регистрация
// не ошибка, а no-op.
func (s *Store) RegisterUser(u model.UserRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, err := s.load()
	if err != nil {
		return false, err
	}

	if cat.UserByID(u.ID) != nil {
		return false, nil
	}

	cat.AddUser(u)
	if err := s.save(cat); err != nil {
		return false, err
	}

	s.logger.Info("Пользователь зарегистрирован",
		slog.Int64("user_id", u.ID),
		slog.String("display_name", u.DisplayName),
	)
	return true, nil
}

// UserFiles возвращает записи файлов владельца в порядке добавления.
func (s *Store) UserFiles(ownerID int64) ([]model.FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, err := s.load()
	if err != nil {
		return nil, err
	}
	return cat.FilesByOwner(ownerID), nil
}

// User возвращает запись пользователя или nil, если не найдена.
func (s *Store) User(id int64) (*model.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, err := s.load()
	if err != nil {
		return nil, err
	}
	return cat.UserByID(id), nil
}

// AddFileRecord добавляет запись о файле. Возвращает false без
// ошибки и не изменяет каталог, если запись с тем же remote_file_id
// уже существует — это гарантия дедупликации при повторной доставке.
func (s *Store) AddFileRecord(rec model.FileRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, err := s.load()
	if err != nil {
		return false, err
	}

	if cat.HasFile(rec.RemoteFileID) {
		return false, nil
	}

	cat.AddFile(rec)
	if err := s.save(cat); err != nil {
		return false, err
	}
	return true, nil
}

// Repair архивирует текущий снимок под timestamped-именем
// (best-effort: неудача бэкапа не блокирует восстановление)
// и заменяет живой снимок пустым каталогом.
// Деструктивная административная операция.
func (s *Store) Repair() (*model.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		backupPath := fmt.Sprintf("%s.backup.%d", s.path, s.now().UnixMilli())
		if err := copyFile(s.path, backupPath); err != nil {
			s.logger.Warn("Не удалось создать бэкап снимка, продолжаем восстановление",
				slog.String("backup_path", backupPath),
				slog.String("error", err.Error()),
			)
		} else {
			s.logger.Info("Бэкап снимка создан", slog.String("backup_path", backupPath))
		}
	}

	empty := &model.Catalog{}
	empty.Normalize()
	if err := s.save(empty); err != nil {
		return nil, fmt.Errorf("запись пустого снимка: %w", err)
	}

	s.logger.Info("Каталог восстановлен (пустой снимок)")
	return empty, nil
}

// Stats возвращает сводку по каталогу из свежей загрузки снимка.
func (s *Store) Stats() (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat, err := s.load()
	if err != nil {
		return nil, err
	}

	st := &Stats{
		Users:      len(cat.Users),
		Files:      len(cat.Files),
		ByCategory: make(map[model.Category]int),
	}
	for i := range cat.Files {
		st.ByCategory[cat.Files[i].Category]++
	}
	return st, nil
}

// Check проверяет, что снимок каталога читается и парсится.
// Используется readiness probe.
func (s *Store) Check() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.load()
	return err
}

// --- Внутренние операции (вызываются под mu) ---

// load читает и парсит снимок. Отсутствие файла — не ошибка:
// создаётся и персистится пустой каталог.
func (s *Store) load() (*model.Catalog, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			empty := &model.Catalog{}
			empty.Normalize()
			if saveErr := s.save(empty); saveErr != nil {
				return nil, fmt.Errorf("инициализация пустого снимка: %w", saveErr)
			}
			s.logger.Info("Создан начальный снимок каталога", slog.String("path", s.path))
			return empty, nil
		}
		return nil, fmt.Errorf("чтение снимка %s: %w", s.path, err)
	}

	var cat model.Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptCatalog, s.path, err)
	}

	cat.Normalize()
	return &cat, nil
}

// save атомарно перезаписывает снимок: temp → fsync → rename.
// Либо снимок заменён целиком, либо предыдущий остался нетронутым.
func (s *Store) save(cat *model.Catalog) error {
	cat.Normalize()

	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return fmt.Errorf("сериализация каталога: %w", err)
	}

	tmpPath := s.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("создание temp снимка: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("запись temp снимка: %w", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("fsync temp снимка: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("закрытие temp снимка: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename снимка: %w", err)
	}

	return nil
}

// copyFile копирует файл src в dst (для бэкапа при Repair).
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
