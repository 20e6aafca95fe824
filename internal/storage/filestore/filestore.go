// Пакет filestore — операции с физическими файлами на диске.
// Корневая директория загрузок содержит пять бакетов по категориям
// (documents, photos, videos, audio, other), создаваемых однократно
// при старте. Запись потоковая, через temp файл с атомарным rename.
package filestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/arturkryukov/filekeeper/internal/domain/model"
)

// FileStore — управление физическими файлами в директории загрузок.
type FileStore struct {
	// root — корневая директория загрузок (BOT_DATA_DIR/downloads)
	root string
}

// SaveResult — результат сохранения файла на диск.
type SaveResult struct {
	// StoredName — фактическое имя файла в бакете. Может отличаться
	// от запрошенного: при коллизии добавляется короткий uuid-суффикс.
	StoredName string
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
}

// New создаёт FileStore и однократно создаёт корневую директорию
// и все бакеты, если они не существуют.
func New(root string) (*FileStore, error) {
	for _, bucket := range model.Buckets() {
		dir := filepath.Join(root, bucket)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("создание бакета %s: %w", dir, err)
		}
	}
	return &FileStore{root: root}, nil
}

// Root возвращает корневую директорию загрузок.
func (fs *FileStore) Root() string {
	return fs.root
}

// BucketPath возвращает путь к директории бакета.
func (fs *FileStore) BucketPath(bucket string) string {
	return filepath.Join(fs.root, bucket)
}

// SaveFile записывает данные из reader в бакет под указанным именем.
//
// Паттерн: temp файл → запись → fsync → atomic rename.
// При ошибке temp файл удаляется, частичная запись не остаётся.
//
// Если файл с таким именем уже существует в бакете, к имени перед
// расширением добавляется короткий uuid-суффикс — существующий файл
// никогда не перезаписывается молча.
func (fs *FileStore) SaveFile(reader io.Reader, bucket, storedName string) (*SaveResult, error) {
	name := storedName
	fullPath := filepath.Join(fs.root, bucket, name)

	if _, err := os.Stat(fullPath); err == nil {
		name = withCollisionSuffix(storedName)
		fullPath = filepath.Join(fs.root, bucket, name)
	}

	tmpPath := fullPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("создание временного файла: %w", err)
	}

	size, err := io.Copy(f, reader)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("запись данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("закрытие файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("атомарное переименование: %w", err)
	}

	return &SaveResult{
		StoredName: name,
		FullPath:   fullPath,
		Size:       size,
	}, nil
}

// DeleteFile удаляет файл из бакета. Отсутствие файла — не ошибка.
func (fs *FileStore) DeleteFile(bucket, storedName string) error {
	err := os.Remove(filepath.Join(fs.root, bucket, storedName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("удаление файла %s/%s: %w", bucket, storedName, err)
	}
	return nil
}

// FileSize возвращает размер файла в бакете.
func (fs *FileStore) FileSize(bucket, storedName string) (int64, error) {
	info, err := os.Stat(filepath.Join(fs.root, bucket, storedName))
	if err != nil {
		return 0, fmt.Errorf("stat %s/%s: %w", bucket, storedName, err)
	}
	return info.Size(), nil
}

// withCollisionSuffix вставляет короткий uuid перед расширением:
// "42_1000_a.txt" → "42_1000_a_1a2b3c4d.txt".
func withCollisionSuffix(storedName string) string {
	ext := filepath.Ext(storedName)
	base := strings.TrimSuffix(storedName, ext)
	uid := uuid.New().String()[:8]
	return fmt.Sprintf("%s_%s%s", base, uid, ext)
}
