// Пакет service — бизнес-логика бота.
// ingest.go — сервис приёма файлов: скачивание по ссылке транспорта,
// классификация, запись в бакет и коммит записи в каталог.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/arturkryukov/filekeeper/internal/api/middleware"
	"github.com/arturkryukov/filekeeper/internal/catalog"
	"github.com/arturkryukov/filekeeper/internal/classify"
	"github.com/arturkryukov/filekeeper/internal/domain/model"
	"github.com/arturkryukov/filekeeper/internal/storage/filestore"
)

// Ошибки уровня приёма файлов.
var (
	// ErrNotRegistered — владелец не зарегистрирован; приём отклонён
	// до каких-либо побочных эффектов (инвариант owner_id).
	ErrNotRegistered = errors.New("пользователь не зарегистрирован")
	// ErrTransport — ошибка получения файла от транспорта.
	// Не ретраится на этом уровне, поднимается вызывающему.
	ErrTransport = errors.New("ошибка транспорта")
	// ErrTransportTimeout — скачивание не уложилось в таймаут.
	ErrTransportTimeout = errors.New("таймаут скачивания")
	// ErrCatalogWrite — коммит в каталог не удался после успешной
	// записи байтов; файл остаётся на диске как orphan.
	ErrCatalogWrite = errors.New("ошибка коммита в каталог")
	// ErrFileTooLarge — заявленный размер превышает лимит.
	ErrFileTooLarge = errors.New("файл превышает максимальный размер")
)

// FileResolver — коллаборатор-транспорт: преобразует remote_file_id
// в прямую ссылку на скачивание. Реализуется Telegram-клиентом,
// подменяется в тестах.
type FileResolver interface {
	ResolveFileURL(ctx context.Context, remoteFileID string) (string, error)
}

// Ingestor — сервис приёма файлов. Единственный компонент, который
// сочетает внешний I/O (сетевое скачивание + запись на диск)
// с протоколом коммита в каталог.
type Ingestor struct {
	resolver FileResolver
	// client — HTTP-клиент скачивания; Timeout ограничивает всю
	// передачу, включая чтение тела
	client      *http.Client
	files       *filestore.FileStore
	cat         *catalog.Store
	maxFileSize int64
	logger      *slog.Logger

	// now — источник времени, подменяется в тестах
	now func() time.Time
}

// IngestResult — результат приёма файла.
type IngestResult struct {
	// Record — запись каталога (при Duplicate — построенная, не сохранённая)
	Record model.FileRecord
	// Duplicate — remote_file_id уже есть в каталоге, вторая запись
	// не создана
	Duplicate bool
}

// NewIngestor создаёт сервис приёма файлов.
func NewIngestor(
	resolver FileResolver,
	client *http.Client,
	files *filestore.FileStore,
	cat *catalog.Store,
	maxFileSize int64,
	logger *slog.Logger,
) *Ingestor {
	return &Ingestor{
		resolver:    resolver,
		client:      client,
		files:       files,
		cat:         cat,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "ingestor")),
		now:         time.Now,
	}
}

// Ingest принимает файл: скачивает байты, классифицирует, записывает
// в бакет и коммитит запись в каталог.
//
// Поток:
//  1. Проверка регистрации владельца
//  2. Получение ссылки скачивания у транспорта
//  3. Скачивание с ограниченным таймаутом, фиксация Content-Type
//  4. Классификация + генерация имени хранения
//  5. Запись в бакет (temp → rename); при ошибке записи коммита нет
//  6. Коммит FileRecord; дубликат remote_file_id — успех без второй
//     записи, физическая копия-дубликат удаляется
func (s *Ingestor) Ingest(ctx context.Context, remoteFileID, originalName string, ownerID int64) (*IngestResult, error) {
	registered, err := s.cat.IsUserRegistered(ownerID)
	if err != nil {
		return nil, fmt.Errorf("проверка регистрации: %w", err)
	}
	if !registered {
		return nil, ErrNotRegistered
	}

	downloadURL, err := s.resolver.ResolveFileURL(ctx, remoteFileID)
	if err != nil {
		middleware.IngestsTotal.WithLabelValues("transport_error").Inc()
		return nil, fmt.Errorf("%w: получение ссылки: %v", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: формирование запроса: %v", ErrTransport, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		middleware.IngestsTotal.WithLabelValues("transport_error").Inc()
		return nil, transportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		middleware.IngestsTotal.WithLabelValues("transport_error").Inc()
		return nil, fmt.Errorf("%w: статус скачивания %d", ErrTransport, resp.StatusCode)
	}

	if s.maxFileSize > 0 && resp.ContentLength > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d байт при лимите %d", ErrFileTooLarge, resp.ContentLength, s.maxFileSize)
	}

	contentType := declaredContentType(resp.Header.Get("Content-Type"))
	category := classify.Classify(contentType, originalName)
	bucket := category.Bucket()
	storedName := classify.StoredName(ownerID, s.now().UnixMilli(), originalName)

	saved, err := s.files.SaveFile(resp.Body, bucket, storedName)
	if err != nil {
		// Запись не удалась — коммита в каталог не происходит
		middleware.IngestsTotal.WithLabelValues("write_error").Inc()
		s.logger.Error("Ошибка записи файла на диск",
			slog.String("remote_file_id", remoteFileID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("запись файла: %w", err)
	}

	record := model.FileRecord{
		RemoteFileID: remoteFileID,
		OriginalName: originalName,
		StoredName:   saved.StoredName,
		StoredPath:   saved.FullPath,
		Category:     category,
		ContentType:  contentType,
		OwnerID:      ownerID,
		UploadedAt:   s.now().UTC(),
		SizeBytes:    saved.Size,
	}

	added, err := s.cat.AddFileRecord(record)
	if err != nil {
		// Байты уже на диске; orphan остаётся — известный компромисс
		middleware.IngestsTotal.WithLabelValues("catalog_error").Inc()
		s.logger.Error("Коммит в каталог не удался, файл остаётся orphan",
			slog.String("remote_file_id", remoteFileID),
			slog.String("stored_path", saved.FullPath),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrCatalogWrite, err)
	}

	if !added {
		// Повторная доставка того же remote_file_id: запись отклонена,
		// свежескачанную физическую копию убираем
		_ = s.files.DeleteFile(bucket, saved.StoredName)
		middleware.IngestsTotal.WithLabelValues("duplicate").Inc()
		s.logger.Info("Повторная доставка файла, запись-дубликат отклонена",
			slog.String("remote_file_id", remoteFileID),
			slog.Int64("owner_id", ownerID),
		)
		return &IngestResult{Record: record, Duplicate: true}, nil
	}

	middleware.IngestsTotal.WithLabelValues("success").Inc()
	s.logger.Info("Файл принят",
		slog.String("remote_file_id", remoteFileID),
		slog.String("filename", originalName),
		slog.String("category", string(category)),
		slog.String("stored_name", saved.StoredName),
		slog.Int64("size", saved.Size),
		slog.Int64("owner_id", ownerID),
	)

	return &IngestResult{Record: record}, nil
}

// transportErr различает таймаут и прочие ошибки транспорта.
func transportErr(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTransportTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransportTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}

// declaredContentType нормализует заявленный Content-Type:
// пустой → application/octet-stream, параметры (charset и т.д.)
// отбрасываются.
func declaredContentType(contentType string) string {
	if contentType == "" {
		return "application/octet-stream"
	}
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	return contentType
}
