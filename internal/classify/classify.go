// Пакет classify — детерминированная классификация входящих файлов
// и генерация безопасных имён для хранения. Чистые функции без I/O.
package classify

import (
	"fmt"
	"strings"

	"github.com/arturkryukov/filekeeper/internal/domain/model"
)

// extUnknown — sentinel-расширение для имён без точки.
// Не участвует ни в одном совпадении документных расширений.
const extUnknown = ".unknown"

// documentExts — расширения, классифицируемые как документ
// независимо от заявленного MIME-типа.
var documentExts = map[string]bool{
	".doc":  true,
	".docx": true,
	".txt":  true,
	".pdf":  true,
	".xls":  true,
	".xlsx": true,
	".ppt":  true,
	".pptx": true,
}

// Classify возвращает семантическую категорию файла по заявленному
// MIME-типу и имени. Тотальная функция: неизвестные входы дают other.
//
// Порядок правил (первое совпадение выигрывает):
//  1. image/*  → photo
//  2. video/*  → video
//  3. audio/*  → audio
//  4. MIME содержит "pdf" или "document", либо расширение из
//     списка офисных → document
//  5. иначе → other
func Classify(contentType, filename string) model.Category {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return model.CategoryPhoto
	case strings.HasPrefix(contentType, "video/"):
		return model.CategoryVideo
	case strings.HasPrefix(contentType, "audio/"):
		return model.CategoryAudio
	case strings.Contains(contentType, "pdf"),
		strings.Contains(contentType, "document"),
		documentExts[Ext(filename)]:
		return model.CategoryDocument
	default:
		return model.CategoryOther
	}
}

// Ext возвращает расширение имени файла: подстрока после последней
// точки, в нижнем регистре, включая точку. Для имён без точки —
// sentinel ".unknown".
func Ext(filename string) string {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 {
		return extUnknown
	}
	return strings.ToLower(filename[idx:])
}

// StoredName собирает имя файла для хранения на диске:
// {owner_id}_{timestamp_ms}_{sanitized_name}.
// Каждый символ исходного имени вне [A-Za-z0-9.-] заменяется на '_'.
func StoredName(ownerID int64, timestampMS int64, originalName string) string {
	return fmt.Sprintf("%d_%d_%s", ownerID, timestampMS, sanitize(originalName))
}

// sanitize заменяет небезопасные символы имени на '_'.
// Точка и дефис сохраняются.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
