package bot

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/arturkryukov/filekeeper/internal/domain/model"
	"github.com/arturkryukov/filekeeper/internal/service"
)

func TestFilesListText_Empty(t *testing.T) {
	text := filesListText(nil)
	if !strings.Contains(text, "нет сохранённых файлов") {
		t.Errorf("ожидалось сообщение о пустом списке, получено: %q", text)
	}
}

func TestFilesListText_FirstTenWithOverflow(t *testing.T) {
	files := make([]model.FileRecord, 13)
	for i := range files {
		files[i] = model.FileRecord{
			OriginalName: fmt.Sprintf("file-%02d.txt", i),
			Category:     model.CategoryDocument,
			SizeBytes:    1024,
			UploadedAt:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		}
	}

	text := filesListText(files)

	if !strings.Contains(text, "(13)") {
		t.Errorf("заголовок должен содержать общее количество: %q", text)
	}
	if !strings.Contains(text, "file-09.txt") {
		t.Error("десятый файл должен присутствовать в списке")
	}
	if strings.Contains(text, "file-10.txt") {
		t.Error("одиннадцатый файл не должен присутствовать в списке")
	}
	if !strings.Contains(text, "ещё 3 файлов") {
		t.Errorf("ожидалась сводка об оставшихся файлах: %q", text)
	}
}

func TestFilesListText_NoOverflowAtLimit(t *testing.T) {
	files := make([]model.FileRecord, filesListLimit)
	for i := range files {
		files[i] = model.FileRecord{
			OriginalName: fmt.Sprintf("f%d", i),
			Category:     model.CategoryOther,
			UploadedAt:   time.Now(),
		}
	}

	if text := filesListText(files); strings.Contains(text, "... и ещё") {
		t.Error("при ровно 10 файлах сводки об остатке быть не должно")
	}
}

func TestUserInfoText(t *testing.T) {
	u := &model.UserRecord{
		ID:           42,
		DisplayName:  "Иван Петров",
		Username:     "ivan",
		RegisteredAt: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
	}

	text := userInfoText(u, 7)

	for _, want := range []string{"42", "Иван Петров", "@ivan", "15.03.2024", "7"} {
		if !strings.Contains(text, want) {
			t.Errorf("карточка должна содержать %q: %q", want, text)
		}
	}
}

func TestUserInfoText_NoUsername(t *testing.T) {
	u := &model.UserRecord{ID: 1, DisplayName: "Тест", RegisteredAt: time.Now()}

	if text := userInfoText(u, 0); !strings.Contains(text, "@не задан") {
		t.Errorf("ожидался placeholder для отсутствующего username: %q", text)
	}
}

func TestStatusText(t *testing.T) {
	st := &service.Status{
		Connected:         true,
		ReconnectAttempts: 2,
		RegisteredUsers:   5,
		StoredFiles:       17,
		Timestamp:         time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}

	text := statusText(st)
	for _, want := range []string{"Да", "2", "5", "17"} {
		if !strings.Contains(text, want) {
			t.Errorf("сводка должна содержать %q: %q", want, text)
		}
	}
}

func TestWelcomeText_FallbackName(t *testing.T) {
	if text := welcomeText(""); !strings.Contains(text, "пользователь") {
		t.Errorf("ожидалось обращение по умолчанию: %q", text)
	}
}
