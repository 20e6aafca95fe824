// register.go — регистрационный гейт: проверка и создание записей
// пользователей. Все операции приёма и выдачи файлов проходят через
// него — это гарантирует инвариант owner_id каталога.
package service

import (
	"log/slog"
	"strings"
	"time"

	"github.com/arturkryukov/filekeeper/internal/catalog"
	"github.com/arturkryukov/filekeeper/internal/domain/model"
)

// placeholderName — явный placeholder для отсутствующего имени профиля.
// В каталог никогда не попадают молчаливо-пустые обязательные поля.
const placeholderName = "unspecified"

// Profile — профиль пользователя, как его сообщает транспорт.
// Любое поле, кроме ID, может отсутствовать.
type Profile struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// DisplayName собирает отображаемое имя из имени и фамилии.
// Пустой профиль даёт явный placeholder.
func (p Profile) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	if name == "" {
		return placeholderName
	}
	return name
}

// RegistrationGate — проверка и создание записей пользователей.
type RegistrationGate struct {
	cat    *catalog.Store
	logger *slog.Logger

	// now — источник времени, подменяется в тестах
	now func() time.Time
}

// NewRegistrationGate создаёт регистрационный гейт.
func NewRegistrationGate(cat *catalog.Store, logger *slog.Logger) *RegistrationGate {
	return &RegistrationGate{
		cat:    cat,
		logger: logger.With(slog.String("component", "registration")),
		now:    time.Now,
	}
}

// EnsureRegistered регистрирует пользователя, если он ещё не известен.
// Возвращает alreadyRegistered=true без мутации, если запись существует.
// Повторная регистрация — не ошибка; ошибка возвращается только при
// реальном сбое записи в хранилище.
func (g *RegistrationGate) EnsureRegistered(p Profile) (alreadyRegistered bool, err error) {
	rec := model.UserRecord{
		ID:           p.ID,
		DisplayName:  p.DisplayName(),
		Username:     strings.TrimSpace(p.Username),
		RegisteredAt: g.now().UTC(),
	}

	added, err := g.cat.RegisterUser(rec)
	if err != nil {
		return false, err
	}
	return !added, nil
}

// IsRegistered проверяет наличие записи пользователя.
func (g *RegistrationGate) IsRegistered(id int64) (bool, error) {
	return g.cat.IsUserRegistered(id)
}
