// status.go — состояние связи с транспортом и status-запрос.
//
// Счётчики связи (флаг подключения, попытки переподключения) —
// явное состояние, которым владеет supervisor транспорта и которое
// передаётся по ссылке status-сервису. Не глобальные переменные.
package service

import (
	"sync"
	"time"

	"github.com/arturkryukov/filekeeper/internal/catalog"
)

// Connectivity — потокобезопасное состояние связи с транспортом.
type Connectivity struct {
	mu        sync.Mutex
	connected bool
	attempts  int
}

// NewConnectivity создаёт состояние связи (отключено, 0 попыток).
func NewConnectivity() *Connectivity {
	return &Connectivity{}
}

// SetConnected отмечает успешное подключение и сбрасывает счётчик попыток.
func (c *Connectivity) SetConnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	c.attempts = 0
}

// SetDisconnected отмечает потерю связи.
func (c *Connectivity) SetDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

// IncReconnectAttempts увеличивает счётчик попыток переподключения
// и возвращает новое значение.
func (c *Connectivity) IncReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	return c.attempts
}

// IsConnected возвращает текущий флаг подключения.
// Используется readiness probe.
func (c *Connectivity) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Snapshot возвращает текущий флаг подключения и счётчик попыток.
func (c *Connectivity) Snapshot() (connected bool, attempts int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected, c.attempts
}

// Status — сводка состояния бота для /status.
type Status struct {
	// Connected — есть ли связь с Telegram API
	Connected bool `json:"connected"`
	// ReconnectAttempts — счётчик попыток переподключения
	ReconnectAttempts int `json:"reconnect_attempts"`
	// RegisteredUsers — количество зарегистрированных пользователей
	RegisteredUsers int `json:"registered_users"`
	// StoredFiles — количество записей о файлах
	StoredFiles int `json:"stored_files"`
	// Timestamp — момент формирования сводки (UTC)
	Timestamp time.Time `json:"timestamp"`
}

// StatusService — read-only сводка состояния: счётчики связи
// плюс свежая загрузка каталога.
type StatusService struct {
	conn *Connectivity
	cat  *catalog.Store

	// now — источник времени, подменяется в тестах
	now func() time.Time
}

// NewStatusService создаёт status-сервис.
func NewStatusService(conn *Connectivity, cat *catalog.Store) *StatusService {
	return &StatusService{
		conn: conn,
		cat:  cat,
		now:  time.Now,
	}
}

// Current собирает сводку. Счётчики каталога берутся из свежей
// загрузки снимка, не из кэша.
func (s *StatusService) Current() (*Status, error) {
	stats, err := s.cat.Stats()
	if err != nil {
		return nil, err
	}

	connected, attempts := s.conn.Snapshot()
	return &Status{
		Connected:         connected,
		ReconnectAttempts: attempts,
		RegisteredUsers:   stats.Users,
		StoredFiles:       stats.Files,
		Timestamp:         s.now().UTC(),
	}, nil
}
