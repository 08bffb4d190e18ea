package queue

import (
	"encoding/json"
	"time"

	"worksync/internal/domain/entity"
)

// DefaultMaxAttempts предел попыток для элемента очереди
const DefaultMaxAttempts = 5

// Operation вид мутации
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpUpload Operation = "upload"
)

// Status статус элемента очереди
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Item одна мутация одной сущности. Элементы никогда не объединяются
type Item struct {
	ID          int64           `json:"id"`
	Operation   Operation       `json:"operation"`
	EntityType  entity.Type     `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	NextRetry   *time.Time      `json:"next_retry,omitempty"`
	Status      Status          `json:"status"`
	Error       string          `json:"error,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Exhausted попытки исчерпаны, элемент больше не повторяется автоматически
func (i *Item) Exhausted() bool {
	return i.Attempts >= i.MaxAttempts
}

// Ready элемент может быть выбран для обработки в момент now
func (i *Item) Ready(now time.Time) bool {
	if i.Status != StatusPending && i.Status != StatusFailed {
		return false
	}
	if i.Exhausted() {
		return false
	}
	return i.NextRetry == nil || !i.NextRetry.After(now)
}

// NewItem создает элемент очереди для мутации сущности
func NewItem(op Operation, e *entity.Entity) (*Item, error) {
	payload, err := e.Snapshot()
	if err != nil {
		return nil, err
	}
	return &Item{
		Operation:   op,
		EntityType:  e.Type,
		EntityID:    e.ID(),
		Payload:     payload,
		MaxAttempts: DefaultMaxAttempts,
		Status:      StatusPending,
	}, nil
}

// Filter фильтр для просмотра очереди
type Filter struct {
	Statuses   []Status
	EntityType entity.Type
	Limit      int
}

// Counts количество элементов по статусам
type Counts map[Status]int
