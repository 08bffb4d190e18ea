package gateway

import (
	"context"
	"time"

	"worksync/internal/domain/entity"
)

// Gateway удаленная система учета работ
type Gateway interface {
	// Create создает сущность и возвращает ее постоянный идентификатор
	Create(ctx context.Context, t entity.Type, payload entity.Fields) (int64, error)
	Update(ctx context.Context, t entity.Type, remoteID int64, patch entity.Fields) error
	Delete(ctx context.Context, t entity.Type, remoteID int64) error

	// RequestUpload выдает ограниченную по времени цель загрузки и будущий публичный адрес файла
	RequestUpload(ctx context.Context, fileName, mimeType string) (*UploadTicket, error)

	// Transfer передает содержимое напрямую на цель загрузки.
	// Канал получает неубывающий прогресс 0..100 и закрывается после события Done или Err
	Transfer(ctx context.Context, target, mimeType string, data []byte) <-chan TransferEvent

	Health(ctx context.Context) error
}

// UploadTicket разрешение на прямую загрузку
type UploadTicket struct {
	UploadURL string    `json:"upload_url"`
	PublicURL string    `json:"public_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TransferEvent событие потока передачи
type TransferEvent struct {
	Progress int
	Done     bool
	Err      error
}
