package entity

import (
	"context"
	"time"
)

// Repository локальное хранилище сущностей. Сетевого доступа не имеет.
// Запись целиком (Put) выполняет только приложение при создании; остальные изменения
// затрагивают свои столбцы, чтобы движок и CLI не затирали данные друг друга
type Repository interface {
	// Put вставляет или обновляет запись; при первой вставке назначает LocalKey
	Put(ctx context.Context, e *Entity) error
	Get(ctx context.Context, t Type, localKey int64) (*Entity, error)
	FindByTempID(ctx context.Context, t Type, tempID string) (*Entity, error)
	FindByRemoteID(ctx context.Context, t Type, remoteID int64) (*Entity, error)
	List(ctx context.Context, filter Filter) ([]*Entity, error)

	// SaveFields заменяет поля и возвращает запись в pending
	SaveFields(ctx context.Context, t Type, localKey int64, fields Fields) error
	// MarkDeleted помечает запись удаленной и возвращает ее в pending
	MarkDeleted(ctx context.Context, t Type, localKey int64) error

	// SetSyncState меняет только sync_status, sync_error и last_sync_attempt
	SetSyncState(ctx context.Context, t Type, localKey int64, status SyncStatus, syncErr string, at *time.Time) error
	// MarkSynced записывает remote_id и ссылку на родителя. Статус становится synced,
	// только если запись не менялась локально с начала синхронизации
	MarkSynced(ctx context.Context, t Type, localKey, remoteID int64, parent *ParentRef) error

	// ReassignParent переводит всех детей типа t, ссылающихся на tempID родителя вида kind, на remoteID
	ReassignParent(ctx context.Context, t Type, kind ParentKind, tempID string, remoteID int64) (int64, error)

	// UpdateUpload записывает прогресс и статус загрузки вложения
	UpdateUpload(ctx context.Context, localKey int64, progress int, status UploadStatus) error
	// CompleteUpload отмечает завершенную передачу: прогресс 100, статус uploaded, публичный адрес
	CompleteUpload(ctx context.Context, localKey int64, fileURL string) error
}
