package remote

import (
	"context"
	"io"
	"time"

	"worksync/internal/domain/entity"
)

type Repository interface {
	Create(ctx context.Context, e *Entity) (int64, error)
	Get(ctx context.Context, t entity.Type, id int64) (*Entity, error)
	// Update сливает patch с данными записи
	Update(ctx context.Context, t entity.Type, id int64, patch entity.Fields) error
	// Delete мягкое удаление; повторное удаление не ошибка
	Delete(ctx context.Context, t entity.Type, id int64) error
	Exists(ctx context.Context, t entity.Type, id int64) (bool, error)
}

type UploadRepository interface {
	CreateUpload(ctx context.Context, u *Upload) error
	// ConsumeUpload помечает токен использованным; ErrUploadUsed / ErrUploadExpired / ErrUploadNotFound
	ConsumeUpload(ctx context.Context, token string, now time.Time) (*Upload, error)
	SetUploadSize(ctx context.Context, token string, size int64) error
	FindUploadByKey(ctx context.Context, blobKey string) (*Upload, error)
}

// BlobStore хранилище содержимого файлов
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadSeekCloser, error)
	Delete(ctx context.Context, key string) error
}
