package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"worksync/internal/domain/remote"
)

const uploadColumns = `token, blob_key, file_name, mime_type, size, expires_at, used_at, created_at`

type UploadRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewUploadRepository(pool *pgxpool.Pool, log *slog.Logger) *UploadRepository {
	return &UploadRepository{
		pool: pool,
		log:  log.With("component", "upload_repository"),
	}
}

func (r *UploadRepository) CreateUpload(ctx context.Context, u *remote.Upload) error {
	const query = `
		INSERT INTO uploads (token, blob_key, file_name, mime_type, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.pool.Exec(ctx, query,
		u.Token, u.BlobKey, u.FileName, u.MimeType, u.ExpiresAt, u.CreatedAt,
	); err != nil {
		r.log.Error("failed to create upload", "file_name", u.FileName, "error", err)
		return fmt.Errorf("create upload: %w", err)
	}

	return nil
}

// ConsumeUpload атомарно расходует токен; при отказе уточняет причину
func (r *UploadRepository) ConsumeUpload(ctx context.Context, token string, now time.Time) (*remote.Upload, error) {
	const query = `
		UPDATE uploads SET used_at = $2
		WHERE token = $1 AND used_at IS NULL AND expires_at > $2
		RETURNING ` + uploadColumns

	u, err := scanUpload(r.pool.QueryRow(ctx, query, token, now))
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("consume upload: %w", err)
	}

	const check = `SELECT ` + uploadColumns + ` FROM uploads WHERE token = $1`
	u, err = scanUpload(r.pool.QueryRow(ctx, check, token))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, remote.ErrUploadNotFound
	case err != nil:
		return nil, fmt.Errorf("check upload: %w", err)
	case u.UsedAt != nil:
		return nil, remote.ErrUploadUsed
	default:
		return nil, remote.ErrUploadExpired
	}
}

func (r *UploadRepository) SetUploadSize(ctx context.Context, token string, size int64) error {
	if _, err := r.pool.Exec(ctx, `UPDATE uploads SET size = $2 WHERE token = $1`, token, size); err != nil {
		return fmt.Errorf("set upload size: %w", err)
	}
	return nil
}

func (r *UploadRepository) FindUploadByKey(ctx context.Context, blobKey string) (*remote.Upload, error) {
	const query = `SELECT ` + uploadColumns + ` FROM uploads WHERE blob_key = $1`

	u, err := scanUpload(r.pool.QueryRow(ctx, query, blobKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, remote.ErrUploadNotFound
		}
		return nil, fmt.Errorf("find upload: %w", err)
	}

	return u, nil
}

func scanUpload(row pgx.Row) (*remote.Upload, error) {
	var u remote.Upload
	err := row.Scan(
		&u.Token, &u.BlobKey, &u.FileName, &u.MimeType,
		&u.Size, &u.ExpiresAt, &u.UsedAt, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
