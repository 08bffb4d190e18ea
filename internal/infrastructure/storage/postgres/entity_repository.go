package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"worksync/internal/domain/entity"
	"worksync/internal/domain/remote"
)

type EntityRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewEntityRepository(pool *pgxpool.Pool, log *slog.Logger) *EntityRepository {
	return &EntityRepository{
		pool: pool,
		log:  log.With("component", "entity_repository"),
	}
}

func (r *EntityRepository) Create(ctx context.Context, e *remote.Entity) (int64, error) {
	const query = `
		INSERT INTO entities (type, parent_kind, parent_id, data)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, 0), $4::jsonb)
		RETURNING id, created_at, updated_at`

	data, err := marshalData(e.Data)
	if err != nil {
		return 0, err
	}

	err = r.pool.QueryRow(ctx, query,
		string(e.Type), string(e.ParentKind), e.ParentID, data,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		r.log.Error("failed to create entity", "type", e.Type, "error", err)
		return 0, fmt.Errorf("create entity: %w", err)
	}

	return e.ID, nil
}

func (r *EntityRepository) Get(ctx context.Context, t entity.Type, id int64) (*remote.Entity, error) {
	const query = `
		SELECT id, type, COALESCE(parent_kind, ''), COALESCE(parent_id, 0),
		       data, created_at, updated_at, deleted_at
		FROM entities
		WHERE type = $1 AND id = $2 AND deleted_at IS NULL`

	var (
		e         remote.Entity
		typ, kind string
	)
	err := r.pool.QueryRow(ctx, query, string(t), id).Scan(
		&e.ID, &typ, &kind, &e.ParentID,
		&e.Data, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, remote.ErrNotFound
		}
		r.log.Error("failed to get entity", "type", t, "id", id, "error", err)
		return nil, fmt.Errorf("get entity: %w", err)
	}
	e.Type = entity.Type(typ)
	e.ParentKind = entity.ParentKind(kind)

	return &e, nil
}

func (r *EntityRepository) Update(ctx context.Context, t entity.Type, id int64, patch entity.Fields) error {
	const query = `
		UPDATE entities
		SET data = data || $3::jsonb, updated_at = NOW()
		WHERE type = $1 AND id = $2 AND deleted_at IS NULL`

	data, err := marshalData(patch)
	if err != nil {
		return err
	}

	result, err := r.pool.Exec(ctx, query, string(t), id, data)
	if err != nil {
		r.log.Error("failed to update entity", "type", t, "id", id, "error", err)
		return fmt.Errorf("update entity: %w", err)
	}
	if result.RowsAffected() == 0 {
		return remote.ErrNotFound
	}

	return nil
}

func (r *EntityRepository) Delete(ctx context.Context, t entity.Type, id int64) error {
	const query = `
		UPDATE entities
		SET deleted_at = COALESCE(deleted_at, NOW()), updated_at = NOW()
		WHERE type = $1 AND id = $2`

	result, err := r.pool.Exec(ctx, query, string(t), id)
	if err != nil {
		r.log.Error("failed to delete entity", "type", t, "id", id, "error", err)
		return fmt.Errorf("delete entity: %w", err)
	}
	if result.RowsAffected() == 0 {
		return remote.ErrNotFound
	}

	return nil
}

func (r *EntityRepository) Exists(ctx context.Context, t entity.Type, id int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM entities WHERE type = $1 AND id = $2 AND deleted_at IS NULL)`

	var ok bool
	if err := r.pool.QueryRow(ctx, query, string(t), id).Scan(&ok); err != nil {
		return false, fmt.Errorf("check entity: %w", err)
	}

	return ok, nil
}

func marshalData(fields entity.Fields) (string, error) {
	if fields == nil {
		fields = entity.Fields{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal data: %w", err)
	}
	return string(data), nil
}
