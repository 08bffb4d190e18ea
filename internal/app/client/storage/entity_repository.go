package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"worksync/internal/domain/entity"
)

const (
	entityColumns = `local_key, temp_id, remote_id, parent_kind, parent_temp_id, parent_remote_id,
		fields, sync_status, last_sync_attempt, sync_error, deleted, created_at, updated_at`
	uploadColumns = `, file_name, mime_type, size, payload, upload_progress, upload_status, file_url`
)

type scanner interface {
	Scan(dest ...any) error
}

func columnsFor(t entity.Type) string {
	if t == entity.TypeAttachment {
		return entityColumns + uploadColumns
	}
	return entityColumns
}

func tableFor(t entity.Type) (string, error) {
	table := t.Table()
	if table == "" {
		return "", fmt.Errorf("%w: %q", entity.ErrUnknownType, t)
	}
	return table, nil
}

// Put вставляет или обновляет запись сущности
func (s *SQLiteStorage) Put(ctx context.Context, e *entity.Entity) error {
	table, err := tableFor(e.Type)
	if err != nil {
		return err
	}
	if err := entity.ValidateParent(e.Type, e.Parent); err != nil {
		return err
	}

	fieldsJSON, err := json.Marshal(e.Fields)
	if err != nil {
		return fmt.Errorf("ошибка сериализации полей: %w", err)
	}
	if e.Fields == nil {
		fieldsJSON = []byte("{}")
	}

	now := s.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.SyncStatus == "" {
		e.SyncStatus = entity.SyncPending
	}

	var parentKind, parentTemp sql.NullString
	var parentRemote sql.NullInt64
	if e.Parent != nil {
		parentKind = nullString(string(e.Parent.Kind))
		parentTemp = nullString(e.Parent.Ref.TempID)
		parentRemote = nullInt64(e.Parent.Ref.RemoteID)
	}

	args := []any{
		nullString(e.TempID), nullInt64(e.RemoteID), parentKind, parentTemp, parentRemote,
		string(fieldsJSON), e.SyncStatus, nullTime(e.LastSyncAttempt), e.SyncError, e.Deleted,
		e.CreatedAt.UTC(), e.UpdatedAt,
	}
	if e.Type == entity.TypeAttachment {
		up := e.Upload
		if up == nil {
			up = &entity.Upload{Status: entity.UploadPending}
			e.Upload = up
		}
		if up.Status == "" {
			up.Status = entity.UploadPending
		}
		args = append(args, up.FileName, up.MimeType, up.Size, up.Payload, up.Progress, up.Status, up.FileURL)
	}

	if e.LocalKey == 0 {
		return s.insertEntity(ctx, table, e, args)
	}
	return s.updateEntity(ctx, table, e, args)
}

func (s *SQLiteStorage) insertEntity(ctx context.Context, table string, e *entity.Entity, args []any) error {
	cols := `temp_id, remote_id, parent_kind, parent_temp_id, parent_remote_id,
		fields, sync_status, last_sync_attempt, sync_error, deleted, created_at, updated_at`
	if e.Type == entity.TypeAttachment {
		cols += uploadColumns
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, table, cols, inPlaceholders(len(args)))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка сохранения записи %s: %w", e.Type, err)
	}

	key, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("ошибка получения local_key: %w", err)
	}
	e.LocalKey = key

	return nil
}

func (s *SQLiteStorage) updateEntity(ctx context.Context, table string, e *entity.Entity, args []any) error {
	set := `temp_id = ?, remote_id = ?, parent_kind = ?, parent_temp_id = ?, parent_remote_id = ?,
		fields = ?, sync_status = ?, last_sync_attempt = ?, sync_error = ?, deleted = ?, created_at = ?, updated_at = ?`
	if e.Type == entity.TypeAttachment {
		set += `, file_name = ?, mime_type = ?, size = ?, payload = ?, upload_progress = ?, upload_status = ?, file_url = ?`
	}

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE local_key = ?`, table, set)
	res, err := s.db.ExecContext(ctx, query, append(args, e.LocalKey)...)
	if err != nil {
		return fmt.Errorf("ошибка обновления записи %s/%d: %w", e.Type, e.LocalKey, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка обновления записи %s/%d: %w", e.Type, e.LocalKey, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%d", entity.ErrNotFound, e.Type, e.LocalKey)
	}

	return nil
}

func (s *SQLiteStorage) Get(ctx context.Context, t entity.Type, localKey int64) (*entity.Entity, error) {
	return s.getBy(ctx, t, "local_key", localKey)
}

func (s *SQLiteStorage) FindByTempID(ctx context.Context, t entity.Type, tempID string) (*entity.Entity, error) {
	return s.getBy(ctx, t, "temp_id", tempID)
}

func (s *SQLiteStorage) FindByRemoteID(ctx context.Context, t entity.Type, remoteID int64) (*entity.Entity, error) {
	return s.getBy(ctx, t, "remote_id", remoteID)
}

func (s *SQLiteStorage) getBy(ctx context.Context, t entity.Type, column string, value any) (*entity.Entity, error) {
	table, err := tableFor(t)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? ORDER BY local_key LIMIT 1`, columnsFor(t), table, column)
	e, err := scanEntity(s.db.QueryRowContext(ctx, query, value), t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s=%v", entity.ErrNotFound, t, column, value)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записи %s: %w", t, err)
	}

	return e, nil
}

func (s *SQLiteStorage) List(ctx context.Context, filter entity.Filter) ([]*entity.Entity, error) {
	types := entity.Types
	if filter.Type != "" {
		types = []entity.Type{filter.Type}
	}

	var result []*entity.Entity
	for _, t := range types {
		items, err := s.listType(ctx, t, filter)
		if err != nil {
			return nil, err
		}
		result = append(result, items...)
	}

	return result, nil
}

func (s *SQLiteStorage) listType(ctx context.Context, t entity.Type, filter entity.Filter) ([]*entity.Entity, error) {
	table, err := tableFor(t)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1", columnsFor(t), table)
	args := []any{}

	if !filter.ShowDeleted {
		query += " AND deleted = 0"
	}

	if filter.SyncStatus != "" {
		query += " AND sync_status = ?"
		args = append(args, filter.SyncStatus)
	}

	if filter.Parent != nil {
		query += " AND parent_kind = ?"
		args = append(args, filter.Parent.Kind)
		if filter.Parent.Ref.Resolved() {
			query += " AND parent_remote_id = ?"
			args = append(args, filter.Parent.Ref.RemoteID)
		} else {
			query += " AND parent_temp_id = ?"
			args = append(args, filter.Parent.Ref.TempID)
		}
	}

	query += " ORDER BY local_key ASC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer rows.Close()

	var result []*entity.Entity
	for rows.Next() {
		e, err := scanEntity(rows, t)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения записей: %w", err)
	}

	return result, nil
}

// ReassignParent одним UPDATE переводит детей с временного идентификатора родителя на постоянный
func (s *SQLiteStorage) ReassignParent(ctx context.Context, t entity.Type, kind entity.ParentKind, tempID string, remoteID int64) (int64, error) {
	table, err := tableFor(t)
	if err != nil {
		return 0, err
	}
	if tempID == "" || remoteID == 0 {
		return 0, fmt.Errorf("%w: reassign %s from %q to %d", entity.ErrInvalidRef, t, tempID, remoteID)
	}

	query := fmt.Sprintf(`UPDATE %s
		SET parent_remote_id = ?, parent_temp_id = NULL, updated_at = ?
		WHERE parent_kind = ? AND parent_temp_id = ?`, table)

	res, err := s.db.ExecContext(ctx, query, remoteID, s.now(), kind, tempID)
	if err != nil {
		return 0, fmt.Errorf("ошибка переназначения родителя %s: %w", t, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ошибка переназначения родителя %s: %w", t, err)
	}

	if n > 0 {
		s.log.Debug("Родитель переназначен",
			"type", t,
			"parent_kind", kind,
			"temp_id", tempID,
			"remote_id", remoteID,
			"count", n,
		)
	}

	return n, nil
}

func (s *SQLiteStorage) SaveFields(ctx context.Context, t entity.Type, localKey int64, fields entity.Fields) error {
	if fields == nil {
		fields = entity.Fields{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("ошибка сериализации полей: %w", err)
	}

	return s.updateColumns(ctx, t, localKey, `fields = ?, sync_status = ?, updated_at = ?`,
		string(fieldsJSON), entity.SyncPending, s.now())
}

func (s *SQLiteStorage) MarkDeleted(ctx context.Context, t entity.Type, localKey int64) error {
	return s.updateColumns(ctx, t, localKey, `deleted = 1, sync_status = ?, updated_at = ?`,
		entity.SyncPending, s.now())
}

// SetSyncState не меняет updated_at: это служебное состояние, а не правка пользователя
func (s *SQLiteStorage) SetSyncState(ctx context.Context, t entity.Type, localKey int64, status entity.SyncStatus, syncErr string, at *time.Time) error {
	return s.updateColumns(ctx, t, localKey, `sync_status = ?, sync_error = ?, last_sync_attempt = ?`,
		status, syncErr, nullTime(at))
}

// MarkSynced переводит в synced только запись в статусе syncing: правка, сделанная во время
// сетевого вызова, оставляет pending до обработки ее собственного элемента очереди
func (s *SQLiteStorage) MarkSynced(ctx context.Context, t entity.Type, localKey, remoteID int64, parent *entity.ParentRef) error {
	if remoteID == 0 {
		return fmt.Errorf("%w: %s/%d без remote_id", entity.ErrInvalidRef, t, localKey)
	}

	set := `remote_id = ?, sync_error = '',
		sync_status = CASE WHEN sync_status = ? THEN ? ELSE sync_status END`
	args := []any{remoteID, entity.SyncSyncing, entity.SyncSynced}

	if parent != nil {
		if err := entity.ValidateParent(t, parent); err != nil {
			return err
		}
		set += `, parent_kind = ?, parent_temp_id = ?, parent_remote_id = ?`
		args = append(args, string(parent.Kind), nullString(parent.Ref.TempID), nullInt64(parent.Ref.RemoteID))
	}
	if t == entity.TypeAttachment {
		set += `, payload = NULL`
	}

	return s.updateColumns(ctx, t, localKey, set, args...)
}

func (s *SQLiteStorage) UpdateUpload(ctx context.Context, localKey int64, progress int, status entity.UploadStatus) error {
	return s.updateColumns(ctx, entity.TypeAttachment, localKey, `upload_progress = ?, upload_status = ?`,
		progress, status)
}

func (s *SQLiteStorage) CompleteUpload(ctx context.Context, localKey int64, fileURL string) error {
	return s.updateColumns(ctx, entity.TypeAttachment, localKey, `upload_progress = 100, upload_status = ?, file_url = ?`,
		entity.UploadUploaded, fileURL)
}

// updateColumns точечное обновление столбцов одной записи
func (s *SQLiteStorage) updateColumns(ctx context.Context, t entity.Type, localKey int64, set string, args ...any) error {
	table, err := tableFor(t)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE local_key = ?`, table, set)
	res, err := s.db.ExecContext(ctx, query, append(args, localKey)...)
	if err != nil {
		return fmt.Errorf("ошибка обновления записи %s/%d: %w", t, localKey, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка обновления записи %s/%d: %w", t, localKey, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%d", entity.ErrNotFound, t, localKey)
	}

	return nil
}

func scanEntity(row scanner, t entity.Type) (*entity.Entity, error) {
	e := &entity.Entity{Type: t}
	var (
		tempID, parentKind, parentTemp sql.NullString
		remoteID, parentRemote         sql.NullInt64
		fieldsJSON                     string
		lastAttempt                    sql.NullTime
		createdAt, updatedAt           time.Time
	)

	dest := []any{
		&e.LocalKey, &tempID, &remoteID, &parentKind, &parentTemp, &parentRemote,
		&fieldsJSON, &e.SyncStatus, &lastAttempt, &e.SyncError, &e.Deleted, &createdAt, &updatedAt,
	}

	var up entity.Upload
	if t == entity.TypeAttachment {
		dest = append(dest, &up.FileName, &up.MimeType, &up.Size, &up.Payload, &up.Progress, &up.Status, &up.FileURL)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	e.TempID = tempID.String
	e.RemoteID = remoteID.Int64
	e.CreatedAt = createdAt
	e.UpdatedAt = updatedAt
	if lastAttempt.Valid {
		at := lastAttempt.Time
		e.LastSyncAttempt = &at
	}

	if parentKind.Valid {
		e.Parent = &entity.ParentRef{
			Kind: entity.ParentKind(parentKind.String),
			Ref:  entity.Ref{TempID: parentTemp.String, RemoteID: parentRemote.Int64},
		}
	}

	// Парсим поля
	e.Fields = entity.Fields{}
	if err := json.Unmarshal([]byte(fieldsJSON), &e.Fields); err != nil {
		return nil, fmt.Errorf("ошибка парсинга полей: %w", err)
	}

	if t == entity.TypeAttachment {
		e.Upload = &up
	}

	return e, nil
}
