package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"worksync/internal/domain/queue"
)

const queueColumns = `id, operation, entity_type, entity_id, payload, created_at,
	attempts, max_attempts, next_retry, status, error, updated_at`

// Enqueue добавляет мутацию в конец очереди
func (s *SQLiteStorage) Enqueue(ctx context.Context, item *queue.Item) error {
	now := s.now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.MaxAttempts <= 0 {
		item.MaxAttempts = queue.DefaultMaxAttempts
	}
	payload := string(item.Payload)
	if payload == "" {
		payload = "{}"
	}

	item.Status = queue.StatusPending
	item.Attempts = 0
	item.NextRetry = nil
	item.Error = ""
	item.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO mutation_queue (operation, entity_type, entity_id, payload, created_at,
		                            attempts, max_attempts, next_retry, status, error, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, NULL, ?, '', ?)`,
		item.Operation, item.EntityType, item.EntityID, payload, item.CreatedAt.UTC(),
		item.MaxAttempts, item.Status, now)
	if err != nil {
		return fmt.Errorf("ошибка постановки в очередь: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("ошибка получения id элемента очереди: %w", err)
	}
	item.ID = id

	return nil
}

// SelectReady элементы pending/failed с неисчерпанными попытками и наступившим next_retry, по порядку постановки
func (s *SQLiteStorage) SelectReady(ctx context.Context, now time.Time) ([]*queue.Item, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM mutation_queue
		WHERE status IN (?, ?)
		  AND attempts < max_attempts
		  AND (next_retry IS NULL OR next_retry <= ?)
		ORDER BY id ASC`, queueColumns)

	return s.queryItems(ctx, query, queue.StatusPending, queue.StatusFailed, now.UnixMilli())
}

func (s *SQLiteStorage) MarkProcessing(ctx context.Context, id int64) error {
	return s.execItem(ctx, id, `UPDATE mutation_queue SET status = ?, updated_at = ? WHERE id = ?`,
		queue.StatusProcessing, s.now(), id)
}

func (s *SQLiteStorage) MarkCompleted(ctx context.Context, id int64) error {
	return s.execItem(ctx, id, `
		UPDATE mutation_queue SET status = ?, next_retry = NULL, error = '', updated_at = ?
		WHERE id = ?`,
		queue.StatusCompleted, s.now(), id)
}

// MarkFailed окончательная ошибка: next_retry сбрасывается, ошибка сохраняется
func (s *SQLiteStorage) MarkFailed(ctx context.Context, id int64, attempts int, errMsg string) error {
	return s.execItem(ctx, id, `
		UPDATE mutation_queue
		SET status = ?, attempts = MAX(attempts, ?), next_retry = NULL, error = ?, updated_at = ?
		WHERE id = ?`,
		queue.StatusFailed, attempts, errMsg, s.now(), id)
}

// Reschedule возвращает элемент в pending с новым временем повтора
func (s *SQLiteStorage) Reschedule(ctx context.Context, id int64, attempts int, nextRetry time.Time, errMsg string) error {
	return s.execItem(ctx, id, `
		UPDATE mutation_queue
		SET status = ?, attempts = MAX(attempts, ?), next_retry = ?, error = ?, updated_at = ?
		WHERE id = ?`,
		queue.StatusPending, attempts, nextRetry.UnixMilli(), errMsg, s.now(), id)
}

func (s *SQLiteStorage) GetItem(ctx context.Context, id int64) (*queue.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM mutation_queue WHERE id = ?`, queueColumns)
	item, err := scanItem(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", queue.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения элемента очереди: %w", err)
	}
	return item, nil
}

func (s *SQLiteStorage) ListItems(ctx context.Context, filter queue.Filter) ([]*queue.Item, error) {
	query := fmt.Sprintf("SELECT %s FROM mutation_queue WHERE 1=1", queueColumns)
	args := []any{}

	if len(filter.Statuses) > 0 {
		query += " AND status IN (" + inPlaceholders(len(filter.Statuses)) + ")"
		for _, st := range filter.Statuses {
			args = append(args, st)
		}
	}

	if filter.EntityType != "" {
		query += " AND entity_type = ?"
		args = append(args, filter.EntityType)
	}

	query += " ORDER BY id ASC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return s.queryItems(ctx, query, args...)
}

func (s *SQLiteStorage) Counts(ctx context.Context) (queue.Counts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM mutation_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчета элементов очереди: %w", err)
	}
	defer rows.Close()

	counts := queue.Counts{}
	for rows.Next() {
		var status queue.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("ошибка подсчета элементов очереди: %w", err)
		}
		counts[status] = n
	}

	return counts, rows.Err()
}

// Clear удаляет только окончательно упавшие элементы; локальные данные сущности не трогаются
func (s *SQLiteStorage) Clear(ctx context.Context, id int64) error {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if item.Status != queue.StatusFailed || !item.Exhausted() {
		return fmt.Errorf("%w: %d is %s", queue.ErrNotFailed, id, item.Status)
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM mutation_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления элемента очереди: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) RecoverProcessing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE mutation_queue SET status = ?, updated_at = ? WHERE status = ?`,
		queue.StatusPending, s.now(), queue.StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("ошибка восстановления очереди: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStorage) execItem(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка обновления элемента очереди %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка обновления элемента очереди %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", queue.ErrNotFound, id)
	}

	return nil
}

func (s *SQLiteStorage) queryItems(ctx context.Context, query string, args ...any) ([]*queue.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки очереди: %w", err)
	}
	defer rows.Close()

	var items []*queue.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования элемента очереди: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения очереди: %w", err)
	}

	return items, nil
}

func scanItem(row scanner) (*queue.Item, error) {
	var (
		item      queue.Item
		payload   string
		nextRetry sql.NullInt64
	)

	err := row.Scan(&item.ID, &item.Operation, &item.EntityType, &item.EntityID, &payload, &item.CreatedAt,
		&item.Attempts, &item.MaxAttempts, &nextRetry, &item.Status, &item.Error, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}

	item.Payload = []byte(payload)
	if nextRetry.Valid {
		at := time.UnixMilli(nextRetry.Int64).UTC()
		item.NextRetry = &at
	}

	return &item, nil
}
