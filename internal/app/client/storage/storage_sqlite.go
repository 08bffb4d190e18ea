package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/exp/slog"

	"worksync/internal/infrastructure/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath путь для базы в памяти (тесты)
const MemoryPath = ":memory:"

// SQLiteStorage локальное хранилище клиента: таблицы сущностей и очередь мутаций
type SQLiteStorage struct {
	db  *sql.DB
	log *slog.Logger
	now func() time.Time
}

func NewSQLiteStorage(path string, log *slog.Logger) (*SQLiteStorage, error) {
	dsn := path + "?_foreign_keys=on&_busy_timeout=5000"
	if path != MemoryPath {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы данных: %w", err)
	}
	// Одно соединение: база в памяти живет только в нем, а запись в SQLite все равно последовательная
	db.SetMaxOpenConns(1)

	storage := &SQLiteStorage{
		db:  db,
		log: log.With("component", "sqlite_storage"),
		now: func() time.Time { return time.Now().UTC() },
	}

	// Создаем таблицы
	if err := storage.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка инициализации таблиц: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) initTables() error {
	mg := migration.NewMigration(migration.SQLiteEngine(s.db, migrationsFS, "migrations"))
	return mg.Up()
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// inPlaceholders строит "?, ?, ?" для n аргументов
func inPlaceholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
