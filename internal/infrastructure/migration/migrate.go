package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrator подмножество *migrate.Migrate, нужное для наката
type Migrator interface {
	Up() error
	Close() (error, error)
}

// MigrationEngine открывает источник и базу миграций
type MigrationEngine func() (Migrator, error)

type Migration struct {
	engine MigrationEngine
}

func NewMigration(engine MigrationEngine) *Migration {
	return &Migration{
		engine: engine,
	}
}

// PostgresEngine миграции сервера из каталога на диске
func PostgresEngine(migrationsPath, databaseURL string) MigrationEngine {
	return func() (Migrator, error) {
		return migrate.New("file://"+migrationsPath, databaseURL)
	}
}

// SQLiteEngine миграции локальной базы клиента из встроенной ФС
func SQLiteEngine(db *sql.DB, fsys fs.FS, dir string) MigrationEngine {
	return func() (Migrator, error) {
		src, err := iofs.New(fsys, dir)
		if err != nil {
			return nil, fmt.Errorf("migration source: %w", err)
		}

		driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("migration driver: %w", err)
		}

		m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
		if err != nil {
			src.Close()
			return nil, err
		}

		return &sqliteMigrator{m: m, src: src}, nil
	}
}

// sqliteMigrator не закрывает *sql.DB: соединение принадлежит хранилищу
type sqliteMigrator struct {
	m   *migrate.Migrate
	src source.Driver
}

func (s *sqliteMigrator) Up() error {
	return s.m.Up()
}

func (s *sqliteMigrator) Close() (error, error) {
	return s.src.Close(), nil
}

// Up применяет все новые миграции. Отсутствие изменений не считается ошибкой
func (mg *Migration) Up() (err error) {
	m, err := mg.engine()
	if err != nil {
		return err
	}
	defer func() {
		serr, dberr := m.Close()
		if serr != nil {
			serr = fmt.Errorf("close migration source: %w", serr)
		}
		if dberr != nil {
			dberr = fmt.Errorf("close migration database: %w", dberr)
		}
		err = errors.Join(err, serr, dberr)
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
