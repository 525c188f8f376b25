package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"

	"github.com/iamwavecut/tool"

	"github.com/iamwavecut/guardbot/internal/db"
	guarderrors "github.com/iamwavecut/guardbot/internal/errors"
	"github.com/iamwavecut/guardbot/internal/infra"
	"github.com/iamwavecut/guardbot/resources"

	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteClient struct {
	db    *sqlx.DB
	mutex sync.Mutex
}

func NewSQLiteClient(dbPath string) *sqliteClient {
	dbx, err := sqlx.Open("sqlite", filepath.Join(infra.GetWorkDir(), dbPath))
	if err != nil {
		log.WithError(err).Fatalln("cant open db")
	}
	dbx.SetMaxOpenConns(42)

	applyMigrations(dbx)
	return &sqliteClient{db: dbx}
}

// NewInMemoryClient opens a throwaway database, used by tests.
func NewInMemoryClient() *sqliteClient {
	dbx, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		log.WithError(err).Fatalln("cant open db")
	}
	dbx.SetMaxOpenConns(1)

	applyMigrations(dbx)
	return &sqliteClient{db: dbx}
}

func applyMigrations(dbx *sqlx.DB) {
	migrationsSource := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: resources.FS,
		Root:       "migrations",
	}
	_, _, err := migrate.PlanMigration(dbx.DB, "sqlite3", migrationsSource, migrate.Up, 0)
	if err != nil {
		log.WithError(err).Fatalln("migrate plan failed")
	}

	n, err := migrate.Exec(dbx.DB, "sqlite3", migrationsSource, migrate.Up)
	if err != nil {
		log.WithError(err).WithField("migration", migrationsSource).Fatalln("migrate up failed")
	}
	if n > 0 {
		log.Infof("applied %d migrations!", n)
	}
}

func (c *sqliteClient) Close() error {
	return c.db.Close()
}

func (c *sqliteClient) GetSettings(ctx context.Context, chatID int64) (*db.Settings, error) {
	res := &db.Settings{}
	err := c.db.GetContext(ctx, res, "SELECT id, enabled, enforce_admins, language FROM chats WHERE id=?", chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, guarderrors.ErrNotFound
	}
	return res, err
}

func (c *sqliteClient) SetSettings(ctx context.Context, settings *db.Settings) error {
	query := `
		INSERT INTO chats (id, enabled, enforce_admins, language)
		VALUES (:id, :enabled, :enforce_admins, :language)
		ON CONFLICT(id) DO UPDATE SET
		enabled=excluded.enabled,
		enforce_admins=excluded.enforce_admins,
		language=excluded.language;
	`
	return tool.Err(c.db.NamedExecContext(ctx, query, settings))
}
