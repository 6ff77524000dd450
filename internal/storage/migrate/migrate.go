// Package migrate manages the catalog schema with embedded migrations.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationsTable is a custom table name so the catalog never collides
// with migration state of applications hosted on the same cluster.
const migrationsTable = "vibedb_schema_migrations"

// Manager handles catalog migrations.
type Manager struct {
	m  *migrate.Migrate
	db *sql.DB
}

// New opens a stdlib connection for golang-migrate and builds a manager
// over the embedded migration files.
func New(connStr string) (*Manager, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open migration connection: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: migrationsTable,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return &Manager{m: m, db: db}, nil
}

// Up runs all pending migrations. golang-migrate locks internally, so
// concurrent daemon starts against one catalog are safe.
func (m *Manager) Up(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- m.m.Up()
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Down rolls back one migration. Only admin commands call this, with
// explicit confirmation.
func (m *Manager) Down(ctx context.Context) error {
	if err := m.m.Steps(-1); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	return nil
}

// Version returns the current migration version.
func (m *Manager) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Close releases the migration source and database handle.
func (m *Manager) Close() error {
	srcErr, dbErr := m.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

// Run applies all pending migrations with a bounded timeout and closes the
// manager. Called once at daemon startup.
func Run(ctx context.Context, connStr string) error {
	mgr, err := New(connStr)
	if err != nil {
		return err
	}
	defer mgr.Close()

	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	return mgr.Up(runCtx)
}
