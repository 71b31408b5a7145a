package migrate

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Migration is one numbered schema change with its forward and reverse SQL.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// DB is satisfied by both *sql.DB and *sql.Tx.
type DB interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// MigrationProvider loads migrations and tracks the applied version.
type MigrationProvider interface {
	GetMigrations() ([]Migration, error)
	GetCurrentVersion(db *sql.DB) (int, error)
	SetVersion(db DB, version int) error
	CreateMigrationTable(db *sql.DB) error
}

// Latest asks MigrateTo for the newest available version.
const Latest = -1

var ErrNoSQL = errors.New("migration has no SQL for this direction")

// Status summarises a database against its migration set.
type Status struct {
	Current int
	Latest  int
	Pending []Migration
}

// Migrator applies a provider's migrations to a database.
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
	logger   *zap.SugaredLogger
}

// NewMigrator creates a new migrator instance. A nil logger disables progress output.
func NewMigrator(db *sql.DB, provider MigrationProvider, logger *zap.SugaredLogger) *Migrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Migrator{db: db, provider: provider, logger: logger}
}

// MigrateUp applies every pending migration.
func (m *Migrator) MigrateUp() error {
	return m.MigrateTo(Latest)
}

// MigrateDown rolls back to targetVersion, which must be below the current version.
func (m *Migrator) MigrateDown(targetVersion int) error {
	st, migrations, err := m.load()
	if err != nil {
		return err
	}
	if targetVersion >= st.Current {
		return fmt.Errorf("target version %d must be less than current version %d", targetVersion, st.Current)
	}
	return m.apply(steps(migrations, st.Current, targetVersion), false)
}

// MigrateTo moves the schema up or down to targetVersion.
func (m *Migrator) MigrateTo(targetVersion int) error {
	st, migrations, err := m.load()
	if err != nil {
		return err
	}
	if targetVersion == Latest {
		targetVersion = st.Latest
	}
	if targetVersion < st.Current {
		return m.apply(steps(migrations, st.Current, targetVersion), false)
	}
	return m.apply(steps(migrations, st.Current, targetVersion), true)
}

// GetCurrentVersion returns the applied version, creating the version table if needed.
func (m *Migrator) GetCurrentVersion() (int, error) {
	if err := m.provider.CreateMigrationTable(m.db); err != nil {
		return 0, fmt.Errorf("failed to create migration table: %w", err)
	}
	return m.provider.GetCurrentVersion(m.db)
}

// GetPendingMigrations returns the migrations above the current version, oldest first.
func (m *Migrator) GetPendingMigrations() ([]Migration, error) {
	st, err := m.Status()
	if err != nil {
		return nil, err
	}
	return st.Pending, nil
}

// Status reports the current and latest versions and what is left to apply.
func (m *Migrator) Status() (Status, error) {
	st, _, err := m.load()
	return st, err
}

func (m *Migrator) load() (Status, []Migration, error) {
	current, err := m.GetCurrentVersion()
	if err != nil {
		return Status{}, nil, fmt.Errorf("failed to get current version: %w", err)
	}
	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return Status{}, nil, fmt.Errorf("failed to get migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })

	st := Status{Current: current, Latest: current}
	for _, mig := range migrations {
		if mig.Version > current {
			st.Pending = append(st.Pending, mig)
		}
		if mig.Version > st.Latest {
			st.Latest = mig.Version
		}
	}
	return st, migrations, nil
}

// steps picks the migrations between from and to in execution order.
// migrations must be sorted ascending.
func steps(migrations []Migration, from, to int) []Migration {
	var out []Migration
	if to >= from {
		for _, mig := range migrations {
			if mig.Version > from && mig.Version <= to {
				out = append(out, mig)
			}
		}
		return out
	}
	for i := len(migrations) - 1; i >= 0; i-- {
		if mig := migrations[i]; mig.Version > to && mig.Version <= from {
			out = append(out, mig)
		}
	}
	return out
}

func (m *Migrator) apply(migrations []Migration, up bool) error {
	for _, mig := range migrations {
		if err := m.execute(mig, up); err != nil {
			return fmt.Errorf("migration %d (%s): %w", mig.Version, mig.Name, err)
		}
	}
	return nil
}

// execute runs one migration and records the resulting version in the same transaction.
func (m *Migrator) execute(mig Migration, up bool) error {
	stmt, version, direction := mig.Up, mig.Version, "up"
	if !up {
		stmt, version, direction = mig.Down, mig.Version-1, "down"
	}
	if stmt == "" {
		return fmt.Errorf("%s: %w", direction, ErrNoSQL)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if err := m.provider.SetVersion(tx, version); err != nil {
		return fmt.Errorf("failed to update migration version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	m.logger.Infow("applied migration", "version", mig.Version, "name", mig.Name, "direction", direction)
	return nil
}
