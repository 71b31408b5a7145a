package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed schema
var schemaFS embed.FS

// Schema sets bundled with the binary.
const (
	SchemaConfig   = "config"
	SchemaPostgres = "postgres"
	SchemaSQLite   = "sqlite"
)

// Format: 001_migration_name.up.sql or 001_migration_name.down.sql
var migrationFileRegex = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// FileProvider loads migrations from a filesystem
type FileProvider struct {
	fsys           fs.FS
	migrationTable string
	dbDriver       string // "sqlite" or "postgres"
}

// NewFileProvider creates a provider reading migrations from a directory on disk
func NewFileProvider(dir string, migrationTable string, dbDriver string) *FileProvider {
	return NewFSProvider(os.DirFS(dir), migrationTable, dbDriver)
}

// NewFSProvider creates a provider reading the top level of fsys
func NewFSProvider(fsys fs.FS, migrationTable string, dbDriver string) *FileProvider {
	if migrationTable == "" {
		migrationTable = "schema_migrations"
	}
	if dbDriver == "" {
		dbDriver = "sqlite"
	}
	return &FileProvider{
		fsys:           fsys,
		migrationTable: migrationTable,
		dbDriver:       dbDriver,
	}
}

// NewEmbeddedProvider returns a provider for one of the bundled schema sets.
// The config set always targets SQLite.
func NewEmbeddedProvider(schema string, migrationTable string) (*FileProvider, error) {
	sub, err := fs.Sub(schemaFS, "schema/"+schema)
	if err != nil {
		return nil, fmt.Errorf("unknown schema %q: %w", schema, err)
	}
	if _, err := fs.ReadDir(sub, "."); err != nil {
		return nil, fmt.Errorf("unknown schema %q: %w", schema, err)
	}

	driver := "sqlite"
	if schema == SchemaPostgres {
		driver = "postgres"
	}
	return NewFSProvider(sub, migrationTable, driver), nil
}

// GetMigrations loads all migrations from the filesystem
func (fp *FileProvider) GetMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(fp.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	migrationFiles := make(map[int]*Migration)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		filename := e.Name()
		matches := migrationFileRegex.FindStringSubmatch(filename)
		if matches == nil {
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("invalid version number in file %s: %w", filename, err)
		}

		content, err := fs.ReadFile(fp.fsys, filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		if migrationFiles[version] == nil {
			migrationFiles[version] = &Migration{
				Version: version,
				Name:    strings.ReplaceAll(matches[2], "_", " "),
			}
		}
		if matches[3] == "up" {
			migrationFiles[version].Up = string(content)
		} else {
			migrationFiles[version].Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(migrationFiles))
	for _, migration := range migrationFiles {
		migrations = append(migrations, *migration)
	}

	// Sort by version
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// CreateMigrationTable creates the migration tracking table
func (fp *FileProvider) CreateMigrationTable(db *sql.DB) error {
	appliedType := "DATETIME"
	if fp.dbDriver == "postgres" {
		appliedType = "TIMESTAMP"
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			applied_at %s DEFAULT CURRENT_TIMESTAMP
		)
	`, fp.migrationTable, appliedType)

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	return nil
}

// GetCurrentVersion returns the highest applied migration version
func (fp *FileProvider) GetCurrentVersion(db *sql.DB) (int, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", fp.migrationTable)

	var version int
	err := db.QueryRow(query).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}

	return version, nil
}

// SetVersion records version as the latest applied migration
func (fp *FileProvider) SetVersion(db DB, version int) error {
	var err error

	if fp.dbDriver == "postgres" {
		_, err = db.Exec(fmt.Sprintf("DELETE FROM %s WHERE version > $1", fp.migrationTable), version)
		if err == nil && version > 0 {
			_, err = db.Exec(fmt.Sprintf(`
				INSERT INTO %s (version, applied_at)
				VALUES ($1, CURRENT_TIMESTAMP)
				ON CONFLICT (version) DO UPDATE SET applied_at = CURRENT_TIMESTAMP
			`, fp.migrationTable), version)
		}
	} else {
		_, err = db.Exec(fmt.Sprintf("DELETE FROM %s WHERE version > ?", fp.migrationTable), version)
		if err == nil && version > 0 {
			_, err = db.Exec(fmt.Sprintf(`
				INSERT OR REPLACE INTO %s (version, applied_at)
				VALUES (?, CURRENT_TIMESTAMP)
			`, fp.migrationTable), version)
		}
	}

	if err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}

	return nil
}
