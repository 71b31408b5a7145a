package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/chrissnell/cyclehire/internal/log"
	"github.com/chrissnell/cyclehire/pkg/migrate"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func main() {
	var (
		dbDriver       = flag.String("driver", "sqlite", "Database driver (sqlite, postgres)")
		dbDSN          = flag.String("dsn", "", "Database connection string")
		schema         = flag.String("schema", "", "Bundled schema to apply: config, sqlite or postgres (defaults to the driver's trip schema)")
		migrationDir   = flag.String("dir", "", "Migration directory on disk, overrides -schema")
		migrationTable = flag.String("table", "schema_migrations", "Migration table name")
		command        = flag.String("command", "up", "Migration command: up, down, to, version, status")
		targetVersion  = flag.String("target", "", "Target version for down/to commands")
		helpFlag       = flag.Bool("help", false, "Show help")
	)

	flag.Parse()

	if *helpFlag {
		showHelp()
		return
	}

	if *dbDSN == "" {
		fmt.Fprintf(os.Stderr, "Error: -dsn flag is required\n")
		showHelp()
		os.Exit(1)
	}

	if err := log.Init(false); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	provider, err := newProvider(*dbDriver, *schema, *migrationDir, *migrationTable)
	if err != nil {
		log.Fatalf("%v", err)
	}

	db, err := sql.Open(*dbDriver, *dbDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	migrator := migrate.NewMigrator(db, provider, log.GetSugaredLogger())

	switch *command {
	case "up":
		err = migrator.MigrateUp()
	case "down", "to":
		if *targetVersion == "" {
			fmt.Fprintf(os.Stderr, "Error: -target flag is required for %s command\n", *command)
			os.Exit(1)
		}
		target, convErr := strconv.Atoi(*targetVersion)
		if convErr != nil {
			log.Fatalf("Invalid target version: %v", convErr)
		}
		if *command == "down" {
			err = migrator.MigrateDown(target)
		} else {
			err = migrator.MigrateTo(target)
		}
	case "version":
		version, err := migrator.GetCurrentVersion()
		if err != nil {
			log.Fatalf("Failed to get current version: %v", err)
		}
		fmt.Printf("Current version: %d\n", version)
		return
	case "status":
		err = showStatus(migrator)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Migration command failed: %v", err)
	}

	fmt.Println("Migration completed successfully")
}

func newProvider(driver, schema, dir, table string) (*migrate.FileProvider, error) {
	if dir != "" {
		return migrate.NewFileProvider(dir, table, driver), nil
	}
	if schema == "" {
		schema = migrate.SchemaSQLite
		if driver == "postgres" {
			schema = migrate.SchemaPostgres
		}
	}
	provider, err := migrate.NewEmbeddedProvider(schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to load bundled schema: %w", err)
	}
	return provider, nil
}

func showStatus(migrator *migrate.Migrator) error {
	st, err := migrator.Status()
	if err != nil {
		return err
	}

	fmt.Printf("Current version: %d\n", st.Current)
	fmt.Printf("Latest version: %d\n", st.Latest)
	fmt.Printf("Pending migrations: %d\n", len(st.Pending))

	if len(st.Pending) > 0 {
		fmt.Println("\nPending migrations:")
		for _, migration := range st.Pending {
			fmt.Printf("  %d: %s\n", migration.Version, migration.Name)
		}
	}

	return nil
}

func showHelp() {
	fmt.Println("Database Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -driver string     Database driver (default: sqlite)")
	fmt.Println("  -dsn string        Database connection string (required)")
	fmt.Println("  -schema string     Bundled schema: config, sqlite, postgres")
	fmt.Println("  -dir string        Migration directory on disk (overrides -schema)")
	fmt.Println("  -table string      Migration table name (default: schema_migrations)")
	fmt.Println("  -command string    Migration command (default: up)")
	fmt.Println("  -target string     Target version for down/to commands")
	fmt.Println("  -help              Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  migrate -dsn trips.db -command up")
	fmt.Println("  migrate -dsn config.db -schema config -table config_migrations")
	fmt.Println("  migrate -driver postgres -dsn postgres://localhost/cyclehire -command status")
	fmt.Println("  migrate -driver postgres -dsn postgres://localhost/cyclehire -command down -target 1")
}
