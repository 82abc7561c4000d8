// Command migrate applies or rolls back the SQL schema migrations without
// starting the server. The server also migrates on boot; this exists for
// operational use (CI, rollbacks, version checks).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"

	"github.com/gomem/gomem/internal/config"
)

var (
	dsnFlag  = flag.String("dsn", "", "database connection string (defaults to the configured database URL)")
	dirFlag  = flag.String("dir", "migrations/sql", "migrations directory")
	downFlag = flag.Bool("down", false, "roll back one migration instead of applying all")
	verFlag  = flag.Bool("version", false, "print the current schema version and exit")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	dsn, err := resolveDSN(*dsnFlag)
	if err != nil {
		return err
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", *dirFlag), dsn)
	if err != nil {
		return fmt.Errorf("opening migrator: %w", err)
	}
	defer m.Close()

	switch {
	case *verFlag:
		version, dirty, err := m.Version()
		if err == migrate.ErrNilVersion {
			fmt.Println("no migrations applied")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty=%v)\n", version, dirty)
		return nil

	case *downFlag:
		if err := m.Steps(-1); err != nil {
			return fmt.Errorf("rolling back: %w", err)
		}
		fmt.Println("rolled back one migration")
		return nil

	default:
		if err := m.Up(); err != nil {
			if err == migrate.ErrNoChange {
				fmt.Println("schema up to date")
				return nil
			}
			return fmt.Errorf("applying migrations: %w", err)
		}
		fmt.Println("migrations applied")
		return nil
	}
}

// resolveDSN prefers the -dsn flag and falls back to the configured
// database URL.
func resolveDSN(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("loading configuration: %w", err)
	}
	dsn, err := cfg.Database.DSN()
	if err != nil {
		return "", fmt.Errorf("no database URL configured; pass -dsn or set GOMEM_DB_URL: %w", err)
	}
	return dsn, nil
}
