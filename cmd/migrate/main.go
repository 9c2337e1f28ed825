package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	appconfig "github.com/wolfman30/glowbook-platform/internal/config"
	appmigrations "github.com/wolfman30/glowbook-platform/migrations"
	"github.com/wolfman30/glowbook-platform/pkg/logging"
)

// command is what the migrator was asked to do.
type command struct {
	force   bool
	version int
}

// parseCommand accepts no arguments (apply pending migrations) or
// "force <version>" to clear a dirty schema version.
func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, nil
	}
	if args[0] != "force" {
		return command{}, fmt.Errorf("unknown command %q", args[0])
	}
	if len(args) != 2 {
		return command{}, errors.New("usage: migrate force <version>")
	}
	version, err := strconv.Atoi(strings.TrimSpace(args[1]))
	if err != nil {
		return command{}, fmt.Errorf("invalid version %q: %w", args[1], err)
	}
	return command{force: true, version: version}, nil
}

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	cmd, err := parseCommand(os.Args[1:])
	if err != nil {
		logger.Error("invalid arguments", "error", err)
		os.Exit(2)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if err := run(cfg.DatabaseURL, cmd, logger); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(databaseURL string, cmd command, logger *logging.Logger) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("db driver: %w", err)
	}
	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		return fmt.Errorf("source driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if cmd.force {
		if err := m.Force(cmd.version); err != nil {
			return fmt.Errorf("force version %d: %w", cmd.version, err)
		}
		logger.Info("forced schema version", "version", cmd.version)
		return nil
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read version: %w", err)
	}
	logger.Info("migrations complete", "version", version, "dirty", dirty)
	return nil
}
