// Command migrate applies the API key schema.
//
//	migrate [flags] up [N]
//	migrate [flags] down [N]
//	migrate [flags] version
//	migrate [flags] force V
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/af-corp/chat-gateway/migrations"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	dbURL := flag.String("db-url", "", "database URL (default from DATABASE_URL or DB_* variables)")
	dir := flag.String("path", "", "read migrations from this directory instead of the embedded set")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate [flags] up [N] | down [N] | version | force V")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(newMigrator(*dir, databaseURL(*dbURL)), flag.Args(), logger); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func newMigrator(dir, dbURL string) func() (*migrate.Migrate, error) {
	return func() (*migrate.Migrate, error) {
		if dir != "" {
			return migrate.New("file://"+dir, dbURL)
		}
		src, err := iofs.New(migrations.FS, ".")
		if err != nil {
			return nil, fmt.Errorf("open embedded migrations: %w", err)
		}
		return migrate.NewWithSourceInstance("iofs", src, dbURL)
	}
}

func run(open func() (*migrate.Migrate, error), args []string, logger *slog.Logger) error {
	if len(args) == 0 {
		args = []string{"up"}
	}
	cmd, n, err := parseArgs(args)
	if err != nil {
		return err
	}

	m, err := open()
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	switch cmd {
	case "up":
		if n > 0 {
			err = m.Steps(n)
		} else {
			err = m.Up()
		}
	case "down":
		if n > 0 {
			err = m.Steps(-n)
		} else {
			err = m.Down()
		}
	case "force":
		err = m.Force(n)
	case "version":
	}
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("schema already current")
		err = nil
	}
	if err != nil {
		return err
	}

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("no migrations applied")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("migration state", "command", cmd, "version", v, "dirty", dirty)
	return nil
}

// parseArgs validates the subcommand and its optional count or version.
func parseArgs(args []string) (cmd string, n int, err error) {
	cmd = args[0]
	switch cmd {
	case "up", "down":
		if len(args) > 2 {
			return "", 0, fmt.Errorf("%s takes at most one argument", cmd)
		}
	case "force":
		if len(args) != 2 {
			return "", 0, errors.New("force needs a version")
		}
	case "version":
		if len(args) != 1 {
			return "", 0, errors.New("version takes no arguments")
		}
		return cmd, 0, nil
	default:
		return "", 0, fmt.Errorf("unknown command %q", cmd)
	}
	if len(args) == 2 {
		n, err = strconv.Atoi(args[1])
		if err != nil || (cmd != "force" && n < 1) {
			return "", 0, fmt.Errorf("invalid %s argument %q", cmd, args[1])
		}
	}
	return cmd, n, nil
}

func databaseURL(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		envOrDefault("DB_USER", "chatgw"),
		envOrDefault("DB_PASSWORD", "chatgw-dev"),
		envOrDefault("DB_HOST", "localhost"),
		envOrDefault("DB_PORT", "5432"),
		envOrDefault("DB_NAME", "chatgw"),
	)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
