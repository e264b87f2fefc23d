package identity

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers pgx5://
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies every pending migration bundled into the binary
func Migrate(dsn string) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migration: failed to open source: %w", err)
	}

	migrator, err := migrate.NewWithSourceInstance("iofs", source, pgx5DSN(dsn))
	if err != nil {
		return fmt.Errorf("migration: failed to initialize: %w", err)
	}
	defer func() {
		srcErr, dbErr := migrator.Close()
		if srcErr != nil {
			log.Error().Err(srcErr).Msg("migration source close failed")
		}
		if dbErr != nil {
			log.Error().Err(dbErr).Msg("migration database close failed")
		}
	}()
	migrator.Log = migrateLogger{}

	current, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration: failed to read version: %w", err)
	}
	if dirty {
		return fmt.Errorf("migration: database is dirty at version %d", current)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Uint("version", current).Msg("migrations up to date")
			return nil
		}
		return fmt.Errorf("migration: up failed: %w", err)
	}

	version, _, _ := migrator.Version()
	log.Info().Uint("from", current).Uint("to", version).Msg("migrations applied")
	return nil
}

// pgx5DSN rewrites postgres:// URLs to the scheme golang-migrate registers for pgx/v5
func pgx5DSN(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, args ...any) {
	log.Debug().Msgf(strings.TrimSpace(format), args...)
}

func (migrateLogger) Verbose() bool { return false }
