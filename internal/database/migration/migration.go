package migration

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// migrationURL rewrites a postgres:// DSN to the pgx5:// scheme the migrate driver registers.
func migrationURL(dsn string) (string, error) {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, scheme); ok {
			return "pgx5://" + rest, nil
		}
	}
	return "", errors.New("dsn must use the postgres:// scheme")
}

// EnsureMigrated applies pending schema migrations over a dedicated connection to dsn.
// It is safe to call on every start: an up-to-date schema is reported as a skip.
// Canceling ctx stops after the migration in progress.
func EnsureMigrated(ctx context.Context, dsn string, logger *zap.Logger, dbHost string) error {
	start := time.Now()
	log := logger.With(zap.String("component", "database"), zap.String("db_host", dbHost))

	log.Info("db_migration_check", zap.String("status", "starting"))

	fail := func(step string, err error) error {
		log.Error("db_migration_failed",
			zap.String("status", "error"),
			zap.String("migration_step", step),
			zap.Error(err),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return fmt.Errorf("migration step %s failed: %w", step, err)
	}

	dbURL, err := migrationURL(dsn)
	if err != nil {
		return fail("build_url", err)
	}

	src, err := iofs.New(migrationsFS, "sql")
	if err != nil {
		return fail("open_source", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		_ = src.Close()
		return fail("init_migrate", err)
	}
	defer m.Close()

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-stopped:
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("db_migration_skip",
				zap.String("status", "success"),
				zap.String("reason", "schema already up to date"),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
			return nil
		}
		return fail("up", err)
	}

	version, dirty, _ := m.Version()
	log.Info("db_migration_success",
		zap.String("status", "success"),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}
