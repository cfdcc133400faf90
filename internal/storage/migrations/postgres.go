package migrations

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"stock-movement-lab/internal/storage/postgres"
)

// RunPostgres applies the embedded PostgreSQL migrations in lexical order.
// Every migration is idempotent, so this runs on each start.
func RunPostgres(ctx context.Context, pool *postgres.Pool, logger logrus.FieldLogger) error {
	files, err := load(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, m := range files {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		logger.WithField("migration", m.name).Debug("applied postgres migration")
	}
	return nil
}
