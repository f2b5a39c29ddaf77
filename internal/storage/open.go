package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/creatorhub/sessiond/internal/db"
)

// Driver names accepted by Open
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// Options selects and configures a backend
type Options struct {
	Driver        string
	SQLitePath    string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Open returns a ready-to-use store for opts.Driver. SQL backends are
// migrated before they are returned.
func Open(ctx context.Context, opts Options) (Store, error) {
	logger := log.With().Str("driver", opts.Driver).Logger()

	switch opts.Driver {
	case DriverMemory:
		logger.Warn().Msg("using in-memory storage; session will not survive a restart")
		return NewMemoryStore(), nil

	case DriverSQLite:
		database, err := db.OpenSQLite(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(database, db.DialectSQLite); err != nil {
			_ = database.Close()
			return nil, err
		}
		logger.Info().Str("path", opts.SQLitePath).Msg("storage ready")
		return NewSQLStore(database, db.DialectSQLite), nil

	case DriverPostgres:
		database, err := db.OpenPostgres(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(database, db.DialectPostgres); err != nil {
			_ = database.Close()
			return nil, err
		}
		logger.Info().Str("dsn", db.RedactDSN(opts.DatabaseURL)).Msg("storage ready")
		return NewSQLStore(database, db.DialectPostgres), nil

	case DriverRedis:
		s, err := OpenRedis(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.RedisPrefix)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("addr", opts.RedisAddr).Str("prefix", opts.RedisPrefix).Msg("storage ready")
		return s, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
}
