package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/casekeeper/internal/store"
	memorystore "github.com/wolfeidau/casekeeper/internal/store/memory"
	postgresstore "github.com/wolfeidau/casekeeper/internal/store/postgres"
	redisstore "github.com/wolfeidau/casekeeper/internal/store/redis"
)

type Globals struct {
	Debug   bool
	Version string
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	// Create HTTP server
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32         `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32         `help:"minimum number of connections in pool" default:"2"`
	MaxConnLifetime time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `help:"maximum connection idle time" default:"30m"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"CASEKEEPER_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (s *PostgresStoreFlags) poolConfig() *postgresstore.PoolConfig {
	return &postgresstore.PoolConfig{
		ConnString:      s.ConnString,
		MaxConns:        s.MaxConns,
		MinConns:        s.MinConns,
		MaxConnLifetime: s.MaxConnLifetime,
		MaxConnIdleTime: s.MaxConnIdleTime,
	}
}

// StoreFlags selects the persistence backend shared by every server command.
type StoreFlags struct {
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"CASEKEEPER_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
	RedisURL      string             `help:"redis URL for organization locks, defaults to the store's own lock" env:"CASEKEEPER_REDIS_URL"`
	LockLease     time.Duration      `help:"redis lock lease, renewed while held" default:"30s" env:"CASEKEEPER_LOCK_LEASE"`
}

// openStores builds the configured stores. The returned close func releases every connection.
func (f *StoreFlags) openStores(ctx context.Context) (*store.Stores, func(), error) {
	var (
		stores  *store.Stores
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch f.StoreType {
	case "postgres":
		if err := f.PostgresStore.validate(); err != nil {
			return nil, nil, err
		}
		pool, err := postgresstore.NewPool(ctx, f.PostgresStore.poolConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		closers = append(closers, pool.Close)

		// Run migrations if enabled
		if f.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		stores = postgresstore.NewStores(pool)
		log.Info().Msg("Using PostgreSQL stores with shared connection pool")

	default:
		stores = memorystore.NewStores()
		log.Info().Msg("Using in-memory stores")
	}

	if f.RedisURL != "" {
		client, err := redisstore.NewClient(ctx, f.RedisURL)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close redis client")
			}
		})
		stores.Locker = redisstore.NewLocker(client, redisstore.WithLease(f.LockLease))
		log.Info().Dur("lease", f.LockLease).Msg("Using redis organization locks")
	}

	return stores, closeAll, nil
}

func readFileFlag(name, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s: %w", name, path, err)
	}
	return data, nil
}
