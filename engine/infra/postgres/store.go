package postgres

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finnews/finnews/pkg/logger"
)

const (
	defaultMaxConns          = 10
	defaultHealthCheckPeriod = 30 * time.Second
	defaultConnectTimeout    = 5 * time.Second
	defaultPingTimeout       = 3 * time.Second
)

// Store is the concrete PostgreSQL driver backed by pgxpool.Pool.
// It intentionally does not leak pgx types through its public API.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore initializes the pgx pool using the provided config and performs
// a health check.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("postgres: config is required")
	}
	poolCfg, err := pgxpool.ParseConfig(normalizeConnString(cfg.connString()))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	poolCfg.MaxConns = maxConns(cfg)
	poolCfg.HealthCheckPeriod = defaultHealthCheckPeriod
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	} else {
		poolCfg.ConnConfig.ConnectTimeout = defaultConnectTimeout
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	logger.FromContext(ctx).With(
		"store_driver", "postgres",
		"host", poolCfg.ConnConfig.Host,
		"port", poolCfg.ConnConfig.Port,
		"db_name", poolCfg.ConnConfig.Database,
		"max_conns", poolCfg.MaxConns,
	).Info("Store initialized")
	return &Store{pool: pool}, nil
}

// Setup builds the store, auto-provisioning the missing role/database and
// retrying once when the first attempt fails and cfg.AutoProvision is set.
// This is the development-bootstrap path; production deployments should
// disable AutoProvision and let the first failure surface.
func Setup(ctx context.Context, cfg *Config) (*Store, error) {
	store, err := NewStore(ctx, cfg)
	if err == nil || !cfg.AutoProvision || cfg.URL == "" {
		return store, err
	}
	log := logger.FromContext(ctx)
	log.Warn("Initial database connect failed; attempting auto-provision", "error", err)
	prov := NewProvisioner(OverridesFromEnv())
	if perr := prov.Provision(ctx, cfg.URL); perr != nil {
		return nil, fmt.Errorf("postgres: auto-provision after connect failure: %w", perr)
	}
	return NewStore(ctx, cfg)
}

// Close shuts down the connection pool.
func (s *Store) Close(ctx context.Context) error {
	s.pool.Close()
	logger.FromContext(ctx).Info("Postgres store closed")
	return nil
}

// Pool exposes the internal pool for driver-local usage. Do not export pgx
// types through higher layers; keep them local to the driver.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// HealthCheck verifies the connection is alive.
func (s *Store) HealthCheck(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := s.pool.Ping(hctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}

func maxConns(cfg *Config) int32 {
	if cfg.MaxConns <= 0 {
		return defaultMaxConns
	}
	if cfg.MaxConns > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(cfg.MaxConns)
}
