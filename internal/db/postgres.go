package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rajarshidattapy/R-Credit/internal/config"
)

const applicationName = "r-credit"

func NewPostgresPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, poolCfg.ConnConfig.ConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// PoolConfig sizes the pool for identity units of work. Every unit of work
// pins a connection for its transaction, so the pool always leaves room for
// a full sweep batch next to request traffic.
func PoolConfig(cfg config.Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	poolCfg.MaxConns = max(cfg.DBMaxConns, cfg.SweepParallelism+2)
	poolCfg.MinConns = min(max(cfg.DBMinConns, 0), poolCfg.MaxConns)
	poolCfg.MaxConnLifetime = durationOr(cfg.DBMaxConnLifetime, 30*time.Minute)
	poolCfg.MaxConnIdleTime = durationOr(cfg.DBMaxConnIdleTime, 5*time.Minute)
	poolCfg.ConnConfig.ConnectTimeout = durationOr(cfg.DBConnectTimeout, 5*time.Second)
	if _, ok := poolCfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	return poolCfg, nil
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
