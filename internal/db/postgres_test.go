package db

import (
	"testing"
	"time"

	"github.com/rajarshidattapy/R-Credit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfigLeavesRoomForSweep(t *testing.T) {
	cfg := config.Config{
		DatabaseURL:      "postgres://u:p@localhost:5432/rcredit",
		DBMaxConns:       2,
		DBMinConns:       10,
		SweepParallelism: 8,
	}
	poolCfg, err := PoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(10), poolCfg.MaxConns)
	assert.Equal(t, int32(10), poolCfg.MinConns)
	assert.Equal(t, 30*time.Minute, poolCfg.MaxConnLifetime)
	assert.Equal(t, 5*time.Minute, poolCfg.MaxConnIdleTime)
	assert.Equal(t, 5*time.Second, poolCfg.ConnConfig.ConnectTimeout)
	assert.Equal(t, "r-credit", poolCfg.ConnConfig.RuntimeParams["application_name"])
}

func TestPoolConfigHonoursOverrides(t *testing.T) {
	cfg := config.Config{
		DatabaseURL:       "postgres://u:p@localhost:5432/rcredit?application_name=creditctl",
		DBMaxConns:        40,
		DBMinConns:        4,
		DBMaxConnLifetime: time.Hour,
		DBMaxConnIdleTime: time.Minute,
		DBConnectTimeout:  2 * time.Second,
		SweepParallelism:  4,
	}
	poolCfg, err := PoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(40), poolCfg.MaxConns)
	assert.Equal(t, int32(4), poolCfg.MinConns)
	assert.Equal(t, time.Hour, poolCfg.MaxConnLifetime)
	assert.Equal(t, time.Minute, poolCfg.MaxConnIdleTime)
	assert.Equal(t, 2*time.Second, poolCfg.ConnConfig.ConnectTimeout)
	assert.Equal(t, "creditctl", poolCfg.ConnConfig.RuntimeParams["application_name"])
}

func TestPoolConfigRejectsBadURL(t *testing.T) {
	_, err := PoolConfig(config.Config{DatabaseURL: "postgres://%zz"})
	assert.Error(t, err)
}
