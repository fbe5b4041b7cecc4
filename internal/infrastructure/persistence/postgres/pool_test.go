package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPoolConfig(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Host:            "localhost",
		Port:            15432,
		User:            "bills",
		Password:        "p@ss word",
		Name:            "bills",
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}

	poolCfg, err := BuildPoolConfig(cfg)
	require.NoError(t, err)

	assert.EqualValues(t, 20, poolCfg.MaxConns)
	assert.EqualValues(t, 5, poolCfg.MinConns)
	assert.Equal(t, 30*time.Minute, poolCfg.MaxConnLifetime)
	assert.Equal(t, 10*time.Minute, poolCfg.MaxConnIdleTime)
	assert.Equal(t, "bills", poolCfg.ConnConfig.Database)
	assert.Equal(t, "p@ss word", poolCfg.ConnConfig.Password)
	assert.EqualValues(t, 15432, poolCfg.ConnConfig.Port)
}

func TestConfigDSN_DefaultsSSLMode(t *testing.T) {
	t.Parallel()
	dsn := Config{Host: "db", Port: 5432, User: "u", Password: "p", Name: "bills"}.DSN()
	assert.Equal(t, "postgres://u:p@db:5432/bills?sslmode=disable", dsn)
}
