package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "billing-oracle", cfg.AppName)
	assert.Equal(t, "postgres", cfg.DBType)
	assert.Equal(t, 25, cfg.DBMaxOpenConn)
	assert.True(t, cfg.Oracle.MetricsEnabled)
	assert.Equal(t, 24*time.Hour, cfg.Oracle.SweepWindow)
	assert.Equal(t, 1000, cfg.Oracle.SweepLimit)
	assert.Equal(t, time.Hour, cfg.Oracle.SweepInterval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "sqlite")
	t.Setenv("ORACLE_ALERTS_ENABLED", "off")
	t.Setenv("ORACLE_SWEEP_WINDOW", "6h")
	t.Setenv("ORACLE_SWEEP_LIMIT", "50")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.DBType)
	assert.False(t, cfg.Oracle.AlertsEnabled)
	assert.Equal(t, 6*time.Hour, cfg.Oracle.SweepWindow)
	assert.Equal(t, 50, cfg.Oracle.SweepLimit)
}

func TestGetenvHelpers_IgnoreMalformedValues(t *testing.T) {
	t.Setenv("ORACLE_SWEEP_LIMIT", "not-a-number")
	t.Setenv("ORACLE_SWEEP_INTERVAL", "soon")
	t.Setenv("ORACLE_SCHEDULER_ENABLED", "maybe")

	cfg := Load()

	assert.Equal(t, 1000, cfg.Oracle.SweepLimit)
	assert.Equal(t, time.Hour, cfg.Oracle.SweepInterval)
	assert.True(t, cfg.Oracle.SchedulerEnable)
}
