package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Workflow.MaxSubmissionAttempts)
	assert.Equal(t, int64(20_000_000), cfg.Workflow.RewardUnit)
	assert.Equal(t, 30, cfg.Workflow.MostWantedMinDays)
	assert.Equal(t, 10, cfg.Workflow.TrackingCodeLength)
	assert.Equal(t, "precinct", cfg.KurrentDB.StreamPrefix)
	assert.Equal(t, 25, cfg.Database.MaxConns)
	assert.Equal(t, 2, cfg.Database.MinConns)
	assert.Equal(t, time.Hour, cfg.Database.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, cfg.Database.MaxConnIdleTime)
	assert.Equal(t, time.Minute, cfg.Database.HealthCheckPeriod)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MOST_WANTED_MIN_DAYS", "45")
	t.Setenv("RANKING_CACHE_TTL", "2m")
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("DB_MAX_CONNS", "8")
	t.Setenv("DB_MAX_CONN_IDLE_TIME", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 45, cfg.Workflow.MostWantedMinDays)
	assert.Equal(t, 2*time.Minute, cfg.Workflow.RankingCacheTTL)
	assert.Equal(t, 8080, cfg.Server.Port, "unparseable values fall back to the default")
	assert.Equal(t, 8, cfg.Database.MaxConns)
	assert.Equal(t, 90*time.Second, cfg.Database.MaxConnIdleTime)
}

func TestLoadRejectsBadPoolLimits(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "4")
	t.Setenv("DB_MIN_CONNS", "6")

	_, err := Load()
	assert.ErrorContains(t, err, "DB_MIN_CONNS")
}

func TestWorkflowValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*WorkflowConfig)
		wantErr bool
	}{
		{"defaults", func(*WorkflowConfig) {}, false},
		{"single attempt", func(w *WorkflowConfig) { w.MaxSubmissionAttempts = 1 }, true},
		{"zero reward unit", func(w *WorkflowConfig) { w.RewardUnit = 0 }, true},
		{"short tracking code", func(w *WorkflowConfig) { w.TrackingCodeLength = 4 }, true},
		{"no code attempts", func(w *WorkflowConfig) { w.CodeAttempts = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := DefaultWorkflow()
			tt.mutate(&w)
			err := w.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
