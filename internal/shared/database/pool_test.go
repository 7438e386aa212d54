package database

import (
	"testing"
	"time"

	"github.com/noirepd/precinct/internal/shared/config"
)

func TestPoolConfig(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host: "db.internal", Port: 5433, User: "precinct", Password: "secret",
		Database: "precinct", SSLMode: "disable",
		MaxConns: 12, MinConns: 3,
		MaxConnLifetime:   45 * time.Minute,
		MaxConnIdleTime:   10 * time.Minute,
		HealthCheckPeriod: 20 * time.Second,
		ConnectTimeout:    3 * time.Second,
	}

	pc, err := poolConfig(cfg)
	if err != nil {
		t.Fatalf("poolConfig() error = %v", err)
	}

	if pc.MaxConns != 12 || pc.MinConns != 3 {
		t.Errorf("conns = %d/%d, want 12/3", pc.MaxConns, pc.MinConns)
	}
	if pc.MaxConnLifetime != cfg.MaxConnLifetime {
		t.Errorf("MaxConnLifetime = %s, want %s", pc.MaxConnLifetime, cfg.MaxConnLifetime)
	}
	if pc.MaxConnIdleTime != cfg.MaxConnIdleTime {
		t.Errorf("MaxConnIdleTime = %s, want %s", pc.MaxConnIdleTime, cfg.MaxConnIdleTime)
	}
	if pc.HealthCheckPeriod != cfg.HealthCheckPeriod {
		t.Errorf("HealthCheckPeriod = %s, want %s", pc.HealthCheckPeriod, cfg.HealthCheckPeriod)
	}
	if pc.ConnConfig.ConnectTimeout != cfg.ConnectTimeout {
		t.Errorf("ConnectTimeout = %s, want %s", pc.ConnConfig.ConnectTimeout, cfg.ConnectTimeout)
	}
	if pc.ConnConfig.Host != "db.internal" || pc.ConnConfig.Port != 5433 {
		t.Errorf("target = %s:%d, want db.internal:5433", pc.ConnConfig.Host, pc.ConnConfig.Port)
	}
	if _, ok := pc.ConnConfig.Tracer.(queryTracer); !ok {
		t.Errorf("Tracer = %T, want queryTracer", pc.ConnConfig.Tracer)
	}
}

func TestPoolConfigRejectsBadDSN(t *testing.T) {
	_, err := poolConfig(config.DatabaseConfig{Host: "localhost", Port: 5432, SSLMode: "bogus"})
	if err == nil {
		t.Fatal("poolConfig() with an unknown sslmode should fail")
	}
}
