package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LEDGER_MODE", "")
	t.Setenv("JWT_TTL", "not-a-duration")

	cfg := Load()
	if AppConfig != cfg {
		t.Error("Load should publish the config as AppConfig")
	}
	if cfg.LedgerMode != ModeShares {
		t.Errorf("LedgerMode = %q, want %q", cfg.LedgerMode, ModeShares)
	}
	if cfg.JWTTTL != 30*24*time.Hour {
		t.Errorf("JWTTTL = %v, want fallback", cfg.JWTTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LEDGER_MODE", "EQUAL")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("PORT", "9090")

	cfg := Load()
	if cfg.LedgerMode != ModeEqual {
		t.Errorf("LedgerMode = %q, want %q", cfg.LedgerMode, ModeEqual)
	}
	if cfg.DBDriver != "sqlite" {
		t.Errorf("DBDriver = %q, want sqlite", cfg.DBDriver)
	}
	if cfg.JWTTTL != 2*time.Hour {
		t.Errorf("JWTTTL = %v, want 2h", cfg.JWTTTL)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
}
