package sweeper

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("sweeper", flag.ContinueOnError)
	t.Setenv("SQUADFORGE_SWEEPER_SWEEP_INTERVAL", "12s")

	cfg, err := ParseConfig(fs, []string{"-db-path", "tmp/matchmaking.db", "-reap-batch-size", "50"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.SweepInterval != 12*time.Second {
		t.Fatalf("sweep interval = %v, want 12s", cfg.SweepInterval)
	}
	if cfg.DBPath != "tmp/matchmaking.db" {
		t.Fatalf("db path = %q, want %q", cfg.DBPath, "tmp/matchmaking.db")
	}
	if cfg.ReapBatchSize != 50 {
		t.Fatalf("reap batch size = %d, want 50", cfg.ReapBatchSize)
	}
	if cfg.ReapInterval != 5*time.Minute {
		t.Fatalf("reap interval = %v, want default 5m", cfg.ReapInterval)
	}
}
