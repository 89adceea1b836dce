// Package sweeper parses sweeper command flags and launches the scheduler-only
// matchmaking runtime.
package sweeper

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/squadforge/squadforge/internal/platform/cmd"
	matchmakingserver "github.com/squadforge/squadforge/internal/services/matchmaking/app"
)

// Config holds sweeper command configuration.
type Config struct {
	DBPath         string        `env:"SQUADFORGE_SWEEPER_DB_PATH" envDefault:"data/matchmaking.db"`
	SweepInterval  time.Duration `env:"SQUADFORGE_SWEEPER_SWEEP_INTERVAL" envDefault:"30s"`
	ReapInterval   time.Duration `env:"SQUADFORGE_SWEEPER_REAP_INTERVAL" envDefault:"5m"`
	SweepBatchSize int           `env:"SQUADFORGE_SWEEPER_SWEEP_BATCH_SIZE" envDefault:"100"`
	ReapBatchSize  int           `env:"SQUADFORGE_SWEEPER_REAP_BATCH_SIZE" envDefault:"100"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The matchmaking SQLite database path")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Pairing sweep interval")
	fs.DurationVar(&cfg.ReapInterval, "reap-interval", cfg.ReapInterval, "Expired-ticket reap interval")
	fs.IntVar(&cfg.SweepBatchSize, "sweep-batch-size", cfg.SweepBatchSize, "Active tickets loaded per sweep")
	fs.IntVar(&cfg.ReapBatchSize, "reap-batch-size", cfg.ReapBatchSize, "Overdue tickets loaded per reap")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the sweeper runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSweeper, func(context.Context) error {
		return matchmakingserver.RunSweeper(ctx, matchmakingserver.SweeperRuntimeConfig{
			DBPath:         cfg.DBPath,
			SweepInterval:  cfg.SweepInterval,
			ReapInterval:   cfg.ReapInterval,
			SweepBatchSize: cfg.SweepBatchSize,
			ReapBatchSize:  cfg.ReapBatchSize,
		})
	})
}
