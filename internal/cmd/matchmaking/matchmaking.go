// Package matchmaking parses matchmaking command flags and launches the
// matchmaking API runtime.
package matchmaking

import (
	"context"
	"flag"
	"strings"
	"time"

	entrypoint "github.com/squadforge/squadforge/internal/platform/cmd"
	"github.com/squadforge/squadforge/internal/platform/discovery"
	"github.com/squadforge/squadforge/internal/services/matchmaking/api/httpapi"
	matchmakingserver "github.com/squadforge/squadforge/internal/services/matchmaking/app"
)

// Config holds matchmaking command configuration.
type Config struct {
	Port           int           `env:"SQUADFORGE_MATCHMAKING_PORT" envDefault:"8080"`
	DBPath         string        `env:"SQUADFORGE_MATCHMAKING_DB_PATH" envDefault:"data/matchmaking.db"`
	ProfileBaseURL string        `env:"SQUADFORGE_MATCHMAKING_PROFILE_BASE_URL"`
	AllowedOrigins string        `env:"SQUADFORGE_MATCHMAKING_ALLOWED_ORIGINS"`
	SweepInterval  time.Duration `env:"SQUADFORGE_MATCHMAKING_SWEEP_INTERVAL" envDefault:"30s"`
	ReapInterval   time.Duration `env:"SQUADFORGE_MATCHMAKING_REAP_INTERVAL" envDefault:"5m"`
	SweepBatchSize int           `env:"SQUADFORGE_MATCHMAKING_SWEEP_BATCH_SIZE" envDefault:"100"`
	ReapBatchSize  int           `env:"SQUADFORGE_MATCHMAKING_REAP_BATCH_SIZE" envDefault:"100"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	cfg.ProfileBaseURL = discovery.OrDefaultHTTPBaseURL(cfg.ProfileBaseURL, discovery.ServiceProfile)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The matchmaking HTTP server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The matchmaking SQLite database path")
	fs.StringVar(&cfg.ProfileBaseURL, "profile-base-url", cfg.ProfileBaseURL, "The profile service base URL")
	fs.StringVar(&cfg.AllowedOrigins, "allowed-origins", cfg.AllowedOrigins, "Comma-separated CORS origins")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Pairing sweep interval")
	fs.DurationVar(&cfg.ReapInterval, "reap-interval", cfg.ReapInterval, "Expired-ticket reap interval")
	fs.IntVar(&cfg.SweepBatchSize, "sweep-batch-size", cfg.SweepBatchSize, "Active tickets loaded per sweep")
	fs.IntVar(&cfg.ReapBatchSize, "reap-batch-size", cfg.ReapBatchSize, "Overdue tickets loaded per reap")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the matchmaking runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMatchmaking, func(context.Context) error {
		grantCfg, err := httpapi.LoadSessionGrantConfigFromEnv(nil)
		if err != nil {
			return err
		}
		return matchmakingserver.Run(ctx, matchmakingserver.RuntimeConfig{
			Port:           cfg.Port,
			DBPath:         cfg.DBPath,
			ProfileBaseURL: cfg.ProfileBaseURL,
			AllowedOrigins: splitOrigins(cfg.AllowedOrigins),
			SweepInterval:  cfg.SweepInterval,
			ReapInterval:   cfg.ReapInterval,
			SweepBatchSize: cfg.SweepBatchSize,
			ReapBatchSize:  cfg.ReapBatchSize,
			SessionGrant:   grantCfg,
		})
	})
}

func splitOrigins(value string) []string {
	var origins []string
	for _, origin := range strings.Split(value, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
