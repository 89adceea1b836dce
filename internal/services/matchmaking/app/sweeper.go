package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/squadforge/squadforge/internal/services/matchmaking/domain"
	"github.com/squadforge/squadforge/internal/services/matchmaking/notify"
	matchmakingsqlite "github.com/squadforge/squadforge/internal/services/matchmaking/storage/sqlite"
)

// SweeperRuntimeConfig controls the standalone sweep scheduler runtime.
type SweeperRuntimeConfig struct {
	DBPath         string
	SweepInterval  time.Duration
	ReapInterval   time.Duration
	SweepBatchSize int
	ReapBatchSize  int
}

// RunSweeper starts a scheduler-only runtime over the matchmaking store. It
// serves no HTTP API; deployments use it to drive sweeps out of process from
// the API server.
func RunSweeper(ctx context.Context, cfg SweeperRuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultMatchmakingDB
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create matchmaking storage dir: %w", err)
		}
	}

	store, err := matchmakingsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open matchmaking sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close matchmaking sqlite store: %v", closeErr)
		}
	}()

	// Sweeps never resolve profiles, so no profile client is wired.
	notifications := notify.NewService(newNotifyStoreAdapter(store), notify.Options{})
	service := domain.NewService(
		newTicketStoreAdapter(store),
		newMatchStoreAdapter(store),
		nil,
		notifications,
		domain.Options{
			SweepBatchSize: cfg.SweepBatchSize,
			ReapBatchSize:  cfg.ReapBatchSize,
		},
	)

	scheduler := NewScheduler(service, SchedulerOptions{
		SweepInterval: cfg.SweepInterval,
		ReapInterval:  cfg.ReapInterval,
	})
	return scheduler.Run(ctx)
}
