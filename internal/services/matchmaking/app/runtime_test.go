package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestRunRequiresSessionGrantKey(t *testing.T) {
	if err := Run(context.Background(), RuntimeConfig{}); err == nil {
		t.Fatal("Run() error = nil, want missing session grant key error")
	}
}

func TestRunSweeperStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunSweeper(ctx, SweeperRuntimeConfig{
		DBPath:        filepath.Join(t.TempDir(), "matchmaking.db"),
		SweepInterval: time.Hour,
		ReapInterval:  time.Hour,
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunSweeper() error = %v, want context.Canceled", err)
	}
}
