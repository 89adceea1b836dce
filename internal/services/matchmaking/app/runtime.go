package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/squadforge/squadforge/internal/platform/discovery"
	"github.com/squadforge/squadforge/internal/platform/timeouts"
	"github.com/squadforge/squadforge/internal/services/matchmaking/api/httpapi"
	"github.com/squadforge/squadforge/internal/services/matchmaking/domain"
	"github.com/squadforge/squadforge/internal/services/matchmaking/notify"
	"github.com/squadforge/squadforge/internal/services/matchmaking/profile"
	matchmakingsqlite "github.com/squadforge/squadforge/internal/services/matchmaking/storage/sqlite"
)

const defaultMatchmakingDB = "data/matchmaking.db"

// RuntimeConfig controls matchmaking startup, dependencies, and loop behavior.
type RuntimeConfig struct {
	Port           int
	DBPath         string
	ProfileBaseURL string
	AllowedOrigins []string
	SweepInterval  time.Duration
	ReapInterval   time.Duration
	SweepBatchSize int
	ReapBatchSize  int
	SessionGrant   httpapi.SessionGrantConfig
}

// Run starts matchmaking runtime dependencies, the HTTP API server, and the
// background sweep scheduler. It blocks until the context is cancelled or the
// server fails.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(cfg.SessionGrant.Key) == 0 {
		return fmt.Errorf("session grant public key is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = discovery.DefaultHTTPPort(discovery.ServiceMatchmaking)
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultMatchmakingDB
	}
	profileBaseURL := discovery.OrDefaultHTTPBaseURL(cfg.ProfileBaseURL, discovery.ServiceProfile)

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

	profileClient, err := profile.NewClient(profileBaseURL, profile.Options{
		Timeout: timeouts.ProfileRequest,
	})
	if err != nil {
		return fmt.Errorf("build profile client: %w", err)
	}

	notifications := notify.NewService(newNotifyStoreAdapter(store), notify.Options{})
	service := domain.NewService(
		newTicketStoreAdapter(store),
		newMatchStoreAdapter(store),
		profileClient,
		notifications,
		domain.Options{
			SweepBatchSize: cfg.SweepBatchSize,
			ReapBatchSize:  cfg.ReapBatchSize,
		},
	)

	handler := httpapi.NewHandler(service, notifications, cfg.SessionGrant)
	routes := httpapi.RequestIDMiddleware(httpapi.LoggingMiddleware(handler.Routes()))
	corsOptions := cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}
	root := otelhttp.NewHandler(cors.New(corsOptions).Handler(routes), discovery.ServiceMatchmaking)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	scheduler := NewScheduler(service, SchedulerOptions{
		SweepInterval: cfg.SweepInterval,
		ReapInterval:  cfg.ReapInterval,
	})
	schedulerCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	schedulerErr := make(chan error, 1)
	go func() {
		schedulerErr <- scheduler.Run(schedulerCtx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe()
	}()
	log.Printf("matchmaking server listening at %s", httpServer.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("matchmaking server shutdown: %v", err)
		}
		<-serveErr
		stopScheduler()
		<-schedulerErr
		return ctx.Err()
	case err := <-serveErr:
		stopScheduler()
		<-schedulerErr
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve matchmaking http: %w", err)
		}
		return nil
	}
}
