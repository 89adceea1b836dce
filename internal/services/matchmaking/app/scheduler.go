package app

import (
	"context"
	"expvar"
	"log"
	"time"

	"github.com/squadforge/squadforge/internal/services/matchmaking/domain"
)

var (
	sweepPairsTotal   = expvar.NewInt("matchmaking_sweep_pairs_total")
	reapExpiredTotal  = expvar.NewInt("matchmaking_reap_expired_total")
	sweepTicketsTotal = expvar.NewInt("matchmaking_sweep_tickets_scanned_total")
)

const (
	// DefaultSweepInterval is the pairing sweep cadence.
	DefaultSweepInterval = 30 * time.Second
	// DefaultReapInterval is the expired-ticket reap cadence.
	DefaultReapInterval = 5 * time.Minute
)

// Scheduler drives periodic pairing sweeps and expiry reaps over the
// matchmaking service. Both loops share one goroutine lifecycle bound to the
// run context.
type Scheduler struct {
	service       *domain.Service
	sweepInterval time.Duration
	reapInterval  time.Duration
	logf          func(format string, args ...any)
}

// SchedulerOptions tunes scheduler cadence; zero values select defaults.
type SchedulerOptions struct {
	SweepInterval time.Duration
	ReapInterval  time.Duration
	Logf          func(format string, args ...any)
}

// NewScheduler constructs a scheduler over the matchmaking service.
func NewScheduler(service *domain.Service, opts SchedulerOptions) *Scheduler {
	sweepInterval := opts.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	reapInterval := opts.ReapInterval
	if reapInterval <= 0 {
		reapInterval = DefaultReapInterval
	}
	logf := opts.Logf
	if logf == nil {
		logf = log.Printf
	}
	return &Scheduler{
		service:       service,
		sweepInterval: sweepInterval,
		reapInterval:  reapInterval,
		logf:          logf,
	}
}

// Run blocks and drives sweep and reap ticks until the context is cancelled.
// Individual run failures are logged and the next tick proceeds.
func (s *Scheduler) Run(ctx context.Context) error {
	if s == nil || s.service == nil {
		return domain.ErrStoreNotConfigured
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sweepTicker := time.NewTicker(s.sweepInterval)
	defer sweepTicker.Stop()
	reapTicker := time.NewTicker(s.reapInterval)
	defer reapTicker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sweepTicker.C:
			s.sweep(ctx)
		case <-reapTicker.C:
			s.reap(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	report, err := s.service.SweepAndPair(ctx)
	if err != nil {
		s.logf("matchmaking: sweep: %v", err)
		return
	}
	sweepTicketsTotal.Add(int64(report.Scanned))
	sweepPairsTotal.Add(int64(report.Paired))
	if report.Paired > 0 {
		s.logf("matchmaking: sweep paired %d of %d scanned tickets across %d buckets", report.Paired, report.Scanned, report.Buckets)
	}
}

func (s *Scheduler) reap(ctx context.Context) {
	report, err := s.service.ReapExpired(ctx)
	if err != nil {
		s.logf("matchmaking: reap: %v", err)
		return
	}
	reapExpiredTotal.Add(int64(report.Expired))
	if report.Expired > 0 {
		s.logf("matchmaking: reap expired %d tickets", report.Expired)
	}
}
