// Package maintenance runs the periodic background sweep that stands in
// for the TTL indexes a document store enforces natively. Dedup markers
// and expired sessions in a Mongo-backed deployment age out on their own
// via expireAfterSeconds indexes; sqlite has no equivalent primitive, so
// this package deletes/closes them on a cron schedule instead, alongside
// evicting stale in-memory rate-limit windows.
package maintenance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/basket/tzwatch/internal/limits"
	"github.com/basket/tzwatch/internal/model"
	"github.com/basket/tzwatch/internal/persistence"
)

// cronParser parses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// Config holds the dependencies and cadence for the maintenance sweep.
type Config struct {
	Store       *persistence.Store
	RateLimiter *limits.RateLimiter
	Logger      *slog.Logger

	// CronExpr sets the sweep cadence; defaults to every 5 minutes if
	// empty or unparseable.
	CronExpr string

	DedupeTTL         time.Duration
	SessionSweepLimit int
	RateLimitMaxAge   time.Duration
}

// Scheduler runs Config's sweep on its cron cadence until Stop is called.
type Scheduler struct {
	store       *persistence.Store
	rateLimiter *limits.RateLimiter
	logger      *slog.Logger
	schedule    cronlib.Schedule

	dedupeTTL         time.Duration
	sessionSweepLimit int
	rateLimitMaxAge   time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

const defaultCronExpr = "*/5 * * * *"

// NewScheduler builds a Scheduler from cfg, falling back to a 5-minute
// cadence if CronExpr is empty or fails to parse.
func NewScheduler(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	expr := cfg.CronExpr
	if expr == "" {
		expr = defaultCronExpr
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		logger.Error("maintenance: invalid cron expression, falling back to default", "cron_expr", expr, "error", err)
		schedule, _ = cronParser.Parse(defaultCronExpr)
	}

	dedupeTTL := cfg.DedupeTTL
	if dedupeTTL <= 0 {
		dedupeTTL = 7 * 24 * time.Hour
	}
	sweepLimit := cfg.SessionSweepLimit
	if sweepLimit <= 0 {
		sweepLimit = 200
	}
	maxAge := cfg.RateLimitMaxAge
	if maxAge <= 0 {
		maxAge = time.Hour
	}

	return &Scheduler{
		store:             cfg.Store,
		rateLimiter:       cfg.RateLimiter,
		logger:            logger,
		schedule:          schedule,
		dedupeTTL:         dedupeTTL,
		sessionSweepLimit: sweepLimit,
		rateLimitMaxAge:   maxAge,
	}
}

// Start begins the scheduler loop in a background goroutine, respecting ctx
// for shutdown.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("maintenance scheduler started")
}

// Stop cancels the scheduler loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("maintenance scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	now := time.Now()
	next := s.schedule.Next(now)

	for {
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case now = <-timer.C:
			s.sweep(ctx, now)
			next = s.schedule.Next(now)
		}
	}
}

// sweep prunes expired dedup markers, closes expired sessions, and evicts
// stale rate-limit windows. Each step is independent — a failure in one
// does not prevent the others from running.
func (s *Scheduler) sweep(ctx context.Context, now time.Time) {
	if s.store != nil {
		pruned, err := s.store.PruneDedupeEvents(ctx, now.Add(-s.dedupeTTL))
		if err != nil {
			s.logger.Error("maintenance: prune dedupe events failed", "error", err)
		} else if pruned > 0 {
			s.logger.Info("maintenance: pruned dedupe events", "count", pruned)
		}

		expired, err := s.store.ExpiredSessions(ctx, now, s.sessionSweepLimit)
		if err != nil {
			s.logger.Error("maintenance: query expired sessions failed", "error", err)
		} else {
			for _, sess := range expired {
				if err := s.store.CloseSession(ctx, sess.ID, model.SessionExpired, now); err != nil {
					s.logger.Error("maintenance: close expired session failed", "session_id", sess.ID, "error", err)
				}
			}
			if len(expired) > 0 {
				s.logger.Info("maintenance: expired sessions closed", "count", len(expired))
			}
		}
	}

	if s.rateLimiter != nil {
		if evicted := s.rateLimiter.EvictStale(s.rateLimitMaxAge, now); evicted > 0 {
			s.logger.Info("maintenance: evicted stale rate-limit windows", "count", evicted)
		}
	}
}
