package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/pulsewatch/internal/analysis"
	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/harvest"
	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/notify"
)

// Service schedules the pipeline cycles. Each cycle type holds a lease
// while it runs, so an overlapping tick or manual trigger is skipped
// instead of running the same cycle twice.
type Service struct {
	config     *config.Config
	harvester  *harvest.Service
	dispatcher *analysis.Dispatcher
	aggregator *notify.Aggregator
	lease      *Lease
	cron       *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, harvester *harvest.Service, dispatcher *analysis.Dispatcher, aggregator *notify.Aggregator) (*Service, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.TimeZone, err)
	}

	return &Service{
		config:     cfg,
		harvester:  harvester,
		dispatcher: dispatcher,
		aggregator: aggregator,
		lease:      NewLease(),
		cron:       cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
	}, nil
}

// Start registers all cycles and begins the schedule.
func (s *Service) Start() error {
	entries := []struct {
		spec string
		name string
		run  func(context.Context) (*models.CycleOutcome, error)
	}{
		{fmt.Sprintf("@every %s", s.config.FetchCheckInterval), "fetch", s.harvester.RunFetchCycle},
		{fmt.Sprintf("@every %s", s.config.ExploreInterval), "explore", s.harvester.RunExploreCycle},
		{fmt.Sprintf("@every %s", s.config.AnalysisInterval), "analysis", s.dispatcher.RunCycle},
	}

	for _, entry := range entries {
		entry := entry
		if _, err := s.cron.AddFunc(entry.spec, func() { s.runCycle(entry.name, entry.run) }); err != nil {
			return fmt.Errorf("schedule %s cycle: %w", entry.name, err)
		}
	}

	// One digest slot per configured time of day. The slot name doubles
	// as the checkpoint key, so each slot tracks its own window.
	for _, clock := range s.config.NotifySchedule {
		hour, minute, err := config.ParseClock(clock)
		if err != nil {
			return fmt.Errorf("schedule notify slot %q: %w", clock, err)
		}
		slot := clock
		spec := fmt.Sprintf("0 %d %d * * *", minute, hour)
		if _, err := s.cron.AddFunc(spec, func() {
			s.runCycle("notify:"+slot, func(ctx context.Context) (*models.CycleOutcome, error) {
				return s.aggregator.RunCycle(ctx, slot)
			})
		}); err != nil {
			return fmt.Errorf("schedule notify slot %q: %w", clock, err)
		}
	}

	// Daily report at 09:30, weekly report Monday 10:00.
	if _, err := s.cron.AddFunc("0 30 9 * * *", func() {
		s.runCycle("report:daily", func(ctx context.Context) (*models.CycleOutcome, error) {
			return s.aggregator.RunReport(ctx, "daily")
		})
	}); err != nil {
		return fmt.Errorf("schedule daily report: %w", err)
	}
	if _, err := s.cron.AddFunc("0 0 10 * * MON", func() {
		s.runCycle("report:weekly", func(ctx context.Context) (*models.CycleOutcome, error) {
			return s.aggregator.RunReport(ctx, "weekly")
		})
	}); err != nil {
		return fmt.Errorf("schedule weekly report: %w", err)
	}

	s.cron.Start()
	logrus.Infof("Scheduler started: fetch every %s, explore every %s, analysis every %s, digests at %v",
		s.config.FetchCheckInterval, s.config.ExploreInterval, s.config.AnalysisInterval, s.config.NotifySchedule)
	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}

// Trigger runs one cycle by name outside its schedule. Used by the ops
// endpoints.
func (s *Service) Trigger(name string) (*models.CycleOutcome, error) {
	switch name {
	case "fetch":
		return s.trigger(name, s.harvester.RunFetchCycle)
	case "explore":
		return s.trigger(name, s.harvester.RunExploreCycle)
	case "analyze":
		return s.trigger("analysis", s.dispatcher.RunCycle)
	case "harvest":
		// Fetch then analyze in one shot, reported as a combined outcome.
		fetched, err := s.trigger("fetch", s.harvester.RunFetchCycle)
		if err != nil {
			return fetched, err
		}
		analyzed, err := s.trigger("analysis", s.dispatcher.RunCycle)
		if err != nil {
			return analyzed, err
		}
		return &models.CycleOutcome{
			Cycle:     "harvest",
			Processed: fetched.Processed + analyzed.Processed,
			Failed:    fetched.Failed + analyzed.Failed,
			Skipped:   fetched.Skipped + analyzed.Skipped,
			Detail:    analyzed.Detail,
		}, nil
	case "notify":
		slot := "manual"
		if len(s.config.NotifySchedule) > 0 {
			slot = s.config.NotifySchedule[0]
		}
		return s.trigger("notify:"+slot, func(ctx context.Context) (*models.CycleOutcome, error) {
			return s.aggregator.RunCycle(ctx, slot)
		})
	case "report":
		return s.trigger("report:daily", func(ctx context.Context) (*models.CycleOutcome, error) {
			return s.aggregator.RunReport(ctx, "daily")
		})
	default:
		return nil, fmt.Errorf("unknown cycle %q", name)
	}
}

func (s *Service) trigger(name string, run func(context.Context) (*models.CycleOutcome, error)) (*models.CycleOutcome, error) {
	if !s.lease.TryAcquire(name) {
		return nil, fmt.Errorf("cycle %s is already running", name)
	}
	defer s.lease.Release(name)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.CycleTimeout)
	defer cancel()

	return run(ctx)
}

// runCycle is the scheduled-tick wrapper: lease, timeout, outcome logging.
func (s *Service) runCycle(name string, run func(context.Context) (*models.CycleOutcome, error)) {
	outcome, err := s.trigger(name, run)
	if err != nil {
		logrus.Errorf("Cycle %s failed: %v", name, err)
		return
	}
	if outcome != nil {
		logrus.Infof("Cycle %s done: processed=%d failed=%d skipped=%d %s",
			name, outcome.Processed, outcome.Failed, outcome.Skipped, outcome.Detail)
	}
}
