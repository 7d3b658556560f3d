package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/credit"
	"github.com/pulsewatch/pulsewatch/internal/ingest"
	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/retry"
	"github.com/pulsewatch/pulsewatch/internal/storage"
)

// ErrBudgetExhausted aborts the remainder of an analysis cycle when the
// daily agent-call budget runs out. Items already analyzed stay analyzed.
var ErrBudgetExhausted = errors.New("daily analysis budget exhausted")

// ErrNotConfigured is returned when no agent is available.
var ErrNotConfigured = errors.New("analysis agent not configured")

// cost of one agent call against the daily budget
const agentCallCredits = 1

// Dispatcher drains the unanalyzed backlog in priority order, one agent
// call per item, bounded by the batch size and the remaining daily budget.
type Dispatcher struct {
	store      storage.Store
	agent      Agent
	trendAgent Agent
	budget     *credit.Budget
	prompts    config.Prompts

	batchSize  int
	minQuality float64
	retryCfg   retry.Config
}

// NewDispatcher creates an analysis dispatcher. trendAgent may be nil, in
// which case batch synthesis falls back to the content agent.
func NewDispatcher(store storage.Store, agent, trendAgent Agent, budget *credit.Budget, prompts config.Prompts, cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		store:      store,
		agent:      agent,
		trendAgent: trendAgent,
		budget:     budget,
		prompts:    prompts,
		batchSize:  cfg.AnalysisBatchSize,
		minQuality: cfg.MinQualityScore,
		retryCfg:   retry.DefaultConfig(),
	}
}

// RunCycle selects the highest-priority unanalyzed items and analyzes them
// sequentially. A structural failure on one item does not stop the cycle;
// budget exhaustion stops the remainder and reports partial completion.
// Storage failures abort the cycle.
func (d *Dispatcher) RunCycle(ctx context.Context) (*models.CycleOutcome, error) {
	outcome := &models.CycleOutcome{Cycle: "analysis"}

	if d.agent == nil {
		outcome.Detail = "agent not configured"
		return outcome, nil
	}

	limit := d.batchSize
	if remaining := d.budget.Remaining(ctx); remaining < limit {
		limit = remaining
	}
	if limit <= 0 {
		outcome.Detail = "budget exhausted before cycle start"
		return outcome, nil
	}

	items, err := d.store.SelectUnanalyzed(ctx, limit, d.minQuality)
	if err != nil {
		return outcome, fmt.Errorf("select unanalyzed: %w", err)
	}
	if len(items) == 0 {
		return outcome, nil
	}

	// Priority order must hold even if a Store returns items unordered.
	sort.SliceStable(items, func(i, j int) bool {
		return models.HigherPriority(items[i], items[j])
	})

	logrus.Infof("Analysis cycle: %d items selected (batch limit %d)", len(items), limit)
	start := time.Now()

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			outcome.Skipped += len(items) - i
			return outcome, err
		}

		if !d.budget.TryCharge(ctx, agentCallCredits, "content_analysis", fmt.Sprintf("content_id=%d", item.ID)) {
			outcome.Skipped = len(items) - i
			outcome.Detail = ErrBudgetExhausted.Error()
			logrus.Warnf("Analysis cycle stopped after %d items: %v", outcome.Processed, ErrBudgetExhausted)
			return outcome, nil
		}

		if err := d.analyzeOne(ctx, item); err != nil {
			if isFatal(err) {
				outcome.Skipped = len(items) - i - 1
				return outcome, err
			}
			logrus.Warnf("Analysis failed for content %d (%s): %v", item.ID, item.Source, err)
			outcome.Failed++
			continue
		}
		outcome.Processed++
	}

	logrus.Infof("Analysis cycle completed in %v: %d analyzed, %d failed",
		time.Since(start), outcome.Processed, outcome.Failed)
	return outcome, nil
}

func (d *Dispatcher) analyzeOne(ctx context.Context, item *models.Content) error {
	prompt := BuildContentPrompt(d.prompts, item)

	var raw string
	err := retry.WithBackoff(ctx, d.retryCfg, func(ctx context.Context) error {
		var chatErr error
		raw, chatErr = d.agent.Chat(ctx, prompt)
		return chatErr
	})
	if err != nil {
		return fmt.Errorf("agent call: %w", err)
	}

	result, err := ParseResult(raw)
	if err != nil {
		return err
	}

	refined := ingest.RefineQualityScore(result.Importance, item.QualityScore)
	if err := d.store.SetAnalysis(ctx, item.ID, result, refined); err != nil {
		return &fatalError{fmt.Errorf("store analysis: %w", err)}
	}

	return nil
}

// SynthesizeTrend runs one batch agent call over an already-analyzed window
// and returns the cross-item summary. Callers degrade gracefully on error:
// a digest without a trend section is still a digest.
func (d *Dispatcher) SynthesizeTrend(ctx context.Context, items []*models.Content) (*models.TrendSummary, error) {
	agent := d.trendAgent
	if agent == nil {
		agent = d.agent
	}
	if agent == nil {
		return nil, ErrNotConfigured
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no items to synthesize")
	}

	if !d.budget.TryCharge(ctx, agentCallCredits, "trend_synthesis", fmt.Sprintf("items=%d", len(items))) {
		return nil, ErrBudgetExhausted
	}

	prompt := BuildTrendPrompt(d.prompts, items)

	var raw string
	err := retry.WithBackoff(ctx, d.retryCfg, func(ctx context.Context) error {
		var chatErr error
		raw, chatErr = agent.Chat(ctx, prompt)
		return chatErr
	})
	if err != nil {
		return nil, fmt.Errorf("trend agent call: %w", err)
	}

	return ParseTrend(raw)
}

// isFatal separates storage failures, which abort the cycle, from per-item
// agent failures, which do not.
func isFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}

type fatalError struct{ err error }

func (f *fatalError) Error() string { return f.err.Error() }
func (f *fatalError) Unwrap() error { return f.err }
