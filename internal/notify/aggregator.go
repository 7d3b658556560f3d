package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/storage"
)

// TrendSynthesizer produces a cross-item summary for a digest window.
type TrendSynthesizer interface {
	SynthesizeTrend(ctx context.Context, items []*models.Content) (*models.TrendSummary, error)
}

// Aggregator owns the delivery stage: it computes each slot's window from
// the stored checkpoint, collects analyzed undelivered items, renders one
// digest, sends it, and commits the delivery markers together with the
// checkpoint advance. Delivery and commit cannot be atomic across the
// network boundary; on an ambiguous failure the window is retried, so a
// digest may repeat but is never silently lost.
type Aggregator struct {
	store       storage.Store
	trend       TrendSynthesizer
	transports  []Transport
	topN        int
	lookback    time.Duration
	skewMargin  time.Duration
	enableTrend bool

	now func() time.Time
}

// NewAggregator creates the delivery-stage aggregator. trend may be nil.
func NewAggregator(store storage.Store, trend TrendSynthesizer, transports []Transport, cfg *config.Config) *Aggregator {
	return &Aggregator{
		store:       store,
		trend:       trend,
		transports:  transports,
		topN:        cfg.NotifyTopN,
		lookback:    cfg.NotifyLookback,
		skewMargin:  cfg.SkewMargin,
		enableTrend: cfg.EnableTrendSummary,
		now:         time.Now,
	}
}

// RunCycle delivers one digest for the given schedule slot.
//
// The window upper bound lags the wall clock by the skew margin so items
// fetched by a slightly slow writer still land inside a window instead of
// between two. An empty window still advances the checkpoint; otherwise a
// quiet period would stretch the next window indefinitely.
func (a *Aggregator) RunCycle(ctx context.Context, slot string) (*models.CycleOutcome, error) {
	outcome := &models.CycleOutcome{Cycle: "notify:" + slot}

	upper := a.now().UTC().Add(-a.skewMargin)

	lower, found, err := a.store.Checkpoint(ctx, slot)
	if err != nil {
		return outcome, fmt.Errorf("load checkpoint: %w", err)
	}
	if !found {
		lower = upper.Add(-a.lookback)
	}
	if !lower.Before(upper) {
		outcome.Detail = "window not yet open"
		return outcome, nil
	}

	items, err := a.store.SelectForDigest(ctx, lower, upper, a.topN)
	if err != nil {
		return outcome, fmt.Errorf("select digest items: %w", err)
	}

	if len(items) == 0 {
		if err := a.store.AdvanceCheckpoint(ctx, slot, upper); err != nil {
			return outcome, fmt.Errorf("advance checkpoint: %w", err)
		}
		outcome.Detail = "empty window"
		logrus.Infof("Digest slot %s: empty window [%s, %s), checkpoint advanced",
			slot, lower.Format(time.RFC3339), upper.Format(time.RFC3339))
		return outcome, nil
	}

	var trend *models.TrendSummary
	if a.enableTrend && a.trend != nil {
		trend, err = a.trend.SynthesizeTrend(ctx, items)
		if err != nil {
			logrus.Warnf("Trend synthesis failed, digest continues without it: %v", err)
			trend = nil
		}
	}

	digest := BuildDigest(slot, lower, upper, trend, items)
	title, body := RenderDigest(digest)

	if err := a.send(ctx, title, body); err != nil {
		return outcome, fmt.Errorf("digest %s not delivered, window will be retried: %w", digest.ID, err)
	}

	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	if err := a.store.CommitDelivery(ctx, slot, ids, upper); err != nil {
		// The message is already out. Failing the cycle here means the
		// next run may resend the same window; the digest ID makes the
		// repeat visible to recipients.
		return outcome, fmt.Errorf("digest %s sent but commit failed: %w", digest.ID, err)
	}

	outcome.Processed = len(items)
	outcome.Detail = fmt.Sprintf("digest %s", digest.ID)
	logrus.Infof("Digest slot %s delivered: %d items, window [%s, %s)",
		slot, len(items), lower.Format(time.RFC3339), upper.Format(time.RFC3339))
	return outcome, nil
}

// RunReport sends a daily or weekly report over analyzed items. Reports
// are informational and do not touch delivery state or checkpoints.
func (a *Aggregator) RunReport(ctx context.Context, period string) (*models.CycleOutcome, error) {
	outcome := &models.CycleOutcome{Cycle: "report:" + period}

	span := 24 * time.Hour
	if period == "weekly" {
		span = 7 * 24 * time.Hour
	}
	end := a.now().UTC()
	start := end.Add(-span)

	items, err := a.store.SelectForReport(ctx, start, 50)
	if err != nil {
		return outcome, fmt.Errorf("select report items: %w", err)
	}
	if len(items) == 0 {
		outcome.Detail = "nothing to report"
		return outcome, nil
	}

	var trend *models.TrendSummary
	if a.enableTrend && a.trend != nil {
		trend, err = a.trend.SynthesizeTrend(ctx, items)
		if err != nil {
			logrus.Warnf("Trend synthesis failed for %s report: %v", period, err)
			trend = nil
		}
	}

	title, body := RenderReport(period, start, end, trend, items)
	if err := a.send(ctx, title, body); err != nil {
		return outcome, fmt.Errorf("send %s report: %w", period, err)
	}

	outcome.Processed = len(items)
	return outcome, nil
}

// send fans a message out to every transport. Delivery counts as success
// when at least one channel accepts it.
func (a *Aggregator) send(ctx context.Context, title, body string) error {
	if len(a.transports) == 0 {
		return fmt.Errorf("no transports configured")
	}

	var errs []string
	delivered := false
	for _, t := range a.transports {
		if err := t.Send(ctx, title, body); err != nil {
			logrus.Errorf("Failed to send via %s: %v", t.Name(), err)
			errs = append(errs, fmt.Sprintf("%s: %v", t.Name(), err))
			continue
		}
		logrus.Infof("Successfully sent via %s", t.Name())
		delivered = true
	}

	if !delivered {
		return fmt.Errorf("all transports failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
