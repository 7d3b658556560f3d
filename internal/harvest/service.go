package harvest

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/credit"
	"github.com/pulsewatch/pulsewatch/internal/ingest"
	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/sources"
	"github.com/pulsewatch/pulsewatch/internal/storage"
)

// views at or above which a video is worth a transcript call
const transcriptViewThreshold = 10000

// Service owns the harvesting stage: it checks which subscriptions are
// due, fetches them from their platforms, and pushes the results through
// the ingestion gate. A separate cycle searches the configured exploration
// keywords across search-capable sources.
type Service struct {
	store      storage.Store
	gate       *ingest.Gate
	sources    map[string]sources.Source
	transcript *sources.TranscriptClient
	budget     *credit.Budget

	exploreKeywords []string
	fetchLookback   time.Duration

	now func() time.Time
}

// NewService creates the harvesting service and initializes its sources
// from configuration. Sources without credentials stay registered but
// disabled.
func NewService(store storage.Store, gate *ingest.Gate, budget *credit.Budget, cfg *config.Config) *Service {
	s := &Service{
		store:           store,
		gate:            gate,
		budget:          budget,
		transcript:      sources.NewTranscriptClient(cfg.TranscriptKey),
		exploreKeywords: cfg.ExploreKeywords,
		fetchLookback:   cfg.NotifyLookback,
		now:             time.Now,
	}

	s.sources = map[string]sources.Source{}
	for _, src := range []sources.Source{
		sources.NewTwitterSource(cfg.TwitterAPIKey),
		sources.NewYouTubeSource(cfg.YouTubeAPIKey),
		sources.NewRSSSource(cfg.RSSUserAgent),
	} {
		s.sources[src.Name()] = src
	}

	return s
}

// RunFetchCycle fetches every due subscription. One failing subscription
// is logged and does not stop the others.
func (s *Service) RunFetchCycle(ctx context.Context) (*models.CycleOutcome, error) {
	outcome := &models.CycleOutcome{Cycle: "fetch"}
	now := s.now().UTC()

	due, err := s.store.DueSubscriptions(ctx, now)
	if err != nil {
		return outcome, fmt.Errorf("list due subscriptions: %w", err)
	}
	if len(due) == 0 {
		return outcome, nil
	}

	logrus.Infof("Fetch cycle: %d subscriptions due", len(due))
	s.gate.ResetSeen()

	for i, sub := range due {
		if err := ctx.Err(); err != nil {
			outcome.Skipped += len(due) - i
			return outcome, err
		}

		if err := s.fetchSubscription(ctx, sub, now); err != nil {
			logrus.Errorf("Fetch failed for subscription %d (%s/%s): %v",
				sub.ID, sub.Source, sub.Target, err)
			outcome.Failed++
			continue
		}
		outcome.Processed++
	}

	return outcome, nil
}

func (s *Service) fetchSubscription(ctx context.Context, sub *models.Subscription, now time.Time) error {
	src, ok := s.sources[sub.Source]
	if !ok {
		return fmt.Errorf("unknown source %q", sub.Source)
	}
	if !src.Enabled() {
		return fmt.Errorf("source %q is not configured", sub.Source)
	}

	since := now.Add(-s.fetchLookback)
	if sub.LastFetchedAt != nil && sub.LastFetchedAt.After(since) {
		since = *sub.LastFetchedAt
	}

	target := sources.Target{
		Type:  sub.Type,
		Value: sub.Target,
		Since: since,
	}

	log := &models.FetchLog{
		SubscriptionID: &sub.ID,
		Source:         sub.Source,
		StartedAt:      now,
	}

	items, err := s.fetchTarget(ctx, src, target)
	if err != nil {
		s.finishLog(ctx, log, 0, 0, 0, err)
		return err
	}

	s.enrichTranscripts(ctx, items)

	created, duplicate, rejected := s.gate.IngestBatch(ctx, items, ingest.SourceContext{
		SubscriptionID: &sub.ID,
		Origin:         models.OriginSubscription,
	})
	s.finishLog(ctx, log, len(items), created, duplicate+rejected, nil)

	if err := s.store.MarkSubscriptionFetched(ctx, sub.ID, now); err != nil {
		return fmt.Errorf("mark subscription fetched: %w", err)
	}

	logrus.Infof("Fetched %s/%s: %d items, %d new", sub.Source, sub.Target, len(items), created)
	return nil
}

// RunExploreCycle searches the configured exploration keywords across
// search-capable sources and ingests the results as exploration content.
func (s *Service) RunExploreCycle(ctx context.Context) (*models.CycleOutcome, error) {
	outcome := &models.CycleOutcome{Cycle: "explore"}

	if len(s.exploreKeywords) == 0 {
		outcome.Detail = "no exploration keywords configured"
		return outcome, nil
	}

	s.gate.ResetSeen()

	for _, keyword := range s.exploreKeywords {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		target := sources.Target{
			Type:  sources.TargetKeyword,
			Value: keyword,
			Since: s.now().UTC().Add(-s.fetchLookback),
		}

		for _, name := range []string{"twitter", "youtube"} {
			src := s.sources[name]
			if src == nil || !src.Enabled() {
				continue
			}

			items, err := s.fetchTarget(ctx, src, target)
			if err != nil {
				logrus.Errorf("Exploration fetch failed for %s %q: %v", name, keyword, err)
				outcome.Failed++
				continue
			}

			s.enrichTranscripts(ctx, items)

			created, _, _ := s.gate.IngestBatch(ctx, items, ingest.SourceContext{
				Origin: models.OriginExploration,
			})
			outcome.Processed += created
		}
	}

	logrus.Infof("Exploration cycle: %d new items from %d keywords",
		outcome.Processed, len(s.exploreKeywords))
	return outcome, nil
}

// fetchTarget calls one source, charging the harvesting budget first for
// metered platforms. An exhausted budget skips the call rather than
// failing the cycle.
func (s *Service) fetchTarget(ctx context.Context, src sources.Source, target sources.Target) ([]models.RawItem, error) {
	if src.Name() == "twitter" && target.Type != sources.TargetFeed {
		detail := fmt.Sprintf("%s=%s", target.Type, target.Value)
		if !s.budget.TryCharge(ctx, sources.TwitterSearchCredits, "twitter_fetch", detail) {
			return nil, fmt.Errorf("harvesting budget exhausted")
		}
	}

	return src.Fetch(ctx, target)
}

// enrichTranscripts attaches transcripts to high-engagement videos so the
// analysis prompt sees spoken content, not just the description.
func (s *Service) enrichTranscripts(ctx context.Context, items []models.RawItem) {
	if s.transcript == nil || !s.transcript.Enabled() {
		return
	}

	for i := range items {
		item := &items[i]
		if item.Source != "youtube" || item.Transcript != "" {
			continue
		}
		if item.Metrics.Views < transcriptViewThreshold {
			continue
		}

		transcript, err := s.transcript.Get(ctx, item.SourceItemID)
		if err != nil {
			logrus.Warnf("Transcript fetch failed for %s: %v", item.SourceItemID, err)
			continue
		}
		item.Transcript = transcript
	}
}

func (s *Service) finishLog(ctx context.Context, log *models.FetchLog, total, created, filtered int, fetchErr error) {
	finished := s.now().UTC()
	log.FinishedAt = &finished
	log.TotalFetched = total
	log.NewItems = created
	log.FilteredItems = filtered

	if fetchErr != nil {
		log.Status = "failed"
		log.ErrorMessage = fetchErr.Error()
	} else {
		log.Status = "success"
	}

	if err := s.store.LogFetch(ctx, log); err != nil {
		logrus.Warnf("Failed to record fetch log: %v", err)
	}
}
