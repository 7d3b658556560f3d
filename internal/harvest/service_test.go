package harvest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/credit"
	"github.com/pulsewatch/pulsewatch/internal/ingest"
	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/sources"
	"github.com/pulsewatch/pulsewatch/internal/storage"
)

// harvestStore fakes subscription scheduling and audit logging.
type harvestStore struct {
	storage.Store

	due      []*models.Subscription
	upserted []*models.Content
	fetched  map[int64]time.Time
	logs     []*models.FetchLog
}

func newHarvestStore(due ...*models.Subscription) *harvestStore {
	return &harvestStore{due: due, fetched: make(map[int64]time.Time)}
}

func (s *harvestStore) DueSubscriptions(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	return s.due, nil
}

func (s *harvestStore) UpsertContent(ctx context.Context, c *models.Content) (bool, error) {
	s.upserted = append(s.upserted, c)
	return true, nil
}

func (s *harvestStore) MarkSubscriptionFetched(ctx context.Context, id int64, at time.Time) error {
	s.fetched[id] = at
	return nil
}

func (s *harvestStore) LogFetch(ctx context.Context, log *models.FetchLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func (s *harvestStore) LogCreditUsage(ctx context.Context, source, operation string, credits int, detail string) error {
	return nil
}

func (s *harvestStore) CreditsUsedSince(ctx context.Context, source string, since time.Time) (int, error) {
	return 0, nil
}

// fakeSource yields canned items or an error.
type fakeSource struct {
	name  string
	items []models.RawItem
	err   error
	calls int
}

func (f *fakeSource) Name() string  { return f.name }
func (f *fakeSource) Enabled() bool { return true }
func (f *fakeSource) Fetch(ctx context.Context, target sources.Target) ([]models.RawItem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func testService(store *harvestStore, limit int) *Service {
	cfg := &config.Config{
		DailyCreditLimit: limit,
		NotifyLookback:   12 * time.Hour,
	}
	return NewService(store, ingest.NewGate(store), credit.NewBudget("harvest", limit, store), cfg)
}

func subscription(id int64, source, targetType, target string) *models.Subscription {
	return &models.Subscription{
		ID:            id,
		Source:        source,
		Type:          targetType,
		Target:        target,
		Status:        "active",
		FetchInterval: time.Hour,
	}
}

func rawItem(id string) models.RawItem {
	return models.RawItem{
		Source:       "rss",
		SourceItemID: id,
		Body:         "item body for " + id,
		PublishedAt:  time.Now().Add(-time.Hour),
	}
}

func TestRunFetchCycle_FetchesDueSubscriptions(t *testing.T) {
	store := newHarvestStore(subscription(1, "rss", sources.TargetFeed, "https://example.com/feed"))
	svc := testService(store, 500)

	feed := &fakeSource{name: "rss", items: []models.RawItem{rawItem("a"), rawItem("b")}}
	svc.sources["rss"] = feed

	outcome, err := svc.RunFetchCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Processed)
	assert.Equal(t, 0, outcome.Failed)

	assert.Equal(t, 1, feed.calls)
	assert.Len(t, store.upserted, 2)
	assert.Contains(t, store.fetched, int64(1))

	// Subscription provenance is stamped onto the content.
	assert.Equal(t, models.OriginSubscription, store.upserted[0].Origin)
	require.NotNil(t, store.upserted[0].SubscriptionID)
	assert.Equal(t, int64(1), *store.upserted[0].SubscriptionID)

	require.Len(t, store.logs, 1)
	assert.Equal(t, "success", store.logs[0].Status)
	assert.Equal(t, 2, store.logs[0].TotalFetched)
	assert.Equal(t, 2, store.logs[0].NewItems)
}

func TestRunFetchCycle_SourceFailureIsIsolated(t *testing.T) {
	store := newHarvestStore(
		subscription(1, "rss", sources.TargetFeed, "https://bad.example.com/feed"),
		subscription(2, "rss", sources.TargetFeed, "https://good.example.com/feed"),
	)
	svc := testService(store, 500)

	// First call fails, second succeeds.
	calls := 0
	svc.sources["rss"] = &funcSource{name: "rss", fetch: func(target sources.Target) ([]models.RawItem, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("feed unreachable")
		}
		return []models.RawItem{rawItem("ok")}, nil
	}}

	outcome, err := svc.RunFetchCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Processed)
	assert.Equal(t, 1, outcome.Failed)

	// The failed subscription keeps its schedule; the good one advanced.
	assert.NotContains(t, store.fetched, int64(1))
	assert.Contains(t, store.fetched, int64(2))

	require.Len(t, store.logs, 2)
	assert.Equal(t, "failed", store.logs[0].Status)
	assert.Contains(t, store.logs[0].ErrorMessage, "unreachable")
	assert.Equal(t, "success", store.logs[1].Status)
}

func TestRunFetchCycle_TwitterChargedAgainstBudget(t *testing.T) {
	store := newHarvestStore(subscription(1, "twitter", sources.TargetKeyword, "golang"))
	svc := testService(store, 100)

	tw := &fakeSource{name: "twitter", items: []models.RawItem{rawItem("t")}}
	svc.sources["twitter"] = tw

	outcome, err := svc.RunFetchCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Processed)
	assert.Equal(t, 1, tw.calls)

	// 100 - 75 left: a second search today cannot be paid for.
	store.due = []*models.Subscription{subscription(2, "twitter", sources.TargetKeyword, "rust")}
	outcome, err = svc.RunFetchCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Failed)
	assert.Equal(t, 1, tw.calls)
}

func TestRunFetchCycle_CancellationCountsRemainingAsSkipped(t *testing.T) {
	store := newHarvestStore(
		subscription(1, "rss", sources.TargetFeed, "https://a.example.com/feed"),
		subscription(2, "rss", sources.TargetFeed, "https://b.example.com/feed"),
		subscription(3, "rss", sources.TargetFeed, "https://c.example.com/feed"),
	)
	svc := testService(store, 500)

	ctx, cancel := context.WithCancel(context.Background())
	svc.sources["rss"] = &funcSource{name: "rss", fetch: func(target sources.Target) ([]models.RawItem, error) {
		cancel()
		return []models.RawItem{rawItem("first")}, nil
	}}

	outcome, err := svc.RunFetchCycle(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, outcome.Processed)
	assert.Equal(t, 2, outcome.Skipped)
}

func TestRunFetchCycle_UnknownSourceFails(t *testing.T) {
	store := newHarvestStore(subscription(1, "telegram", sources.TargetKeyword, "x"))
	svc := testService(store, 500)

	outcome, err := svc.RunFetchCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Failed)
}

func TestRunExploreCycle(t *testing.T) {
	store := newHarvestStore()
	svc := testService(store, 500)
	svc.exploreKeywords = []string{"llm agents"}

	tw := &fakeSource{name: "twitter", items: []models.RawItem{rawItem("t1")}}
	yt := &fakeSource{name: "youtube", items: []models.RawItem{rawItem("y1")}}
	svc.sources["twitter"] = tw
	svc.sources["youtube"] = yt

	outcome, err := svc.RunExploreCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Processed)
	assert.Equal(t, 1, tw.calls)
	assert.Equal(t, 1, yt.calls)

	// Exploration items carry no subscription and the exploration origin.
	require.Len(t, store.upserted, 2)
	assert.Equal(t, models.OriginExploration, store.upserted[0].Origin)
	assert.Nil(t, store.upserted[0].SubscriptionID)
}

func TestRunExploreCycle_NoKeywords(t *testing.T) {
	svc := testService(newHarvestStore(), 500)

	outcome, err := svc.RunExploreCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Processed)
	assert.Contains(t, outcome.Detail, "no exploration keywords")
}

// funcSource adapts a closure into a Source.
type funcSource struct {
	name  string
	fetch func(target sources.Target) ([]models.RawItem, error)
}

func (f *funcSource) Name() string  { return f.name }
func (f *funcSource) Enabled() bool { return true }
func (f *funcSource) Fetch(ctx context.Context, target sources.Target) ([]models.RawItem, error) {
	return f.fetch(target)
}
