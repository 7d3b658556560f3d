package storage

import (
	"context"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// Store defines the persistence contract the pipeline stages communicate
// through. Every state transition of the pipeline is expressed as one of
// these calls; no stage holds in-memory state another stage depends on.
type Store interface {
	// UpsertContent persists a content record keyed by (source,
	// source_item_id). An existing row keeps its analysis and delivery
	// state; only engagement metrics and the raw payload are refreshed.
	// Returns true when a new row was created.
	UpsertContent(ctx context.Context, c *models.Content) (created bool, err error)

	// SelectUnanalyzed returns up to limit unanalyzed items at or above the
	// quality floor, ordered by the analysis priority key: subscription
	// origin first, then fetched_at newest first, then quality score.
	SelectUnanalyzed(ctx context.Context, limit int, minQuality float64) ([]*models.Content, error)

	// SetAnalysis atomically writes the analysis result, its importance,
	// and the refined quality score for one item.
	SetAnalysis(ctx context.Context, contentID int64, res *models.AnalysisResult, qualityScore float64) error

	// SelectForDigest returns analyzed, undelivered items fetched within
	// [windowStart, windowEnd), ordered by importance descending.
	SelectForDigest(ctx context.Context, windowStart, windowEnd time.Time, limit int) ([]*models.Content, error)

	// SelectForReport returns analyzed items fetched since the given time
	// regardless of delivery state, ordered by quality score descending.
	SelectForReport(ctx context.Context, since time.Time, limit int) ([]*models.Content, error)

	// CommitDelivery marks the given items delivered and advances the
	// slot checkpoint in a single transaction.
	CommitDelivery(ctx context.Context, slot string, contentIDs []int64, checkpoint time.Time) error

	// AdvanceCheckpoint moves the slot checkpoint forward without touching
	// any content rows (empty-window case). A checkpoint never moves
	// backwards.
	AdvanceCheckpoint(ctx context.Context, slot string, checkpoint time.Time) error

	// Checkpoint returns the last committed checkpoint for a slot, if any.
	Checkpoint(ctx context.Context, slot string) (time.Time, bool, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	ListSubscriptions(ctx context.Context, status string) ([]*models.Subscription, error)
	DueSubscriptions(ctx context.Context, now time.Time) ([]*models.Subscription, error)
	MarkSubscriptionFetched(ctx context.Context, id int64, at time.Time) error

	// Audit
	LogFetch(ctx context.Context, log *models.FetchLog) error
	LogCreditUsage(ctx context.Context, source, operation string, credits int, detail string) error
	CreditsUsedSince(ctx context.Context, source string, since time.Time) (int, error)
}
