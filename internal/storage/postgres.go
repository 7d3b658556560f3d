package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// PostgresStore implements Store on top of Postgres.
type PostgresStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore opens a connection pool and verifies connectivity.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// InitSchema creates the tables the pipeline needs if they do not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id              BIGSERIAL PRIMARY KEY,
			name            TEXT NOT NULL,
			source          TEXT NOT NULL,
			sub_type        TEXT NOT NULL,
			target          TEXT NOT NULL,
			fetch_interval  BIGINT NOT NULL DEFAULT 21600,
			status          TEXT NOT NULL DEFAULT 'active',
			last_fetched_at TIMESTAMPTZ,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS contents (
			id              BIGSERIAL PRIMARY KEY,
			source          TEXT NOT NULL,
			source_item_id  TEXT NOT NULL,
			subscription_id BIGINT REFERENCES subscriptions(id),
			origin          TEXT NOT NULL,
			title           TEXT NOT NULL DEFAULT '',
			body            TEXT NOT NULL DEFAULT '',
			transcript      TEXT NOT NULL DEFAULT '',
			author          TEXT NOT NULL DEFAULT '',
			author_id       TEXT NOT NULL DEFAULT '',
			url             TEXT NOT NULL DEFAULT '',
			metrics         JSONB NOT NULL DEFAULT '{}',
			has_media       BOOLEAN NOT NULL DEFAULT FALSE,
			quality_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
			analysis        JSONB,
			importance      INT,
			analyzed_at     TIMESTAMPTZ,
			delivered       BOOLEAN NOT NULL DEFAULT FALSE,
			delivered_at    TIMESTAMPTZ,
			published_at    TIMESTAMPTZ NOT NULL,
			fetched_at      TIMESTAMPTZ NOT NULL,
			UNIQUE (source, source_item_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contents_unanalyzed
			ON contents (origin, fetched_at DESC, quality_score DESC)
			WHERE analysis IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_contents_undelivered
			ON contents (fetched_at) WHERE delivered = FALSE AND analysis IS NOT NULL`,
		`CREATE TABLE IF NOT EXISTS notification_checkpoints (
			slot       TEXT PRIMARY KEY,
			checkpoint TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS fetch_logs (
			id              BIGSERIAL PRIMARY KEY,
			subscription_id BIGINT,
			source          TEXT NOT NULL,
			status          TEXT NOT NULL,
			total_fetched   INT NOT NULL DEFAULT 0,
			new_items       INT NOT NULL DEFAULT 0,
			filtered_items  INT NOT NULL DEFAULT 0,
			error_message   TEXT,
			started_at      TIMESTAMPTZ NOT NULL,
			finished_at     TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS credit_log (
			id         BIGSERIAL PRIMARY KEY,
			source     TEXT NOT NULL,
			operation  TEXT NOT NULL,
			credits    INT NOT NULL,
			detail     TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	logrus.Info("Database schema initialized")
	return nil
}

// UpsertContent inserts a content row or refreshes the engagement metrics
// of an existing one. Analysis and delivery state are never touched here.
func (s *PostgresStore) UpsertContent(ctx context.Context, c *models.Content) (bool, error) {
	metricsJSON, err := json.Marshal(c.Metrics)
	if err != nil {
		return false, fmt.Errorf("marshal metrics: %w", err)
	}

	query := `INSERT INTO contents (
			source, source_item_id, subscription_id, origin, title, body,
			transcript, author, author_id, url, metrics, has_media,
			quality_score, published_at, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (source, source_item_id) DO UPDATE
		SET metrics = EXCLUDED.metrics,
		    transcript = CASE WHEN contents.transcript = '' THEN EXCLUDED.transcript ELSE contents.transcript END
		RETURNING (xmax = 0), id`

	var created bool
	err = s.db.QueryRowContext(ctx, query,
		c.Source, c.SourceItemID, c.SubscriptionID, string(c.Origin),
		c.Title, c.Body, c.Transcript, c.Author, c.AuthorID, c.URL,
		metricsJSON, c.HasMedia, c.QualityScore, c.PublishedAt, c.FetchedAt,
	).Scan(&created, &c.ID)
	if err != nil {
		return false, fmt.Errorf("upsert content: %w", err)
	}

	return created, nil
}

const contentColumns = `id, source, source_item_id, subscription_id, origin, title, body,
	transcript, author, author_id, url, metrics, has_media, quality_score,
	analysis, analyzed_at, delivered, delivered_at, published_at, fetched_at`

// SelectUnanalyzed pulls the next analysis batch ordered by the priority
// key: subscription origin beats exploration, newer beats older, higher
// quality breaks the remaining ties.
func (s *PostgresStore) SelectUnanalyzed(ctx context.Context, limit int, minQuality float64) ([]*models.Content, error) {
	query, args, err := s.sb.
		Select(contentColumns).
		From("contents").
		Where("analysis IS NULL").
		Where(sq.GtOrEq{"quality_score": minQuality}).
		OrderBy("(origin = 'subscription') DESC", "fetched_at DESC", "quality_score DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	return s.queryContents(ctx, query, args...)
}

// SetAnalysis writes the analysis result, importance, refined quality
// score and analyzed_at in one statement. It never overwrites an existing
// analysis: re-analysis is an explicit out-of-band operation.
func (s *PostgresStore) SetAnalysis(ctx context.Context, contentID int64, res *models.AnalysisResult, qualityScore float64) error {
	analysisJSON, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE contents
		 SET analysis = $1, importance = $2, quality_score = $3, analyzed_at = NOW()
		 WHERE id = $4 AND analysis IS NULL`,
		analysisJSON, res.Importance, qualityScore, contentID)
	if err != nil {
		return fmt.Errorf("set analysis: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		logrus.Debugf("Content %d already analyzed, write skipped", contentID)
	}

	return nil
}

// SelectForDigest returns analyzed, undelivered items within the window,
// most important first.
func (s *PostgresStore) SelectForDigest(ctx context.Context, windowStart, windowEnd time.Time, limit int) ([]*models.Content, error) {
	query, args, err := s.sb.
		Select(contentColumns).
		From("contents").
		Where("analysis IS NOT NULL").
		Where(sq.Eq{"delivered": false}).
		Where(sq.GtOrEq{"fetched_at": windowStart}).
		Where(sq.Lt{"fetched_at": windowEnd}).
		OrderBy("importance DESC NULLS LAST", "quality_score DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	return s.queryContents(ctx, query, args...)
}

// SelectForReport returns analyzed items fetched since the given time,
// best quality first, regardless of delivery state.
func (s *PostgresStore) SelectForReport(ctx context.Context, since time.Time, limit int) ([]*models.Content, error) {
	query, args, err := s.sb.
		Select(contentColumns).
		From("contents").
		Where("analysis IS NOT NULL").
		Where(sq.GtOrEq{"fetched_at": since}).
		OrderBy("quality_score DESC", "fetched_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	return s.queryContents(ctx, query, args...)
}

// CommitDelivery marks items delivered and advances the checkpoint as one
// logical commit.
func (s *PostgresStore) CommitDelivery(ctx context.Context, slot string, contentIDs []int64, checkpoint time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE contents SET delivered = TRUE, delivered_at = NOW() WHERE id = ANY($1)`,
		pq.Array(contentIDs)); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}

	if err := upsertCheckpoint(ctx, tx, slot, checkpoint); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delivery: %w", err)
	}

	return nil
}

// AdvanceCheckpoint moves the slot checkpoint forward without touching
// content rows.
func (s *PostgresStore) AdvanceCheckpoint(ctx context.Context, slot string, checkpoint time.Time) error {
	return upsertCheckpoint(ctx, s.db, slot, checkpoint)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// upsertCheckpoint only ever moves a checkpoint forward; a stale writer
// cannot rewind the window.
func upsertCheckpoint(ctx context.Context, db execer, slot string, checkpoint time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO notification_checkpoints (slot, checkpoint, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (slot) DO UPDATE
		 SET checkpoint = EXCLUDED.checkpoint, updated_at = NOW()
		 WHERE notification_checkpoints.checkpoint < EXCLUDED.checkpoint`,
		slot, checkpoint)
	if err != nil {
		return fmt.Errorf("advance checkpoint: %w", err)
	}
	return nil
}

// Checkpoint returns the last committed checkpoint for a slot.
func (s *PostgresStore) Checkpoint(ctx context.Context, slot string) (time.Time, bool, error) {
	var cp time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT checkpoint FROM notification_checkpoints WHERE slot = $1`, slot).Scan(&cp)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read checkpoint: %w", err)
	}
	return cp, true, nil
}

// CreateSubscription inserts a subscription row.
func (s *PostgresStore) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO subscriptions (name, source, sub_type, target, fetch_interval, status)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		sub.Name, sub.Source, sub.Type, sub.Target,
		int64(sub.FetchInterval.Seconds()), sub.Status,
	).Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

// ListSubscriptions returns subscriptions filtered by status; an empty
// status returns everything except deleted rows.
func (s *PostgresStore) ListSubscriptions(ctx context.Context, status string) ([]*models.Subscription, error) {
	builder := s.sb.
		Select("id, name, source, sub_type, target, fetch_interval, status, last_fetched_at, created_at").
		From("subscriptions").
		OrderBy("created_at DESC")
	if status != "" {
		builder = builder.Where(sq.Eq{"status": status})
	} else {
		builder = builder.Where(sq.NotEq{"status": "deleted"})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// DueSubscriptions returns active subscriptions whose fetch interval has
// elapsed since last_fetched_at.
func (s *PostgresStore) DueSubscriptions(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, source, sub_type, target, fetch_interval, status, last_fetched_at, created_at
		 FROM subscriptions
		 WHERE status = 'active'
		   AND (last_fetched_at IS NULL
		        OR last_fetched_at + make_interval(secs => fetch_interval) <= $1)
		 ORDER BY last_fetched_at ASC NULLS FIRST`, now)
	if err != nil {
		return nil, fmt.Errorf("due subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// MarkSubscriptionFetched records the last fetch time for a subscription.
func (s *PostgresStore) MarkSubscriptionFetched(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET last_fetched_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("mark subscription fetched: %w", err)
	}
	return nil
}

// LogFetch appends a fetch audit row.
func (s *PostgresStore) LogFetch(ctx context.Context, log *models.FetchLog) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fetch_logs (subscription_id, source, status, total_fetched,
			new_items, filtered_items, error_message, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`,
		log.SubscriptionID, log.Source, log.Status, log.TotalFetched,
		log.NewItems, log.FilteredItems, log.ErrorMessage,
		log.StartedAt, log.FinishedAt)
	if err != nil {
		return fmt.Errorf("log fetch: %w", err)
	}
	return nil
}

// LogCreditUsage appends a credit ledger row.
func (s *PostgresStore) LogCreditUsage(ctx context.Context, source, operation string, credits int, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credit_log (source, operation, credits, detail)
		 VALUES ($1, $2, $3, NULLIF($4, ''))`,
		source, operation, credits, detail)
	if err != nil {
		return fmt.Errorf("log credit usage: %w", err)
	}
	return nil
}

// CreditsUsedSince sums the credit ledger for a source since the given
// time. Used to restore the in-memory budget counter after a restart.
func (s *PostgresStore) CreditsUsedSince(ctx context.Context, source string, since time.Time) (int, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(credits) FROM credit_log WHERE source = $1 AND created_at >= $2`,
		source, since).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("credits used: %w", err)
	}
	return int(total.Int64), nil
}

func (s *PostgresStore) queryContents(ctx context.Context, query string, args ...interface{}) ([]*models.Content, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query contents: %w", err)
	}
	defer rows.Close()

	var contents []*models.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}

func scanContent(rows *sql.Rows) (*models.Content, error) {
	var (
		c            models.Content
		origin       string
		metricsJSON  []byte
		analysisJSON []byte
	)

	err := rows.Scan(
		&c.ID, &c.Source, &c.SourceItemID, &c.SubscriptionID, &origin,
		&c.Title, &c.Body, &c.Transcript, &c.Author, &c.AuthorID, &c.URL,
		&metricsJSON, &c.HasMedia, &c.QualityScore,
		&analysisJSON, &c.AnalyzedAt, &c.Delivered, &c.DeliveredAt,
		&c.PublishedAt, &c.FetchedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan content: %w", err)
	}

	c.Origin = models.OriginClass(origin)
	if len(metricsJSON) > 0 {
		if err := json.Unmarshal(metricsJSON, &c.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal metrics: %w", err)
		}
	}
	if len(analysisJSON) > 0 {
		var res models.AnalysisResult
		if err := json.Unmarshal(analysisJSON, &res); err != nil {
			return nil, fmt.Errorf("unmarshal analysis: %w", err)
		}
		c.Analysis = &res
	}

	return &c, nil
}

func scanSubscription(rows *sql.Rows) (*models.Subscription, error) {
	var (
		sub         models.Subscription
		intervalSec int64
	)
	err := rows.Scan(&sub.ID, &sub.Name, &sub.Source, &sub.Type, &sub.Target,
		&intervalSec, &sub.Status, &sub.LastFetchedAt, &sub.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	sub.FetchInterval = time.Duration(intervalSec) * time.Second
	return &sub, nil
}
