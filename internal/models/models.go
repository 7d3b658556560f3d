package models

import (
	"encoding/json"
	"time"
)

// OriginClass distinguishes user-committed subscription content from
// discretionary discovery content.
type OriginClass string

const (
	OriginSubscription OriginClass = "subscription"
	OriginExploration  OriginClass = "exploration"
)

// Sentiment values accepted from the analysis agent.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Metrics holds platform-dependent engagement counters. Fields a platform
// does not report stay zero.
type Metrics struct {
	Views    int64 `json:"views,omitempty"`
	Likes    int64 `json:"likes,omitempty"`
	Shares   int64 `json:"shares,omitempty"`
	Replies  int64 `json:"replies,omitempty"`
	Comments int64 `json:"comments,omitempty"`
}

// RawItem is what a source connector produces before the ingestion gate
// normalizes it into a Content record.
type RawItem struct {
	Source       string          `json:"source"`
	SourceItemID string          `json:"source_item_id"`
	Title        string          `json:"title,omitempty"`
	Body         string          `json:"body"`
	Transcript   string          `json:"transcript,omitempty"`
	Author       string          `json:"author,omitempty"`
	AuthorID     string          `json:"author_id,omitempty"`
	URL          string          `json:"url,omitempty"`
	Metrics      Metrics         `json:"metrics"`
	HasMedia     bool            `json:"has_media,omitempty"`
	PublishedAt  time.Time       `json:"published_at"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// AnalysisResult is the structured judgment returned by the analysis agent
// for a single content item. It is validated at the boundary before any
// state mutation; the pipeline itself only relies on Importance and Summary.
type AnalysisResult struct {
	Summary        string             `json:"summary"`
	KeyPoints      []string           `json:"key_points"`
	Sentiment      string             `json:"sentiment"`
	Topics         []string           `json:"topics"`
	Importance     int                `json:"importance"`
	Recommendation string             `json:"recommendation,omitempty"`
	QualityScores  map[string]float64 `json:"quality_scores,omitempty"`
}

// Content is one canonically deduplicated harvested item. Identity is
// (Source, SourceItemID); engagement metrics may be refreshed by later
// fetches of the same item, the analysis result is append-only.
type Content struct {
	ID             int64           `json:"id"`
	Source         string          `json:"source"`
	SourceItemID   string          `json:"source_item_id"`
	SubscriptionID *int64          `json:"subscription_id,omitempty"`
	Origin         OriginClass     `json:"origin"`
	Title          string          `json:"title,omitempty"`
	Body           string          `json:"body"`
	Transcript     string          `json:"transcript,omitempty"`
	Author         string          `json:"author,omitempty"`
	AuthorID       string          `json:"author_id,omitempty"`
	URL            string          `json:"url,omitempty"`
	Metrics        Metrics         `json:"metrics"`
	HasMedia       bool            `json:"has_media,omitempty"`
	QualityScore   float64         `json:"quality_score"`
	Analysis       *AnalysisResult `json:"analysis,omitempty"`
	AnalyzedAt     *time.Time      `json:"analyzed_at,omitempty"`
	Delivered      bool            `json:"delivered"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	PublishedAt    time.Time       `json:"published_at"`
	FetchedAt      time.Time       `json:"fetched_at"`
}

// Analyzed reports whether the item has a stored analysis result.
func (c *Content) Analyzed() bool {
	return c.Analysis != nil
}

// HigherPriority reports whether a ranks strictly above b for analysis
// selection. The key is lexicographic: origin class first (subscription
// beats exploration), then fetched_at newest first, then quality score.
func HigherPriority(a, b *Content) bool {
	if a.Origin != b.Origin {
		return a.Origin == OriginSubscription
	}
	if !a.FetchedAt.Equal(b.FetchedAt) {
		return a.FetchedAt.After(b.FetchedAt)
	}
	return a.QualityScore > b.QualityScore
}

// Subscription is a tracked harvesting target: a keyword search, an author
// timeline, or a feed URL on one platform.
type Subscription struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Source        string        `json:"source"` // "twitter", "youtube", "rss"
	Type          string        `json:"type"`   // "keyword", "author", "feed"
	Target        string        `json:"target"`
	FetchInterval time.Duration `json:"fetch_interval"`
	Status        string        `json:"status"` // "active", "paused", "deleted"
	LastFetchedAt *time.Time    `json:"last_fetched_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Due reports whether the subscription should be fetched at the given time.
func (s *Subscription) Due(now time.Time) bool {
	if s.Status != "active" {
		return false
	}
	if s.LastFetchedAt == nil {
		return true
	}
	return now.Sub(*s.LastFetchedAt) >= s.FetchInterval
}

// FetchLog is the audit record of one fetch attempt against one target.
type FetchLog struct {
	ID             int64      `json:"id"`
	SubscriptionID *int64     `json:"subscription_id,omitempty"`
	Source         string     `json:"source"`
	Status         string     `json:"status"` // "success", "failed"
	TotalFetched   int        `json:"total_fetched"`
	NewItems       int        `json:"new_items"`
	FilteredItems  int        `json:"filtered_items"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// TrendSummary is the cross-item synthesis produced by the trend agent for
// a digest window.
type TrendSummary struct {
	OverallSummary string     `json:"overall_summary"`
	HotTopics      []HotTopic `json:"hot_topics,omitempty"`
	KeyInsights    []string   `json:"key_insights,omitempty"`
	EmergingTrends string     `json:"emerging_trends,omitempty"`
	Recommendation string     `json:"recommendation,omitempty"`
}

// HotTopic is one entry of a trend summary.
type HotTopic struct {
	Topic       string `json:"topic"`
	Heat        string `json:"heat,omitempty"`
	Description string `json:"description,omitempty"`
}

// Digest is one rendered, ranked batch message covering a window. The ID is
// generated per render so operators can detect duplicate sends after an
// ambiguous post-delivery failure.
type Digest struct {
	ID          string        `json:"id"`
	Slot        string        `json:"slot"`
	WindowStart time.Time     `json:"window_start"`
	WindowEnd   time.Time     `json:"window_end"`
	GeneratedAt time.Time     `json:"generated_at"`
	Trend       *TrendSummary `json:"trend,omitempty"`
	Items       []*Content    `json:"items"`
}

// CycleOutcome summarizes one pipeline cycle for the ops surface.
type CycleOutcome struct {
	Cycle     string `json:"cycle"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Detail    string `json:"detail,omitempty"`
}
