package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

func TestQualityScore_Bounds(t *testing.T) {
	now := time.Now()

	// Maxed-out item stays within [0,1].
	rich := &models.RawItem{
		Source:      "twitter",
		Title:       "title",
		Body:        strings.Repeat("x", 600),
		Transcript:  strings.Repeat("t", 200),
		Author:      "someone",
		HasMedia:    true,
		Metrics:     models.Metrics{Likes: 10000, Shares: 5000, Replies: 2000},
		PublishedAt: now.Add(-10 * time.Minute),
	}
	score := QualityScore(rich, now)
	assert.LessOrEqual(t, score, 1.0)
	assert.Greater(t, score, 0.8)

	// Empty item scores near zero but not negative.
	empty := &models.RawItem{Source: "twitter"}
	score = QualityScore(empty, now)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.Less(t, score, 0.2)
}

func TestScoreEngagement_TwitterTiers(t *testing.T) {
	tests := []struct {
		name     string
		metrics  models.Metrics
		expected float64
	}{
		{"viral", models.Metrics{Likes: 4000, Shares: 1000}, 0.40},
		{"strong", models.Metrics{Likes: 1500}, 0.30},
		{"moderate", models.Metrics{Likes: 50, Replies: 30}, 0.20},
		{"light", models.Metrics{Likes: 20}, 0.10},
		{"minimal", models.Metrics{Likes: 1}, 0.03},
		{"none", models.Metrics{}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, scoreEngagement(tt.metrics, "twitter"))
		})
	}
}

func TestScoreEngagement_YouTubeLikesFallback(t *testing.T) {
	// With view data the views tiers apply.
	assert.Equal(t, 0.30, scoreEngagement(models.Metrics{Views: 500000}, "youtube"))

	// Without views, likes carry a reduced signal.
	assert.Equal(t, 0.15, scoreEngagement(models.Metrics{Likes: 500}, "youtube"))
	assert.Equal(t, 0.0, scoreEngagement(models.Metrics{}, "youtube"))
}

func TestScoreEngagement_FeedBaseline(t *testing.T) {
	// Feeds have no counters: neutral baseline instead of zero.
	assert.Equal(t, 0.15, scoreEngagement(models.Metrics{}, "rss"))
}

func TestScoreFreshness(t *testing.T) {
	now := time.Now()

	assert.Equal(t, 0.15, scoreFreshness(now.Add(-30*time.Minute), now))
	assert.Equal(t, 0.12, scoreFreshness(now.Add(-3*time.Hour), now))
	assert.Equal(t, 0.10, scoreFreshness(now.Add(-20*time.Hour), now))
	assert.Equal(t, 0.02, scoreFreshness(now.Add(-30*24*time.Hour), now))
	assert.Equal(t, 0.05, scoreFreshness(time.Time{}, now))
}

func TestRefineQualityScore(t *testing.T) {
	// importance dominates: 0.7*imp/10 + 0.3*heuristic
	assert.Equal(t, 0.73, RefineQualityScore(10, 0.1))
	assert.Equal(t, 0.25, RefineQualityScore(2, 0.3666667))
	assert.Equal(t, 1.0, RefineQualityScore(10, 1.0))

	// Out-of-range importance is clamped.
	assert.Equal(t, RefineQualityScore(1, 0.5), RefineQualityScore(0, 0.5))
	assert.Equal(t, RefineQualityScore(10, 0.5), RefineQualityScore(15, 0.5))
}
