package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

func digestItems() []*models.Content {
	return []*models.Content{
		{
			ID:     1,
			Source: "twitter",
			Body:   "short tweet text",
			Author: "alice",
			URL:    "https://x.com/alice/status/1",
			Metrics: models.Metrics{
				Likes: 1500, Shares: 200, Views: 2_400_000,
			},
			Analysis: &models.AnalysisResult{
				Summary:    "A notable observation.",
				KeyPoints:  []string{"one", "two", "three", "four"},
				Sentiment:  models.SentimentPositive,
				Importance: 9,
			},
		},
		{
			ID:     2,
			Source: "youtube",
			Title:  "A long video",
			Author: "bob",
			Analysis: &models.AnalysisResult{
				Summary:    "Video summary.",
				Importance: 5,
			},
		},
	}
}

func TestBuildDigest_FreshIDPerRender(t *testing.T) {
	start := time.Now().Add(-12 * time.Hour)
	end := time.Now()

	a := BuildDigest("09:00", start, end, nil, digestItems())
	b := BuildDigest("09:00", start, end, nil, digestItems())

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "09:00", a.Slot)
}

func TestRenderDigest(t *testing.T) {
	start := time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC)
	end := start.Add(12 * time.Hour)
	trend := &models.TrendSummary{
		OverallSummary: "Busy window.",
		HotTopics:      []models.HotTopic{{Topic: "inference", Description: "cost debates"}},
		KeyInsights:    []string{"an insight"},
	}

	digest := BuildDigest("09:00", start, end, trend, digestItems())
	title, body := RenderDigest(digest)

	assert.Contains(t, title, "2 items")

	// Ranked items with their analysis.
	assert.Contains(t, body, "1. 🐦")
	assert.Contains(t, body, "A notable observation.")
	assert.Contains(t, body, "2. 📺 **A long video**")
	assert.Contains(t, body, "@alice")
	assert.Contains(t, body, "[link](https://x.com/alice/status/1)")

	// Only the first three key points are rendered.
	assert.Contains(t, body, "• three")
	assert.NotContains(t, body, "• four")

	// Trend section.
	assert.Contains(t, body, "Trend Analysis")
	assert.Contains(t, body, "Busy window.")
	assert.Contains(t, body, "inference - cost debates")

	// Engagement formatting and the digest ID trailer.
	assert.Contains(t, body, "1.5K")
	assert.Contains(t, body, "2.4M")
	assert.Contains(t, body, digest.ID)
}

func TestRenderDigest_NoTrendSection(t *testing.T) {
	digest := BuildDigest("21:00", time.Now().Add(-time.Hour), time.Now(), nil, digestItems())
	_, body := RenderDigest(digest)
	assert.NotContains(t, body, "Trend Analysis")
}

func TestRenderDigest_UntitledItemUsesBodyExcerpt(t *testing.T) {
	items := []*models.Content{{
		ID:     1,
		Source: "twitter",
		Body:   "a body that stands in for the missing title",
	}}
	digest := BuildDigest("09:00", time.Now().Add(-time.Hour), time.Now(), nil, items)
	_, body := RenderDigest(digest)
	assert.Contains(t, body, "a body that stands in for the missing title")
}

func TestRenderReport(t *testing.T) {
	end := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	start := end.Add(-7 * 24 * time.Hour)

	title, body := RenderReport("weekly", start, end, nil, digestItems())
	assert.Contains(t, title, "Weekly Report")
	assert.Contains(t, body, "Collected: **2** items")
	assert.Contains(t, body, "twitter: 1")

	title, _ = RenderReport("daily", end.Add(-24*time.Hour), end, nil, digestItems())
	assert.Contains(t, title, "Daily Report (2026-03-02)")
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1.5K", formatNumber(1500))
	assert.Equal(t, "2.4M", formatNumber(2_400_000))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "exact", truncate("exact", 5))
	assert.Equal(t, "long ...", truncate("long text", 5))
}
