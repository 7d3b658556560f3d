package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

var sourceEmoji = map[string]string{
	"twitter": "🐦",
	"youtube": "📺",
	"rss":     "📰",
}

func emojiFor(source string) string {
	if e, ok := sourceEmoji[source]; ok {
		return e
	}
	return "📄"
}

// BuildDigest assembles one digest over a delivery window. Each call mints
// a fresh digest ID so a resend after an ambiguous failure is detectable
// downstream.
func BuildDigest(slot string, windowStart, windowEnd time.Time, trend *models.TrendSummary, items []*models.Content) *models.Digest {
	return &models.Digest{
		ID:          uuid.NewString(),
		Slot:        slot,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		GeneratedAt: time.Now().UTC(),
		Trend:       trend,
		Items:       items,
	}
}

// RenderDigest renders a digest into a title and markdown body.
func RenderDigest(d *models.Digest) (title, body string) {
	title = fmt.Sprintf("PulseWatch Digest %s (%d items)", d.Slot, len(d.Items))

	var lines []string
	lines = append(lines,
		fmt.Sprintf("📊 **Window**: %s – %s",
			d.WindowStart.Format("01-02 15:04"), d.WindowEnd.Format("01-02 15:04")),
		"")

	counts := make(map[string]int)
	for _, item := range d.Items {
		counts[item.Source]++
	}
	var stats []string
	for _, source := range []string{"twitter", "youtube", "rss"} {
		if counts[source] > 0 {
			stats = append(stats, fmt.Sprintf("%s %d", emojiFor(source), counts[source]))
		}
	}
	if len(stats) > 0 {
		lines = append(lines, "📈 "+strings.Join(stats, " | "), "")
	}

	if d.Trend != nil {
		lines = append(lines, "---", "🤖 **Trend Analysis**")
		lines = append(lines, renderTrend(d.Trend)...)
		lines = append(lines, "")
	}

	lines = append(lines, "---", "📋 **Top Picks**", "")
	for i, item := range d.Items {
		lines = append(lines, renderItem(i+1, item)...)
	}

	lines = append(lines, "", fmt.Sprintf("⏰ Generated %s · digest %s",
		d.GeneratedAt.Format("2006-01-02 15:04"), d.ID))

	return title, strings.Join(lines, "\n")
}

func renderItem(rank int, item *models.Content) []string {
	heading := item.Title
	if heading == "" {
		heading = truncate(item.Body, 80)
	}

	var lines []string
	line := fmt.Sprintf("%d. %s **%s**", rank, emojiFor(item.Source), heading)
	if item.Author != "" {
		line += fmt.Sprintf(" - @%s", item.Author)
	}
	if item.URL != "" {
		line += fmt.Sprintf(" [link](%s)", item.URL)
	}
	lines = append(lines, line)

	if item.Analysis != nil {
		if item.Analysis.Summary != "" {
			lines = append(lines, fmt.Sprintf("   📝 %s", item.Analysis.Summary))
		}
		for _, point := range head(item.Analysis.KeyPoints, 3) {
			lines = append(lines, fmt.Sprintf("   • %s", point))
		}
		if item.Analysis.Importance > 0 {
			stars := strings.Repeat("⭐", min(item.Analysis.Importance/2, 5))
			lines = append(lines, fmt.Sprintf("   %s (%d/10)", stars, item.Analysis.Importance))
		}
	}

	engagement := renderMetrics(item.Metrics)
	if engagement != "" {
		lines = append(lines, "   "+engagement)
	}

	return append(lines, "")
}

func renderTrend(t *models.TrendSummary) []string {
	var lines []string
	if t.OverallSummary != "" {
		lines = append(lines, fmt.Sprintf("📝 %s", t.OverallSummary))
	}
	if len(t.HotTopics) > 0 {
		lines = append(lines, "🔥 **Hot Topics**:")
		for _, topic := range head(t.HotTopics, 5) {
			line := fmt.Sprintf("  • %s", topic.Topic)
			if topic.Description != "" {
				line += " - " + topic.Description
			}
			lines = append(lines, line)
		}
	}
	for _, insight := range head(t.KeyInsights, 5) {
		lines = append(lines, fmt.Sprintf("💡 %s", insight))
	}
	if t.EmergingTrends != "" {
		lines = append(lines, fmt.Sprintf("🌱 %s", t.EmergingTrends))
	}
	if t.Recommendation != "" {
		lines = append(lines, fmt.Sprintf("🎯 %s", t.Recommendation))
	}
	return lines
}

// RenderReport renders a periodic report (daily or weekly) over analyzed
// items regardless of digest delivery state.
func RenderReport(period string, start, end time.Time, trend *models.TrendSummary, items []*models.Content) (title, body string) {
	switch period {
	case "weekly":
		title = fmt.Sprintf("PulseWatch Weekly Report (%s - %s)",
			start.Format("01/02"), end.Format("01/02"))
	default:
		title = fmt.Sprintf("PulseWatch Daily Report (%s)", end.Format("2006-01-02"))
	}

	var lines []string

	counts := make(map[string]int)
	for _, item := range items {
		counts[item.Source]++
	}
	lines = append(lines, fmt.Sprintf("📈 Collected: **%d** items", len(items)))
	for _, source := range []string{"twitter", "youtube", "rss"} {
		if counts[source] > 0 {
			lines = append(lines, fmt.Sprintf("  %s %s: %d", emojiFor(source), source, counts[source]))
		}
	}
	lines = append(lines, "")

	if trend != nil {
		lines = append(lines, "---", "🤖 **Trend Analysis**")
		lines = append(lines, renderTrend(trend)...)
		lines = append(lines, "")
	}

	lines = append(lines, "---", fmt.Sprintf("📋 **Top %d**", min(len(items), 10)), "")
	for i, item := range head(items, 10) {
		heading := item.Title
		if heading == "" {
			heading = truncate(item.Body, 80)
		}
		line := fmt.Sprintf("%d. %s **%s**", i+1, emojiFor(item.Source), heading)
		if item.Author != "" {
			line += fmt.Sprintf(" - @%s", item.Author)
		}
		if item.URL != "" {
			line += fmt.Sprintf(" [link](%s)", item.URL)
		}
		lines = append(lines, line)
	}

	lines = append(lines, "", fmt.Sprintf("⏰ Generated %s", time.Now().Format("2006-01-02 15:04")))

	return title, strings.Join(lines, "\n")
}

func renderMetrics(m models.Metrics) string {
	var parts []string
	if m.Likes > 0 {
		parts = append(parts, fmt.Sprintf("❤️ %s", formatNumber(m.Likes)))
	}
	if m.Shares > 0 {
		parts = append(parts, fmt.Sprintf("🔄 %s", formatNumber(m.Shares)))
	}
	if m.Views > 0 {
		parts = append(parts, fmt.Sprintf("👁️ %s", formatNumber(m.Views)))
	}
	if m.Replies > 0 {
		parts = append(parts, fmt.Sprintf("💬 %s", formatNumber(m.Replies)))
	}
	return strings.Join(parts, " | ")
}

func formatNumber(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func head[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
