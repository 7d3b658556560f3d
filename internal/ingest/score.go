package ingest

import (
	"math"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// QualityScore computes the heuristic quality estimate in [0,1] for a raw
// item at ingestion time. The weights are tunable policy, not invariants:
// engagement contributes up to 0.40, content richness up to 0.25,
// freshness up to 0.15, media/transcript presence up to 0.10, and author
// attribution up to 0.10.
func QualityScore(item *models.RawItem, now time.Time) float64 {
	score := scoreEngagement(item.Metrics, item.Source) +
		scoreRichness(item) +
		scoreFreshness(item.PublishedAt, now) +
		scoreMedia(item) +
		scoreAuthor(item)

	return math.Min(round4(score), 1.0)
}

// RefineQualityScore folds the analysis agent's importance judgment into
// the heuristic score. Importance dominates once available: it reflects
// semantic judgment rather than surface engagement.
func RefineQualityScore(importance int, heuristic float64) float64 {
	if importance < 1 {
		importance = 1
	}
	if importance > 10 {
		importance = 10
	}
	return round4(0.7*float64(importance)/10 + 0.3*heuristic)
}

func scoreEngagement(m models.Metrics, source string) float64 {
	switch source {
	case "twitter":
		engagement := m.Likes + m.Shares*2 + m.Replies*3
		switch {
		case engagement > 5000:
			return 0.40
		case engagement > 1000:
			return 0.30
		case engagement > 100:
			return 0.20
		case engagement > 10:
			return 0.10
		case engagement > 0:
			return 0.03
		}
		return 0.0

	case "youtube":
		switch {
		case m.Views > 1000000:
			return 0.40
		case m.Views > 100000:
			return 0.30
		case m.Views > 10000:
			return 0.20
		case m.Views > 1000:
			return 0.12
		case m.Views > 100:
			return 0.05
		}
		// No view data: fall back to likes.
		if m.Views == 0 && m.Likes > 0 {
			switch {
			case m.Likes > 1000:
				return 0.25
			case m.Likes > 100:
				return 0.15
			case m.Likes > 10:
				return 0.08
			}
		}
		return 0.0
	}

	// Feeds carry no engagement counters: neutral baseline so text-only
	// sources are not starved by the quality floor.
	return 0.15
}

func scoreRichness(item *models.RawItem) float64 {
	score := 0.0
	totalLen := len(item.Body) + len(item.Title)

	switch {
	case totalLen > 500:
		score += 0.20
	case totalLen > 200:
		score += 0.15
	case totalLen > 100:
		score += 0.10
	case totalLen > 30:
		score += 0.05
	}

	if len(item.Transcript) > 100 {
		score += 0.05
	}

	return math.Min(score, 0.25)
}

func scoreFreshness(publishedAt, now time.Time) float64 {
	if publishedAt.IsZero() {
		return 0.05
	}

	age := now.Sub(publishedAt)
	switch {
	case age < time.Hour:
		return 0.15
	case age < 6*time.Hour:
		return 0.12
	case age < 24*time.Hour:
		return 0.10
	case age < 3*24*time.Hour:
		return 0.07
	case age < 7*24*time.Hour:
		return 0.04
	}
	return 0.02
}

func scoreMedia(item *models.RawItem) float64 {
	score := 0.0
	if item.HasMedia {
		score += 0.05
	}
	if item.Transcript != "" {
		score += 0.05
	} else if item.Title != "" {
		score += 0.03
	}
	return math.Min(score, 0.10)
}

func scoreAuthor(item *models.RawItem) float64 {
	if item.Author == "" && item.AuthorID == "" {
		return 0.0
	}
	return 0.03
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
