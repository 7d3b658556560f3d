package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/notify"
)

// Renders a digest from sample data so the card layout can be checked
// without a database or any API keys. Pass --send to deliver it through
// the configured webhook.
func main() {
	fmt.Println("📄 PulseWatch - Digest Preview")
	fmt.Println("==============================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	now := time.Now().UTC()
	digest := notify.BuildDigest("09:00", now.Add(-12*time.Hour), now, sampleTrend(), sampleItems(now))

	title, body := notify.RenderDigest(digest)

	fmt.Println("\n" + title)
	fmt.Println("----------------------------------------")
	fmt.Println(body)

	if len(os.Args) > 1 && os.Args[1] == "--send" {
		webhookURL := os.Getenv("WEBHOOK_URL")
		if webhookURL == "" {
			log.Fatal("WEBHOOK_URL is required for --send")
		}

		transport := notify.NewWebhookTransport(webhookURL, os.Getenv("WEBHOOK_SECRET"))
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := transport.Send(ctx, title, body); err != nil {
			log.Fatalf("Send failed: %v", err)
		}
		fmt.Println("\n✅ Digest sent to webhook")
	}
}

func sampleItems(now time.Time) []*models.Content {
	return []*models.Content{
		{
			ID:           1,
			Source:       "twitter",
			SourceItemID: "1890000000000000001",
			Origin:       models.OriginSubscription,
			Body:         "Open weights models are closing the gap faster than anyone predicted. The eval numbers from this week are wild.",
			Author:       "ml_observer",
			URL:          "https://x.com/ml_observer/status/1890000000000000001",
			Metrics:      models.Metrics{Likes: 2400, Shares: 512, Views: 180000},
			QualityScore: 0.82,
			Analysis: &models.AnalysisResult{
				Summary:    "Open-weights models are rapidly approaching frontier performance.",
				KeyPoints:  []string{"Benchmark gap narrowed this quarter", "Cost per token dropped sharply"},
				Sentiment:  models.SentimentPositive,
				Topics:     []string{"llm", "open-source"},
				Importance: 8,
			},
			PublishedAt: now.Add(-3 * time.Hour),
			FetchedAt:   now.Add(-2 * time.Hour),
		},
		{
			ID:           2,
			Source:       "youtube",
			SourceItemID: "dQw4w9WgXcQ",
			Origin:       models.OriginExploration,
			Title:        "Inference at scale: lessons from a year in production",
			Author:       "InfraChannel",
			URL:          "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			Metrics:      models.Metrics{Views: 95000, Likes: 4100},
			QualityScore: 0.74,
			Analysis: &models.AnalysisResult{
				Summary:    "Practical walkthrough of serving cost and latency tradeoffs.",
				Sentiment:  models.SentimentNeutral,
				Topics:     []string{"inference", "infrastructure"},
				Importance: 6,
			},
			PublishedAt: now.Add(-8 * time.Hour),
			FetchedAt:   now.Add(-6 * time.Hour),
		},
	}
}

func sampleTrend() *models.TrendSummary {
	return &models.TrendSummary{
		OverallSummary: "The window is dominated by open-weights progress and inference economics.",
		HotTopics: []models.HotTopic{
			{Topic: "open-weights models", Heat: "high", Description: "multiple strong releases"},
			{Topic: "inference cost", Heat: "medium"},
		},
		KeyInsights:    []string{"Serving cost is the new moat conversation"},
		EmergingTrends: "Small models fine-tuned for narrow domains",
		Recommendation: "Watch quantization tooling announcements",
	}
}
