package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/pulsewatch/pulsewatch/internal/analysis"
	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/credit"
	"github.com/pulsewatch/pulsewatch/internal/ingest"
	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/notify"
	"github.com/pulsewatch/pulsewatch/internal/storage"
)

// cannedAgent answers every prompt with a fixed valid analysis so the
// pipeline can be exercised end to end without agent credentials.
type cannedAgent struct{}

func (cannedAgent) Chat(ctx context.Context, prompt string) (string, error) {
	return `{"summary":"Canned integration summary","key_points":["point one"],` +
		`"sentiment":"neutral","topics":["integration"],"importance":7,` +
		`"recommendation":"none"}`, nil
}

// stdoutTransport prints the digest instead of delivering it.
type stdoutTransport struct{}

func (stdoutTransport) Name() string { return "stdout" }

func (stdoutTransport) Send(ctx context.Context, title, markdown string) error {
	fmt.Println("\n🎉 DIGEST GENERATED!")
	fmt.Println(title)
	fmt.Println("----------------------------------------")
	fmt.Println(markdown)
	return nil
}

// Runs ingest, analysis, and delivery against a real database, with the
// agent and the transport faked. Needs DATABASE_URL.
func main() {
	fmt.Println("🧪 PulseWatch - Pipeline Integration Test")
	fmt.Println("=========================================")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := storage.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}
	fmt.Println("✅ Schema ready")

	// Stage 1: ingest a sample item.
	now := time.Now().UTC()
	gate := ingest.NewGate(store)
	item := models.RawItem{
		Source:       "twitter",
		SourceItemID: fmt.Sprintf("integration-%d", now.UnixNano()),
		Body:         "Integration test item about production pipelines and observability.",
		Author:       "integration_bot",
		Metrics:      models.Metrics{Likes: 150, Shares: 30, Replies: 12},
		PublishedAt:  now.Add(-time.Hour),
	}

	outcome, err := gate.Ingest(ctx, &item, ingest.SourceContext{Origin: models.OriginExploration})
	if err != nil {
		log.Fatalf("Ingest failed: %v", err)
	}
	fmt.Printf("✅ Ingest: %s\n", outcome)

	// Stage 2: analyze with a canned agent.
	budget := credit.NewBudget("agent", cfg.DailyCreditLimit, store)
	dispatcher := analysis.NewDispatcher(store, cannedAgent{}, nil, budget, config.Prompts{}, cfg)

	cycleOutcome, err := dispatcher.RunCycle(ctx)
	if err != nil {
		log.Fatalf("Analysis cycle failed: %v", err)
	}
	fmt.Printf("✅ Analysis: %d analyzed, %d failed\n", cycleOutcome.Processed, cycleOutcome.Failed)

	// Stage 3: deliver to stdout.
	aggregator := notify.NewAggregator(store, dispatcher, []notify.Transport{stdoutTransport{}}, cfg)
	deliverOutcome, err := aggregator.RunCycle(ctx, "integration")
	if err != nil {
		log.Fatalf("Delivery cycle failed: %v", err)
	}
	fmt.Printf("✅ Delivery: %d items (%s)\n", deliverOutcome.Processed, deliverOutcome.Detail)

	fmt.Println("\n✅ Pipeline integration test completed!")
}
