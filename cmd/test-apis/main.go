package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/sources"
)

func main() {
	fmt.Println("🔍 PulseWatch - API Connectivity Test")
	fmt.Println("=====================================")

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	keyword := "artificial intelligence"
	if len(os.Args) > 1 {
		keyword = os.Args[1]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	fmt.Printf("\n📡 Testing sources with keyword %q...\n", keyword)
	fmt.Println(strings.Repeat("-", 40))

	target := sources.Target{
		Type:  sources.TargetKeyword,
		Value: keyword,
		Since: time.Now().Add(-24 * time.Hour),
		Limit: 5,
	}

	testSource(ctx, sources.NewTwitterSource(cfg.TwitterAPIKey), target)
	testSource(ctx, sources.NewYouTubeSource(cfg.YouTubeAPIKey), target)
	testSource(ctx, sources.NewRSSSource(cfg.RSSUserAgent), sources.Target{
		Type:  sources.TargetFeed,
		Value: "https://hnrss.org/frontpage",
		Limit: 5,
	})

	fmt.Println("\n✅ API connectivity test completed!")
	fmt.Println("\n💡 Next steps:")
	fmt.Println("   • Configure missing API keys in .env file")
	fmt.Println("   • Run the full pipeline with: go run ./cmd/pulsewatch")
}

func testSource(ctx context.Context, source sources.Source, target sources.Target) {
	fmt.Printf("🔸 Testing %s... ", source.Name())

	if !source.Enabled() {
		fmt.Printf("⚠️  DISABLED (missing API key)\n")
		return
	}

	start := time.Now()
	items, err := source.Fetch(ctx, target)
	if err != nil {
		fmt.Printf("❌ FAILED: %v\n", err)
		return
	}

	fmt.Printf("✅ OK (%d items in %v)\n", len(items), time.Since(start).Round(time.Millisecond))
	for i, item := range items {
		if i >= 3 {
			break
		}
		title := item.Title
		if title == "" {
			title = item.Body
		}
		if len(title) > 60 {
			title = title[:60] + "..."
		}
		fmt.Printf("   %d. %s (@%s)\n", i+1, title, item.Author)
	}
}
