package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Database configuration
	DatabaseURL string

	// Schedule configuration
	TimeZone           string
	FetchCheckInterval time.Duration // how often due subscriptions are checked
	ExploreInterval    time.Duration // how often exploration keywords are searched
	AnalysisInterval   time.Duration // how often the analysis cycle runs
	NotifySchedule     []string      // times of day ("HH:MM") for digest delivery
	CycleTimeout       time.Duration // wall-clock cap per cycle

	// Analysis configuration
	AgentBaseURL       string
	AgentID            string
	TrendAgentID       string
	AgentToken         string
	AgentModel         string
	AnalysisBatchSize  int
	AnalysisTimeout    time.Duration
	DailyCreditLimit   int
	EnableTrendSummary bool
	PromptsFile        string

	// Notification configuration
	WebhookURL        string
	WebhookSecret     string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	NotifyTopN        int
	NotifyLookback    time.Duration
	SkewMargin        time.Duration

	// API keys and credentials
	TwitterAPIKey   string
	YouTubeAPIKey   string
	TranscriptKey   string
	RSSUserAgent    string
	ExploreKeywords []string

	// Ingestion configuration
	MinQualityScore float64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		TimeZone:           getEnv("TIMEZONE", "UTC"),
		FetchCheckInterval: getDurationEnv("FETCH_CHECK_INTERVAL", 10*time.Minute),
		ExploreInterval:    getDurationEnv("EXPLORE_INTERVAL", 6*time.Hour),
		AnalysisInterval:   getDurationEnv("ANALYSIS_INTERVAL", 15*time.Minute),
		NotifySchedule:     getSliceEnv("NOTIFY_SCHEDULE", []string{"09:00", "21:00"}),
		CycleTimeout:       getDurationEnv("CYCLE_TIMEOUT", 20*time.Minute),

		AgentBaseURL:       getEnv("AGENT_BASE_URL", ""),
		AgentID:            getEnv("AGENT_ID", ""),
		TrendAgentID:       getEnv("TREND_AGENT_ID", ""),
		AgentToken:         getEnv("AGENT_TOKEN", ""),
		AgentModel:         getEnv("AGENT_MODEL", "deepseek-v3.1"),
		AnalysisBatchSize:  getIntEnv("ANALYSIS_BATCH_SIZE", 20),
		AnalysisTimeout:    getDurationEnv("ANALYSIS_TIMEOUT", 90*time.Second),
		DailyCreditLimit:   getIntEnv("DAILY_CREDIT_LIMIT", 500),
		EnableTrendSummary: getBoolEnv("ENABLE_TREND_SUMMARY", true),
		PromptsFile:        getEnv("PROMPTS_FILE", ""),

		WebhookURL:        getEnv("WEBHOOK_URL", ""),
		WebhookSecret:     getEnv("WEBHOOK_SECRET", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		NotifyTopN:        getIntEnv("NOTIFY_TOP_N", 10),
		NotifyLookback:    getDurationEnv("NOTIFY_LOOKBACK", 12*time.Hour),
		SkewMargin:        getDurationEnv("SKEW_MARGIN", 2*time.Minute),

		TwitterAPIKey:   getEnv("TWITTER_API_KEY", ""),
		YouTubeAPIKey:   getEnv("YOUTUBE_API_KEY", ""),
		TranscriptKey:   getEnv("TRANSCRIPT_API_KEY", ""),
		RSSUserAgent:    getEnv("RSS_USER_AGENT", "PulseWatch/1.0"),
		ExploreKeywords: getSliceEnv("EXPLORE_KEYWORDS", nil),

		MinQualityScore: getFloatEnv("MIN_QUALITY_SCORE", 0.3),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.WebhookURL == "" && c.NotificationEmail == "" {
		return fmt.Errorf("at least one notification method must be configured (WEBHOOK_URL or NOTIFICATION_EMAIL)")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	for _, t := range c.NotifySchedule {
		if _, _, err := ParseClock(t); err != nil {
			return fmt.Errorf("invalid NOTIFY_SCHEDULE entry %q: %w", t, err)
		}
	}

	if c.AnalysisBatchSize <= 0 {
		return fmt.Errorf("ANALYSIS_BATCH_SIZE must be positive")
	}

	if c.MinQualityScore < 0 || c.MinQualityScore > 1 {
		return fmt.Errorf("MIN_QUALITY_SCORE must be in [0,1]")
	}

	return nil
}

// ParseClock parses a "HH:MM" time-of-day string.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM")
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour %q", parts[0])
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute %q", parts[1])
	}
	return hour, minute, nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return defaultValue
}
