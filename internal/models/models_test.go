package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHigherPriority(t *testing.T) {
	older := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	tests := []struct {
		name     string
		a, b     Content
		expected bool
	}{
		{
			name:     "subscription beats exploration regardless of recency",
			a:        Content{Origin: OriginSubscription, FetchedAt: older, QualityScore: 0.1},
			b:        Content{Origin: OriginExploration, FetchedAt: newer, QualityScore: 0.9},
			expected: true,
		},
		{
			name:     "exploration never beats subscription",
			a:        Content{Origin: OriginExploration, FetchedAt: newer, QualityScore: 0.9},
			b:        Content{Origin: OriginSubscription, FetchedAt: older, QualityScore: 0.1},
			expected: false,
		},
		{
			name:     "same origin, fresher fetch wins",
			a:        Content{Origin: OriginSubscription, FetchedAt: newer, QualityScore: 0.1},
			b:        Content{Origin: OriginSubscription, FetchedAt: older, QualityScore: 0.9},
			expected: true,
		},
		{
			name:     "same origin and fetch time, quality decides",
			a:        Content{Origin: OriginExploration, FetchedAt: older, QualityScore: 0.8},
			b:        Content{Origin: OriginExploration, FetchedAt: older, QualityScore: 0.5},
			expected: true,
		},
		{
			name:     "identical keys are not strictly higher",
			a:        Content{Origin: OriginExploration, FetchedAt: older, QualityScore: 0.5},
			b:        Content{Origin: OriginExploration, FetchedAt: older, QualityScore: 0.5},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HigherPriority(&tt.a, &tt.b))
		})
	}
}

func TestSubscription_Due(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-10 * time.Minute)
	stale := now.Add(-2 * time.Hour)

	tests := []struct {
		name     string
		sub      Subscription
		expected bool
	}{
		{
			name:     "never fetched",
			sub:      Subscription{Status: "active", FetchInterval: time.Hour},
			expected: true,
		},
		{
			name:     "interval elapsed",
			sub:      Subscription{Status: "active", FetchInterval: time.Hour, LastFetchedAt: &stale},
			expected: true,
		},
		{
			name:     "fetched recently",
			sub:      Subscription{Status: "active", FetchInterval: time.Hour, LastFetchedAt: &recent},
			expected: false,
		},
		{
			name:     "paused subscription is never due",
			sub:      Subscription{Status: "paused", FetchInterval: time.Hour, LastFetchedAt: &stale},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.sub.Due(now))
		})
	}
}

func TestContent_Analyzed(t *testing.T) {
	c := Content{}
	assert.False(t, c.Analyzed())

	c.Analysis = &AnalysisResult{Summary: "s", Importance: 5}
	assert.True(t, c.Analyzed())
}
