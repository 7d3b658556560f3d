package sources

import (
	"context"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// Target types a source can be asked to fetch.
const (
	TargetKeyword = "keyword"
	TargetAuthor  = "author"
	TargetFeed    = "feed"
)

// Target describes one fetch request against a source.
type Target struct {
	Type  string // keyword, author or feed
	Value string
	Since time.Time // hint; sources may ignore it
	Limit int
}

// Source interface defines the contract for all data sources. A source
// failure is per-target and must not abort other sources in the same
// cycle; callers handle errors per fetch.
type Source interface {
	Name() string
	Enabled() bool
	Fetch(ctx context.Context, target Target) ([]models.RawItem, error)
}
