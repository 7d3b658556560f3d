package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/storage"
)

// Outcome of one ingest call.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
)

// SourceContext carries the provenance of a raw item through the gate.
type SourceContext struct {
	SubscriptionID *int64
	Origin         models.OriginClass
}

// Gate normalizes raw fetched items into canonical Content records,
// deduplicates them against storage and an in-cycle content fingerprint
// set, and attaches the heuristic quality score. Items below the quality
// floor are still persisted for auditability; the floor is applied by the
// analysis selector, not here.
type Gate struct {
	store storage.Store
	now   func() time.Time

	mu         sync.Mutex
	seenHashes map[string]bool
}

// NewGate creates an ingestion gate.
func NewGate(store storage.Store) *Gate {
	return &Gate{
		store:      store,
		now:        time.Now,
		seenHashes: make(map[string]bool),
	}
}

// Ingest pushes a single raw item through the gate. A duplicate merges
// refreshed engagement metrics into the existing row and never touches
// analysis or delivery state. Rejected means storage itself failed; the
// caller retries at the batch level.
func (g *Gate) Ingest(ctx context.Context, item *models.RawItem, src SourceContext) (Outcome, error) {
	if item.Source == "" || item.SourceItemID == "" {
		return OutcomeRejected, fmt.Errorf("item missing identity (source=%q, id=%q)", item.Source, item.SourceItemID)
	}

	// Cross-platform near-duplicate suppression within one fetch cycle.
	fp := fingerprint(item)
	g.mu.Lock()
	if g.seenHashes[fp] {
		g.mu.Unlock()
		return OutcomeDuplicate, nil
	}
	g.seenHashes[fp] = true
	g.mu.Unlock()

	now := g.now().UTC()
	content := &models.Content{
		Source:         item.Source,
		SourceItemID:   item.SourceItemID,
		SubscriptionID: src.SubscriptionID,
		Origin:         src.Origin,
		Title:          item.Title,
		Body:           item.Body,
		Transcript:     item.Transcript,
		Author:         item.Author,
		AuthorID:       item.AuthorID,
		URL:            item.URL,
		Metrics:        item.Metrics,
		HasMedia:       item.HasMedia,
		QualityScore:   QualityScore(item, now),
		PublishedAt:    item.PublishedAt,
		FetchedAt:      now,
	}
	if content.Origin == "" {
		content.Origin = models.OriginExploration
	}

	created, err := g.store.UpsertContent(ctx, content)
	if err != nil {
		return OutcomeRejected, fmt.Errorf("persist content: %w", err)
	}

	if created {
		return OutcomeCreated, nil
	}
	return OutcomeDuplicate, nil
}

// IngestBatch runs a slice of raw items through the gate and reports
// counts. Storage errors are counted as rejected, not fatal: the fetch
// cycle decides whether to retry the batch.
func (g *Gate) IngestBatch(ctx context.Context, items []models.RawItem, src SourceContext) (created, duplicate, rejected int) {
	for i := range items {
		outcome, err := g.Ingest(ctx, &items[i], src)
		if err != nil {
			logrus.Errorf("Ingest failed for %s/%s: %v", items[i].Source, items[i].SourceItemID, err)
		}
		switch outcome {
		case OutcomeCreated:
			created++
		case OutcomeDuplicate:
			duplicate++
		case OutcomeRejected:
			rejected++
		}
	}
	return created, duplicate, rejected
}

// ResetSeen clears the in-cycle fingerprint set. The fetch cycle calls
// this once per round so refreshed items are not mistaken for duplicates
// across cycles.
func (g *Gate) ResetSeen() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seenHashes = make(map[string]bool)
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// fingerprint hashes title plus the first 200 bytes of body so the same
// story surfacing on two platforms collapses within a cycle.
func fingerprint(item *models.RawItem) string {
	title := strings.ToLower(strings.TrimSpace(item.Title))
	body := strings.ToLower(strings.TrimSpace(item.Body))
	if len(body) > 200 {
		body = body[:200]
	}
	text := whitespaceRe.ReplaceAllString(title+"|"+body, " ")
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
