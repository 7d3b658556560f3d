package credit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryLedger records charges in memory.
type memoryLedger struct {
	entries []int
	stored  int
	since   time.Time
}

func (m *memoryLedger) LogCreditUsage(ctx context.Context, source, operation string, credits int, detail string) error {
	m.entries = append(m.entries, credits)
	return nil
}

func (m *memoryLedger) CreditsUsedSince(ctx context.Context, source string, since time.Time) (int, error) {
	m.since = since
	return m.stored, nil
}

func TestBudget_TryCharge(t *testing.T) {
	ledger := &memoryLedger{}
	budget := NewBudget("twitter", 100, ledger)

	ctx := context.Background()
	assert.True(t, budget.TryCharge(ctx, 75, "search", "keyword=ai"))
	assert.Equal(t, 25, budget.Remaining(ctx))

	// A charge that would cross the limit is refused and not recorded.
	assert.False(t, budget.TryCharge(ctx, 75, "search", "keyword=ml"))
	assert.Equal(t, 25, budget.Remaining(ctx))
	require.Len(t, ledger.entries, 1)

	assert.True(t, budget.TryCharge(ctx, 25, "search", "keyword=go"))
	assert.Equal(t, 0, budget.Remaining(ctx))
}

func TestBudget_UnlimitedWhenNoLimit(t *testing.T) {
	budget := NewBudget("agent", 0, &memoryLedger{})

	ctx := context.Background()
	assert.True(t, budget.TryCharge(ctx, 1000000, "analysis", ""))
	assert.Greater(t, budget.Remaining(ctx), 1000000)
}

func TestBudget_RestoresFromLedgerOnNewDay(t *testing.T) {
	ledger := &memoryLedger{stored: 80}
	budget := NewBudget("twitter", 100, ledger)

	// Simulates a process restart: the counter is empty but the ledger
	// already holds today's usage.
	ctx := context.Background()
	assert.Equal(t, 20, budget.Remaining(ctx))
	assert.False(t, budget.TryCharge(ctx, 75, "search", ""))
	assert.True(t, budget.TryCharge(ctx, 20, "search", ""))
}

func TestBudget_RestoreBoundIsLocalMidnight(t *testing.T) {
	ledger := &memoryLedger{stored: 80}
	budget := NewBudget("twitter", 100, ledger)

	// Early morning east of UTC: local midnight is still the previous UTC day.
	shanghai := time.FixedZone("CST", 8*3600)
	budget.now = func() time.Time {
		return time.Date(2026, 3, 2, 7, 0, 0, 0, shanghai)
	}

	ctx := context.Background()
	assert.Equal(t, 20, budget.Remaining(ctx))

	want := time.Date(2026, 3, 2, 0, 0, 0, 0, shanghai)
	assert.True(t, ledger.since.Equal(want), "restore bound %v, want %v", ledger.since, want)
	// The bound must not be in the future of the clock, or today's spend
	// would restore as zero after a restart.
	assert.False(t, ledger.since.After(budget.now()))
}

func TestBudget_RolloverResetsCounter(t *testing.T) {
	ledger := &memoryLedger{}
	budget := NewBudget("twitter", 100, ledger)

	day := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	budget.now = func() time.Time { return day }

	ctx := context.Background()
	assert.True(t, budget.TryCharge(ctx, 100, "search", ""))
	assert.Equal(t, 0, budget.Remaining(ctx))

	// Next day the counter starts over (ledger has no usage for the new day).
	budget.now = func() time.Time { return day.Add(2 * time.Hour) }
	assert.Equal(t, 100, budget.Remaining(ctx))
	assert.True(t, budget.TryCharge(ctx, 50, "search", ""))
}
