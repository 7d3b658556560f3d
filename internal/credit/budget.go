package credit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Ledger is the durable side of the budget: every charge is appended so
// the in-memory counter can be rebuilt after a restart.
type Ledger interface {
	LogCreditUsage(ctx context.Context, source, operation string, credits int, detail string) error
	CreditsUsedSince(ctx context.Context, source string, since time.Time) (int, error)
}

// Budget enforces a daily cap on external-call usage for one source. The
// counter resets at local midnight; on the first check of a new day it is
// restored from the ledger so a restart cannot forget spent credits.
type Budget struct {
	mu     sync.Mutex
	source string
	limit  int
	ledger Ledger

	used int
	day  string // YYYY-MM-DD

	now func() time.Time
}

// NewBudget creates a budget. A limit <= 0 disables enforcement.
func NewBudget(source string, limit int, ledger Ledger) *Budget {
	return &Budget{
		source: source,
		limit:  limit,
		ledger: ledger,
		now:    time.Now,
	}
}

// Source returns the budget's source label.
func (b *Budget) Source() string {
	return b.source
}

// Remaining returns how many credits are left today. Unlimited budgets
// report a large positive number.
func (b *Budget) Remaining(ctx context.Context) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limit <= 0 {
		return int(^uint(0) >> 1)
	}

	b.rollover(ctx)

	remaining := b.limit - b.used
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TryCharge atomically charges credits if the budget allows it, recording
// the usage in the ledger. Returns false when the charge would exceed the
// daily limit.
func (b *Budget) TryCharge(ctx context.Context, credits int, operation, detail string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limit > 0 {
		b.rollover(ctx)
		if b.used+credits > b.limit {
			logrus.Warnf("%s credit budget exceeded: used %d, requested %d, limit %d",
				b.source, b.used, credits, b.limit)
			return false
		}
	}

	b.used += credits

	if b.ledger != nil {
		if err := b.ledger.LogCreditUsage(ctx, b.source, operation, credits, detail); err != nil {
			logrus.Warnf("Failed to persist credit usage: %v", err)
		}
	}

	return true
}

// rollover resets the counter on day change, restoring from the ledger.
// Caller must hold b.mu.
func (b *Budget) rollover(ctx context.Context) {
	today := b.now().Format("2006-01-02")
	if b.day == today {
		return
	}

	b.day = today
	b.used = 0

	if b.ledger != nil {
		// Midnight in the clock's own location, so the restore bound matches
		// the day key regardless of the process timezone.
		n := b.now()
		midnight := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, n.Location())
		used, err := b.ledger.CreditsUsedSince(ctx, b.source, midnight)
		if err != nil {
			logrus.Warnf("Failed to restore credit usage from ledger: %v", err)
		} else {
			b.used = used
		}
	}
}
