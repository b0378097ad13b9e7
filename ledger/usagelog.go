package ledger

import (
	"context"
	"time"

	"github.com/greenleaf-ai/core/ratelimit"
	"github.com/greenleaf-ai/core/types"
)

// EntryWriter persists a UsageLogEntry. It is implemented by the repository
// package; the ledger depends only on this narrow interface so it never
// needs to know about gorm or SQL.
type EntryWriter interface {
	AppendUsageLogEntry(ctx context.Context, entry types.UsageLogEntry) error
	SumMonthlyCost(ctx context.Context, userID string, month time.Time) (float64, error)
	CountMonthlySuccess(ctx context.Context, userID string, task string, monthStart time.Time) (int, error)
}

// Ledger combines pricing with durable recording: every gateway attempt,
// successful or not, is appended so the monthly cost and the rate limiter's
// quota gate can both be derived from the same source of truth.
type Ledger struct {
	calculator *CostCalculator
	writer     EntryWriter
}

// New creates a Ledger that prices calls with calculator and persists them
// through writer.
func New(calculator *CostCalculator, writer EntryWriter) *Ledger {
	if calculator == nil {
		calculator = NewCostCalculator()
	}
	return &Ledger{calculator: calculator, writer: writer}
}

// Record prices one gateway attempt and appends it to the usage log. The
// entry is recorded even when the call failed (Outcome is "failure" and
// ErrorCode carries the reason), so operators can see retries and dead providers in the
// same table as billed usage.
func (l *Ledger) Record(ctx context.Context, entry types.UsageLogEntry) error {
	if entry.Cost == 0 && entry.Outcome == "success" {
		entry.Cost = l.calculator.Calculate(entry.Provider, entry.Model, entry.PromptTokens, entry.CompletionTokens)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return l.writer.AppendUsageLogEntry(ctx, entry)
}

// MonthlySpend returns the total USD cost recorded for userID in the
// calendar month containing at.
func (l *Ledger) MonthlySpend(ctx context.Context, userID string, at time.Time) (float64, error) {
	return l.writer.SumMonthlyCost(ctx, userID, at)
}

// Calculator exposes the underlying price table, e.g. for an admin endpoint
// that reports the prices currently in effect.
func (l *Ledger) Calculator() *CostCalculator {
	return l.calculator
}

// MonthlySuccessCount implements ratelimit.QuotaSource: it counts the
// successful UsageLogEntry rows for userID/task since monthStart. A lookup
// failure is treated as zero usage rather than blocking the caller, since
// the rate limiter's quota check must never itself become the reason a
// request fails when the ledger is merely slow or briefly unreachable.
func (l *Ledger) MonthlySuccessCount(userID string, task ratelimit.Task, monthStart time.Time) int {
	n, err := l.writer.CountMonthlySuccess(context.Background(), userID, string(task), monthStart)
	if err != nil {
		return 0
	}
	return n
}
