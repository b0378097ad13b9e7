package ratelimit

import (
	"sync"
	"time"
)

// Task identifies the billable, quota-gated operations the monthly quota
// tracks. It is distinct from the sliding-window gate, which is keyed only
// by user: the burst windows enforce request rate, not feature caps.
type Task string

const (
	TaskIdentification Task = "identification"
	TaskHealth         Task = "health"
	TaskChat           Task = "chat"
)

// UnlimitedQuota is the sentinel a premium tier's monthly cap carries: the
// quota gate always allows and never queries usage for it.
const UnlimitedQuota = -1

// QuotaTable holds the tier-dependent monthly caps for each task.
type QuotaTable map[Task]int

// FreeTierQuota is the free-tier monthly cap set.
func FreeTierQuota() QuotaTable {
	return QuotaTable{TaskIdentification: 5, TaskHealth: 2, TaskChat: 10}
}

// PremiumTierQuota grants unlimited use of every task.
func PremiumTierQuota() QuotaTable {
	return QuotaTable{TaskIdentification: UnlimitedQuota, TaskHealth: UnlimitedQuota, TaskChat: UnlimitedQuota}
}

// QuotaSource answers how many successful calls a user has made for a task
// in the current calendar month. It is implemented by the ledger package.
type QuotaSource interface {
	MonthlySuccessCount(userID string, task Task, monthStart time.Time) int
}

// Result is the decision returned by Gate.Allow.
type Result struct {
	Allowed    bool
	RetryAfter time.Time
	Reason     string // "rate_limit" or "quota_exceeded"
}

type userWindows struct {
	perSecond *Limiter
	per10Sec  *Limiter
	perMinute *Limiter
}

// Gate enforces three concurrent sliding windows
// (3/s, 20/10s, 100/60s) per user, short-circuiting on the first
// violation, followed by a per-task monthly quota check. Window checks
// never consume quota: a request rejected for bursting too fast must not
// count against the user's monthly allowance.
type Gate struct {
	mu    sync.Mutex
	users map[string]*userWindows
	quota QuotaSource
}

// NewGate creates a Gate that consults quota for monthly quota decisions.
// quota may be nil if only burst-rate limiting is needed (e.g. in tests).
func NewGate(quota QuotaSource) *Gate {
	return &Gate{users: make(map[string]*userWindows), quota: quota}
}

func (g *Gate) windowsFor(userID string) *userWindows {
	g.mu.Lock()
	defer g.mu.Unlock()
	uw, ok := g.users[userID]
	if !ok {
		uw = &userWindows{
			perSecond: NewLimiter(3, time.Second),
			per10Sec:  NewLimiter(20, 10*time.Second),
			perMinute: NewLimiter(100, 60*time.Second),
		}
		g.users[userID] = uw
	}
	return uw
}

// Allow runs both gates in order: the three burst windows first, then the
// monthly quota for task under tier. Both decisions happen before any
// provider call is attempted.
func (g *Gate) Allow(userID string, task Task, tier QuotaTable, now time.Time) Result {
	uw := g.windowsFor(userID)

	if ok, retryAt := uw.perSecond.Allow(now); !ok {
		return Result{Allowed: false, RetryAfter: retryAt, Reason: "rate_limit"}
	}
	if ok, retryAt := uw.per10Sec.Allow(now); !ok {
		return Result{Allowed: false, RetryAfter: retryAt, Reason: "rate_limit"}
	}
	if ok, retryAt := uw.perMinute.Allow(now); !ok {
		return Result{Allowed: false, RetryAfter: retryAt, Reason: "rate_limit"}
	}

	capN, ok := tier[task]
	if !ok || capN == UnlimitedQuota || g.quota == nil {
		return Result{Allowed: true}
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	used := g.quota.MonthlySuccessCount(userID, task, monthStart)
	if used >= capN {
		nextMonth := monthStart.AddDate(0, 1, 0)
		return Result{Allowed: false, RetryAfter: nextMonth, Reason: "quota_exceeded"}
	}
	return Result{Allowed: true}
}
