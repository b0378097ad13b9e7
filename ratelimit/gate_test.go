package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter_SlidesWithTime(t *testing.T) {
	t.Parallel()

	l := NewLimiter(2, time.Minute)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if ok, _ := l.Allow(base); !ok {
		t.Fatalf("expected first event allowed")
	}
	if ok, _ := l.Allow(base.Add(time.Second)); !ok {
		t.Fatalf("expected second event allowed")
	}
	if ok, _ := l.Allow(base.Add(2 * time.Second)); ok {
		t.Fatalf("expected third event within window to be rejected")
	}
	if ok, _ := l.Allow(base.Add(61 * time.Second)); !ok {
		t.Fatalf("expected event after window to be allowed")
	}
}

// fakeQuota is an in-memory QuotaSource used only for tests; it counts
// calls recorded via record, mimicking the ledger's monthly aggregation.
type fakeQuota struct {
	counts map[string]int // key: userID|task|monthStart
}

func newFakeQuota() *fakeQuota { return &fakeQuota{counts: make(map[string]int)} }

func (f *fakeQuota) key(userID string, task Task, monthStart time.Time) string {
	return userID + "|" + string(task) + "|" + monthStart.Format("2006-01")
}

func (f *fakeQuota) record(userID string, task Task, at time.Time) {
	monthStart := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
	f.counts[f.key(userID, task, monthStart)]++
}

func (f *fakeQuota) MonthlySuccessCount(userID string, task Task, monthStart time.Time) int {
	return f.counts[f.key(userID, task, monthStart)]
}

func TestGate_WindowRejectionDoesNotConsumeQuota(t *testing.T) {
	t.Parallel()

	q := newFakeQuota()
	g := NewGate(q)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tier := QuotaTable{TaskIdentification: 1}

	r := g.Allow("u1", TaskIdentification, tier, base)
	if !r.Allowed {
		t.Fatalf("expected first identify allowed")
	}
	q.record("u1", TaskIdentification, base)

	// Burst a request into the same second to trip the 3/s window before
	// quota is ever consulted.
	for i := 0; i < 3; i++ {
		g.Allow("u1", TaskIdentification, tier, base)
	}
	if got := q.MonthlySuccessCount("u1", TaskIdentification, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)); got != 1 {
		t.Fatalf("expected monthly usage still 1 after window-rejected bursts, got %d", got)
	}
}

func TestGate_MonthlyQuotaBoundary(t *testing.T) {
	t.Parallel()

	q := newFakeQuota()
	g := NewGate(q)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tier := QuotaTable{TaskChat: 2}

	for i := 0; i < 2; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		r := g.Allow("u1", TaskChat, tier, at)
		if !r.Allowed {
			t.Fatalf("expected call %d within quota to be allowed", i)
		}
		q.record("u1", TaskChat, at)
	}

	r := g.Allow("u1", TaskChat, tier, base.Add(3*time.Minute))
	if r.Allowed {
		t.Fatalf("expected call past monthly quota to be rejected")
	}
	if r.Reason != "quota_exceeded" {
		t.Fatalf("expected quota rejection reason, got %q", r.Reason)
	}
}

func TestGate_QuotaResetsNextCalendarMonth(t *testing.T) {
	t.Parallel()

	q := newFakeQuota()
	g := NewGate(q)
	jan := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 1, 0, 0, 1, 0, time.UTC)
	tier := QuotaTable{TaskHealth: 1}

	if r := g.Allow("u1", TaskHealth, tier, jan); !r.Allowed {
		t.Fatalf("expected january call allowed")
	}
	q.record("u1", TaskHealth, jan)

	if r := g.Allow("u1", TaskHealth, tier, jan.Add(time.Minute)); r.Allowed {
		t.Fatalf("expected second january call rejected")
	}
	if r := g.Allow("u1", TaskHealth, tier, feb); !r.Allowed {
		t.Fatalf("expected february call allowed after quota reset")
	}
}

func TestGate_PremiumTierUnlimited(t *testing.T) {
	t.Parallel()

	q := newFakeQuota()
	g := NewGate(q)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tier := PremiumTierQuota()

	for i := 0; i < 50; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		r := g.Allow("premium-user", TaskIdentification, tier, at)
		if !r.Allowed {
			t.Fatalf("expected unlimited tier to always allow, failed at iteration %d: %s", i, r.Reason)
		}
		q.record("premium-user", TaskIdentification, at)
	}
}
