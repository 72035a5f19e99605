package reporting

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepository struct {
	mu            sync.Mutex
	summaryCalls  int
	modeCalls     int
	defaultCalls  int
	lastModeFrom  time.Time
	lastModeTo    time.Time
	overdueCount  int

	summary    CollectionSummary
	modes      []ModeBreakdownRow
	defaulters []DefaulterRow
}

func (f *fakeRepository) CollectionSummary(_ context.Context, schoolID int64, yearID *int64) (CollectionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryCalls++
	return f.summary, nil
}

func (f *fakeRepository) PaymentModeBreakdown(_ context.Context, schoolID int64, from, to time.Time) ([]ModeBreakdownRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modeCalls++
	f.lastModeFrom = from
	f.lastModeTo = to
	return f.modes, nil
}

func (f *fakeRepository) Defaulters(_ context.Context, schoolID int64, asOf time.Time) ([]DefaulterRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultCalls++
	return f.defaulters, nil
}

func (f *fakeRepository) CountOverdueInstallments(_ context.Context, asOf time.Time) (int, error) {
	return f.overdueCount, nil
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func fixedClock() time.Time {
	return time.Date(2026, time.August, 29, 10, 0, 0, 0, time.UTC)
}

func TestSummaryServedFromCache(t *testing.T) {
	repo := &fakeRepository{summary: CollectionSummary{
		TotalBilled:    decimal.RequireFromString("12000.00"),
		TotalCollected: decimal.RequireFromString("5000.00"),
		Ledgers:        3,
	}}
	svc := NewService(repo, newTestCache(t))
	svc.WithNow(fixedClock)
	ctx := context.Background()

	first, err := svc.Summary(ctx, 1, nil)
	require.NoError(t, err)
	second, err := svc.Summary(ctx, 1, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.summaryCalls, "second read must come from cache")
	assert.True(t, first.TotalBilled.Equal(second.TotalBilled))
	assert.Equal(t, 3, second.Ledgers)
}

func TestInvalidateForcesReload(t *testing.T) {
	repo := &fakeRepository{summary: CollectionSummary{Ledgers: 1}}
	svc := NewService(repo, newTestCache(t))
	svc.WithNow(fixedClock)
	ctx := context.Background()

	_, err := svc.Summary(ctx, 1, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(ctx))

	_, err = svc.Summary(ctx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.summaryCalls, "bump must invalidate the cached summary")
}

func TestSummaryKeyVariesByYear(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo, newTestCache(t))
	ctx := context.Background()

	year := int64(100)
	_, err := svc.Summary(ctx, 1, nil)
	require.NoError(t, err)
	_, err = svc.Summary(ctx, 1, &year)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.summaryCalls, "per-year summaries cache independently")
}

func TestDashboardAssemblesAllParts(t *testing.T) {
	repo := &fakeRepository{
		summary: CollectionSummary{Ledgers: 2, Paid: 1, Partial: 1},
		modes: []ModeBreakdownRow{
			{Mode: "CASH", Payments: 3, Amount: decimal.RequireFromString("900.00")},
		},
		defaulters: []DefaulterRow{
			{StudentFeeID: 7, StudentID: 10, StudentName: "A. Student", Outstanding: decimal.RequireFromString("400.00")},
		},
	}
	svc := NewService(repo, newTestCache(t))
	svc.WithNow(fixedClock)

	dash, err := svc.Dashboard(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, dash.Summary.Ledgers)
	require.Len(t, dash.Modes, 1)
	assert.Equal(t, "CASH", dash.Modes[0].Mode)
	require.Len(t, dash.Defaulters, 1)
	assert.Equal(t, fixedClock(), dash.GeneratedAt)

	// The mode breakdown covers month-to-date.
	assert.Equal(t, time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC), repo.lastModeFrom)
	assert.Equal(t, fixedClock(), repo.lastModeTo)
}

func TestCacheNilClientPassesThrough(t *testing.T) {
	repo := &fakeRepository{summary: CollectionSummary{Ledgers: 5}}
	svc := NewService(repo, &Cache{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		out, err := svc.Summary(ctx, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, 5, out.Ledgers)
	}
	assert.Equal(t, 2, repo.summaryCalls, "without redis every read hits the repository")
}

func TestWriteDefaultersCSV(t *testing.T) {
	rows := []DefaulterRow{
		{
			StudentFeeID:        7,
			StudentID:           10,
			StudentName:         "A. Student",
			Outstanding:         decimal.RequireFromString("12400.50"),
			OverdueSince:        time.Date(2026, time.May, 15, 0, 0, 0, 0, time.UTC),
			InstallmentsOverdue: 2,
		},
	}
	var sb strings.Builder
	require.NoError(t, WriteDefaultersCSV(&sb, rows))

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "student_fee_id,student_id,student_name,outstanding,overdue_since,installments_overdue", lines[0])
	assert.Contains(t, lines[1], `"12,400.50"`)
	assert.Contains(t, lines[1], "2026-05-15")
}
