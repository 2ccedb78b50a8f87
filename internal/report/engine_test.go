package report

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"costmanager/internal/cache"
	"costmanager/internal/core"
	"costmanager/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser int64 = 123123

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *clock { return &clock{t: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// countingStore wraps the memory store and counts report-store traffic.
type countingStore struct {
	*memory.Store
	finds      atomic.Int32
	costReads  atomic.Int32
	findErr    error
	insertErr  error
	costErr    error
	alwaysMiss bool
	costDelay  time.Duration
}

func (s *countingStore) FindReport(ctx context.Context, key core.ReportKey) (*core.MonthlyReport, error) {
	s.finds.Add(1)
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.alwaysMiss {
		return nil, nil
	}
	return s.Store.FindReport(ctx, key)
}

func (s *countingStore) InsertReport(ctx context.Context, r core.MonthlyReport) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	return s.Store.InsertReport(ctx, r)
}

func (s *countingStore) FindCosts(ctx context.Context, userID int64, from, to time.Time) ([]core.Cost, error) {
	s.costReads.Add(1)
	if s.costDelay > 0 {
		time.Sleep(s.costDelay)
	}
	if s.costErr != nil {
		return nil, s.costErr
	}
	return s.Store.FindCosts(ctx, userID, from, to)
}

func seed(t *testing.T, s *memory.Store, costs ...core.Cost) {
	t.Helper()
	for _, c := range costs {
		_, err := s.AddCost(context.Background(), c)
		require.NoError(t, err)
	}
}

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func newTestEngine(s *countingStore, c *clock, opts ...Option) *Engine {
	base := []Option{WithClock(c.Now), WithLocation(time.UTC)}
	return NewEngine(s, s, append(base, opts...)...)
}

func TestGetMonthlyReport_ConcreteScenario(t *testing.T) {
	s := &countingStore{Store: memory.New()}
	seed(t, s.Store, core.Cost{Description: "Unit Test Item", Category: core.Food, UserID: testUser, Sum: 25, CreatedAt: at(2050, 2, 15, 10)})
	e := newTestEngine(s, newClock(at(2026, 10, 17, 12)))

	res, err := e.GetMonthlyReport(context.Background(), testUser, 2050, 2)
	require.NoError(t, err)

	assert.Equal(t, SourceComputed, res.Source)
	assert.False(t, res.Persisted, "a future month must not be cached")
	assert.Equal(t, []core.ReportItem{{Day: 15, Description: "Unit Test Item", Sum: 25}}, res.Report.Costs[core.Food])
	for _, c := range []core.Category{core.Health, core.Housing, core.Sports, core.Education} {
		assert.NotNil(t, res.Report.Costs[c])
		assert.Empty(t, res.Report.Costs[c], "bucket %s", c)
	}
	assert.Equal(t, 0, s.ReportWrites())
}

func TestGetMonthlyReport_IdempotentHit(t *testing.T) {
	s := &countingStore{Store: memory.New()}
	seed(t, s.Store,
		core.Cost{Description: "rent", Category: core.Housing, UserID: testUser, Sum: 900, CreatedAt: at(2025, 3, 1, 9)},
		core.Cost{Description: "gym", Category: core.Sports, UserID: testUser, Sum: 40, CreatedAt: at(2025, 3, 12, 18)},
	)
	e := newTestEngine(s, newClock(at(2026, 10, 17, 12)))

	first, err := e.GetMonthlyReport(context.Background(), testUser, 2025, 3)
	require.NoError(t, err)
	assert.Equal(t, SourceComputed, first.Source)
	assert.True(t, first.Persisted)

	second, err := e.GetMonthlyReport(context.Background(), testUser, 2025, 3)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, second.Source)
	assert.False(t, second.Persisted)

	assert.Equal(t, first.Report.Costs, second.Report.Costs)
	assert.Equal(t, 1, s.ReportWrites())
	assert.Equal(t, int32(1), s.costReads.Load(), "a hit must not touch the cost records")
}

func TestGetMonthlyReport_CachedReportIsAuthoritative(t *testing.T) {
	s := &countingStore{Store: memory.New()}
	seed(t, s.Store, core.Cost{Description: "a", Category: core.Food, UserID: testUser, Sum: 1, CreatedAt: at(2025, 5, 2, 8)})
	e := newTestEngine(s, newClock(at(2026, 10, 17, 12)))

	_, err := e.GetMonthlyReport(context.Background(), testUser, 2025, 5)
	require.NoError(t, err)

	// Late records for a closed month never reach the cached report.
	seed(t, s.Store, core.Cost{Description: "late", Category: core.Food, UserID: testUser, Sum: 2, CreatedAt: at(2025, 5, 3, 8)})

	res, err := e.GetMonthlyReport(context.Background(), testUser, 2025, 5)
	require.NoError(t, err)
	assert.Len(t, res.Report.Costs[core.Food], 1)
}

func TestGetMonthlyReport_GroupingCorrectness(t *testing.T) {
	s := &countingStore{Store: memory.New()}
	costs := []core.Cost{
		{Description: "bread", Category: core.Food, Sum: 3.5, CreatedAt: at(2025, 7, 3, 8)},
		{Description: "doctor", Category: core.Health, Sum: 60, CreatedAt: at(2025, 7, 1, 0)},
		{Description: "milk", Category: core.Food, Sum: 1.2, CreatedAt: at(2025, 7, 2, 8)},
		{Description: "course", Category: core.Education, Sum: 120, CreatedAt: at(2025, 7, 30, 22)},
		{Description: "rent", Category: core.Housing, Sum: 800, CreatedAt: at(2025, 7, 5, 9)},
		{Description: "ball", Category: core.Sports, Sum: 15, CreatedAt: at(2025, 7, 9, 17)},
	}
	for i := range costs {
		costs[i].UserID = testUser
	}
	seed(t, s.Store, costs...)
	// Another user's cost in the same month must not leak in.
	seed(t, s.Store, core.Cost{Description: "other", Category: core.Food, UserID: 7, Sum: 9, CreatedAt: at(2025, 7, 3, 8)})

	e := newTestEngine(s, newClock(at(2026, 10, 17, 12)))
	res, err := e.GetMonthlyReport(context.Background(), testUser, 2025, 7)
	require.NoError(t, err)

	assert.Equal(t, len(costs), res.Report.Costs.Len())
	for _, c := range costs {
		assert.Contains(t, res.Report.Costs[c.Category], core.ReportItem{Day: c.CreatedAt.Day(), Description: c.Description, Sum: c.Sum})
	}
	// Retrieval order is kept, not sorted by day.
	assert.Equal(t, []core.ReportItem{
		{Day: 3, Description: "bread", Sum: 3.5},
		{Day: 2, Description: "milk", Sum: 1.2},
	}, res.Report.Costs[core.Food])
}

func TestGetMonthlyReport_UnknownCategoryDropped(t *testing.T) {
	s := &countingStore{Store: memory.New()}
	seed(t, s.Store,
		core.Cost{Description: "flight", Category: "travel", UserID: testUser, Sum: 300, CreatedAt: at(2025, 8, 4, 8)},
		core.Cost{Description: "salad", Category: core.Food, UserID: testUser, Sum: 8, CreatedAt: at(2025, 8, 4, 12)},
	)
	e := newTestEngine(s, newClock(at(2026, 10, 17, 12)))

	res, err := e.GetMonthlyReport(context.Background(), testUser, 2025, 8)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.Costs.Len())
	assert.Equal(t, 1, res.Dropped)
	assert.NotContains(t, res.Report.Costs, core.Category("travel"))
}

func TestGetMonthlyReport_DateRangeBoundary(t *testing.T) {
	s := &countingStore{Store: memory.New()}
	seed(t, s.Store,
		core.Cost{Description: "last of january", Category: core.Food, UserID: testUser, Sum: 1, CreatedAt: time.Date(2025, 1, 31, 23, 59, 59, 999999999, time.UTC)},
		core.Cost{Description: "first instant", Category: core.Food, UserID: testUser, Sum: 2, CreatedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
		core.Cost{Description: "next month", Category: core.Food, UserID: testUser, Sum: 3, CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
	)
	e := newTestEngine(s, newClock(at(2026, 10, 17, 12)))

	res, err := e.GetMonthlyReport(context.Background(), testUser, 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, []core.ReportItem{{Day: 1, Description: "first instant", Sum: 2}}, res.Report.Costs[core.Food])
}

func TestGetMonthlyReport_DecemberRollsYear(t *testing.T) {
	s := &countingStore{Store: memory.New()}
	seed(t, s.Store,
		core.Cost{Description: "gift", Category: core.Education, UserID: testUser, Sum: 20, CreatedAt: at(2024, 12, 31, 20)},
		core.Cost{Description: "new year", Category: core.Education, UserID: testUser, Sum: 30, CreatedAt: at(2025, 1, 1, 0)},
	)
	e := newTestEngine(s, newClock(at(2026, 10, 17, 12)))

	res, err := e.GetMonthlyReport(context.Background(), testUser, 2024, 12)
	require.NoError(t, err)
	assert.Equal(t, []core.ReportItem{{Day: 31, Description: "gift", Sum: 20}}, res.Report.Costs[core.Education])
}

func TestGetMonthlyReport_CacheWriteTiming(t *testing.T) {
	s := &countingStore{Store: memory.New()}
	seed(t, s.Store, core.Cost{Description: "coffee", Category: core.Food, UserID: testUser, Sum: 2, CreatedAt: at(2050, 2, 3, 8)})
	c := newClock(at(2050, 2, 20, 12))
	e := newTestEngine(s, c)

	for i := 0; i < 3; i++ {
		res, err := e.GetMonthlyReport(context.Background(), testUser, 2050, 2)
		require.NoError(t, err)
		assert.Equal(t, SourceComputed, res.Source)
		assert.False(t, res.Persisted)
	}
	assert.Equal(t, 0, s.ReportWrites(), "the open month is never cached")
	assert.Equal(t, int32(3), s.costReads.Load(), "the open month is recomputed every time")

	c.Set(at(2050, 3, 1, 0))
	res, err := e.GetMonthlyReport(context.Background(), testUser, 2050, 2)
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	assert.Equal(t, 1, s.ReportWrites())

	res, err = e.GetMonthlyReport(context.Background(), testUser, 2050, 2)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, 1, s.ReportWrites())
}

func TestGetMonthlyReport_InvalidKey(t *testing.T) {
	s := &countingStore{Store: memory.New()}
	e := newTestEngine(s, newClock(at(2026, 10, 17, 12)))

	for _, k := range []core.ReportKey{
		{UserID: 0, Year: 2025, Month: 1},
		{UserID: 1, Year: 2025, Month: 0},
		{UserID: 1, Year: 2025, Month: 13},
		{UserID: 1, Year: -1, Month: 1},
	} {
		_, err := e.GetMonthlyReport(context.Background(), k.UserID, k.Year, k.Month)
		assert.ErrorIs(t, err, core.ErrInvalidRequest, "key %+v", k)
	}
	assert.Equal(t, int32(0), s.finds.Load(), "validation happens before any store access")
}

func TestGetMonthlyReport_StoreFailures(t *testing.T) {
	boom := errors.New("connection refused")
	cases := map[string]*countingStore{
		"find report": {Store: memory.New(), findErr: boom},
		"find costs":  {Store: memory.New(), costErr: boom},
		"insert":      {Store: memory.New(), insertErr: boom},
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			e := newTestEngine(s, newClock(at(2026, 10, 17, 12)))
			_, err := e.GetMonthlyReport(context.Background(), testUser, 2025, 1)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrInternal)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestGetMonthlyReport_DuplicateInsertIsTolerated(t *testing.T) {
	s := &countingStore{Store: memory.New(), alwaysMiss: true}
	seed(t, s.Store, core.Cost{Description: "tea", Category: core.Food, UserID: testUser, Sum: 4, CreatedAt: at(2025, 4, 4, 4)})
	e := newTestEngine(s, newClock(at(2026, 10, 17, 12)))

	first, err := e.GetMonthlyReport(context.Background(), testUser, 2025, 4)
	require.NoError(t, err)
	assert.True(t, first.Persisted)

	// The store reports a miss again, so the engine recomputes and its
	// insert collides with the stored key.
	second, err := e.GetMonthlyReport(context.Background(), testUser, 2025, 4)
	require.NoError(t, err)
	assert.False(t, second.Persisted)
	assert.Equal(t, first.Report.Costs, second.Report.Costs)
	assert.Equal(t, 1, s.ReportWrites())
}

func TestGetMonthlyReport_ConcurrentMissesWriteOnce(t *testing.T) {
	s := &countingStore{Store: memory.New(), costDelay: 20 * time.Millisecond}
	seed(t, s.Store, core.Cost{Description: "pizza", Category: core.Food, UserID: testUser, Sum: 12, CreatedAt: at(2025, 6, 6, 20)})
	e := newTestEngine(s, newClock(at(2026, 10, 17, 12)))

	const n = 16
	var wg sync.WaitGroup
	results := make([]Result, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.GetMonthlyReport(context.Background(), testUser, 2025, 6)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Report.Costs, results[i].Report.Costs)
	}
	assert.Equal(t, 1, s.ReportWrites())
}

func TestGetMonthlyReport_HitCache(t *testing.T) {
	s := &countingStore{Store: memory.New()}
	seed(t, s.Store, core.Cost{Description: "book", Category: core.Education, UserID: testUser, Sum: 18, CreatedAt: at(2025, 9, 9, 9)})
	hits := cache.NewLRU[core.ReportKey, core.MonthlyReport](8, 0)
	e := newTestEngine(s, newClock(at(2026, 10, 17, 12)), WithHitCache(hits))

	_, err := e.GetMonthlyReport(context.Background(), testUser, 2025, 9)
	require.NoError(t, err)
	assert.Equal(t, 1, hits.Size())

	res, err := e.GetMonthlyReport(context.Background(), testUser, 2025, 9)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, int32(1), s.finds.Load(), "second call is served in-process")

	// Mutating a returned report must not leak into the cache.
	res.Report.Costs[core.Education][0].Sum = 0
	again, err := e.GetMonthlyReport(context.Background(), testUser, 2025, 9)
	require.NoError(t, err)
	assert.Equal(t, 18.0, again.Report.Costs[core.Education][0].Sum)
}

func TestGetMonthlyReport_OpenMonthNeverEntersHitCache(t *testing.T) {
	s := &countingStore{Store: memory.New()}
	hits := cache.NewLRU[core.ReportKey, core.MonthlyReport](8, 0)
	e := newTestEngine(s, newClock(at(2026, 10, 17, 12)), WithHitCache(hits))

	_, err := e.GetMonthlyReport(context.Background(), testUser, 2026, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, hits.Size())
}

func TestGetMonthlyReport_ObserverCannotAffectResult(t *testing.T) {
	s := &countingStore{Store: memory.New()}
	var calls atomic.Int32
	obs := ObserverFunc(func(context.Context, Result) {
		calls.Add(1)
		panic("observer exploded")
	})
	e := newTestEngine(s, newClock(at(2026, 10, 17, 12)), WithObserver(obs))

	res, err := e.GetMonthlyReport(context.Background(), testUser, 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, SourceComputed, res.Source)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestGetMonthlyReport_LocalCalendar(t *testing.T) {
	s := &countingStore{Store: memory.New()}
	loc := time.FixedZone("UTC+3", 3*60*60)
	// 22:30 UTC on Jan 31 is already Feb 1 in UTC+3.
	seed(t, s.Store, core.Cost{Description: "late snack", Category: core.Food, UserID: testUser, Sum: 5, CreatedAt: time.Date(2025, 1, 31, 22, 30, 0, 0, time.UTC)})
	e := NewEngine(s, s, WithClock(newClock(at(2026, 10, 17, 12)).Now), WithLocation(loc))

	feb, err := e.GetMonthlyReport(context.Background(), testUser, 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, []core.ReportItem{{Day: 1, Description: "late snack", Sum: 5}}, feb.Report.Costs[core.Food])

	jan, err := e.GetMonthlyReport(context.Background(), testUser, 2025, 1)
	require.NoError(t, err)
	assert.Empty(t, jan.Report.Costs[core.Food])
}
