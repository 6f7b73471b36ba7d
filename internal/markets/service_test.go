package markets

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Aidin1998/botcontrol/internal/cache"
	"github.com/Aidin1998/botcontrol/pkg/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu        sync.Mutex
	total     int64
	counts    map[string]int64
	countErr  error
	countCall int
	markets   []models.Market
	lastQuery bson.M
	lastOpts  FindOptions
	updated   *models.Market
	lastSet   *bool
}

func (f *fakeStore) Count(_ context.Context, filter bson.M) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCall++
	if f.countErr != nil {
		return 0, f.countErr
	}
	for key := range filter {
		if n, ok := f.counts[key]; ok && len(filter) == 1 {
			return n, nil
		}
	}
	return f.total, nil
}

func (f *fakeStore) Find(_ context.Context, filter bson.M, opts FindOptions) ([]models.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = filter
	f.lastOpts = opts
	return f.markets, nil
}

func (f *fakeStore) SetMonitored(_ context.Context, filter bson.M, monitored *bool) (*models.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = filter
	f.lastSet = monitored
	if f.updated == nil {
		return nil, ErrMarketNotFound
	}
	return f.updated, nil
}

func newTestService(store Store, c cache.Cache) *Service {
	svc := NewService(zap.NewNop(), store, c, time.Minute)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestListPagination(t *testing.T) {
	store := &fakeStore{
		total:   120,
		markets: []models.Market{{ID: "1", Question: "A"}, {ID: "2", Question: "B"}},
	}
	svc := newTestService(store, nil)

	page, err := svc.List(context.Background(), ParseListQuery("2", "50", "rain", "active", "volume", "asc"))
	require.NoError(t, err)

	assert.Equal(t, models.Pagination{Page: 2, Limit: 50, Total: 120, TotalPages: 3, HasNext: true, HasPrev: true}, page.Pagination)
	assert.Equal(t, models.MarketFilters{Search: "rain", Status: "active", SortBy: "volume", SortOrder: "asc"}, page.Filters)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "A", page.Data[0].Question)

	assert.Equal(t, int64(50), store.lastOpts.Skip)
	assert.Equal(t, int64(50), store.lastOpts.Limit)
	assert.Equal(t, bson.D{{Key: "volumeNum", Value: 1}}, store.lastOpts.Sort)
	assert.Equal(t, true, store.lastQuery["active"])
}

func TestListEmpty(t *testing.T) {
	svc := newTestService(&fakeStore{markets: []models.Market{}}, nil)

	page, err := svc.List(context.Background(), ParseListQuery("", "", "", "", "", ""))
	require.NoError(t, err)
	assert.Equal(t, 0, page.Pagination.TotalPages)
	assert.False(t, page.Pagination.HasNext)
	assert.False(t, page.Pagination.HasPrev)
	assert.NotNil(t, page.Data)
	assert.Empty(t, page.Data)
}

func TestTopAndMonitoredFilters(t *testing.T) {
	store := &fakeStore{markets: []models.Market{{ID: "1"}}}
	svc := newTestService(store, nil)

	_, err := svc.Top(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, true, store.lastQuery["active"])
	assert.Contains(t, store.lastQuery, "clobRewards")
	assert.Equal(t, int64(10), store.lastOpts.Limit)
	assert.Equal(t, byRewardDesc(), store.lastOpts.Sort)

	_, err = svc.Monitored(context.Background(), 25)
	require.NoError(t, err)
	assert.Equal(t, true, store.lastQuery["monitored"])
	assert.NotContains(t, store.lastQuery, "active")
	assert.Equal(t, int64(25), store.lastOpts.Limit)
}

func TestStatsWithoutCache(t *testing.T) {
	store := &fakeStore{
		total:  40,
		counts: map[string]int64{"active": 25, "closed": 10, "archived": 5, "clobRewards": 30, "monitored": 3},
	}
	svc := newTestService(store, nil)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.MarketStats{Total: 40, Active: 25, Closed: 10, Archived: 5, WithRewards: 30, Monitored: 3}, *stats)
	assert.Equal(t, 6, store.countCall)
}

func TestStatsError(t *testing.T) {
	svc := newTestService(&fakeStore{countErr: errors.New("boom")}, nil)
	_, err := svc.Stats(context.Background())
	assert.Error(t, err)
}

func TestStatsCachedAndInvalidated(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := &fakeStore{total: 7, updated: &models.Market{ID: "m1", Monitored: true}}
	svc := newTestService(store, cache.NewRedisCache(client, "markets", time.Minute))
	ctx := context.Background()

	first, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, store.countCall)

	second, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 6, store.countCall)

	_, err = svc.SetMonitoring(ctx, "m1", nil)
	require.NoError(t, err)
	assert.False(t, mr.Exists("botcontrol:markets:stats"))

	_, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, store.countCall)
}

func TestSetMonitoring(t *testing.T) {
	store := &fakeStore{updated: &models.Market{ID: "m1", Question: "Q", Monitored: true}}
	svc := newTestService(store, nil)
	ctx := context.Background()

	on := true
	out, err := svc.SetMonitoring(ctx, "m1", &on)
	require.NoError(t, err)
	assert.True(t, out.Monitored)
	assert.Equal(t, "m1", out.ID)
	require.NotNil(t, store.lastSet)
	assert.True(t, *store.lastSet)
	assert.Equal(t, bson.M{"id": "m1"}, store.lastQuery)

	_, err = svc.SetMonitoring(ctx, "m1", nil)
	require.NoError(t, err)
	assert.Nil(t, store.lastSet)

	store.updated = nil
	_, err = svc.SetMonitoring(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrMarketNotFound)

	_, err = svc.SetMonitoring(ctx, "", nil)
	assert.ErrorIs(t, err, ErrMarketNotFound)
}
