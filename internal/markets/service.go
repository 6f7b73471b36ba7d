package markets

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Aidin1998/botcontrol/internal/cache"
	"github.com/Aidin1998/botcontrol/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const statsCacheKey = "stats"

// Service answers market queries for the dashboard
type Service struct {
	logger   *zap.Logger
	store    Store
	cache    cache.Cache
	statsTTL time.Duration
	now      func() time.Time
}

// NewService creates a markets service. statsCache may be nil.
func NewService(logger *zap.Logger, store Store, statsCache cache.Cache, statsTTL time.Duration) *Service {
	return &Service{
		logger:   logger,
		store:    store,
		cache:    statsCache,
		statsTTL: statsTTL,
		now:      time.Now,
	}
}

// List returns one page of markets matching q
func (s *Service) List(ctx context.Context, q ListQuery) (*models.MarketPage, error) {
	filter := BuildFilter(q)

	total, err := s.store.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	docs, err := s.store.Find(ctx, filter, FindOptions{
		Sort:  BuildSort(q),
		Skip:  q.Skip(),
		Limit: int64(q.Limit),
	})
	if err != nil {
		return nil, err
	}

	totalPages := int(math.Ceil(float64(total) / float64(q.Limit)))
	s.logger.Debug("Retrieved markets",
		zap.Int("count", len(docs)),
		zap.Int("page", q.Page),
		zap.Int("total_pages", totalPages))

	return &models.MarketPage{
		Data: FormatAll(docs, s.now()),
		Pagination: models.Pagination{
			Page:       q.Page,
			Limit:      q.Limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    q.Page < totalPages,
			HasPrev:    q.Page > 1,
		},
		Filters: models.MarketFilters{
			Search:    q.Search,
			Status:    q.Status,
			SortBy:    q.SortBy,
			SortOrder: q.SortOrder,
		},
	}, nil
}

// Top returns the active markets with the highest reward rate
func (s *Service) Top(ctx context.Context, limit int) ([]models.FormattedMarket, error) {
	filter := withRewards()
	filter["active"] = true
	docs, err := s.store.Find(ctx, filter, FindOptions{Sort: byRewardDesc(), Limit: int64(limit)})
	if err != nil {
		return nil, err
	}
	return FormatAll(docs, s.now()), nil
}

// Monitored returns the markets flagged for tracking by the worker
func (s *Service) Monitored(ctx context.Context, limit int) ([]models.FormattedMarket, error) {
	filter := withRewards()
	filter["monitored"] = true
	docs, err := s.store.Find(ctx, filter, FindOptions{Sort: byRewardDesc(), Limit: int64(limit)})
	if err != nil {
		return nil, err
	}
	return FormatAll(docs, s.now()), nil
}

// Stats returns collection counters, served from cache when available
func (s *Service) Stats(ctx context.Context) (*models.MarketStats, error) {
	if s.cache != nil {
		var cached models.MarketStats
		found, err := s.cache.Get(ctx, statsCacheKey, &cached)
		if err != nil {
			s.logger.Warn("Failed to read stats cache", zap.Error(err))
		} else if found {
			return &cached, nil
		}
	}

	var stats models.MarketStats
	counts := []struct {
		dst    *int64
		filter bson.M
	}{
		{&stats.Total, bson.M{}},
		{&stats.Active, bson.M{"active": true}},
		{&stats.Closed, bson.M{"closed": true}},
		{&stats.Archived, bson.M{"archived": true}},
		{&stats.WithRewards, withRewards()},
		{&stats.Monitored, bson.M{"monitored": true}},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range counts {
		g.Go(func() error {
			n, err := s.store.Count(gctx, c.filter)
			if err != nil {
				return err
			}
			*c.dst = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to compute market stats: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, statsCacheKey, stats, s.statsTTL); err != nil {
			s.logger.Warn("Failed to write stats cache", zap.Error(err))
		}
	}
	return &stats, nil
}

// SetMonitoring sets the monitored flag of a market, or toggles it when monitored is nil
func (s *Service) SetMonitoring(ctx context.Context, id string, monitored *bool) (*models.FormattedMarket, error) {
	if id == "" {
		return nil, ErrMarketNotFound
	}
	doc, err := s.store.SetMonitored(ctx, idFilter(id), monitored)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, statsCacheKey); err != nil {
			s.logger.Warn("Failed to invalidate stats cache", zap.Error(err))
		}
	}

	out := Format(*doc, s.now())
	s.logger.Info("Market monitoring updated", zap.String("market_id", out.ID), zap.Bool("monitored", out.Monitored))
	return &out, nil
}
