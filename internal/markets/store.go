package markets

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aidin1998/botcontrol/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrMarketNotFound is returned when no market matches an id
var ErrMarketNotFound = errors.New("market not found")

// FindOptions controls ordering and windowing of a query
type FindOptions struct {
	Sort  bson.D
	Skip  int64
	Limit int64
}

// Store reads and updates market documents
type Store interface {
	Count(ctx context.Context, filter bson.M) (int64, error)
	Find(ctx context.Context, filter bson.M, opts FindOptions) ([]models.Market, error)
	// SetMonitored sets the flag, or flips it when monitored is nil
	SetMonitored(ctx context.Context, filter bson.M, monitored *bool) (*models.Market, error)
}

// MongoStore implements Store on the markets collection
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a market store backed by coll
func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

// Count counts documents matching filter
func (s *MongoStore) Count(ctx context.Context, filter bson.M) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count markets: %w", err)
	}
	return n, nil
}

// Find returns documents matching filter
func (s *MongoStore) Find(ctx context.Context, filter bson.M, opts FindOptions) ([]models.Market, error) {
	findOpts := options.Find()
	if len(opts.Sort) > 0 {
		findOpts.SetSort(opts.Sort)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cur, err := s.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to query markets: %w", err)
	}
	markets := []models.Market{}
	if err := cur.All(ctx, &markets); err != nil {
		return nil, fmt.Errorf("failed to decode markets: %w", err)
	}
	return markets, nil
}

// SetMonitored updates the monitored flag and returns the updated document.
// A nil monitored flips the current value in a single update; a missing flag counts as false.
func (s *MongoStore) SetMonitored(ctx context.Context, filter bson.M, monitored *bool) (*models.Market, error) {
	var update interface{}
	if monitored != nil {
		update = bson.M{"$set": bson.M{"monitored": *monitored}}
	} else {
		update = mongo.Pipeline{
			{{Key: "$set", Value: bson.D{{Key: "monitored", Value: bson.D{{Key: "$not", Value: bson.A{"$monitored"}}}}}}},
		}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var market models.Market
	if err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&market); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMarketNotFound
		}
		return nil, fmt.Errorf("failed to update market: %w", err)
	}
	return &market, nil
}
