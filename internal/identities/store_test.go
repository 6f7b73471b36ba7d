package identities

import (
	"context"
	"testing"
	"time"

	"github.com/Aidin1998/botcontrol/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func ns(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("find by username", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "username", Value: "operator"},
			{Key: "password", Value: "$2a$10$hash"},
			{Key: "createdAt", Value: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
			{Key: "active", Value: true},
		}))

		user, err := NewMongoStore(mt.Coll).FindByUsername(context.Background(), "operator")
		require.NoError(mt, err)
		assert.Equal(mt, id, user.ID)
		assert.Equal(mt, "$2a$10$hash", user.PasswordHash)
		assert.True(mt, user.Active)
	})

	mt.Run("missing user", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))

		_, err := NewMongoStore(mt.Coll).FindByID(context.Background(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrUserNotFound)
	})

	mt.Run("insert duplicate", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error",
		}))

		err := NewMongoStore(mt.Coll).Insert(context.Background(), &models.User{Username: "operator"})
		assert.ErrorIs(mt, err, ErrUserExists)
	})

	mt.Run("insert assigns id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		user := &models.User{Username: "operator"}
		require.NoError(mt, NewMongoStore(mt.Coll).Insert(context.Background(), user))
		assert.False(mt, user.ID.IsZero())
	})

	mt.Run("set active on unknown user", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := NewMongoStore(mt.Coll).SetActive(context.Background(), "ghost", false)
		assert.ErrorIs(mt, err, ErrUserNotFound)
	})

	mt.Run("list", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch,
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "username", Value: "alice"}, {Key: "active", Value: true}},
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "username", Value: "bob"}, {Key: "active", Value: false}},
		))

		users, err := NewMongoStore(mt.Coll).List(context.Background())
		require.NoError(mt, err)
		require.Len(mt, users, 2)
		assert.Equal(mt, "alice", users[0].Username)
		assert.False(mt, users[1].Active)
	})
}
