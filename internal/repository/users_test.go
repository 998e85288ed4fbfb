package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"filemart/internal/common"
	"filemart/internal/models"
)

const usersNS = "filemart.users"

func TestMongoUsers(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("create duplicate email", func(mt *mtest.T) {
		repo := NewMongoUsers(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: filemart.users index: email_unique",
		}))

		err := repo.Create(ctx, &models.User{Email: "a@example.com"})
		assert.ErrorIs(t, err, common.ErrEmailExists)
	})

	mt.Run("find by email", func(mt *mtest.T) {
		repo := NewMongoUsers(mt.DB)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "email", Value: "a@example.com"},
			{Key: "role", Value: models.RoleAdmin},
			{Key: "refreshToken", Value: "rt"},
		}))

		user, err := repo.FindByEmail(ctx, "a@example.com")
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		assert.True(t, user.IsAdmin())
		assert.Equal(t, "rt", user.RefreshToken)
	})

	mt.Run("find missing", func(mt *mtest.T) {
		repo := NewMongoUsers(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch))

		_, err := repo.FindByID(ctx, primitive.NewObjectID())
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	mt.Run("swap refresh token wins", func(mt *mtest.T) {
		repo := NewMongoUsers(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1},
		))

		ok, err := repo.SwapRefreshToken(ctx, primitive.NewObjectID(), "old", "new")
		require.NoError(t, err)
		assert.True(t, ok)

		started := mt.GetStartedEvent()
		require.NotNil(t, started)
		assert.Equal(t, "old", started.Command.Lookup("updates", "0", "q", "refreshToken").StringValue())
	})

	mt.Run("swap refresh token loses", func(mt *mtest.T) {
		repo := NewMongoUsers(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0},
		))

		ok, err := repo.SwapRefreshToken(ctx, primitive.NewObjectID(), "stale", "new")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	mt.Run("set refresh token on missing user", func(mt *mtest.T) {
		repo := NewMongoUsers(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0},
		))

		err := repo.SetRefreshToken(ctx, primitive.NewObjectID(), "rt")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	mt.Run("find by reset token filters expiry", func(mt *mtest.T) {
		repo := NewMongoUsers(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, usersNS, mtest.FirstBatch))

		_, err := repo.FindByResetToken(ctx, "hash", time.Now())
		assert.ErrorIs(t, err, common.ErrNotFound)

		started := mt.GetStartedEvent()
		require.NotNil(t, started)
		filter := started.Command.Lookup("filter").Document()
		_, err = filter.LookupErr("resetPasswordExpire", "$gt")
		assert.NoError(t, err)
	})

	mt.Run("delete missing", func(mt *mtest.T) {
		repo := NewMongoUsers(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		assert.ErrorIs(t, repo.Delete(ctx, primitive.NewObjectID()), common.ErrNotFound)
	})
}
