package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoRevocations(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("add", func(mt *mtest.T) {
		repo := NewMongoRevocations(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		assert.NoError(t, repo.Add(ctx, "jti-1", time.Now().Add(time.Minute)))
	})

	mt.Run("duplicate add is success", func(mt *mtest.T) {
		repo := NewMongoRevocations(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error",
		}))

		assert.NoError(t, repo.Add(ctx, "jti-1", time.Now().Add(time.Minute)))
	})

	mt.Run("other write errors surface", func(mt *mtest.T) {
		repo := NewMongoRevocations(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    121,
			Message: "document failed validation",
		}))

		assert.Error(t, repo.Add(ctx, "jti-1", time.Now().Add(time.Minute)))
	})

	mt.Run("exists", func(mt *mtest.T) {
		repo := NewMongoRevocations(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "filemart.token_blocklist", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}}))

		ok, err := repo.Exists(ctx, "jti-1")
		require.NoError(t, err)
		assert.True(t, ok)

		started := mt.GetStartedEvent()
		require.NotNil(t, started)
		_, err = started.Command.Lookup("filter").Document().LookupErr("expiresAt", "$gt")
		assert.NoError(t, err, "expired entries must be ignored before the TTL monitor purges them")
	})

	mt.Run("absent", func(mt *mtest.T) {
		repo := NewMongoRevocations(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "filemart.token_blocklist", mtest.FirstBatch))

		ok, err := repo.Exists(ctx, "jti-2")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func newRedisRevocations(t *testing.T) (*RedisRevocations, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisRevocations(rdb, "test:"), srv
}

func TestRedisRevocations_AddAndExpire(t *testing.T) {
	repo, srv := newRedisRevocations(t)
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, "jti-1", time.Now().Add(time.Minute)))
	require.NoError(t, repo.Add(ctx, "jti-1", time.Now().Add(time.Minute)))

	ok, err := repo.Exists(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, srv.Exists("test:bl:jti-1"))

	srv.FastForward(2 * time.Minute)

	ok, err = repo.Exists(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisRevocations_SkipsAlreadyExpired(t *testing.T) {
	repo, srv := newRedisRevocations(t)

	require.NoError(t, repo.Add(context.Background(), "old", time.Now().Add(-time.Second)))
	assert.False(t, srv.Exists("test:bl:old"))
}
