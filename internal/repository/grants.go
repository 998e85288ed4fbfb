package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"filemart/internal/common"
	"filemart/internal/database"
	"filemart/internal/models"
)

type MongoGrants struct {
	coll *mongo.Collection
}

func NewMongoGrants(db *mongo.Database) *MongoGrants {
	return &MongoGrants{coll: db.Collection(database.GrantsCollection)}
}

func (r *MongoGrants) Create(ctx context.Context, grant *models.DownloadGrant) error {
	res, err := r.coll.InsertOne(ctx, grant)
	if err != nil {
		return fmt.Errorf("insert grant: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		grant.ID = id
	}
	return nil
}

func (r *MongoGrants) FindByToken(ctx context.Context, token string) (*models.DownloadGrant, error) {
	var grant models.DownloadGrant
	if err := r.coll.FindOne(ctx, bson.M{"token": token}).Decode(&grant); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("find grant: %w", err)
	}
	return &grant, nil
}

// redeemFilter matches only a grant that may still be redeemed at now.
func redeemFilter(token string, now time.Time) bson.M {
	return bson.M{
		"token":     token,
		"revoked":   false,
		"expiresAt": bson.M{"$gte": now},
		"$expr":     bson.M{"$lt": bson.A{"$downloadCount", "$maxDownloads"}},
	}
}

func (r *MongoGrants) Redeem(ctx context.Context, token string, now time.Time) (*models.DownloadGrant, error) {
	var grant models.DownloadGrant
	err := r.coll.FindOneAndUpdate(ctx,
		redeemFilter(token, now),
		bson.M{"$inc": bson.M{"downloadCount": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&grant)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoMatch
		}
		return nil, fmt.Errorf("redeem grant: %w", err)
	}
	return &grant, nil
}

func (r *MongoGrants) Revoke(ctx context.Context, token string) error {
	return r.updateByToken(ctx, token, bson.M{"$set": bson.M{"revoked": true}})
}

func (r *MongoGrants) ResetCount(ctx context.Context, token string) error {
	return r.updateByToken(ctx, token, bson.M{"$set": bson.M{"downloadCount": 0}})
}

func (r *MongoGrants) updateByToken(ctx context.Context, token string, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"token": token}, update)
	if err != nil {
		return fmt.Errorf("update grant: %w", err)
	}
	if res.MatchedCount == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *MongoGrants) List(ctx context.Context) ([]models.DownloadGrant, error) {
	return r.find(ctx, bson.M{})
}

func (r *MongoGrants) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.DownloadGrant, error) {
	return r.find(ctx, bson.M{"userId": ownerID})
}

func (r *MongoGrants) ListByOrder(ctx context.Context, orderID primitive.ObjectID) ([]models.DownloadGrant, error) {
	return r.find(ctx, bson.M{"orderId": orderID})
}

func (r *MongoGrants) find(ctx context.Context, filter bson.M) ([]models.DownloadGrant, error) {
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer cursor.Close(ctx)

	grants := make([]models.DownloadGrant, 0)
	if err := cursor.All(ctx, &grants); err != nil {
		return nil, fmt.Errorf("decode grants: %w", err)
	}
	return grants, nil
}
