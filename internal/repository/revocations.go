package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"filemart/internal/database"
	"filemart/internal/models"
)

// MongoRevocations keeps the blocklist in a TTL collection. The TTL monitor
// runs about once a minute, so Exists also filters on expiresAt.
type MongoRevocations struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoRevocations(db *mongo.Database) *MongoRevocations {
	return &MongoRevocations{coll: db.Collection(database.RevocationsCollection), now: time.Now}
}

func (r *MongoRevocations) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := r.coll.InsertOne(ctx, models.RevocationEntry{
		JTI:       jti,
		ExpiresAt: expiresAt,
		CreatedAt: r.now(),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("insert revocation: %w", err)
	}
	return nil
}

func (r *MongoRevocations) Exists(ctx context.Context, jti string) (bool, error) {
	err := r.coll.FindOne(ctx,
		bson.M{"jti": jti, "expiresAt": bson.M{"$gt": r.now()}},
		options.FindOne().SetProjection(bson.M{"_id": 1}),
	).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("lookup revocation: %w", err)
	}
	return true, nil
}
