package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"filemart/internal/logging"
)

// UserIndexes: unique email, unique googleId when present, reset token lookup.
func UserIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("email_unique").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "googleId", Value: 1}},
			Options: options.Index().
				SetName("googleId_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"googleId": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "resetPasswordToken", Value: 1}},
			Options: options.Index().
				SetName("resetPasswordToken_index").
				SetPartialFilterExpression(bson.M{"resetPasswordToken": bson.M{"$exists": true}}),
		},
	}
}

// RevocationIndexes: one entry per jti, purged by the server once expiresAt passes.
func RevocationIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "jti", Value: 1}},
			Options: options.Index().SetName("jti_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetName("expiresAt_ttl").SetExpireAfterSeconds(0),
		},
	}
}

// GrantIndexes: unique token, TTL purge, owner, order and audit listing.
func GrantIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetName("token_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetName("expiresAt_ttl").SetExpireAfterSeconds(0),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("userId_createdAt"),
		},
		{
			Keys:    bson.D{{Key: "orderId", Value: 1}, {Key: "fileId", Value: 1}},
			Options: options.Index().SetName("orderId_fileId"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("createdAt_desc"),
		},
	}
}

func OrderIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetName("userId_index"),
		},
		{
			Keys:    bson.D{{Key: "orderNumber", Value: 1}},
			Options: options.Index().SetName("orderNumber_unique").SetUnique(true),
		},
	}
}

func ProductIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "isActive", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("isActive_createdAt"),
		},
	}
}

// EnsureIndexes creates every index the repositories rely on. Existing
// indexes with the same definition are left alone by the server.
func EnsureIndexes(ctx context.Context, db *mongo.Database, log logging.Logger) error {
	plan := []struct {
		collection string
		indexes    []mongo.IndexModel
	}{
		{UsersCollection, UserIndexes()},
		{RevocationsCollection, RevocationIndexes()},
		{GrantsCollection, GrantIndexes()},
		{OrdersCollection, OrderIndexes()},
		{ProductsCollection, ProductIndexes()},
	}

	for _, step := range plan {
		if err := ensureCollectionIndexes(ctx, db.Collection(step.collection), step.indexes, log); err != nil {
			return err
		}
	}
	return nil
}

func ensureCollectionIndexes(ctx context.Context, coll *mongo.Collection, indexes []mongo.IndexModel, log logging.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	log.Info(ctx, "creating indexes", "collection", coll.Name(), "count", len(indexes))
	names, err := coll.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		log.Error(ctx, "index creation failed", "collection", coll.Name(), "err", err)
		return fmt.Errorf("ensure %s indexes: %w", coll.Name(), err)
	}
	log.Info(ctx, "indexes ready", "collection", coll.Name(), "names", names)
	return nil
}
