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

type MongoUsers struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoUsers(db *mongo.Database) *MongoUsers {
	return &MongoUsers{coll: db.Collection(database.UsersCollection), now: time.Now}
}

func (r *MongoUsers) Create(ctx context.Context, user *models.User) error {
	res, err := r.coll.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return common.ErrEmailExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = id
	}
	return nil
}

func (r *MongoUsers) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoUsers) FindByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"googleId": googleID})
}

func (r *MongoUsers) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return r.findOne(ctx, bson.M{
		"resetPasswordToken":  tokenHash,
		"resetPasswordExpire": bson.M{"$gt": now},
	})
}

func (r *MongoUsers) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (r *MongoUsers) SetRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"refreshToken": token, "updatedAt": r.now()}})
}

func (r *MongoUsers) SwapRefreshToken(ctx context.Context, id primitive.ObjectID, current, next string) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "refreshToken": current},
		bson.M{"$set": bson.M{"refreshToken": next, "updatedAt": r.now()}},
	)
	if err != nil {
		return false, fmt.Errorf("swap refresh token: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *MongoUsers) ClearRefreshToken(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$unset": bson.M{"refreshToken": ""},
		"$set":   bson.M{"updatedAt": r.now()},
	})
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func (r *MongoUsers) UpdateProfile(ctx context.Context, id primitive.ObjectID, name string) (*models.User, error) {
	var user models.User
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"name": name, "updatedAt": r.now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return &user, nil
}

func (r *MongoUsers) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	return r.updateByID(ctx, id, bson.M{
		"$set": bson.M{"passwordHash": passwordHash, "updatedAt": r.now()},
		"$unset": bson.M{
			"refreshToken":        "",
			"resetPasswordToken":  "",
			"resetPasswordExpire": "",
		},
	})
}

func (r *MongoUsers) SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expiresAt time.Time) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{
		"resetPasswordToken":  tokenHash,
		"resetPasswordExpire": expiresAt,
		"updatedAt":           r.now(),
	}})
}

func (r *MongoUsers) LinkGoogleID(ctx context.Context, id primitive.ObjectID, googleID string) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{
		"googleId":   googleID,
		"isVerified": true,
		"updatedAt":  r.now(),
	}})
}

func (r *MongoUsers) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *MongoUsers) updateByID(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	res, err := r.coll.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return common.ErrNotFound
	}
	return nil
}
