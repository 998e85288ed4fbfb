package repository

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"filemart/internal/database"
	"filemart/internal/models"
)

type MongoProducts struct {
	coll *mongo.Collection
}

func NewMongoProducts(db *mongo.Database) *MongoProducts {
	return &MongoProducts{coll: db.Collection(database.ProductsCollection)}
}

func (r *MongoProducts) Create(ctx context.Context, product *models.Product) error {
	res, err := r.coll.InsertOne(ctx, product)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		product.ID = id
	}
	return nil
}

func activeFilter() bson.M {
	return bson.M{
		"isActive":  bson.M{"$ne": false},
		"isDeleted": bson.M{"$ne": true},
	}
}

func (r *MongoProducts) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	filter := activeFilter()
	filter["_id"] = bson.M{"$in": ids}
	return r.find(ctx, filter, options.Find())
}

func (r *MongoProducts) List(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	filter := activeFilter()
	if category := strings.TrimSpace(f.Category); category != "" {
		filter["category"] = bson.M{"$in": []string{category}}
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if f.Page > 0 && f.Limit > 0 {
		findOptions.SetSkip((f.Page - 1) * f.Limit).SetLimit(f.Limit)
	}
	return r.find(ctx, filter, findOptions)
}

func (r *MongoProducts) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Product, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer cursor.Close(ctx)

	products := make([]models.Product, 0)
	for cursor.Next(ctx) {
		var p models.Product
		if err := cursor.Decode(&p); err != nil {
			return nil, fmt.Errorf("decode product: %w", err)
		}
		p.Normalize()
		products = append(products, p)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return products, nil
}
