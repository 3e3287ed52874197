package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewMongoDBConfig(cfg *Config) MongoDBConfig {
	return cfg.Mongo
}

// NewMongoDatabase connects to MongoDB and hands out the configured
// database. The client is disconnected when the app stops.
func NewMongoDatabase(lc fx.Lifecycle, config MongoDBConfig, logger *zap.Logger) (*mongo.Database, error) {
	clientOptions := options.Client().ApplyURI(config.URI)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	logger.Info("connected to MongoDB", zap.String("database", config.Database))

	db := client.Database(config.Database)

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			return EnsureIndexes(startCtx, db, logger)
		},
		OnStop: func(stopCtx context.Context) error {
			logger.Info("closing MongoDB connection")
			return client.Disconnect(stopCtx)
		},
	})
	return db, nil
}

var collectionIndexes = map[string][]mongo.IndexModel{
	"users": {
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	"notices": {
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_by", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduled_at", Value: 1}}},
	},
	"students": {
		{Keys: bson.D{{Key: "branch", Value: 1}, {Key: "course", Value: 1}, {Key: "year", Value: 1}, {Key: "section", Value: 1}}},
		{Keys: bson.D{{Key: "official_email", Value: 1}}},
		{Keys: bson.D{{Key: "email", Value: 1}}},
	},
	"teachers": {
		{Keys: bson.D{{Key: "department", Value: 1}}},
	},
}

// EnsureIndexes creates the indexes the repositories rely on. Creating an
// existing index is a no-op in MongoDB.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	for name, models := range collectionIndexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	logger.Info("MongoDB indexes ensured", zap.Int("collections", len(collectionIndexes)))
	return nil
}
