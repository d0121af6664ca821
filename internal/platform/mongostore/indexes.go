// Copyright (c) 2026 Identra. All rights reserved.

package mongostore

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/identra/identra/internal/platform/constants"
)

// EnsureIndexes creates the index topology for the users collection.
//
// # Idempotency
//
// CreateMany is a no-op for indexes that already exist with the same
// definition, so this runs unconditionally at every startup — the Mongo
// equivalent of the schema-migration step in a relational deployment.
//
// # Indexes
//   - email: unique
//   - username: unique, sparse (usernames are optional)
//   - (provider, provider_id): compound, for OAuth identity lookups
//   - created_at: descending, for administration listings
func EnsureIndexes(ctx context.Context, database *mongo.Database, logger *slog.Logger) error {
	users := database.Collection(constants.CollectionUsers)

	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email"),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_username_sparse"),
		},
		{
			Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "provider_id", Value: 1}},
			Options: options.Index().SetName("idx_provider_identity"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_created_at"),
		},
	}

	names, err := users.Indexes().CreateMany(ctx, models)
	if err != nil {
		return fmt.Errorf("mongo: failed to ensure user indexes: %w", err)
	}

	logger.Info("mongo_indexes_ensured",
		slog.String("collection", constants.CollectionUsers),
		slog.Int("index_count", len(names)),
	)

	return nil
}
