// Copyright (c) 2026 Identra. All rights reserved.

package auth

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/identra/identra/internal/platform/apperr"
	"github.com/identra/identra/internal/platform/constants"
	"github.com/identra/identra/internal/platform/dberr"
	"github.com/identra/identra/internal/platform/sec"
	"github.com/identra/identra/pkg/pagination"
)

// MongoUserRepository implements [UserRepository] on the users collection.
type MongoUserRepository struct {
	collection *mongo.Collection
}

// NewUserRepository creates a MongoDB-backed [UserRepository].
func NewUserRepository(database *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{
		collection: database.Collection(constants.CollectionUsers),
	}
}

// userDocument is the storage representation of [User].
//
// # Mapping
//
// The domain entity carries no storage tags; this document struct owns the
// bson schema. Optional fields use omitempty so the sparse unique index on
// username only applies to documents that actually carry one.
type userDocument struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Email        string        `bson:"email"`
	Username     string        `bson:"username,omitempty"`
	PasswordHash string        `bson:"password_hash,omitempty"`
	DisplayName  string        `bson:"display_name,omitempty"`
	AvatarURL    string        `bson:"avatar_url,omitempty"`
	Role         string        `bson:"role"`
	Provider     string        `bson:"provider,omitempty"`
	ProviderID   string        `bson:"provider_id,omitempty"`
	IsVerified   bool          `bson:"is_verified"`
	IsActive     bool          `bson:"is_active"`
	CreatedAt    time.Time     `bson:"created_at"`
	UpdatedAt    time.Time     `bson:"updated_at"`
}

// toEntity converts a storage document to the domain entity.
func (doc *userDocument) toEntity() *User {
	return &User{
		ID:           doc.ID.Hex(),
		Email:        doc.Email,
		Username:     doc.Username,
		PasswordHash: doc.PasswordHash,
		DisplayName:  doc.DisplayName,
		AvatarURL:    doc.AvatarURL,
		Role:         sec.UserRole(doc.Role),
		Provider:     doc.Provider,
		ProviderID:   doc.ProviderID,
		IsVerified:   doc.IsVerified,
		IsActive:     doc.IsActive,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

// objectID parses a hex document ID. Invalid IDs map to NotFound because
// they can never address an existing document.
func objectID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.ObjectID{}, apperr.NotFound("User")
	}
	return oid, nil
}

// # Lookups

// FindByID returns the account with the given document ID.
func (repository *MongoUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return repository.findOne(ctx, bson.M{"_id": oid})
}

// FindByEmail returns the account with the given email.
func (repository *MongoUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return repository.findOne(ctx, bson.M{"email": email})
}

// FindByUsername returns the account with the given username.
func (repository *MongoUserRepository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return repository.findOne(ctx, bson.M{"username": username})
}

// FindByProvider returns the account linked to an OAuth identity.
func (repository *MongoUserRepository) FindByProvider(ctx context.Context, provider, providerID string) (*User, error) {
	return repository.findOne(ctx, bson.M{"provider": provider, "provider_id": providerID})
}

// findOne runs a single-document query and maps driver errors to [apperr].
func (repository *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var doc userDocument
	if err := repository.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, dberr.Wrap(err, "User")
	}
	return doc.toEntity(), nil
}

// # Mutations

// Create persists a brand-new user account and assigns its document ID.
func (repository *MongoUserRepository) Create(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	doc := userDocument{
		ID:           bson.NewObjectID(),
		Email:        user.Email,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		DisplayName:  user.DisplayName,
		AvatarURL:    user.AvatarURL,
		Role:         string(user.Role),
		Provider:     user.Provider,
		ProviderID:   user.ProviderID,
		IsVerified:   user.IsVerified,
		IsActive:     user.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := repository.collection.InsertOne(ctx, doc); err != nil {
		return dberr.Wrap(err, "User")
	}

	user.ID = doc.ID.Hex()
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// Update persists changes to mutable profile fields.
func (repository *MongoUserRepository) Update(ctx context.Context, user *User) error {
	oid, err := objectID(user.ID)
	if err != nil {
		return err
	}

	user.UpdatedAt = time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"display_name": user.DisplayName,
		"avatar_url":   user.AvatarURL,
		"role":         string(user.Role),
		"provider":     user.Provider,
		"provider_id":  user.ProviderID,
		"is_verified":  user.IsVerified,
		"updated_at":   user.UpdatedAt,
	}}

	// Username participates in a sparse unique index: only write it when set,
	// otherwise clear the field entirely so the index ignores the document.
	if user.Username != "" {
		update["$set"].(bson.M)["username"] = user.Username
	} else {
		update["$unset"] = bson.M{"username": ""}
	}

	return repository.updateOne(ctx, oid, update)
}

// UpdatePassword replaces only the user's password hash.
func (repository *MongoUserRepository) UpdatePassword(ctx context.Context, userID, newHash string) error {
	oid, err := objectID(userID)
	if err != nil {
		return err
	}
	return repository.updateOne(ctx, oid, bson.M{"$set": bson.M{
		"password_hash": newHash,
		"updated_at":    time.Now().UTC(),
	}})
}

// MarkVerified flags the account's email address as confirmed.
func (repository *MongoUserRepository) MarkVerified(ctx context.Context, userID string) error {
	oid, err := objectID(userID)
	if err != nil {
		return err
	}
	return repository.updateOne(ctx, oid, bson.M{"$set": bson.M{
		"is_verified": true,
		"updated_at":  time.Now().UTC(),
	}})
}

// SetActive toggles the soft-delete flag.
func (repository *MongoUserRepository) SetActive(ctx context.Context, userID string, active bool) error {
	oid, err := objectID(userID)
	if err != nil {
		return err
	}
	return repository.updateOne(ctx, oid, bson.M{"$set": bson.M{
		"is_active":  active,
		"updated_at": time.Now().UTC(),
	}})
}

// updateOne applies an update and maps a zero match count to NotFound.
func (repository *MongoUserRepository) updateOne(ctx context.Context, oid bson.ObjectID, update bson.M) error {
	result, err := repository.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return dberr.Wrap(err, "User")
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound("User")
	}
	return nil
}

// # Listings

// List returns one page of accounts ordered by creation time (newest first)
// along with the total account count.
func (repository *MongoUserRepository) List(ctx context.Context, params pagination.Params) ([]User, int, error) {
	total, err := repository.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("mongo_user_count_failed: %w", err)
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(params.Offset())).
		SetLimit(int64(params.Limit))

	cursor, err := repository.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, 0, fmt.Errorf("mongo_user_list_failed: %w", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("mongo_user_decode_failed: %w", err)
	}

	users := make([]User, 0, len(docs))
	for i := range docs {
		users = append(users, *docs[i].toEntity())
	}

	return users, int(total), nil
}
