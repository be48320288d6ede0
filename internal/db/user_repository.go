package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wuwenbin0122/authgate/internal/models"
)

const (
	FieldEmail    = "email"
	FieldUsername = "username"
)

// ErrNotFound is returned when no user matches a lookup.
var ErrNotFound = errors.New("db: user not found")

// DuplicateKeyError reports that an insert violated a unique constraint.
type DuplicateKeyError struct {
	Field string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("db: duplicate %s", e.Field)
}

// UserRepository persists user records.
type UserRepository interface {
	// FindByEmailOrUsername returns any user whose email or username equals the given values.
	FindByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error)
	// FindByEmail returns the user whose stored email equals email exactly.
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// Create inserts user and sets its ID. Unique violations yield *DuplicateKeyError.
	Create(ctx context.Context, user *models.User) error
}

type userDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func (d userDocument) toModel() *models.User {
	return &models.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type MongoUserRepository struct {
	users *mongo.Collection
}

func NewMongoUserRepository(users *mongo.Collection) *MongoUserRepository {
	return &MongoUserRepository{users: users}
}

func (r *MongoUserRepository) FindByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"email": email},
		bson.M{"username": username},
	}}
	return r.findOne(ctx, filter)
}

func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	doc := userDocument{
		ID:           primitive.NewObjectID(),
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}

	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &DuplicateKeyError{Field: duplicateField(err)}
		}
		return fmt.Errorf("mongo: insert user: %w", err)
	}

	user.ID = doc.ID.Hex()
	return nil
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDocument
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo: find user: %w", err)
	}
	return doc.toModel(), nil
}

// duplicateField names the unique constraint reported in a duplicate key error.
// The server message carries the index name, e.g. "index: uniq_email dup key: {...}".
// Only that token is matched; the dup key part echoes user input.
func duplicateField(err error) string {
	messages := []string{err.Error()}
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) && len(writeErr.WriteErrors) > 0 {
		messages = messages[:0]
		for _, we := range writeErr.WriteErrors {
			messages = append(messages, we.Message)
		}
	}

	for _, msg := range messages {
		switch {
		case strings.Contains(msg, "index: "+emailIndexName+" "):
			return FieldEmail
		case strings.Contains(msg, "index: "+usernameIndexName+" "):
			return FieldUsername
		}
	}
	return FieldUsername
}
