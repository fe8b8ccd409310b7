package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/socialhub/internal/apperror"
	"github.com/sakif/socialhub/internal/model"
)

// CreateUser inserts the user document. The unique email index rejects a
// second registration with the same address.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Posts = []string{}
	user.Followers = []string{}
	user.Following = []string{}

	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if driver.IsDuplicateKeyError(err) {
			return apperror.Conflict("email", "User already exists")
		}
		return fmt.Errorf("mongo: inserting user (email=%s): %w", user.Email, err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := s.findUser(ctx, bson.M{"_id": id})
	if err != nil {
		if isNoDocuments(err) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("mongo: getting user %s: %w", id, err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := s.findUser(ctx, bson.M{"email": email})
	if err != nil {
		if isNoDocuments(err) {
			return nil, apperror.NotFoundMessage("user does not exist")
		}
		return nil, fmt.Errorf("mongo: getting user by email: %w", err)
	}
	return u, nil
}

func (s *Store) GetPasswordHash(ctx context.Context, id string) (string, error) {
	var doc struct {
		Password string `bson:"password"`
	}
	err := s.users.FindOne(ctx, bson.M{"_id": id},
		options.FindOne().SetProjection(bson.M{"password": 1}),
	).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return "", apperror.NotFound("user", id)
		}
		return "", fmt.Errorf("mongo: getting password hash for %s: %w", id, err)
	}
	return doc.Password, nil
}

// ListUsers returns every user, oldest first.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	cur, err := s.users.Find(ctx, bson.M{},
		options.Find().
			SetProjection(withoutPassword()).
			SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing users: %w", err)
	}

	users := make([]model.User, 0)
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("mongo: decoding users: %w", err)
	}
	for i := range users {
		normalize(&users[i])
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	res, err := s.users.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{
		"$set": bson.M{
			"name":      user.Name,
			"email":     user.Email,
			"updatedAt": user.UpdatedAt,
		},
	})
	if err != nil {
		if driver.IsDuplicateKeyError(err) {
			return apperror.Conflict("email", "email is already in use")
		}
		return fmt.Errorf("mongo: updating user %s: %w", user.ID, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

func (s *Store) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"password": hash, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("mongo: updating password for %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*model.User, error) {
	var u model.User
	err := s.users.FindOne(ctx, filter,
		options.FindOne().SetProjection(withoutPassword()),
	).Decode(&u)
	if err != nil {
		return nil, err
	}
	normalize(&u)
	return &u, nil
}
