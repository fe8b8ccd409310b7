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

// CreatePost inserts the post and pushes its id onto the owner's posts
// array in the same transaction.
func (s *Store) CreatePost(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()
	post.CreatedAt = time.Now().UTC()

	return s.withTx(ctx, func(sc driver.SessionContext) error {
		res, err := s.users.UpdateOne(sc, bson.M{"_id": post.OwnerID},
			bson.M{"$push": bson.M{"posts": post.ID}})
		if err != nil {
			return fmt.Errorf("mongo: linking post to %s: %w", post.OwnerID, err)
		}
		if res.MatchedCount == 0 {
			return apperror.NotFound("user", post.OwnerID)
		}

		if _, err := s.posts.InsertOne(sc, post); err != nil {
			return fmt.Errorf("mongo: inserting post: %w", err)
		}
		return nil
	})
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	if err := s.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if isNoDocuments(err) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("mongo: getting post %s: %w", id, err)
	}
	return &p, nil
}

func (s *Store) ListPostsByOwner(ctx context.Context, ownerID string) ([]model.Post, error) {
	cur, err := s.posts.Find(ctx, bson.M{"owner": ownerID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: listing posts of %s: %w", ownerID, err)
	}

	posts := make([]model.Post, 0)
	if err := cur.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("mongo: decoding posts: %w", err)
	}
	return posts, nil
}

// DeletePost removes the post and pulls its id from the owner's array.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	return s.withTx(ctx, func(sc driver.SessionContext) error {
		var p model.Post
		if err := s.posts.FindOneAndDelete(sc, bson.M{"_id": id}).Decode(&p); err != nil {
			if isNoDocuments(err) {
				return apperror.NotFound("post", id)
			}
			return fmt.Errorf("mongo: deleting post %s: %w", id, err)
		}

		_, err := s.users.UpdateOne(sc, bson.M{"_id": p.OwnerID},
			bson.M{"$pull": bson.M{"posts": id}})
		if err != nil {
			return fmt.Errorf("mongo: unlinking post %s: %w", id, err)
		}
		return nil
	})
}
