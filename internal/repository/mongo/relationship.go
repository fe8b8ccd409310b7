package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/socialhub/internal/apperror"
	"github.com/sakif/socialhub/internal/model"
	"github.com/sakif/socialhub/internal/repository"
)

// ToggleFollow reads the follower's following array and then either pulls
// or adds the ids on both documents. All of it runs in one transaction, so
// a concurrent toggle on the same pair either sees the committed state or
// aborts with a write conflict that the driver retries.
func (s *Store) ToggleFollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	var following bool

	err := s.withTx(ctx, func(sc driver.SessionContext) error {
		following = false

		n, err := s.users.CountDocuments(sc, bson.M{"_id": followeeID})
		if err != nil {
			return fmt.Errorf("mongo: checking user %s: %w", followeeID, err)
		}
		if n == 0 {
			return apperror.NotFound("user", followeeID)
		}

		var follower model.User
		err = s.users.FindOne(sc, bson.M{"_id": followerID},
			options.FindOne().SetProjection(bson.M{"following": 1}),
		).Decode(&follower)
		if err != nil {
			if isNoDocuments(err) {
				return apperror.NotFound("user", followerID)
			}
			return fmt.Errorf("mongo: getting user %s: %w", followerID, err)
		}

		op := "$addToSet"
		if follower.IsFollowing(followeeID) {
			op = "$pull"
		} else {
			following = true
		}

		if _, err := s.users.UpdateOne(sc, bson.M{"_id": followerID},
			bson.M{op: bson.M{"following": followeeID}}); err != nil {
			return fmt.Errorf("mongo: updating following of %s: %w", followerID, err)
		}
		if _, err := s.users.UpdateOne(sc, bson.M{"_id": followeeID},
			bson.M{op: bson.M{"followers": followerID}}); err != nil {
			return fmt.Errorf("mongo: updating followers of %s: %w", followeeID, err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	return following, nil
}

// DeleteUserCascade removes the user's posts, pulls the user's id from every
// other user's followers and following arrays, then deletes the user.
//
// The pulls filter on the arrays that contain the id rather than on the
// deleted user's own lists, so edges left behind by earlier partial writes
// are cleaned up too.
func (s *Store) DeleteUserCascade(ctx context.Context, id string) (*repository.CascadeResult, error) {
	var res repository.CascadeResult

	err := s.withTx(ctx, func(sc driver.SessionContext) error {
		res = repository.CascadeResult{}

		n, err := s.users.CountDocuments(sc, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("mongo: checking user %s: %w", id, err)
		}
		if n == 0 {
			return apperror.NotFound("user", id)
		}

		del, err := s.posts.DeleteMany(sc, bson.M{"owner": id})
		if err != nil {
			return fmt.Errorf("mongo: deleting posts of %s: %w", id, err)
		}
		res.PostsDeleted = int(del.DeletedCount)

		followers, err := s.users.UpdateMany(sc, bson.M{"following": id},
			bson.M{"$pull": bson.M{"following": id}})
		if err != nil {
			return fmt.Errorf("mongo: detaching followers of %s: %w", id, err)
		}
		res.FollowersDetached = int(followers.ModifiedCount)

		followees, err := s.users.UpdateMany(sc, bson.M{"followers": id},
			bson.M{"$pull": bson.M{"followers": id}})
		if err != nil {
			return fmt.Errorf("mongo: detaching followees of %s: %w", id, err)
		}
		res.FolloweesDetached = int(followees.ModifiedCount)

		if _, err := s.users.DeleteOne(sc, bson.M{"_id": id}); err != nil {
			return fmt.Errorf("mongo: deleting user %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &res, nil
}
