// Package mongo implements repository.Store on a MongoDB database.
//
// Users are stored as documents holding their own posts, followers and
// following arrays. Operations that touch more than one document run inside
// a multi-document transaction, which requires the server to be a replica
// set (a single-node replica set is enough for development).
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/sakif/socialhub/internal/model"
	"github.com/sakif/socialhub/internal/repository"
)

var _ repository.Store = (*Store)(nil)

const (
	usersCollection = "users"
	postsCollection = "posts"
)

// Store holds the client and the two collections.
type Store struct {
	client *driver.Client
	users  *driver.Collection
	posts  *driver.Collection
}

// New connects, verifies the primary is reachable and ensures indexes.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := driver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging primary: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client: client,
		users:  db.Collection(usersCollection),
		posts:  db.Collection(postsCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, driver.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo: creating users.email index: %w", err)
	}

	_, err = s.posts.Indexes().CreateOne(ctx, driver.IndexModel{
		Keys: bson.D{{Key: "owner", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongo: creating posts.owner index: %w", err)
	}
	return nil
}

// Ping is used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo: ping: %w", err)
	}
	return nil
}

// Close disconnects, waiting at most five seconds for in-flight operations.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// withTx runs fn in a transaction. The driver may call fn more than once on
// transient errors, so fn must reset any state it reports back.
func (s *Store) withTx(ctx context.Context, fn func(sc driver.SessionContext) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongo: starting session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc driver.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// withoutPassword is the default projection: the hash is only read by
// GetPasswordHash.
func withoutPassword() bson.M {
	return bson.M{"password": 0}
}

// normalize replaces nil arrays (documents written before a field existed)
// with empty ones so responses encode [] instead of null.
func normalize(u *model.User) {
	if u.Posts == nil {
		u.Posts = []string{}
	}
	if u.Followers == nil {
		u.Followers = []string{}
	}
	if u.Following == nil {
		u.Following = []string{}
	}
}

func isNoDocuments(err error) bool {
	return errors.Is(err, driver.ErrNoDocuments)
}
