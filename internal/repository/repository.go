// Package repository declares the storage interfaces the service layer
// depends on. Implementations live in the sqlite and mongo subpackages.
package repository

import (
	"context"

	"github.com/sakif/socialhub/internal/model"
)

// UserRepository stores user accounts.
//
// Reads never populate model.User.PasswordHash; use GetPasswordHash when the
// hash is needed for a credential check.
type UserRepository interface {
	// CreateUser assigns ID and timestamps. A taken email yields apperror.ErrConflict.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetPasswordHash(ctx context.Context, id string) (string, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	// UpdateUser persists Name and Email.
	UpdateUser(ctx context.Context, user *model.User) error
	UpdatePassword(ctx context.Context, id, hash string) error
}

// PostRepository stores posts. CreatePost also records the post id on its owner.
type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	GetPostByID(ctx context.Context, id string) (*model.Post, error)
	ListPostsByOwner(ctx context.Context, ownerID string) ([]model.Post, error)
	DeletePost(ctx context.Context, id string) error
}

// RelationshipRepository performs the multi-record mutations. Each call is
// applied atomically: either every record changes or none does.
type RelationshipRepository interface {
	// ToggleFollow makes followerID follow followeeID, or stops following if
	// it already does. It returns true when the edge exists afterwards.
	ToggleFollow(ctx context.Context, followerID, followeeID string) (bool, error)
	// DeleteUserCascade removes the user, its posts, and its id from every
	// follower's and followee's lists.
	DeleteUserCascade(ctx context.Context, id string) (*CascadeResult, error)
}

// CascadeResult reports what DeleteUserCascade removed.
type CascadeResult struct {
	PostsDeleted      int
	FollowersDetached int
	FolloweesDetached int
}

// Store is the full storage surface, implemented by sqlite.DB and mongo.Store.
type Store interface {
	UserRepository
	PostRepository
	RelationshipRepository
	Ping(ctx context.Context) error
	Close() error
}
