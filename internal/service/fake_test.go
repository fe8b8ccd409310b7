package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/sakif/socialhub/internal/apperror"
	"github.com/sakif/socialhub/internal/auth"
	"github.com/sakif/socialhub/internal/model"
	"github.com/sakif/socialhub/internal/repository"
)

// fakeStore is an in-memory repository.Store. Using a fake (not a mock
// framework) keeps the tests readable: the behaviour is right here.
type fakeStore struct {
	users  map[string]*model.User
	hashes map[string]string
	posts  map[string]*model.Post
	nextID int

	// set to simulate a store failure
	failWith error
}

var _ repository.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  make(map[string]*model.User),
		hashes: make(map[string]string),
		posts:  make(map[string]*model.Post),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// copyUser returns a detached copy so callers can't mutate stored state.
func copyUser(u *model.User) *model.User {
	c := *u
	c.PasswordHash = ""
	c.Posts = slices.Clone(u.Posts)
	c.Followers = slices.Clone(u.Followers)
	c.Following = slices.Clone(u.Following)
	return &c
}

func (f *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	if f.failWith != nil {
		return f.failWith
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Conflict("email", "User already exists")
		}
	}
	user.ID = f.id("user")
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	user.Posts, user.Followers, user.Following = []string{}, []string{}, []string{}

	f.hashes[user.ID] = user.PasswordHash
	f.users[user.ID] = copyUser(user)
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return copyUser(u), nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, apperror.NotFoundMessage("user does not exist")
}

func (f *fakeStore) GetPasswordHash(_ context.Context, id string) (string, error) {
	h, ok := f.hashes[id]
	if !ok {
		return "", apperror.NotFound("user", id)
	}
	return h, nil
}

func (f *fakeStore) ListUsers(_ context.Context) ([]model.User, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	users := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		users = append(users, *copyUser(u))
	}
	return users, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, user *model.User) error {
	stored, ok := f.users[user.ID]
	if !ok {
		return apperror.NotFound("user", user.ID)
	}
	for id, u := range f.users {
		if id != user.ID && u.Email == user.Email {
			return apperror.Conflict("email", "email is already in use")
		}
	}
	stored.Name = user.Name
	stored.Email = user.Email
	return nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, id, hash string) error {
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	f.hashes[id] = hash
	return nil
}

func (f *fakeStore) CreatePost(_ context.Context, post *model.Post) error {
	owner, ok := f.users[post.OwnerID]
	if !ok {
		return apperror.NotFound("user", post.OwnerID)
	}
	post.ID = f.id("post")
	post.CreatedAt = time.Now()
	c := *post
	f.posts[post.ID] = &c
	owner.Posts = append(owner.Posts, post.ID)
	return nil
}

func (f *fakeStore) GetPostByID(_ context.Context, id string) (*model.Post, error) {
	p, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("post", id)
	}
	c := *p
	return &c, nil
}

func (f *fakeStore) ListPostsByOwner(_ context.Context, ownerID string) ([]model.Post, error) {
	posts := []model.Post{}
	if owner, ok := f.users[ownerID]; ok {
		for _, id := range owner.Posts {
			posts = append(posts, *f.posts[id])
		}
	}
	return posts, nil
}

func (f *fakeStore) DeletePost(_ context.Context, id string) error {
	p, ok := f.posts[id]
	if !ok {
		return apperror.NotFound("post", id)
	}
	delete(f.posts, id)
	if owner, ok := f.users[p.OwnerID]; ok {
		owner.Posts = remove(owner.Posts, id)
	}
	return nil
}

func (f *fakeStore) ToggleFollow(_ context.Context, followerID, followeeID string) (bool, error) {
	if f.failWith != nil {
		return false, f.failWith
	}
	followee, ok := f.users[followeeID]
	if !ok {
		return false, apperror.NotFound("user", followeeID)
	}
	follower, ok := f.users[followerID]
	if !ok {
		return false, apperror.NotFound("user", followerID)
	}

	if follower.IsFollowing(followeeID) {
		follower.Following = remove(follower.Following, followeeID)
		followee.Followers = remove(followee.Followers, followerID)
		return false, nil
	}
	follower.Following = append(follower.Following, followeeID)
	followee.Followers = append(followee.Followers, followerID)
	return true, nil
}

func (f *fakeStore) DeleteUserCascade(_ context.Context, id string) (*repository.CascadeResult, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}

	res := &repository.CascadeResult{PostsDeleted: len(u.Posts)}
	for _, pid := range u.Posts {
		delete(f.posts, pid)
	}
	for _, other := range f.users {
		if slices.Contains(other.Following, id) {
			other.Following = remove(other.Following, id)
			res.FollowersDetached++
		}
		if slices.Contains(other.Followers, id) {
			other.Followers = remove(other.Followers, id)
			res.FolloweesDetached++
		}
	}
	delete(f.users, id)
	delete(f.hashes, id)
	return res, nil
}

func (f *fakeStore) Ping(context.Context) error { return f.failWith }
func (f *fakeStore) Close() error               { return nil }

func remove(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(s string) bool { return s == id })
}

// =========================================================================
// HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestUserService(t *testing.T) (*UserService, *fakeStore) {
	t.Helper()

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	store := newFakeStore()
	// Cost 4 is the bcrypt minimum, fast enough for tests.
	return NewUserService(store, tokens, auth.NewPasswordService(4), discardLogger()), store
}

func mustRegister(t *testing.T, svc *UserService, name string) *model.User {
	t.Helper()
	res, err := svc.Register(context.Background(), RegisterInput{
		Name:     name,
		Email:    name + "@example.com",
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", name, err)
	}
	return res.User
}
