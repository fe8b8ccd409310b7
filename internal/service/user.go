// Package service holds the business rules between the HTTP handlers and
// the store:
//
//	Handler (HTTP) → Service (validation, rules) → repository.Store (data)
//
// Services accept plain values, return model types and apperror values, and
// know nothing about HTTP. Status codes are chosen in handler.writeError.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/socialhub/internal/apperror"
	"github.com/sakif/socialhub/internal/auth"
	"github.com/sakif/socialhub/internal/model"
	"github.com/sakif/socialhub/internal/repository"
)

// RegisterInput is the body of POST /register.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,maxbytes=72"`
}

// LoginInput is the body of POST /login.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdatePasswordInput is the body of PUT /update/password.
type UpdatePasswordInput struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// newPasswordRule applies the registration password rules to a new password.
type newPasswordRule struct {
	NewPassword string `json:"newPassword" validate:"min=6,maxbytes=72"`
}

// UpdateProfileInput is the body of PUT /update/profile. Empty fields are
// left unchanged.
type UpdateProfileInput struct {
	Name  string `json:"name" validate:"omitempty,max=100"`
	Email string `json:"email" validate:"omitempty,email"`
}

// AuthResult bundles the user and the issued token so the handler can set
// the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// UserService implements registration, login and the profile operations.
type UserService struct {
	store     repository.Store
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	validate  *validator.Validate
	logger    *slog.Logger
}

func NewUserService(
	store repository.Store,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		store:     store,
		tokens:    tokens,
		passwords: passwords,
		validate:  newValidator(),
		logger:    logger,
	}
}

// Register creates an account and signs the user in.
//
// The email lookup gives the friendly "User already exists" answer in the
// common case; the store's unique constraint covers two concurrent
// registrations racing past it.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)

	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	_, err := s.store.GetUserByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, apperror.Conflict("email", "User already exists")
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/user: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/user: hashing password: %w", err)
	}

	user := &model.User{Name: in.Name, Email: in.Email, PasswordHash: hash}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: creating user: %w", err)
	}
	user.PasswordHash = ""

	s.logger.Info("user registered", slog.String("userID", user.ID))

	return s.signIn(user)
}

// Login checks the credentials and issues a new token.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = normalizeEmail(in.Email)

	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	user, err := s.store.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("email", "user does not exist")
		}
		return nil, fmt.Errorf("service/user: looking up %s: %w", in.Email, err)
	}

	if err := s.checkPassword(ctx, user.ID, in.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperror.ValidationFailed("password", "incorrect password")
		}
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return s.signIn(user)
}

// ToggleFollow follows targetID, or unfollows it if already followed. It
// returns true when the acting user follows the target afterwards.
func (s *UserService) ToggleFollow(ctx context.Context, userID, targetID string) (bool, error) {
	if userID == targetID {
		return false, apperror.ValidationFailed("id", "you cannot follow yourself")
	}

	following, err := s.store.ToggleFollow(ctx, userID, targetID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, apperror.NotFoundMessage("User not found")
		}
		return false, fmt.Errorf("service/user: toggling follow %s→%s: %w", userID, targetID, err)
	}

	event := "user unfollowed"
	if following {
		event = "user followed"
	}
	s.logger.Info(event, slog.String("userID", userID), slog.String("targetID", targetID))

	return following, nil
}

// UpdatePassword replaces the password after checking the old one. A wrong
// old password stops here; nothing is written.
func (s *UserService) UpdatePassword(ctx context.Context, userID string, in UpdatePasswordInput) error {
	if in.OldPassword == "" || in.NewPassword == "" {
		return apperror.ValidationFailed("password", "please provide old and new password")
	}

	if err := s.checkPassword(ctx, userID, in.OldPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apperror.ValidationFailed("oldPassword", "incorrect old password")
		}
		return err
	}

	if err := s.validate.Struct(newPasswordRule{NewPassword: in.NewPassword}); err != nil {
		return validationError(err)
	}

	hash, err := s.passwords.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("service/user: hashing password: %w", err)
	}

	if err := s.store.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("service/user: updating password: %w", err)
	}

	s.logger.Info("password changed", slog.String("userID", userID))
	return nil
}

// UpdateProfile changes the name and/or email. Fields left empty keep their
// current value.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*model.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)

	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/user: fetching user %s: %w", userID, err)
	}

	if in.Name != "" {
		user.Name = in.Name
	}
	if in.Email != "" {
		user.Email = in.Email
	}

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: updating user %s: %w", userID, err)
	}

	return user, nil
}

// DeleteProfile removes the user together with their posts and every
// follow edge that points to or from them.
func (s *UserService) DeleteProfile(ctx context.Context, userID string) error {
	res, err := s.store.DeleteUserCascade(ctx, userID)
	if err != nil {
		return fmt.Errorf("service/user: deleting user %s: %w", userID, err)
	}

	s.logger.Info("profile deleted",
		slog.String("userID", userID),
		slog.Int("posts", res.PostsDeleted),
		slog.Int("followers", res.FollowersDetached),
		slog.Int("following", res.FolloweesDetached),
	)
	return nil
}

// MyProfile returns the acting user with their posts populated.
func (s *UserService) MyProfile(ctx context.Context, userID string) (*model.Profile, error) {
	return s.profile(ctx, userID)
}

// UserProfile returns another user's profile with posts populated.
func (s *UserService) UserProfile(ctx context.Context, id string) (*model.Profile, error) {
	p, err := s.profile(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("user not found")
		}
		return nil, err
	}
	return p, nil
}

// ListUsers returns every registered user.
func (s *UserService) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/user: listing users: %w", err)
	}
	return users, nil
}

func (s *UserService) profile(ctx context.Context, id string) (*model.Profile, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/user: fetching user %s: %w", id, err)
	}

	posts, err := s.store.ListPostsByOwner(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/user: fetching posts of %s: %w", id, err)
	}

	return &model.Profile{User: *user, Posts: posts}, nil
}

func (s *UserService) checkPassword(ctx context.Context, userID, plaintext string) error {
	hash, err := s.store.GetPasswordHash(ctx, userID)
	if err != nil {
		return fmt.Errorf("service/user: loading password hash: %w", err)
	}
	return s.passwords.Verify(hash, plaintext)
}

func (s *UserService) signIn(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/user: generating token for %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
