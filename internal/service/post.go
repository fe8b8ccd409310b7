package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/socialhub/internal/apperror"
	"github.com/sakif/socialhub/internal/model"
	"github.com/sakif/socialhub/internal/repository"
)

// MaxCaptionLength bounds a post caption in characters (runes).
const MaxCaptionLength = 2200

// CreatePostInput is the body of POST /post/upload.
type CreatePostInput struct {
	Caption string `json:"caption" validate:"max=2200"`
}

// PostService owns the post rules: any signed-in user may create posts,
// only the owner may delete one.
type PostService struct {
	store    repository.Store
	validate *validator.Validate
	logger   *slog.Logger
}

func NewPostService(store repository.Store, logger *slog.Logger) *PostService {
	return &PostService{
		store:    store,
		validate: newValidator(),
		logger:   logger,
	}
}

// Create stores a post owned by ownerID and links it to the owner.
func (s *PostService) Create(ctx context.Context, ownerID string, in CreatePostInput) (*model.Post, error) {
	in.Caption = strings.TrimSpace(in.Caption)

	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	post := &model.Post{OwnerID: ownerID, Caption: in.Caption}
	if err := s.store.CreatePost(ctx, post); err != nil {
		return nil, fmt.Errorf("service/post: creating post: %w", err)
	}

	s.logger.Info("post created", slog.String("postID", post.ID), slog.String("owner", ownerID))
	return post, nil
}

func (s *PostService) Get(ctx context.Context, id string) (*model.Post, error) {
	post, err := s.store.GetPostByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/post: fetching post %s: %w", id, err)
	}
	return post, nil
}

// ListByOwner returns ownerID's posts, oldest first.
func (s *PostService) ListByOwner(ctx context.Context, ownerID string) ([]model.Post, error) {
	if _, err := s.store.GetUserByID(ctx, ownerID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("user not found")
		}
		return nil, fmt.Errorf("service/post: fetching owner %s: %w", ownerID, err)
	}

	posts, err := s.store.ListPostsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service/post: listing posts of %s: %w", ownerID, err)
	}
	return posts, nil
}

// Delete removes the post if userID owns it.
func (s *PostService) Delete(ctx context.Context, userID, id string) error {
	post, err := s.store.GetPostByID(ctx, id)
	if err != nil {
		return fmt.Errorf("service/post: fetching post %s: %w", id, err)
	}

	if post.OwnerID != userID {
		return apperror.Forbidden("you can only delete your own posts")
	}

	if err := s.store.DeletePost(ctx, id); err != nil {
		return fmt.Errorf("service/post: deleting post %s: %w", id, err)
	}

	s.logger.Info("post deleted", slog.String("postID", id), slog.String("owner", userID))
	return nil
}
