package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/socialhub/internal/model"
	"github.com/sakif/socialhub/internal/service"
)

// PostHandler serves post creation, lookup and deletion.
type PostHandler struct {
	posts  *service.PostService
	logger *slog.Logger
}

func NewPostHandler(posts *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

type postResponse struct {
	Success bool        `json:"success"`
	Post    *model.Post `json:"post"`
}

// HandleCreate stores a post owned by the caller.
//
// HTTP: POST /api/v1/post/upload
// BODY: {"caption": "..."}
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	var in service.CreatePostInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	post, err := h.posts.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, postResponse{Success: true, Post: post})
}

// HandleGet returns a single post.
//
// HTTP: GET /api/v1/post/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, postResponse{Success: true, Post: post})
}

type postsResponse struct {
	Success bool         `json:"success"`
	Posts   []model.Post `json:"posts"`
}

// HandleListByOwner returns every post of one user.
//
// HTTP: GET /api/v1/posts/{id}
func (h *PostHandler) HandleListByOwner(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListByOwner(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, postsResponse{Success: true, Posts: posts})
}

// HandleDelete deletes one of the caller's posts. Other users' posts are 403.
//
// HTTP: DELETE /api/v1/post/{id}
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.posts.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeMessage(w, http.StatusOK, "Post deleted")
}
