package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/socialhub/internal/apperror"
	"github.com/sakif/socialhub/internal/model"
)

// CreatePost inserts a post for an existing owner. The owner check and the
// insert share a transaction so a concurrent profile deletion cannot leave
// an orphaned post behind.
func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()
	post.CreatedAt = time.Now()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := userExists(ctx, tx, post.OwnerID)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NotFound("user", post.OwnerID)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO posts (id, owner_id, caption, created_at) VALUES (?, ?, ?, ?)`,
			post.ID,
			post.OwnerID,
			post.Caption,
			post.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting post: %w", err)
		}
		return nil
	})
}

// GetPostByID retrieves a single post.
func (db *DB) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, owner_id, caption, created_at FROM posts WHERE id = ?`, id,
	).Scan(&p.ID, &p.OwnerID, &p.Caption, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}
	return &p, nil
}

// ListPostsByOwner returns the owner's posts, oldest first.
func (db *DB) ListPostsByOwner(ctx context.Context, ownerID string) ([]model.Post, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, owner_id, caption, created_at FROM posts
		 WHERE owner_id = ? ORDER BY created_at, id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts of %s: %w", ownerID, err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0)
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Caption, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}

	return posts, nil
}

// DeletePost removes a post. The owner's post list is derived from the
// posts table, so there is nothing else to update.
func (db *DB) DeletePost(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %s: %w", id, err)
	}
	return expectOneRow(result, "post", id)
}
