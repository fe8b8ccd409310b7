package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/socialhub/internal/apperror"
	"github.com/sakif/socialhub/internal/repository"
)

// ToggleFollow flips the follow edge follower→followee inside one
// transaction. Because the edge is a single row, deleting or inserting it
// updates both the follower's Following and the followee's Followers.
func (db *DB) ToggleFollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	var following bool

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		// The target is checked first so a missing target reports 404 for it.
		for _, id := range []string{followeeID, followerID} {
			ok, err := userExists(ctx, tx, id)
			if err != nil {
				return err
			}
			if !ok {
				return apperror.NotFound("user", id)
			}
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM follows WHERE follower_id = ? AND followee_id = ?`,
			followerID, followeeID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: removing follow %s->%s: %w", followerID, followeeID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if n > 0 {
			following = false
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO follows (follower_id, followee_id, created_at) VALUES (?, ?, ?)`,
			followerID, followeeID, time.Now(),
		)
		if err != nil {
			return fmt.Errorf("sqlite: adding follow %s->%s: %w", followerID, followeeID, err)
		}
		following = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return following, nil
}

// DeleteUserCascade deletes the user's posts, every follow edge touching
// the user, and finally the user row, all in one transaction. A failure at
// any step leaves the database untouched.
func (db *DB) DeleteUserCascade(ctx context.Context, id string) (*repository.CascadeResult, error) {
	res := &repository.CascadeResult{}

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := userExists(ctx, tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NotFound("user", id)
		}

		steps := []struct {
			query string
			count *int
			what  string
		}{
			{`DELETE FROM posts WHERE owner_id = ?`, &res.PostsDeleted, "posts"},
			{`DELETE FROM follows WHERE followee_id = ?`, &res.FollowersDetached, "followers"},
			{`DELETE FROM follows WHERE follower_id = ?`, &res.FolloweesDetached, "following"},
		}
		for _, step := range steps {
			result, err := tx.ExecContext(ctx, step.query, id)
			if err != nil {
				return fmt.Errorf("sqlite: deleting %s of %s: %w", step.what, id, err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("sqlite: checking rows affected: %w", err)
			}
			*step.count = int(n)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

func userExists(ctx context.Context, q querier, id string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking user %s: %w", id, err)
	}
	return count > 0, nil
}
