package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/socialhub/internal/apperror"
	"github.com/sakif/socialhub/internal/model"
	"github.com/sakif/socialhub/internal/repository"
)

// compile-time check that *DB implements repository.Store
var _ repository.Store = (*DB)(nil)

const userColumns = `id, name, email, created_at, updated_at`

// CreateUser inserts a new user. The email column is UNIQUE, so a concurrent
// registration with the same email fails here even if the service-level
// existence check passed.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Posts = []string{}
	user.Followers = []string{}
	user.Following = []string{}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("email", "User already exists")
		}
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	return nil
}

// GetUserByID retrieves a user with its posts, followers and following ids.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}

	if err := attachRelations(ctx, db.conn, u); err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFoundMessage("user does not exist")
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}

	if err := attachRelations(ctx, db.conn, u); err != nil {
		return nil, err
	}
	return u, nil
}

// GetPasswordHash is the only read that touches password_hash.
func (db *DB) GetPasswordHash(ctx context.Context, id string) (string, error) {
	var hash string
	err := db.conn.QueryRowContext(ctx,
		`SELECT password_hash FROM users WHERE id = ?`, id,
	).Scan(&hash)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", apperror.NotFound("user", id)
		}
		return "", fmt.Errorf("sqlite: getting password hash for %s: %w", id, err)
	}
	return hash, nil
}

// ListUsers returns every user, oldest first.
//
// Relations are loaded with one query per table and grouped in memory, so
// the cost is three queries regardless of the number of users.
func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	index := make(map[string]int)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		index[u.ID] = len(users)
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	// Release the connection before the next query.
	rows.Close()

	postRows, err := db.conn.QueryContext(ctx,
		`SELECT owner_id, id FROM posts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing post ids: %w", err)
	}
	err = eachPair(postRows, func(ownerID, postID string) {
		if i, ok := index[ownerID]; ok {
			users[i].Posts = append(users[i].Posts, postID)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading post ids: %w", err)
	}

	followRows, err := db.conn.QueryContext(ctx,
		`SELECT follower_id, followee_id FROM follows ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing follows: %w", err)
	}
	err = eachPair(followRows, func(follower, followee string) {
		if i, ok := index[follower]; ok {
			users[i].Following = append(users[i].Following, followee)
		}
		if i, ok := index[followee]; ok {
			users[i].Followers = append(users[i].Followers, follower)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading follows: %w", err)
	}

	return users, nil
}

// UpdateUser persists the user's name and email.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, updated_at = ? WHERE id = ?`,
		user.Name,
		user.Email,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("email", "email is already in use")
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	return expectOneRow(result, "user", user.ID)
}

// UpdatePassword replaces the stored hash.
func (db *DB) UpdatePassword(ctx context.Context, id, hash string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash,
		time.Now(),
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating password for %s: %w", id, err)
	}

	return expectOneRow(result, "user", id)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{
		Posts:     []string{},
		Followers: []string{},
		Following: []string{},
	}
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// attachRelations fills Posts, Followers and Following for a single user.
func attachRelations(ctx context.Context, q querier, u *model.User) error {
	var err error
	if u.Posts, err = selectIDs(ctx, q,
		`SELECT id FROM posts WHERE owner_id = ? ORDER BY created_at, id`, u.ID); err != nil {
		return fmt.Errorf("sqlite: loading posts of %s: %w", u.ID, err)
	}
	if u.Followers, err = selectIDs(ctx, q,
		`SELECT follower_id FROM follows WHERE followee_id = ? ORDER BY created_at`, u.ID); err != nil {
		return fmt.Errorf("sqlite: loading followers of %s: %w", u.ID, err)
	}
	if u.Following, err = selectIDs(ctx, q,
		`SELECT followee_id FROM follows WHERE follower_id = ? ORDER BY created_at`, u.ID); err != nil {
		return fmt.Errorf("sqlite: loading following of %s: %w", u.ID, err)
	}
	return nil
}

// selectIDs runs a single-column query and collects the results.
// It always returns a non-nil slice so JSON encodes [] rather than null.
func selectIDs(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// eachPair iterates a two-column result set and closes it.
func eachPair(rows *sql.Rows, fn func(a, b string)) error {
	defer rows.Close()
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return err
		}
		fn(a, b)
	}
	return rows.Err()
}

// expectOneRow turns "0 rows affected" into a NotFound error.
func expectOneRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
