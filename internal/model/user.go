// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a registered account.
//
// PasswordHash is write-only from the API's point of view: the json "-" tag
// keeps it out of every response, and the stores only load it through
// GetPasswordHash.
//
// Posts, Followers and Following hold ids. Followers/Following are the two
// sides of the same follow edges: B is in A.Following exactly when A is in
// B.Followers.
type User struct {
	ID           string    `json:"id"        bson:"_id"`
	Name         string    `json:"name"      bson:"name"`
	Email        string    `json:"email"     bson:"email"`
	PasswordHash string    `json:"-"         bson:"password"`
	Posts        []string  `json:"posts"     bson:"posts"`
	Followers    []string  `json:"followers" bson:"followers"`
	Following    []string  `json:"following" bson:"following"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// IsFollowing reports whether u follows the user with the given id.
func (u *User) IsFollowing(id string) bool {
	for _, f := range u.Following {
		if f == id {
			return true
		}
	}
	return false
}

// Profile is a user with its post ids resolved into full posts.
// The outer Posts field shadows User.Posts when encoded to JSON.
type Profile struct {
	User
	Posts []Post `json:"posts"`
}
