package model

import "time"

// Post is owned by exactly one user and is deleted with it.
type Post struct {
	ID        string    `json:"id"        bson:"_id"`
	Caption   string    `json:"caption"   bson:"caption"`
	OwnerID   string    `json:"owner"     bson:"owner"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}
