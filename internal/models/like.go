package models

import "time"

// Like records that a user likes a post. The (post, user) pair is the key.
type Like struct {
	PostID    string    `json:"post_id" bson:"post_id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" bson:"user_id" gorm:"primaryKey;type:varchar(128);index"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

func (Like) TableName() string { return "likes" }

// LikeStatus is the result of a toggle or a status lookup.
type LikeStatus struct {
	PostID     string `json:"post_id"`
	Liked      bool   `json:"liked"`
	LikesCount int64  `json:"likes_count"`
}
