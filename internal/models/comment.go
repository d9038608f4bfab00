package models

import "time"

// MaxCommentLength is the rune limit on comment content after trimming.
const MaxCommentLength = 200

// Comment represents a comment on a post
type Comment struct {
	ID        string    `json:"id" bson:"id" gorm:"primaryKey;type:varchar(36)"`
	PostID    string    `json:"post_id" bson:"post_id" gorm:"index;type:varchar(36);not null"`
	UserID    string    `json:"user_id" bson:"user_id" gorm:"index;type:varchar(128);not null"`
	Content   string    `json:"content" bson:"content" gorm:"type:varchar(200);not null"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" gorm:"index"`
}

func (Comment) TableName() string { return "comments" }

// CreateCommentRequest defines the request body for creating a new comment.
// The length limit applies after trimming, in the repository.
type CreateCommentRequest struct {
	Content string `json:"content" validate:"required"`
}

// CommentView is a comment joined with its author.
type CommentView struct {
	Comment
	Author ProfileCompact `json:"author"`
}
