package models

import "time"

// MaxPostLength is the rune limit on post content after trimming.
const MaxPostLength = 500

// Post is a short text post. Only the counters change after creation.
type Post struct {
	ID            string    `json:"id" bson:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID        string    `json:"user_id" bson:"user_id" gorm:"index;type:varchar(128);not null"`
	Content       string    `json:"content" bson:"content" gorm:"type:varchar(500);not null"`
	LikesCount    int64     `json:"likes_count" bson:"likes_count" gorm:"not null;default:0"`
	CommentsCount int64     `json:"comments_count" bson:"comments_count" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at" gorm:"index"`
}

func (Post) TableName() string { return "posts" }

// CreatePostRequest defines the request body for creating a new post.
// The length limit applies after trimming, in the repository.
type CreatePostRequest struct {
	Content string `json:"content" validate:"required"`
}

// PostView is a post joined with its author and the viewer's like flag.
type PostView struct {
	Post
	Author        ProfileCompact `json:"author"`
	LikedByViewer bool           `json:"liked_by_viewer"`
}

// PostPage is one page of a reverse-chronological post listing.
type PostPage struct {
	Posts      []PostView `json:"posts"`
	NextCursor string     `json:"next_cursor,omitempty"`
}
