package models

import "time"

// Follow is a directed edge: FollowerID follows FollowingID.
type Follow struct {
	FollowerID  string    `json:"follower_id" bson:"follower_id" gorm:"primaryKey;type:varchar(128)"`
	FollowingID string    `json:"following_id" bson:"following_id" gorm:"primaryKey;type:varchar(128);index"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

func (Follow) TableName() string { return "followers" }

// FollowStats are the counts shown on a profile header.
type FollowStats struct {
	UserID         string `json:"user_id"`
	FollowersCount int64  `json:"followers_count"`
	FollowingCount int64  `json:"following_count"`
	IsFollowing    bool   `json:"is_following"`
}

// ProfileView is a profile page: header, follow state and the author's posts.
type ProfileView struct {
	Profile     Profile    `json:"profile"`
	IsFollowing bool       `json:"is_following"`
	IsSelf      bool       `json:"is_self"`
	Posts       []PostView `json:"posts"`
	NextCursor  string     `json:"next_cursor,omitempty"`
}
