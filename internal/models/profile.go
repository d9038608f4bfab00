package models

import "time"

// Profile is the public record of a user. ID is the identity supplied by the
// session provider and never changes.
type Profile struct {
	ID             string    `json:"id" bson:"id" gorm:"primaryKey;type:varchar(128)"`
	Username       string    `json:"username" bson:"username" gorm:"uniqueIndex;size:30;not null"`
	FullName       string    `json:"full_name" bson:"full_name" gorm:"size:100"`
	AvatarURL      string    `json:"avatar_url" bson:"avatar_url"`
	Bio            string    `json:"bio" bson:"bio" gorm:"size:160"`
	FollowersCount int64     `json:"followers_count" bson:"followers_count" gorm:"not null;default:0"`
	FollowingCount int64     `json:"following_count" bson:"following_count" gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" bson:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }

// ProfileCompact is the author block joined onto posts and comments.
type ProfileCompact struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func (p *Profile) ToCompact() ProfileCompact {
	return ProfileCompact{
		ID:        p.ID,
		Username:  p.Username,
		FullName:  p.FullName,
		AvatarURL: p.AvatarURL,
	}
}

// DisplayName prefers the full name and falls back to the handle.
func (p *Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Username
}

// CreateProfileRequest defines the request body for creating the caller's profile
type CreateProfileRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=30"`
	FullName  string `json:"full_name,omitempty" validate:"omitempty,max=100"`
	AvatarURL string `json:"avatar_url,omitempty" validate:"omitempty,url"`
	Bio       string `json:"bio,omitempty" validate:"omitempty,max=160"`
}

// UpdateProfileRequest defines the request body for updating display fields.
// Empty fields are left untouched.
type UpdateProfileRequest struct {
	FullName  string `json:"full_name,omitempty" validate:"omitempty,max=100"`
	AvatarURL string `json:"avatar_url,omitempty" validate:"omitempty,url"`
	Bio       string `json:"bio,omitempty" validate:"omitempty,max=160"`
}
