// Package feed composes repositories into the two screens the product has:
// the global feed and a user's profile page.
package feed

import (
	"context"
	"log/slog"

	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/repositories"
)

// Service builds feed and profile views for a viewer.
type Service struct {
	posts    repositories.PostRepository
	likes    repositories.LikeRepository
	comments repositories.CommentRepository
	follows  repositories.FollowRepository
	profiles repositories.ProfileRepository
	logger   *slog.Logger
}

func NewService(set *repositories.Set, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		posts:    set.Posts,
		likes:    set.Likes,
		comments: set.Comments,
		follows:  set.Follows,
		profiles: set.Profiles,
		logger:   logger,
	}
}

// Feed returns one page of the global feed with the viewer's like flags.
func (s *Service) Feed(ctx context.Context, viewerID string, page repositories.PageRequest) (*models.PostPage, error) {
	if viewerID == "" {
		return nil, repositories.ErrUnauthenticated
	}
	result, err := s.posts.ListGlobal(ctx, page)
	if err != nil {
		return nil, err
	}
	if err := s.markLiked(ctx, viewerID, result.Posts); err != nil {
		return nil, err
	}
	return result, nil
}

// Profile returns userID's profile page as seen by viewerID.
func (s *Service) Profile(ctx context.Context, viewerID, userID string, page repositories.PageRequest) (*models.ProfileView, error) {
	if viewerID == "" {
		return nil, repositories.ErrUnauthenticated
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	following, err := s.follows.IsFollowing(ctx, viewerID, userID)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.ListByAuthor(ctx, userID, page)
	if err != nil {
		return nil, err
	}
	if err := s.markLiked(ctx, viewerID, posts.Posts); err != nil {
		return nil, err
	}

	return &models.ProfileView{
		Profile:     *profile,
		IsFollowing: following,
		IsSelf:      viewerID == userID,
		Posts:       posts.Posts,
		NextCursor:  posts.NextCursor,
	}, nil
}

func (s *Service) markLiked(ctx context.Context, viewerID string, posts []models.PostView) error {
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	liked, err := s.likes.LikedPostIDs(ctx, viewerID, ids)
	if err != nil {
		return err
	}
	for i := range posts {
		posts[i].LikedByViewer = liked[posts[i].ID]
	}
	return nil
}
