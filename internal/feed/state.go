package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/repositories"
)

// State is a viewer's local copy of a post listing, kept the way a client
// keeps it: fetched wholesale, patched optimistically on like and replaced by
// the next refresh. A State scoped to a user also tracks that profile header.
//
// State is safe for concurrent use. In-flight toggles are not serialized; the
// next Refresh converges on the stored truth.
type State struct {
	svc      *Service
	viewerID string
	userID   string

	mu      sync.Mutex
	posts   []models.PostView
	next    string
	profile *models.ProfileView
}

// NewFeedState tracks the global feed.
func NewFeedState(svc *Service, viewerID string) *State {
	return &State{svc: svc, viewerID: viewerID}
}

// NewProfileState tracks userID's profile page.
func NewProfileState(svc *Service, viewerID, userID string) *State {
	return &State{svc: svc, viewerID: viewerID, userID: userID}
}

// Posts returns a copy of the current listing.
func (st *State) Posts() []models.PostView {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]models.PostView(nil), st.posts...)
}

// Profile returns the profile header, or nil for a feed State or before the
// first refresh.
func (st *State) Profile() *models.ProfileView {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.profile == nil {
		return nil
	}
	p := *st.profile
	return &p
}

// HasMore reports whether LoadMore would fetch anything.
func (st *State) HasMore() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.next != ""
}

// Refresh replaces the listing with the first page from the store.
func (st *State) Refresh(ctx context.Context) error {
	posts, next, profile, err := st.fetch(ctx, "")
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.posts, st.next, st.profile = posts, next, profile
	st.mu.Unlock()
	return nil
}

// LoadMore appends the next page.
func (st *State) LoadMore(ctx context.Context) error {
	st.mu.Lock()
	cursor := st.next
	st.mu.Unlock()
	if cursor == "" {
		return nil
	}

	posts, next, _, err := st.fetch(ctx, cursor)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.posts = append(st.posts, posts...)
	st.next = next
	st.mu.Unlock()
	return nil
}

func (st *State) fetch(ctx context.Context, cursor string) ([]models.PostView, string, *models.ProfileView, error) {
	page := repositories.PageRequest{Cursor: cursor}
	if st.userID == "" {
		res, err := st.svc.Feed(ctx, st.viewerID, page)
		if err != nil {
			return nil, "", nil, err
		}
		return res.Posts, res.NextCursor, nil, nil
	}

	view, err := st.svc.Profile(ctx, st.viewerID, st.userID, page)
	if err != nil {
		return nil, "", nil, err
	}
	posts := view.Posts
	view.Posts = nil
	return posts, view.NextCursor, view, nil
}

// ToggleLike flips the like locally, then writes it. If the write fails the
// flip is reverted and a TransportError is returned.
func (st *State) ToggleLike(ctx context.Context, postID string) error {
	if !st.flip(postID) {
		return repositories.ErrNotFound
	}

	status, err := st.svc.likes.Toggle(ctx, postID, st.viewerID)
	if err != nil {
		st.flip(postID)
		st.svc.logger.Warn("like toggle rolled back", "post_id", postID, "error", err)
		return asTransport("toggle like", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if i := st.indexOf(postID); i >= 0 {
		st.posts[i].LikedByViewer = status.Liked
		st.posts[i].LikesCount = status.LikesCount
	}
	return nil
}

// flip inverts the local like flag and count of postID.
func (st *State) flip(postID string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	i := st.indexOf(postID)
	if i < 0 {
		return false
	}
	p := &st.posts[i]
	p.LikedByViewer = !p.LikedByViewer
	if p.LikedByViewer {
		p.LikesCount++
	} else if p.LikesCount > 0 {
		p.LikesCount--
	}
	return true
}

func (st *State) indexOf(postID string) int {
	for i := range st.posts {
		if st.posts[i].ID == postID {
			return i
		}
	}
	return -1
}

// CreatePost publishes a post as the viewer and refreshes.
func (st *State) CreatePost(ctx context.Context, content string) error {
	if _, err := st.svc.posts.CreatePost(ctx, st.viewerID, content); err != nil {
		return err
	}
	return st.Refresh(ctx)
}

// DeletePost deletes one of the viewer's posts and refreshes.
func (st *State) DeletePost(ctx context.Context, postID string) error {
	if err := st.svc.posts.DeletePost(ctx, postID, st.viewerID); err != nil {
		return err
	}
	return st.Refresh(ctx)
}

// AddComment comments as the viewer and refreshes so the counter updates.
func (st *State) AddComment(ctx context.Context, postID, content string) error {
	if _, err := st.svc.comments.CreateComment(ctx, postID, st.viewerID, content); err != nil {
		return err
	}
	return st.Refresh(ctx)
}

// DeleteComment deletes one of the viewer's comments and refreshes.
func (st *State) DeleteComment(ctx context.Context, commentID string) error {
	if err := st.svc.comments.DeleteComment(ctx, commentID, st.viewerID); err != nil {
		return err
	}
	return st.Refresh(ctx)
}

// Comments fetches a post's comments. They are not cached in the State.
func (st *State) Comments(ctx context.Context, postID string) ([]models.CommentView, error) {
	comments, _, err := st.svc.comments.ListByPost(ctx, postID, repositories.PageRequest{Limit: repositories.MaxPageSize})
	return comments, err
}

// ToggleFollow follows or unfollows the profile this State is scoped to.
func (st *State) ToggleFollow(ctx context.Context) error {
	if st.userID == "" {
		return &repositories.ValidationError{Field: "user_id", Reason: "feed has no profile to follow"}
	}
	if _, err := st.svc.follows.Toggle(ctx, st.viewerID, st.userID); err != nil {
		return err
	}
	return st.Refresh(ctx)
}

// asTransport keeps domain errors and wraps everything else.
func asTransport(op string, err error) error {
	var te *repositories.TransportError
	if errors.As(err, &te) {
		return err
	}
	return &repositories.TransportError{Op: op, Err: err}
}
