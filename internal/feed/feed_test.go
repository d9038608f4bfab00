package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anonto42/nano-feed/backend/internal/datastore"
	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails every transaction while down is set.
type flakyStore struct {
	datastore.Store
	down atomic.Bool
}

var errStoreDown = errors.New("connection refused")

func (s *flakyStore) Tx(ctx context.Context, fn func(ctx context.Context, tx datastore.Store) error) error {
	if s.down.Load() {
		return errStoreDown
	}
	return s.Store.Tx(ctx, fn)
}

type env struct {
	ctx   context.Context
	store *flakyStore
	set   *repositories.Set
	svc   *Service
}

func newEnv(t *testing.T, users ...string) *env {
	t.Helper()
	store := &flakyStore{Store: datastore.NewMemoryWithIndexes()}
	clock := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	set := repositories.NewSet(store, repositories.Options{
		Clock: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	})
	e := &env{ctx: context.Background(), store: store, set: set, svc: NewService(set, nil)}
	for _, u := range users {
		_, err := set.Profiles.CreateProfile(e.ctx, u, models.CreateProfileRequest{Username: u})
		require.NoError(t, err)
	}
	return e
}

func TestService_FeedMarksViewerLikes(t *testing.T) {
	e := newEnv(t, "alice", "bob")
	p1, err := e.set.Posts.CreatePost(e.ctx, "alice", "one")
	require.NoError(t, err)
	p2, err := e.set.Posts.CreatePost(e.ctx, "alice", "two")
	require.NoError(t, err)
	_, err = e.set.Likes.Toggle(e.ctx, p1.ID, "bob")
	require.NoError(t, err)

	page, err := e.svc.Feed(e.ctx, "bob", repositories.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, p2.ID, page.Posts[0].ID)
	assert.False(t, page.Posts[0].LikedByViewer)
	assert.True(t, page.Posts[1].LikedByViewer)
	assert.EqualValues(t, 1, page.Posts[1].LikesCount)

	_, err = e.svc.Feed(e.ctx, "", repositories.PageRequest{})
	assert.ErrorIs(t, err, repositories.ErrUnauthenticated)
}

func TestService_Profile(t *testing.T) {
	e := newEnv(t, "alice", "bob")
	_, err := e.set.Posts.CreatePost(e.ctx, "alice", "by alice")
	require.NoError(t, err)
	_, err = e.set.Posts.CreatePost(e.ctx, "bob", "by bob")
	require.NoError(t, err)
	_, err = e.set.Follows.Toggle(e.ctx, "bob", "alice")
	require.NoError(t, err)

	view, err := e.svc.Profile(e.ctx, "bob", "alice", repositories.PageRequest{})
	require.NoError(t, err)
	assert.True(t, view.IsFollowing)
	assert.False(t, view.IsSelf)
	assert.EqualValues(t, 1, view.Profile.FollowersCount)
	require.Len(t, view.Posts, 1)
	assert.Equal(t, "by alice", view.Posts[0].Content)

	self, err := e.svc.Profile(e.ctx, "alice", "alice", repositories.PageRequest{})
	require.NoError(t, err)
	assert.True(t, self.IsSelf)
	assert.False(t, self.IsFollowing)

	_, err = e.svc.Profile(e.ctx, "alice", "ghost", repositories.PageRequest{})
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestState_ToggleLikeOptimistic(t *testing.T) {
	e := newEnv(t, "alice", "bob")
	p, err := e.set.Posts.CreatePost(e.ctx, "alice", "hello")
	require.NoError(t, err)

	st := NewFeedState(e.svc, "bob")
	require.NoError(t, st.Refresh(e.ctx))
	require.Len(t, st.Posts(), 1)

	require.NoError(t, st.ToggleLike(e.ctx, p.ID))
	got := st.Posts()[0]
	assert.True(t, got.LikedByViewer)
	assert.EqualValues(t, 1, got.LikesCount)

	require.NoError(t, st.ToggleLike(e.ctx, p.ID))
	got = st.Posts()[0]
	assert.False(t, got.LikedByViewer)
	assert.EqualValues(t, 0, got.LikesCount)

	assert.ErrorIs(t, st.ToggleLike(e.ctx, "unknown"), repositories.ErrNotFound)
}

func TestState_ToggleLikeRollsBackOnFailure(t *testing.T) {
	e := newEnv(t, "alice", "bob")
	p, err := e.set.Posts.CreatePost(e.ctx, "alice", "hello")
	require.NoError(t, err)

	st := NewFeedState(e.svc, "bob")
	require.NoError(t, st.Refresh(e.ctx))

	e.store.down.Store(true)
	err = st.ToggleLike(e.ctx, p.ID)
	var te *repositories.TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, errStoreDown)

	got := st.Posts()[0]
	assert.False(t, got.LikedByViewer)
	assert.EqualValues(t, 0, got.LikesCount)

	e.store.down.Store(false)
	liked, err := e.set.Likes.IsLiked(e.ctx, p.ID, "bob")
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestState_RefreshReconcilesWithStore(t *testing.T) {
	e := newEnv(t, "alice", "bob", "carol")
	p, err := e.set.Posts.CreatePost(e.ctx, "alice", "hello")
	require.NoError(t, err)

	st := NewFeedState(e.svc, "bob")
	require.NoError(t, st.Refresh(e.ctx))

	// Someone else likes it behind the State's back.
	_, err = e.set.Likes.Toggle(e.ctx, p.ID, "carol")
	require.NoError(t, err)
	assert.EqualValues(t, 0, st.Posts()[0].LikesCount)

	require.NoError(t, st.Refresh(e.ctx))
	assert.EqualValues(t, 1, st.Posts()[0].LikesCount)
	assert.False(t, st.Posts()[0].LikedByViewer)
}

func TestState_MutationsRefetch(t *testing.T) {
	e := newEnv(t, "alice", "bob")
	st := NewFeedState(e.svc, "alice")

	require.NoError(t, st.CreatePost(e.ctx, "first"))
	require.Len(t, st.Posts(), 1)
	postID := st.Posts()[0].ID

	var ve *repositories.ValidationError
	require.ErrorAs(t, st.CreatePost(e.ctx, "  "), &ve)
	assert.Len(t, st.Posts(), 1)

	require.NoError(t, st.AddComment(e.ctx, postID, "note"))
	assert.EqualValues(t, 1, st.Posts()[0].CommentsCount)

	comments, err := st.Comments(e.ctx, postID)
	require.NoError(t, err)
	require.Len(t, comments, 1)

	require.NoError(t, st.DeleteComment(e.ctx, comments[0].ID))
	assert.EqualValues(t, 0, st.Posts()[0].CommentsCount)

	other := NewFeedState(e.svc, "bob")
	var pe *repositories.PermissionError
	require.ErrorAs(t, other.DeletePost(e.ctx, postID), &pe)

	require.NoError(t, st.DeletePost(e.ctx, postID))
	assert.Empty(t, st.Posts())
}

func TestState_ProfileToggleFollow(t *testing.T) {
	e := newEnv(t, "alice", "bob")
	st := NewProfileState(e.svc, "bob", "alice")
	require.NoError(t, st.Refresh(e.ctx))
	require.NotNil(t, st.Profile())
	assert.False(t, st.Profile().IsFollowing)

	require.NoError(t, st.ToggleFollow(e.ctx))
	assert.True(t, st.Profile().IsFollowing)
	assert.EqualValues(t, 1, st.Profile().Profile.FollowersCount)

	require.NoError(t, st.ToggleFollow(e.ctx))
	assert.False(t, st.Profile().IsFollowing)
	assert.EqualValues(t, 0, st.Profile().Profile.FollowersCount)

	self := NewProfileState(e.svc, "alice", "alice")
	var ve *repositories.ValidationError
	assert.ErrorAs(t, self.ToggleFollow(e.ctx), &ve)

	assert.Error(t, NewFeedState(e.svc, "bob").ToggleFollow(e.ctx))
}

func TestState_LoadMore(t *testing.T) {
	e := newEnv(t, "alice")
	for i := 0; i < repositories.DefaultPageSize+3; i++ {
		_, err := e.set.Posts.CreatePost(e.ctx, "alice", "post")
		require.NoError(t, err)
	}

	st := NewFeedState(e.svc, "alice")
	require.NoError(t, st.Refresh(e.ctx))
	assert.Len(t, st.Posts(), repositories.DefaultPageSize)
	assert.True(t, st.HasMore())

	require.NoError(t, st.LoadMore(e.ctx))
	assert.Len(t, st.Posts(), repositories.DefaultPageSize+3)
	assert.False(t, st.HasMore())
	require.NoError(t, st.LoadMore(e.ctx))
}
