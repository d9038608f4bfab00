package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowToggle_MaintainsCounters(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")

	following, err := f.set.Follows.Toggle(f.ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, following)
	_, err = f.set.Follows.Toggle(f.ctx, "carol", "bob")
	require.NoError(t, err)

	ok, err := f.set.Follows.IsFollowing(f.ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.set.Follows.IsFollowing(f.ctx, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	followers, err := f.set.Follows.FollowerCount(f.ctx, "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 2, followers)
	followingCount, err := f.set.Follows.FollowingCount(f.ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 1, followingCount)

	following, err = f.set.Follows.Toggle(f.ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, following)

	stats, err := f.set.Follows.Stats(f.ctx, "alice", "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.FollowersCount)
	assert.False(t, stats.IsFollowing)
}

func TestFollowToggle_Rejects(t *testing.T) {
	f := newFixture(t, "alice")

	_, err := f.set.Follows.Toggle(f.ctx, "alice", "alice")
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = f.set.Follows.Toggle(f.ctx, "alice", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.set.Follows.Toggle(f.ctx, "", "alice")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	count, err := f.set.Follows.FollowingCount(f.ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFollowersAndFollowing(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	for _, u := range []string{"bob", "carol"} {
		_, err := f.set.Follows.Toggle(f.ctx, u, "alice")
		require.NoError(t, err)
	}

	followers, next, err := f.set.Follows.Followers(f.ctx, "alice", PageRequest{Limit: 1})
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "carol", followers[0].ID)
	require.NotEmpty(t, next)

	followers, next, err = f.set.Follows.Followers(f.ctx, "alice", PageRequest{Cursor: next, Limit: 1})
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "bob", followers[0].ID)
	assert.Empty(t, next)

	following, _, err := f.set.Follows.Following(f.ctx, "bob", PageRequest{})
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, "alice_handle", following[0].Username)
}
