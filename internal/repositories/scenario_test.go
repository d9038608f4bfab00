package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Two users: A posts, B likes and comments, A deletes the post.
func TestScenario_PostLikeCommentDelete(t *testing.T) {
	f := newFixture(t, "userA", "userB")

	p := f.post(t, "userA", "hello")

	status, err := f.set.Likes.Toggle(f.ctx, p.ID, "userB")
	require.NoError(t, err)
	assert.EqualValues(t, 1, status.LikesCount)

	_, err = f.set.Comments.CreateComment(f.ctx, p.ID, "userB", "hi")
	require.NoError(t, err)
	comments, _, err := f.set.Comments.ListByPost(f.ctx, p.ID, PageRequest{})
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "userB_handle", comments[0].Author.Username)

	err = f.set.Posts.DeletePost(f.ctx, p.ID, "userB")
	var pe *PermissionError
	require.ErrorAs(t, err, &pe)

	require.NoError(t, f.set.Posts.DeletePost(f.ctx, p.ID, "userA"))
	page, err := f.set.Posts.ListGlobal(f.ctx, PageRequest{})
	require.NoError(t, err)
	for _, post := range page.Posts {
		assert.NotEqual(t, p.ID, post.ID)
	}

	likers, err := f.set.Likes.Likers(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, likers)
}
