package repositories

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePost_Validation(t *testing.T) {
	f := newFixture(t, "alice")

	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t"},
		{"too long", strings.Repeat("é", 501)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.set.Posts.CreatePost(f.ctx, "alice", tt.content)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "content", ve.Field)
		})
	}

	page, err := f.set.Posts.ListGlobal(f.ctx, PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
}

func TestCreatePost_TrimsAndJoinsAuthor(t *testing.T) {
	f := newFixture(t, "alice")

	p := f.post(t, "alice", "  hello world  ")
	assert.Equal(t, "hello world", p.Content)
	assert.Equal(t, "alice_handle", p.Author.Username)
	assert.NotEmpty(t, p.ID)

	exact := f.post(t, "alice", strings.Repeat("x", 500))
	assert.Len(t, exact.Content, 500)

	got, err := f.set.Posts.GetPost(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Content, got.Content)
	assert.Equal(t, "alice", got.Author.FullName)
}

func TestCreatePost_UnknownAuthor(t *testing.T) {
	f := newFixture(t)
	_, err := f.set.Posts.CreatePost(f.ctx, "ghost", "hi")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.set.Posts.CreatePost(f.ctx, "", "hi")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestListGlobal_NewestFirstWithCursor(t *testing.T) {
	f := newFixture(t, "alice", "bob")

	var ids []string
	for i := 0; i < 5; i++ {
		author := "alice"
		if i%2 == 1 {
			author = "bob"
		}
		ids = append(ids, f.post(t, author, "post").ID)
	}

	first, err := f.set.Posts.ListGlobal(f.ctx, PageRequest{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Posts, 2)
	assert.Equal(t, ids[4], first.Posts[0].ID)
	assert.Equal(t, ids[3], first.Posts[1].ID)
	require.NotEmpty(t, first.NextCursor)

	second, err := f.set.Posts.ListGlobal(f.ctx, PageRequest{Cursor: first.NextCursor, Limit: 2})
	require.NoError(t, err)
	require.Len(t, second.Posts, 2)
	assert.Equal(t, ids[2], second.Posts[0].ID)

	last, err := f.set.Posts.ListGlobal(f.ctx, PageRequest{Cursor: second.NextCursor, Limit: 2})
	require.NoError(t, err)
	require.Len(t, last.Posts, 1)
	assert.Equal(t, ids[0], last.Posts[0].ID)
	assert.Empty(t, last.NextCursor)

	byBob, err := f.set.Posts.ListByAuthor(f.ctx, "bob", PageRequest{})
	require.NoError(t, err)
	require.Len(t, byBob.Posts, 2)
	assert.Equal(t, ids[3], byBob.Posts[0].ID)
	assert.Equal(t, ids[1], byBob.Posts[1].ID)

	_, err = f.set.Posts.ListGlobal(f.ctx, PageRequest{Cursor: "%%%"})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestDeletePost_OwnerOnlyAndCascades(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	p := f.post(t, "alice", "mine")

	_, err := f.set.Likes.Toggle(f.ctx, p.ID, "bob")
	require.NoError(t, err)
	_, err = f.set.Comments.CreateComment(f.ctx, p.ID, "bob", "nice")
	require.NoError(t, err)

	err = f.set.Posts.DeletePost(f.ctx, p.ID, "bob")
	var pe *PermissionError
	require.ErrorAs(t, err, &pe)

	page, err := f.set.Posts.ListGlobal(f.ctx, PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)

	require.NoError(t, f.set.Posts.DeletePost(f.ctx, p.ID, "alice"))

	page, err = f.set.Posts.ListGlobal(f.ctx, PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, page.Posts)

	likers, err := f.set.Likes.Likers(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, likers)
	comments, err := f.set.Comments.ScanCount(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, comments)

	assert.ErrorIs(t, f.set.Posts.DeletePost(f.ctx, p.ID, "alice"), ErrNotFound)
}
