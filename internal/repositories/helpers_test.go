package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/nano-feed/backend/internal/datastore"
	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/pkg/cache"
	"github.com/stretchr/testify/require"
)

// stepClock advances one second on every reading.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	store *datastore.Memory
	set   *Set
	ctx   context.Context
}

func newFixture(t *testing.T, users ...string) *fixture {
	t.Helper()
	store := datastore.NewMemoryWithIndexes()
	set := NewSet(store, Options{
		Cache: cache.NewLRU(100, time.Minute),
		Clock: newStepClock().Now,
	})
	f := &fixture{store: store, set: set, ctx: context.Background()}
	for _, u := range users {
		_, err := set.Profiles.CreateProfile(f.ctx, u, models.CreateProfileRequest{Username: u + "_handle", FullName: u})
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) post(t *testing.T, author, content string) *models.PostView {
	t.Helper()
	p, err := f.set.Posts.CreatePost(f.ctx, author, content)
	require.NoError(t, err)
	return p
}
