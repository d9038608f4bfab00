// Package repositories implements the social graph on top of the generic
// datastore: profiles, posts, likes, comments and follow edges. Counters kept
// on profiles and posts are maintained inside the same transaction as the
// edge they count.
package repositories

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anonto42/nano-feed/backend/internal/datastore"
	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/pkg/cache"
	"github.com/anonto42/nano-feed/backend/pkg/events"
)

// Options are shared by every repository constructor. Zero values pick a
// no-op cache, a no-op publisher and the wall clock.
type Options struct {
	Cache  cache.Cache
	Events events.Publisher
	Clock  func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Cache == nil {
		o.Cache = cache.Nop{}
	}
	if o.Events == nil {
		o.Events = events.Nop{}
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// now returns the clock reading the store keeps: UTC, millisecond precision.
func (o Options) now() time.Time {
	return o.Clock().UTC().Truncate(time.Millisecond)
}

// Set bundles every repository over one store.
type Set struct {
	Profiles ProfileRepository
	Posts    PostRepository
	Likes    LikeRepository
	Comments CommentRepository
	Follows  FollowRepository
}

func NewSet(store datastore.Store, opts Options) *Set {
	profiles := NewStoreProfileRepository(store, opts)
	return &Set{
		Profiles: profiles,
		Posts:    NewStorePostRepository(store, profiles, opts),
		Likes:    NewStoreLikeRepository(store, opts),
		Comments: NewStoreCommentRepository(store, profiles, opts),
		Follows:  NewStoreFollowRepository(store, profiles, opts),
	}
}

// cleanText trims content and enforces the rune limit.
func cleanText(field, content string, max int) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", &ValidationError{Field: field, Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(content) > max {
		return "", &ValidationError{Field: field, Reason: "too long"}
	}
	return content, nil
}

// compactAuthors maps each id to its compact profile. Ids without a profile
// map to a bare {ID} block.
func compactAuthors(ids []string, found map[string]*models.Profile) map[string]models.ProfileCompact {
	out := make(map[string]models.ProfileCompact, len(ids))
	for _, id := range ids {
		if p, ok := found[id]; ok {
			out[id] = p.ToCompact()
			continue
		}
		out[id] = models.ProfileCompact{ID: id}
	}
	return out
}
