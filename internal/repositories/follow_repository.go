package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/nano-feed/backend/internal/datastore"
	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/pkg/events"
	"github.com/anonto42/nano-feed/backend/pkg/metrics"
)

var errAlreadyFollowing = errors.New("already following")

// FollowRepository defines the interface for follow data operations
type FollowRepository interface {
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	FollowerCount(ctx context.Context, userID string) (int64, error)
	FollowingCount(ctx context.Context, userID string) (int64, error)
	Stats(ctx context.Context, viewerID, userID string) (*models.FollowStats, error)
	Toggle(ctx context.Context, followerID, followingID string) (bool, error)
	Followers(ctx context.Context, userID string, page PageRequest) ([]models.ProfileCompact, string, error)
	Following(ctx context.Context, userID string, page PageRequest) ([]models.ProfileCompact, string, error)
}

// StoreFollowRepository implements FollowRepository over a datastore.Store.
// Counters live on the two profiles an edge connects.
type StoreFollowRepository struct {
	store    datastore.Store
	profiles ProfileRepository
	opts     Options
}

func NewStoreFollowRepository(store datastore.Store, profiles ProfileRepository, opts Options) *StoreFollowRepository {
	return &StoreFollowRepository{store: store, profiles: profiles, opts: opts.withDefaults()}
}

func edgeKey(followerID, followingID string) datastore.Query {
	return datastore.Where(datastore.Eq("follower_id", followerID), datastore.Eq("following_id", followingID))
}

// IsFollowing checks if followerID follows followingID
func (r *StoreFollowRepository) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	if followerID == "" || followerID == followingID {
		return false, nil
	}
	n, err := r.store.Count(ctx, datastore.Followers, edgeKey(followerID, followingID))
	if err != nil {
		return false, storeErr("check follow", err)
	}
	return n > 0, nil
}

// FollowerCount returns the maintained followers counter of userID.
func (r *StoreFollowRepository) FollowerCount(ctx context.Context, userID string) (int64, error) {
	p, err := r.profiles.GetProfile(ctx, userID)
	if err != nil {
		return 0, err
	}
	return p.FollowersCount, nil
}

// FollowingCount returns the maintained following counter of userID.
func (r *StoreFollowRepository) FollowingCount(ctx context.Context, userID string) (int64, error) {
	p, err := r.profiles.GetProfile(ctx, userID)
	if err != nil {
		return 0, err
	}
	return p.FollowingCount, nil
}

// Stats returns the counts shown on userID's profile as seen by viewerID.
func (r *StoreFollowRepository) Stats(ctx context.Context, viewerID, userID string) (*models.FollowStats, error) {
	p, err := r.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	following, err := r.IsFollowing(ctx, viewerID, userID)
	if err != nil {
		return nil, err
	}
	return &models.FollowStats{
		UserID:         userID,
		FollowersCount: p.FollowersCount,
		FollowingCount: p.FollowingCount,
		IsFollowing:    following,
	}, nil
}

// Toggle follows followingID, or unfollows it when an edge exists. It returns
// whether followerID follows followingID afterwards.
func (r *StoreFollowRepository) Toggle(ctx context.Context, followerID, followingID string) (bool, error) {
	if followerID == "" {
		return false, ErrUnauthenticated
	}
	if followerID == followingID {
		return false, &ValidationError{Field: "following_id", Reason: "cannot follow yourself"}
	}
	for _, id := range []string{followerID, followingID} {
		if _, err := r.profiles.GetProfile(ctx, id); err != nil {
			return false, err
		}
	}

	var following bool
	err := r.store.Tx(ctx, func(ctx context.Context, tx datastore.Store) error {
		removed, err := tx.Delete(ctx, datastore.Followers, edgeKey(followerID, followingID))
		if err != nil {
			return err
		}
		delta := int64(-1)
		if removed == 0 {
			edge := &models.Follow{FollowerID: followerID, FollowingID: followingID, CreatedAt: r.opts.now()}
			if err := tx.Insert(ctx, datastore.Followers, edge); err != nil {
				if isDuplicate(err) {
					return errAlreadyFollowing
				}
				return err
			}
			delta = 1
			following = true
		}
		if _, err := tx.Increment(ctx, datastore.Profiles, datastore.Where(datastore.Eq("id", followerID)), "following_count", delta); err != nil {
			return err
		}
		_, err = tx.Increment(ctx, datastore.Profiles, datastore.Where(datastore.Eq("id", followingID)), "followers_count", delta)
		return err
	})
	if errors.Is(err, errAlreadyFollowing) {
		return true, nil
	}
	metrics.RecordMutation("follow_toggle", err)
	if err != nil {
		return false, storeErr("toggle follow", err)
	}

	r.profiles.Invalidate(followerID, followingID)
	r.opts.Events.Publish(ctx, events.Event{Kind: events.FollowToggled, UserID: followerID, TargetID: followingID})
	return following, nil
}

// Followers lists the profiles following userID, most recent first.
func (r *StoreFollowRepository) Followers(ctx context.Context, userID string, page PageRequest) ([]models.ProfileCompact, string, error) {
	return r.edges(ctx, datastore.Eq("following_id", userID), "follower_id", page)
}

// Following lists the profiles userID follows, most recent first.
func (r *StoreFollowRepository) Following(ctx context.Context, userID string, page PageRequest) ([]models.ProfileCompact, string, error) {
	return r.edges(ctx, datastore.Eq("follower_id", userID), "following_id", page)
}

// edges pages through edges matching f and joins the profile at the other end.
func (r *StoreFollowRepository) edges(ctx context.Context, f datastore.Filter, otherEnd string, page PageRequest) ([]models.ProfileCompact, string, error) {
	q, err := pageQuery(datastore.Where(f), otherEnd, true, page)
	if err != nil {
		return nil, "", err
	}
	var rows []models.Follow
	if err := r.store.Select(ctx, datastore.Followers, q, &rows); err != nil {
		return nil, "", storeErr("list follows", err)
	}

	other := func(e models.Follow) string {
		if otherEnd == "follower_id" {
			return e.FollowerID
		}
		return e.FollowingID
	}
	rows, next := trimPage(rows, page, func(e models.Follow) (time.Time, string) { return e.CreatedAt, other(e) })

	ids := make([]string, len(rows))
	for i, e := range rows {
		ids[i] = other(e)
	}
	found, err := r.profiles.GetProfiles(ctx, ids)
	if err != nil {
		return nil, "", err
	}
	authors := compactAuthors(ids, found)

	out := make([]models.ProfileCompact, len(ids))
	for i, id := range ids {
		out[i] = authors[id]
	}
	return out, next, nil
}
