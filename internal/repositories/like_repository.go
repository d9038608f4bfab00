package repositories

import (
	"context"
	"errors"

	"github.com/anonto42/nano-feed/backend/internal/datastore"
	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/pkg/events"
	"github.com/anonto42/nano-feed/backend/pkg/metrics"
)

// errAlreadyLiked aborts a toggle whose insert lost a race to a concurrent
// like of the same pair.
var errAlreadyLiked = errors.New("already liked")

// LikeRepository defines the interface for like data operations
type LikeRepository interface {
	IsLiked(ctx context.Context, postID, userID string) (bool, error)
	LikedPostIDs(ctx context.Context, userID string, postIDs []string) (map[string]bool, error)
	Likers(ctx context.Context, postID string) ([]string, error)
	Count(ctx context.Context, postID string) (int64, error)
	ScanCount(ctx context.Context, postID string) (int64, error)
	Toggle(ctx context.Context, postID, userID string) (*models.LikeStatus, error)
}

// StoreLikeRepository implements LikeRepository over a datastore.Store
type StoreLikeRepository struct {
	store datastore.Store
	opts  Options
}

func NewStoreLikeRepository(store datastore.Store, opts Options) *StoreLikeRepository {
	return &StoreLikeRepository{store: store, opts: opts.withDefaults()}
}

func likeKey(postID, userID string) datastore.Query {
	return datastore.Where(datastore.Eq("post_id", postID), datastore.Eq("user_id", userID))
}

// IsLiked checks if a user has liked a specific post
func (r *StoreLikeRepository) IsLiked(ctx context.Context, postID, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	n, err := r.store.Count(ctx, datastore.Likes, likeKey(postID, userID))
	if err != nil {
		return false, storeErr("check like", err)
	}
	return n > 0, nil
}

// LikedPostIDs returns which of postIDs userID has liked.
func (r *StoreLikeRepository) LikedPostIDs(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	liked := make(map[string]bool)
	if userID == "" || len(postIDs) == 0 {
		return liked, nil
	}
	var rows []models.Like
	q := datastore.Where(datastore.Eq("user_id", userID), datastore.In("post_id", postIDs))
	if err := r.store.Select(ctx, datastore.Likes, q, &rows); err != nil {
		return nil, storeErr("list likes", err)
	}
	for _, l := range rows {
		liked[l.PostID] = true
	}
	return liked, nil
}

// Likers returns the distinct ids of users who liked postID, oldest first.
func (r *StoreLikeRepository) Likers(ctx context.Context, postID string) ([]string, error) {
	var rows []models.Like
	q := datastore.Where(datastore.Eq("post_id", postID)).OrderBy(datastore.Asc("created_at"), datastore.Asc("user_id"))
	if err := r.store.Select(ctx, datastore.Likes, q, &rows); err != nil {
		return nil, storeErr("list likers", err)
	}
	seen := make(map[string]bool, len(rows))
	ids := make([]string, 0, len(rows))
	for _, l := range rows {
		if !seen[l.UserID] {
			seen[l.UserID] = true
			ids = append(ids, l.UserID)
		}
	}
	return ids, nil
}

// Count returns the maintained likes counter of a post.
func (r *StoreLikeRepository) Count(ctx context.Context, postID string) (int64, error) {
	post, err := findPost(ctx, r.store, postID)
	if err != nil {
		return 0, err
	}
	return post.LikesCount, nil
}

// ScanCount counts distinct likers by scanning the ledger.
func (r *StoreLikeRepository) ScanCount(ctx context.Context, postID string) (int64, error) {
	ids, err := r.Likers(ctx, postID)
	if err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

// Toggle likes postID for userID, or unlikes it if any like row exists.
// Unliking removes duplicate rows too.
func (r *StoreLikeRepository) Toggle(ctx context.Context, postID, userID string) (*models.LikeStatus, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	status := &models.LikeStatus{PostID: postID}
	err := r.store.Tx(ctx, func(ctx context.Context, tx datastore.Store) error {
		if _, err := findPost(ctx, tx, postID); err != nil {
			return err
		}
		removed, err := tx.Delete(ctx, datastore.Likes, likeKey(postID, userID))
		if err != nil {
			return err
		}

		delta := int64(-1)
		if removed == 0 {
			like := &models.Like{PostID: postID, UserID: userID, CreatedAt: r.opts.now()}
			if err := tx.Insert(ctx, datastore.Likes, like); err != nil {
				if isDuplicate(err) {
					return errAlreadyLiked
				}
				return err
			}
			delta = 1
			status.Liked = true
		}
		if _, err := tx.Increment(ctx, datastore.Posts, datastore.Where(datastore.Eq("id", postID)), "likes_count", delta); err != nil {
			return err
		}
		post, err := findPost(ctx, tx, postID)
		if err != nil {
			return err
		}
		status.LikesCount = post.LikesCount
		return nil
	})
	if errors.Is(err, errAlreadyLiked) {
		count, cerr := r.Count(ctx, postID)
		if cerr != nil {
			return nil, cerr
		}
		return &models.LikeStatus{PostID: postID, Liked: true, LikesCount: count}, nil
	}
	metrics.RecordMutation("like_toggle", err)
	if err != nil {
		return nil, storeErr("toggle like", err)
	}

	r.opts.Events.Publish(ctx, events.Event{Kind: events.LikeToggled, UserID: userID, PostID: postID})
	return status, nil
}
