package repositories

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/anonto42/nano-feed/backend/internal/datastore"
	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/pkg/events"
	"github.com/anonto42/nano-feed/backend/pkg/metrics"
	"github.com/robfig/cron/v3"
)

const reconcileBatch = 200

// ReconcileReport counts the counters a run corrected.
type ReconcileReport struct {
	PostsScanned    int `json:"posts_scanned"`
	ProfilesScanned int `json:"profiles_scanned"`
	LikesFixed      int `json:"likes_fixed"`
	CommentsFixed   int `json:"comments_fixed"`
	FollowersFixed  int `json:"followers_fixed"`
	FollowingFixed  int `json:"following_fixed"`
	// Skipped counts rows a concurrent writer changed between the recount and
	// the repair. The next run picks them up.
	Skipped int `json:"skipped"`
}

// Reconciler rescans likes, comments and follow edges and rewrites any
// maintained counter that drifted from them. Each row is recounted and
// repaired in its own transaction, and the repair only applies if the counter
// still holds the value read in that transaction.
type Reconciler struct {
	store    datastore.Store
	profiles ProfileRepository
	events   events.Publisher
	logger   *slog.Logger
}

// NewReconciler builds a Reconciler. publisher announces repaired profiles to
// other instances and may be nil.
func NewReconciler(store datastore.Store, set *Set, publisher events.Publisher, logger *slog.Logger) *Reconciler {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:    store,
		profiles: set.Profiles,
		events:   publisher,
		logger:   logger,
	}
}

// Schedule registers a run on c with the given cron spec.
func (r *Reconciler) Schedule(c *cron.Cron, spec string, timeout time.Duration) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		report, err := r.Run(ctx)
		if err != nil {
			r.logger.Error("counter reconciliation failed", "error", err)
			return
		}
		r.logger.Info("counter reconciliation finished",
			"posts", report.PostsScanned,
			"profiles", report.ProfilesScanned,
			"likes_fixed", report.LikesFixed,
			"comments_fixed", report.CommentsFixed,
			"followers_fixed", report.FollowersFixed,
			"following_fixed", report.FollowingFixed,
			"skipped", report.Skipped,
		)
	})
}

// Run performs one full pass.
func (r *Reconciler) Run(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}
	if err := r.posts(ctx, report); err != nil {
		return report, err
	}
	if err := r.follows(ctx, report); err != nil {
		return report, err
	}

	metrics.RecordRepair("likes_count", report.LikesFixed)
	metrics.RecordRepair("comments_count", report.CommentsFixed)
	metrics.RecordRepair("followers_count", report.FollowersFixed)
	metrics.RecordRepair("following_count", report.FollowingFixed)
	return report, nil
}

func (r *Reconciler) posts(ctx context.Context, report *ReconcileReport) error {
	page := PageRequest{Limit: reconcileBatch}
	for {
		q, err := pageQuery(datastore.Query{}, "id", false, page)
		if err != nil {
			return err
		}
		var rows []models.Post
		if err := r.store.Select(ctx, datastore.Posts, q, &rows); err != nil {
			return storeErr("reconcile posts", err)
		}
		rows, next := trimPage(rows, page, func(p models.Post) (time.Time, string) { return p.CreatedAt, p.ID })

		for _, p := range rows {
			report.PostsScanned++
			if err := r.repairPost(ctx, p.ID, report); err != nil {
				return err
			}
		}
		if next == "" {
			return nil
		}
		page.Cursor = next
	}
}

// repairPost recounts one post's likes and comments. The page row is only a
// pointer: the counters compared against are read again inside the Tx.
func (r *Reconciler) repairPost(ctx context.Context, id string, report *ReconcileReport) error {
	var likesFixed, commentsFixed, skipped bool
	err := r.store.Tx(ctx, func(ctx context.Context, tx datastore.Store) error {
		p, err := findPost(ctx, tx, id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var likes []models.Like
		if err := tx.Select(ctx, datastore.Likes, datastore.Where(datastore.Eq("post_id", id)), &likes); err != nil {
			return storeErr("scan likes", err)
		}
		likers := distinct(likes, func(l models.Like) string { return l.UserID })
		comments, err := tx.Count(ctx, datastore.Comments, datastore.Where(datastore.Eq("post_id", id)))
		if err != nil {
			return storeErr("count comments", err)
		}

		set := map[string]any{}
		if likers != p.LikesCount {
			set["likes_count"] = likers
		}
		if comments != p.CommentsCount {
			set["comments_count"] = comments
		}
		if len(set) == 0 {
			return nil
		}

		guard := datastore.Where(
			datastore.Eq("id", id),
			datastore.Eq("likes_count", p.LikesCount),
			datastore.Eq("comments_count", p.CommentsCount),
		)
		n, err := tx.Update(ctx, datastore.Posts, guard, set)
		if err != nil {
			return storeErr("repair post counters", err)
		}
		if n == 0 {
			skipped = true
			return nil
		}
		r.logger.Warn("repaired post counters", "post_id", id, "likes", likers, "comments", comments)
		_, likesFixed = set["likes_count"]
		_, commentsFixed = set["comments_count"]
		return nil
	})
	if err != nil {
		return err
	}
	if skipped {
		r.logger.Info("post counters changed during repair, skipping", "post_id", id)
		report.Skipped++
	}
	if likesFixed {
		report.LikesFixed++
	}
	if commentsFixed {
		report.CommentsFixed++
	}
	return nil
}

func (r *Reconciler) follows(ctx context.Context, report *ReconcileReport) error {
	page := PageRequest{Limit: reconcileBatch}
	for {
		q, err := pageQuery(datastore.Query{}, "id", false, page)
		if err != nil {
			return err
		}
		var rows []models.Profile
		if err := r.store.Select(ctx, datastore.Profiles, q, &rows); err != nil {
			return storeErr("reconcile profiles", err)
		}
		rows, next := trimPage(rows, page, func(p models.Profile) (time.Time, string) { return p.CreatedAt, p.ID })

		for _, p := range rows {
			report.ProfilesScanned++
			if err := r.repairProfile(ctx, p.ID, report); err != nil {
				return err
			}
		}
		if next == "" {
			return nil
		}
		page.Cursor = next
	}
}

func (r *Reconciler) repairProfile(ctx context.Context, id string, report *ReconcileReport) error {
	var followersFixed, followingFixed, skipped bool
	err := r.store.Tx(ctx, func(ctx context.Context, tx datastore.Store) error {
		var rows []models.Profile
		if err := tx.Select(ctx, datastore.Profiles, datastore.Where(datastore.Eq("id", id)).Page(nil, 1), &rows); err != nil {
			return storeErr("get profile", err)
		}
		if len(rows) == 0 {
			return nil
		}
		p := rows[0]

		var in, out []models.Follow
		if err := tx.Select(ctx, datastore.Followers, datastore.Where(datastore.Eq("following_id", id)), &in); err != nil {
			return storeErr("scan followers", err)
		}
		if err := tx.Select(ctx, datastore.Followers, datastore.Where(datastore.Eq("follower_id", id)), &out); err != nil {
			return storeErr("scan following", err)
		}
		followers := distinct(in, func(f models.Follow) string { return f.FollowerID })
		following := distinct(out, func(f models.Follow) string { return f.FollowingID })

		set := map[string]any{}
		if followers != p.FollowersCount {
			set["followers_count"] = followers
		}
		if following != p.FollowingCount {
			set["following_count"] = following
		}
		if len(set) == 0 {
			return nil
		}

		guard := datastore.Where(
			datastore.Eq("id", id),
			datastore.Eq("followers_count", p.FollowersCount),
			datastore.Eq("following_count", p.FollowingCount),
		)
		n, err := tx.Update(ctx, datastore.Profiles, guard, set)
		if err != nil {
			return storeErr("repair profile counters", err)
		}
		if n == 0 {
			skipped = true
			return nil
		}
		r.logger.Warn("repaired profile counters", "user_id", id, "followers", followers, "following", following)
		_, followersFixed = set["followers_count"]
		_, followingFixed = set["following_count"]
		return nil
	})
	if err != nil {
		return err
	}
	if skipped {
		r.logger.Info("profile counters changed during repair, skipping", "user_id", id)
		report.Skipped++
	}
	if followersFixed || followingFixed {
		r.profiles.Invalidate(id)
		r.events.Publish(ctx, events.Event{Kind: events.ProfileUpdated, UserID: id})
	}
	if followersFixed {
		report.FollowersFixed++
	}
	if followingFixed {
		report.FollowingFixed++
	}
	return nil
}

// distinct counts the distinct keys among rows. Stores without a unique key
// on the edge may hold duplicates, which count once.
func distinct[T any](rows []T, key func(T) string) int64 {
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		seen[key(row)] = struct{}{}
	}
	return int64(len(seen))
}
