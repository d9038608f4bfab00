package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/nano-feed/backend/internal/datastore"
	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/pkg/events"
	"github.com/anonto42/nano-feed/backend/pkg/metrics"
	"github.com/google/uuid"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	CreateComment(ctx context.Context, postID, authorID, content string) (*models.CommentView, error)
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	ListByPost(ctx context.Context, postID string, page PageRequest) ([]models.CommentView, string, error)
	DeleteComment(ctx context.Context, id, requesterID string) error
	Count(ctx context.Context, postID string) (int64, error)
	ScanCount(ctx context.Context, postID string) (int64, error)
}

// StoreCommentRepository implements CommentRepository over a datastore.Store
type StoreCommentRepository struct {
	store    datastore.Store
	profiles ProfileRepository
	opts     Options
}

func NewStoreCommentRepository(store datastore.Store, profiles ProfileRepository, opts Options) *StoreCommentRepository {
	return &StoreCommentRepository{store: store, profiles: profiles, opts: opts.withDefaults()}
}

// CreateComment adds a comment to an existing post and bumps its counter
func (r *StoreCommentRepository) CreateComment(ctx context.Context, postID, authorID, content string) (*models.CommentView, error) {
	if authorID == "" {
		return nil, ErrUnauthenticated
	}
	content, err := cleanText("content", content, models.MaxCommentLength)
	if err != nil {
		return nil, err
	}
	author, err := r.profiles.GetProfile(ctx, authorID)
	if err != nil {
		return nil, err
	}

	comment := models.Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		UserID:    authorID,
		Content:   content,
		CreatedAt: r.opts.now(),
	}
	err = r.store.Tx(ctx, func(ctx context.Context, tx datastore.Store) error {
		if _, err := findPost(ctx, tx, postID); err != nil {
			return err
		}
		if err := tx.Insert(ctx, datastore.Comments, &comment); err != nil {
			return err
		}
		_, err := tx.Increment(ctx, datastore.Posts, datastore.Where(datastore.Eq("id", postID)), "comments_count", 1)
		return err
	})
	metrics.RecordMutation("comment_create", err)
	if err != nil {
		return nil, storeErr("create comment", err)
	}

	r.opts.Events.Publish(ctx, events.Event{Kind: events.CommentCreated, UserID: authorID, PostID: postID})
	return &models.CommentView{Comment: comment, Author: author.ToCompact()}, nil
}

// GetComment retrieves a comment by ID
func (r *StoreCommentRepository) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	return findComment(ctx, r.store, id)
}

// ListByPost lists a post's comments oldest first, joined with their authors.
func (r *StoreCommentRepository) ListByPost(ctx context.Context, postID string, page PageRequest) ([]models.CommentView, string, error) {
	q, err := pageQuery(datastore.Where(datastore.Eq("post_id", postID)), "id", false, page)
	if err != nil {
		return nil, "", err
	}
	var rows []models.Comment
	if err := r.store.Select(ctx, datastore.Comments, q, &rows); err != nil {
		return nil, "", storeErr("list comments", err)
	}
	rows, next := trimPage(rows, page, func(c models.Comment) (time.Time, string) { return c.CreatedAt, c.ID })

	ids := make([]string, len(rows))
	for i, c := range rows {
		ids[i] = c.UserID
	}
	found, err := r.profiles.GetProfiles(ctx, ids)
	if err != nil {
		return nil, "", err
	}
	authors := compactAuthors(ids, found)

	views := make([]models.CommentView, len(rows))
	for i, c := range rows {
		views[i] = models.CommentView{Comment: c, Author: authors[c.UserID]}
	}
	return views, next, nil
}

// DeleteComment removes a comment owned by requesterID
func (r *StoreCommentRepository) DeleteComment(ctx context.Context, id, requesterID string) error {
	if requesterID == "" {
		return ErrUnauthenticated
	}
	var postID string
	err := r.store.Tx(ctx, func(ctx context.Context, tx datastore.Store) error {
		comment, err := findComment(ctx, tx, id)
		if err != nil {
			return err
		}
		if comment.UserID != requesterID {
			return &PermissionError{Action: "delete", Resource: "comment", ID: id}
		}
		postID = comment.PostID

		if _, err := tx.Delete(ctx, datastore.Comments, datastore.Where(datastore.Eq("id", id))); err != nil {
			return err
		}
		_, err = tx.Increment(ctx, datastore.Posts, datastore.Where(datastore.Eq("id", postID)), "comments_count", -1)
		return err
	})
	metrics.RecordMutation("comment_delete", err)
	if err != nil {
		return storeErr("delete comment", err)
	}

	r.opts.Events.Publish(ctx, events.Event{Kind: events.CommentDeleted, UserID: requesterID, PostID: postID})
	return nil
}

// Count returns the maintained comments counter of a post.
func (r *StoreCommentRepository) Count(ctx context.Context, postID string) (int64, error) {
	post, err := findPost(ctx, r.store, postID)
	if err != nil {
		return 0, err
	}
	return post.CommentsCount, nil
}

// ScanCount counts comment rows of a post.
func (r *StoreCommentRepository) ScanCount(ctx context.Context, postID string) (int64, error) {
	n, err := r.store.Count(ctx, datastore.Comments, datastore.Where(datastore.Eq("post_id", postID)))
	if err != nil {
		return 0, storeErr("count comments", err)
	}
	return n, nil
}

func findComment(ctx context.Context, s datastore.Store, id string) (*models.Comment, error) {
	var rows []models.Comment
	if err := s.Select(ctx, datastore.Comments, datastore.Where(datastore.Eq("id", id)).Page(nil, 1), &rows); err != nil {
		return nil, storeErr("get comment", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	return &rows[0], nil
}
