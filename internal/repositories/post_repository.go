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

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, authorID, content string) (*models.PostView, error)
	GetPost(ctx context.Context, id string) (*models.PostView, error)
	ListGlobal(ctx context.Context, page PageRequest) (*models.PostPage, error)
	ListByAuthor(ctx context.Context, authorID string, page PageRequest) (*models.PostPage, error)
	DeletePost(ctx context.Context, id, requesterID string) error
}

// StorePostRepository implements PostRepository over a datastore.Store
type StorePostRepository struct {
	store    datastore.Store
	profiles ProfileRepository
	opts     Options
}

func NewStorePostRepository(store datastore.Store, profiles ProfileRepository, opts Options) *StorePostRepository {
	return &StorePostRepository{store: store, profiles: profiles, opts: opts.withDefaults()}
}

// CreatePost stores a new post by authorID. The server assigns id and time.
func (r *StorePostRepository) CreatePost(ctx context.Context, authorID, content string) (*models.PostView, error) {
	if authorID == "" {
		return nil, ErrUnauthenticated
	}
	content, err := cleanText("content", content, models.MaxPostLength)
	if err != nil {
		return nil, err
	}
	author, err := r.profiles.GetProfile(ctx, authorID)
	if err != nil {
		return nil, err
	}

	post := models.Post{
		ID:        uuid.NewString(),
		UserID:    authorID,
		Content:   content,
		CreatedAt: r.opts.now(),
	}
	err = r.store.Insert(ctx, datastore.Posts, &post)
	metrics.RecordMutation("post_create", err)
	if err != nil {
		return nil, storeErr("create post", err)
	}

	r.opts.Events.Publish(ctx, events.Event{Kind: events.PostCreated, UserID: authorID, PostID: post.ID})
	return &models.PostView{Post: post, Author: author.ToCompact()}, nil
}

// GetPost retrieves a post joined with its author
func (r *StorePostRepository) GetPost(ctx context.Context, id string) (*models.PostView, error) {
	post, err := findPost(ctx, r.store, id)
	if err != nil {
		return nil, err
	}
	views, err := r.join(ctx, []models.Post{*post})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// ListGlobal lists every post, newest first.
func (r *StorePostRepository) ListGlobal(ctx context.Context, page PageRequest) (*models.PostPage, error) {
	return r.list(ctx, datastore.Query{}, page)
}

// ListByAuthor lists one author's posts, newest first.
func (r *StorePostRepository) ListByAuthor(ctx context.Context, authorID string, page PageRequest) (*models.PostPage, error) {
	return r.list(ctx, datastore.Where(datastore.Eq("user_id", authorID)), page)
}

func (r *StorePostRepository) list(ctx context.Context, q datastore.Query, page PageRequest) (*models.PostPage, error) {
	q, err := pageQuery(q, "id", true, page)
	if err != nil {
		return nil, err
	}
	var rows []models.Post
	if err := r.store.Select(ctx, datastore.Posts, q, &rows); err != nil {
		return nil, storeErr("list posts", err)
	}
	rows, next := trimPage(rows, page, func(p models.Post) (time.Time, string) { return p.CreatedAt, p.ID })

	views, err := r.join(ctx, rows)
	if err != nil {
		return nil, err
	}
	return &models.PostPage{Posts: views, NextCursor: next}, nil
}

// DeletePost removes a post owned by requesterID together with its likes and
// comments.
func (r *StorePostRepository) DeletePost(ctx context.Context, id, requesterID string) error {
	if requesterID == "" {
		return ErrUnauthenticated
	}
	err := r.store.Tx(ctx, func(ctx context.Context, tx datastore.Store) error {
		post, err := findPost(ctx, tx, id)
		if err != nil {
			return err
		}
		if post.UserID != requesterID {
			return &PermissionError{Action: "delete", Resource: "post", ID: id}
		}

		byPost := datastore.Where(datastore.Eq("post_id", id))
		if _, err := tx.Delete(ctx, datastore.Likes, byPost); err != nil {
			return err
		}
		if _, err := tx.Delete(ctx, datastore.Comments, byPost); err != nil {
			return err
		}
		_, err = tx.Delete(ctx, datastore.Posts, datastore.Where(datastore.Eq("id", id)))
		return err
	})
	metrics.RecordMutation("post_delete", err)
	if err != nil {
		return storeErr("delete post", err)
	}

	r.opts.Events.Publish(ctx, events.Event{Kind: events.PostDeleted, UserID: requesterID, PostID: id})
	return nil
}

func (r *StorePostRepository) join(ctx context.Context, posts []models.Post) ([]models.PostView, error) {
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.UserID
	}
	found, err := r.profiles.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	authors := compactAuthors(ids, found)

	views := make([]models.PostView, len(posts))
	for i, p := range posts {
		views[i] = models.PostView{Post: p, Author: authors[p.UserID]}
	}
	return views, nil
}

// findPost loads one post through s, which may be a transaction.
func findPost(ctx context.Context, s datastore.Store, id string) (*models.Post, error) {
	var rows []models.Post
	if err := s.Select(ctx, datastore.Posts, datastore.Where(datastore.Eq("id", id)).Page(nil, 1), &rows); err != nil {
		return nil, storeErr("get post", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	return &rows[0], nil
}
