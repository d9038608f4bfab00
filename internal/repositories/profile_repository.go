package repositories

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/anonto42/nano-feed/backend/internal/datastore"
	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/pkg/cache"
	"github.com/anonto42/nano-feed/backend/pkg/events"
	"github.com/anonto42/nano-feed/backend/pkg/metrics"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// ProfileRepository defines the interface for profile data operations
type ProfileRepository interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetProfiles(ctx context.Context, ids []string) (map[string]*models.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (*models.Profile, error)
	CreateProfile(ctx context.Context, id string, req models.CreateProfileRequest) (*models.Profile, error)
	UpdateProfile(ctx context.Context, id string, req models.UpdateProfileRequest) (*models.Profile, error)
	Invalidate(ids ...string)
}

// StoreProfileRepository reads profiles through a cache keyed by id.
type StoreProfileRepository struct {
	store datastore.Store
	opts  Options
}

func NewStoreProfileRepository(store datastore.Store, opts Options) *StoreProfileRepository {
	return &StoreProfileRepository{store: store, opts: opts.withDefaults()}
}

func profileKey(id string) string { return "profile:" + id }

// GetProfile retrieves a profile by user id
func (r *StoreProfileRepository) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var cached models.Profile
	if cache.GetJSON(r.opts.Cache, profileKey(id), &cached) {
		metrics.RecordCacheLookup(true)
		return &cached, nil
	}
	metrics.RecordCacheLookup(false)

	var rows []models.Profile
	q := datastore.Where(datastore.Eq("id", id)).Page(nil, 1)
	if err := r.store.Select(ctx, datastore.Profiles, q, &rows); err != nil {
		return nil, storeErr("get profile", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	cache.SetJSON(r.opts.Cache, profileKey(id), rows[0])
	return &rows[0], nil
}

// GetProfiles looks up many profiles at once for joins. Unknown ids are
// absent from the result.
func (r *StoreProfileRepository) GetProfiles(ctx context.Context, ids []string) (map[string]*models.Profile, error) {
	out := make(map[string]*models.Profile, len(ids))
	var missing []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		var p models.Profile
		if cache.GetJSON(r.opts.Cache, profileKey(id), &p) {
			metrics.RecordCacheLookup(true)
			out[id] = &p
			continue
		}
		metrics.RecordCacheLookup(false)
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	var rows []models.Profile
	if err := r.store.Select(ctx, datastore.Profiles, datastore.Where(datastore.In("id", missing)), &rows); err != nil {
		return nil, storeErr("get profiles", err)
	}
	for i := range rows {
		p := rows[i]
		cache.SetJSON(r.opts.Cache, profileKey(p.ID), p)
		out[p.ID] = &p
	}
	return out, nil
}

func (r *StoreProfileRepository) GetProfileByUsername(ctx context.Context, username string) (*models.Profile, error) {
	var rows []models.Profile
	q := datastore.Where(datastore.Eq("username", strings.TrimSpace(username))).Page(nil, 1)
	if err := r.store.Select(ctx, datastore.Profiles, q, &rows); err != nil {
		return nil, storeErr("get profile by username", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("profile @%s: %w", username, ErrNotFound)
	}
	return &rows[0], nil
}

// CreateProfile creates the profile for the user id the session resolved.
func (r *StoreProfileRepository) CreateProfile(ctx context.Context, id string, req models.CreateProfileRequest) (*models.Profile, error) {
	if id == "" {
		return nil, ErrUnauthenticated
	}
	username := strings.TrimSpace(req.Username)
	if !usernameRegex.MatchString(username) {
		return nil, &ValidationError{Field: "username", Reason: "3 to 30 letters, digits or underscores"}
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrProfileExists
	}

	now := r.opts.now()
	profile := &models.Profile{
		ID:        id,
		Username:  username,
		FullName:  strings.TrimSpace(req.FullName),
		AvatarURL: strings.TrimSpace(req.AvatarURL),
		Bio:       strings.TrimSpace(req.Bio),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = r.store.Insert(ctx, datastore.Profiles, profile)
	metrics.RecordMutation("profile_create", err)
	if isDuplicate(err) {
		// A concurrent create for the same id collides on the key, not the username.
		if exists, lookupErr := r.exists(ctx, id); lookupErr == nil && exists {
			return nil, ErrProfileExists
		}
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, storeErr("create profile", err)
	}

	r.Invalidate(id)
	r.opts.Events.Publish(ctx, events.Event{Kind: events.ProfileUpdated, UserID: id})
	return profile, nil
}

func (r *StoreProfileRepository) exists(ctx context.Context, id string) (bool, error) {
	n, err := r.store.Count(ctx, datastore.Profiles, datastore.Where(datastore.Eq("id", id)))
	if err != nil {
		return false, storeErr("create profile", err)
	}
	return n > 0, nil
}

// UpdateProfile updates display fields. Empty request fields are kept.
func (r *StoreProfileRepository) UpdateProfile(ctx context.Context, id string, req models.UpdateProfileRequest) (*models.Profile, error) {
	set := map[string]any{"updated_at": r.opts.now()}
	if v := strings.TrimSpace(req.FullName); v != "" {
		set["full_name"] = v
	}
	if v := strings.TrimSpace(req.AvatarURL); v != "" {
		set["avatar_url"] = v
	}
	if v := strings.TrimSpace(req.Bio); v != "" {
		set["bio"] = v
	}

	n, err := r.store.Update(ctx, datastore.Profiles, datastore.Where(datastore.Eq("id", id)), set)
	metrics.RecordMutation("profile_update", err)
	if err != nil {
		return nil, storeErr("update profile", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}

	r.Invalidate(id)
	r.opts.Events.Publish(ctx, events.Event{Kind: events.ProfileUpdated, UserID: id})
	return r.GetProfile(ctx, id)
}

// Invalidate drops cached profiles.
func (r *StoreProfileRepository) Invalidate(ids ...string) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = profileKey(id)
	}
	r.opts.Cache.Delete(keys...)
}
