package router

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anonto42/nano-feed/backend/internal/datastore"
	"github.com/anonto42/nano-feed/backend/internal/feed"
	"github.com/anonto42/nano-feed/backend/internal/middleware"
	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/repositories"
	"github.com/anonto42/nano-feed/backend/pkg/cache"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiClient struct {
	t      *testing.T
	e      *echo.Echo
	issuer *middleware.JWTIssuer
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	repos := repositories.NewSet(datastore.NewMemoryWithIndexes(), repositories.Options{
		Cache: cache.NewLRU(100, time.Minute),
	})
	issuer := middleware.NewJWTIssuer("router-test", time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	e := echo.New()
	SetupMiddleware(e, logger)
	SetupRoutes(e, Dependencies{
		Repositories: repos,
		Feed:         feed.NewService(repos, logger),
		Sessions:     issuer,
		Issuer:       issuer,
	})
	return &apiClient{t: t, e: e, issuer: issuer}
}

func (a *apiClient) token(userID string) string {
	tok, err := a.issuer.Issue(userID)
	require.NoError(a.t, err)
	return tok
}

func (a *apiClient) call(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	rec := a.call(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestAPI_RequiresSession(t *testing.T) {
	a := newAPI(t)
	for _, path := range []string{"/api/v1/feed", "/api/v1/users/x/view", "/api/v1/profile"} {
		rec := a.call(http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := a.call(http.MethodGet, "/api/v1/feed", "forged", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_FeedScenario(t *testing.T) {
	a := newAPI(t)
	alice, bob := a.token("uid-alice"), a.token("uid-bob")

	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/v1/profile", alice, `{"username":"alice"}`).Code)
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/v1/profile", bob, `{"username":"bob"}`).Code)

	rec := a.call(http.MethodPost, "/api/v1/posts", alice, `{"content":"hello"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var post models.PostView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))

	require.Equal(t, http.StatusOK, a.call(http.MethodPost, "/api/v1/posts/"+post.ID+"/likes/toggle", bob, "").Code)
	require.Equal(t, http.StatusCreated, a.call(http.MethodPost, "/api/v1/posts/"+post.ID+"/comments", bob, `{"content":"hi"}`).Code)

	rec = a.call(http.MethodGet, "/api/v1/feed", bob, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page models.PostPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Posts, 1)
	assert.True(t, page.Posts[0].LikedByViewer)
	assert.EqualValues(t, 1, page.Posts[0].LikesCount)
	assert.EqualValues(t, 1, page.Posts[0].CommentsCount)
	assert.Equal(t, "alice", page.Posts[0].Author.Username)

	require.Equal(t, http.StatusOK, a.call(http.MethodPost, "/api/v1/users/uid-alice/follow/toggle", bob, "").Code)
	rec = a.call(http.MethodGet, "/api/v1/users/uid-alice/view", bob, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view models.ProfileView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.IsFollowing)
	assert.EqualValues(t, 1, view.Profile.FollowersCount)
	require.Len(t, view.Posts, 1)

	assert.Equal(t, http.StatusForbidden, a.call(http.MethodDelete, "/api/v1/posts/"+post.ID, bob, "").Code)
	assert.Equal(t, http.StatusNoContent, a.call(http.MethodDelete, "/api/v1/posts/"+post.ID, alice, "").Code)

	rec = a.call(http.MethodGet, "/api/v1/feed", bob, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Empty(t, page.Posts)
}

func TestAPI_SignOut(t *testing.T) {
	a := newAPI(t)
	tok := a.token("uid-carol")

	assert.Equal(t, http.StatusNoContent, a.call(http.MethodPost, "/api/v1/auth/signout", tok, "").Code)
	assert.Equal(t, http.StatusUnauthorized, a.call(http.MethodGet, "/api/v1/feed", tok, "").Code)

	// Firebase exchange is off without a Firebase verifier.
	rec := a.call(http.MethodPost, "/api/v1/auth/firebase-login", "", `{"id_token":"x"}`)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
