package validators

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Validate(&models.CreatePostRequest{Content: "hello"}))
	// Length limits on content apply after trimming, outside the validator.
	assert.NoError(t, v.Validate(&models.CreatePostRequest{Content: " " + strings.Repeat("a", 500) + " "}))

	tests := []struct {
		name string
		req  interface{}
		want string
	}{
		{"missing content", &models.CreatePostRequest{}, "content is required"},
		{"missing comment", &models.CreateCommentRequest{}, "content is required"},
		{"bio too long", &models.UpdateProfileRequest{Bio: strings.Repeat("a", 161)}, "at most 160"},
		{"short username", &models.CreateProfileRequest{Username: "ab"}, "at least 3"},
		{"bad avatar", &models.CreateProfileRequest{Username: "abc", AvatarURL: "nope"}, "valid URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			var he *echo.HTTPError
			require.True(t, errors.As(err, &he))
			assert.Equal(t, http.StatusBadRequest, he.Code)
			assert.Contains(t, he.Message, tt.want)
		})
	}
}
