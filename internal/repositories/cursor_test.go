package repositories

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 123000000, time.UTC)
	cursor := EncodeCursor(ts, "post-1")

	gotTime, gotID, err := DecodeCursor(cursor)
	require.NoError(t, err)
	assert.True(t, ts.Equal(gotTime))
	assert.Equal(t, "post-1", gotID)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{"not base64", "!!!"},
		{"no separator", base64.URLEncoding.EncodeToString([]byte("2024-01-01T00:00:00Z"))},
		{"empty id", base64.URLEncoding.EncodeToString([]byte("2024-01-01T00:00:00Z|"))},
		{"bad time", base64.URLEncoding.EncodeToString([]byte("yesterday|abc"))},
		{"too long", string(make([]byte, maxCursorLength+1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeCursor(tt.cursor)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "cursor", ve.Field)
		})
	}
}

func TestPageRequestSize(t *testing.T) {
	tests := []struct {
		limit int
		want  int
	}{
		{0, DefaultPageSize},
		{-5, DefaultPageSize},
		{7, 7},
		{MaxPageSize + 1, MaxPageSize},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PageRequest{Limit: tt.limit}.size())
	}
}
