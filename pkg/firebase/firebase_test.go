package firebase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAuthClient_MissingCredentials(t *testing.T) {
	_, err := NewAuthClient(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, err = NewAuthClient(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
