package repositories

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/anonto42/nano-feed/backend/internal/datastore"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	maxCursorLength = 512
)

// PageRequest asks for one page of a listing. An empty cursor means the first
// page and a non-positive limit means DefaultPageSize.
type PageRequest struct {
	Cursor string
	Limit  int
}

func (p PageRequest) size() int {
	switch {
	case p.Limit <= 0:
		return DefaultPageSize
	case p.Limit > MaxPageSize:
		return MaxPageSize
	default:
		return p.Limit
	}
}

// EncodeCursor builds the opaque cursor for the row (createdAt, id).
func EncodeCursor(createdAt time.Time, id string) string {
	raw := createdAt.UTC().Format(time.RFC3339Nano) + "|" + id
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor reverses EncodeCursor.
func DecodeCursor(cursor string) (time.Time, string, error) {
	if len(cursor) > maxCursorLength {
		return time.Time{}, "", &ValidationError{Field: "cursor", Reason: "too long"}
	}
	raw, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", &ValidationError{Field: "cursor", Reason: "malformed"}
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return time.Time{}, "", &ValidationError{Field: "cursor", Reason: "malformed"}
	}
	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, "", &ValidationError{Field: "cursor", Reason: "bad timestamp"}
	}
	return createdAt, id, nil
}

// pageQuery adds ordering, keyset continuation and a one-row lookahead to q.
// Rows are ordered by created_at then idField.
func pageQuery(q datastore.Query, idField string, desc bool, page PageRequest) (datastore.Query, error) {
	order := datastore.Asc
	if desc {
		order = datastore.Desc
	}
	q = q.OrderBy(order("created_at"), order(idField))

	var after *datastore.Keyset
	if page.Cursor != "" {
		createdAt, id, err := DecodeCursor(page.Cursor)
		if err != nil {
			return q, err
		}
		after = &datastore.Keyset{
			TimeField: "created_at",
			IDField:   idField,
			Time:      createdAt,
			ID:        id,
			Desc:      desc,
		}
	}
	return q.Page(after, page.size()+1), nil
}

// trimPage drops the lookahead row and returns the cursor for the next page,
// or "" on the last page.
func trimPage[T any](rows []T, page PageRequest, key func(T) (time.Time, string)) ([]T, string) {
	n := page.size()
	if len(rows) <= n {
		return rows, ""
	}
	rows = rows[:n]
	createdAt, id := key(rows[n-1])
	return rows, EncodeCursor(createdAt, id)
}
