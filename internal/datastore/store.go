// Package datastore is the data access layer shared by every repository. It
// exposes select/insert/delete style operations against named collections with
// equality and range filters, ordering and keyset paging. Postgres (gorm),
// MongoDB and an in-process memory store implement it.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Collection names.
const (
	Profiles  = "profiles"
	Posts     = "posts"
	Comments  = "comments"
	Likes     = "likes"
	Followers = "followers"
)

var (
	// ErrDuplicate is returned by Insert when a unique key already exists.
	ErrDuplicate = errors.New("duplicate key")

	// ErrInvalidQuery is returned for malformed collection or field names.
	ErrInvalidQuery = errors.New("invalid query")
)

// Store is the generic data access interface.
type Store interface {
	// Select decodes every row matching q into dest, a pointer to a slice.
	Select(ctx context.Context, collection string, q Query, dest any) error

	// Insert adds one row. row is a pointer to a model struct.
	Insert(ctx context.Context, collection string, row any) error

	// Delete removes the rows matching q and returns how many were removed.
	Delete(ctx context.Context, collection string, q Query) (int64, error)

	// Count returns the number of rows matching q.
	Count(ctx context.Context, collection string, q Query) (int64, error)

	// Update sets columns on the rows matching q.
	Update(ctx context.Context, collection string, q Query, set map[string]any) (int64, error)

	// Increment adds delta to a numeric column on the rows matching q.
	Increment(ctx context.Context, collection string, q Query, field string, delta int64) (int64, error)

	// Tx runs fn atomically. fn must use the ctx and Store it is handed.
	Tx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	Close(ctx context.Context) error
}

// Op is a filter comparison.
type Op int

const (
	OpEq Op = iota
	OpLt
	OpGt
	OpIn
)

// Filter compares one field against a value. For OpIn, Value is a []any.
type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, value any) Filter { return Filter{Field: field, Op: OpEq, Value: value} }
func Lt(field string, value any) Filter { return Filter{Field: field, Op: OpLt, Value: value} }
func Gt(field string, value any) Filter { return Filter{Field: field, Op: OpGt, Value: value} }

// In matches rows whose field equals any of values.
func In(field string, values []string) Filter {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Filter{Field: field, Op: OpIn, Value: vs}
}

// Order sorts by one field.
type Order struct {
	Field string
	Desc  bool
}

func Asc(field string) Order  { return Order{Field: field} }
func Desc(field string) Order { return Order{Field: field, Desc: true} }

// Keyset continues a listing ordered by (TimeField, IDField) strictly after
// the row (Time, ID) in the listing direction.
type Keyset struct {
	TimeField string
	IDField   string
	Time      time.Time
	ID        string
	Desc      bool
}

// Query combines filters (ANDed), ordering, keyset continuation and a limit.
// A zero Limit means no limit.
type Query struct {
	Filters []Filter
	Order   []Order
	After   *Keyset
	Limit   int
}

// Where starts a query from filters.
func Where(filters ...Filter) Query {
	return Query{Filters: filters}
}

func (q Query) OrderBy(orders ...Order) Query {
	q.Order = append(append([]Order(nil), q.Order...), orders...)
	return q
}

func (q Query) Page(after *Keyset, limit int) Query {
	q.After = after
	q.Limit = limit
	return q
}

var identRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkIdent(kind, name string) error {
	if !identRegex.MatchString(name) {
		return fmt.Errorf("%w: bad %s name %q", ErrInvalidQuery, kind, name)
	}
	return nil
}

func (q Query) validate(collection string) error {
	if err := checkIdent("collection", collection); err != nil {
		return err
	}
	for _, f := range q.Filters {
		if err := checkIdent("field", f.Field); err != nil {
			return err
		}
		if f.Op == OpIn {
			if _, ok := f.Value.([]any); !ok {
				return fmt.Errorf("%w: IN filter on %q needs a []any", ErrInvalidQuery, f.Field)
			}
		}
	}
	for _, o := range q.Order {
		if err := checkIdent("field", o.Field); err != nil {
			return err
		}
	}
	if k := q.After; k != nil {
		if err := checkIdent("field", k.TimeField); err != nil {
			return err
		}
		if err := checkIdent("field", k.IDField); err != nil {
			return err
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	return nil
}
