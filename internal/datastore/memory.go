package datastore

import (
	"cmp"
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory is an in-process Store. Rows are held as bson documents so they
// encode and compare the way they do in MongoDB (times at millisecond
// precision). Transactions run under a single lock against a copy of the
// data that replaces the original on success.
type Memory struct {
	mu      *sync.Mutex
	data    map[string][]bson.M
	uniques map[string][][]string
	inTx    bool
}

// NewMemory returns an empty store without unique keys.
func NewMemory() *Memory {
	return &Memory{
		mu:      &sync.Mutex{},
		data:    make(map[string][]bson.M),
		uniques: make(map[string][][]string),
	}
}

// NewMemoryWithIndexes returns a store carrying the same unique keys as the
// Postgres and Mongo schemas.
func NewMemoryWithIndexes() *Memory {
	return NewMemory().
		WithUnique(Profiles, "id").
		WithUnique(Profiles, "username").
		WithUnique(Posts, "id").
		WithUnique(Comments, "id").
		WithUnique(Likes, "post_id", "user_id").
		WithUnique(Followers, "follower_id", "following_id")
}

// WithUnique registers a unique key over fields of collection.
func (m *Memory) WithUnique(collection string, fields ...string) *Memory {
	m.uniques[collection] = append(m.uniques[collection], fields)
	return m
}

func (m *Memory) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) Select(ctx context.Context, collection string, q Query, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := q.validate(collection); err != nil {
		return err
	}
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("%w: dest must be a pointer to a slice", ErrInvalidQuery)
	}

	unlock := m.lock()
	defer unlock()

	docs, err := m.match(collection, q)
	if err != nil {
		return err
	}
	sortDocs(docs, q.Order)
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}

	slice := rv.Elem()
	out := reflect.MakeSlice(slice.Type(), 0, len(docs))
	for _, doc := range docs {
		raw, err := bson.Marshal(doc)
		if err != nil {
			return fmt.Errorf("select %s: %w", collection, err)
		}
		elem := reflect.New(slice.Type().Elem())
		if err := bson.Unmarshal(raw, elem.Interface()); err != nil {
			return fmt.Errorf("select %s: %w", collection, err)
		}
		out = reflect.Append(out, elem.Elem())
	}
	slice.Set(out)
	return nil
}

func (m *Memory) Insert(ctx context.Context, collection string, row any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkIdent("collection", collection); err != nil {
		return err
	}
	raw, err := bson.Marshal(row)
	if err != nil {
		return fmt.Errorf("insert %s: %w", collection, err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("insert %s: %w", collection, err)
	}

	unlock := m.lock()
	defer unlock()

	for _, key := range m.uniques[collection] {
		for _, existing := range m.data[collection] {
			if sameKey(existing, doc, key) {
				return fmt.Errorf("insert %s: %w", collection, ErrDuplicate)
			}
		}
	}
	m.data[collection] = append(m.data[collection], doc)
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection string, q Query) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := q.validate(collection); err != nil {
		return 0, err
	}

	unlock := m.lock()
	defer unlock()

	filters, err := normalizeFilters(q.Filters)
	if err != nil {
		return 0, err
	}
	kept := m.data[collection][:0:0]
	var n int64
	for _, doc := range m.data[collection] {
		if matches(doc, filters, q.After) {
			n++
			continue
		}
		kept = append(kept, doc)
	}
	m.data[collection] = kept
	return n, nil
}

func (m *Memory) Count(ctx context.Context, collection string, q Query) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := q.validate(collection); err != nil {
		return 0, err
	}

	unlock := m.lock()
	defer unlock()

	docs, err := m.match(collection, q)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

func (m *Memory) Update(ctx context.Context, collection string, q Query, set map[string]any) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := q.validate(collection); err != nil {
		return 0, err
	}
	values := make(bson.M, len(set))
	for field, v := range set {
		if err := checkIdent("field", field); err != nil {
			return 0, err
		}
		nv, err := normalize(v)
		if err != nil {
			return 0, err
		}
		values[field] = nv
	}

	unlock := m.lock()
	defer unlock()

	docs, err := m.match(collection, q)
	if err != nil {
		return 0, err
	}
	for _, doc := range docs {
		for field, v := range values {
			doc[field] = v
		}
	}
	return int64(len(docs)), nil
}

func (m *Memory) Increment(ctx context.Context, collection string, q Query, field string, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := q.validate(collection); err != nil {
		return 0, err
	}
	if err := checkIdent("field", field); err != nil {
		return 0, err
	}

	unlock := m.lock()
	defer unlock()

	docs, err := m.match(collection, q)
	if err != nil {
		return 0, err
	}
	for _, doc := range docs {
		cur, _ := toInt64(doc[field])
		doc[field] = cur + delta
	}
	return int64(len(docs)), nil
}

func (m *Memory) Tx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if m.inTx {
		return fn(ctx, m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &Memory{mu: m.mu, data: cloneData(m.data), uniques: m.uniques, inTx: true}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.data = tx.data
	return nil
}

func (m *Memory) Close(_ context.Context) error { return nil }

// match returns the live documents matching q. Callers hold the lock.
func (m *Memory) match(collection string, q Query) ([]bson.M, error) {
	filters, err := normalizeFilters(q.Filters)
	if err != nil {
		return nil, err
	}
	var out []bson.M
	for _, doc := range m.data[collection] {
		if matches(doc, filters, q.After) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func matches(doc bson.M, filters []Filter, after *Keyset) bool {
	for _, f := range filters {
		v := doc[f.Field]
		switch f.Op {
		case OpEq:
			if c, ok := compare(v, f.Value); !ok || c != 0 {
				return false
			}
		case OpLt:
			if c, ok := compare(v, f.Value); !ok || c >= 0 {
				return false
			}
		case OpGt:
			if c, ok := compare(v, f.Value); !ok || c <= 0 {
				return false
			}
		case OpIn:
			found := false
			for _, candidate := range f.Value.([]any) {
				if c, ok := compare(v, candidate); ok && c == 0 {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	if after != nil {
		t := primitive.NewDateTimeFromTime(after.Time)
		ct, ok := compare(doc[after.TimeField], t)
		if !ok {
			return false
		}
		ci, _ := compare(doc[after.IDField], after.ID)
		if after.Desc {
			return ct < 0 || (ct == 0 && ci < 0)
		}
		return ct > 0 || (ct == 0 && ci > 0)
	}
	return true
}

func sortDocs(docs []bson.M, order []Order) {
	if len(order) == 0 {
		return
	}
	slices.SortStableFunc(docs, func(a, b bson.M) int {
		for _, o := range order {
			c, _ := compare(a[o.Field], b[o.Field])
			if c == 0 {
				continue
			}
			if o.Desc {
				return -c
			}
			return c
		}
		return 0
	})
}

func sameKey(a, b bson.M, fields []string) bool {
	for _, f := range fields {
		if c, ok := compare(a[f], b[f]); !ok || c != 0 {
			return false
		}
	}
	return true
}

// normalize runs a Go value through the bson codec so it compares against
// stored documents (time.Time becomes primitive.DateTime, ints widen, ...).
func normalize(v any) (any, error) {
	raw, err := bson.Marshal(bson.M{"v": v})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	var out bson.M
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return out["v"], nil
}

func normalizeFilters(filters []Filter) ([]Filter, error) {
	out := make([]Filter, len(filters))
	for i, f := range filters {
		if f.Op == OpIn {
			values := f.Value.([]any)
			nvs := make([]any, len(values))
			for j, v := range values {
				nv, err := normalize(v)
				if err != nil {
					return nil, err
				}
				nvs[j] = nv
			}
			out[i] = Filter{Field: f.Field, Op: f.Op, Value: nvs}
			continue
		}
		nv, err := normalize(f.Value)
		if err != nil {
			return nil, err
		}
		out[i] = Filter{Field: f.Field, Op: f.Op, Value: nv}
	}
	return out, nil
}

// compare orders two normalized bson values. ok is false when the values are
// not comparable (different kinds or a missing field).
func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case primitive.DateTime:
		y, ok := b.(primitive.DateTime)
		if !ok {
			return 0, false
		}
		return cmp.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		default:
			return 1, true
		}
	}
	xi, xok := toInt64(a)
	yi, yok := toInt64(b)
	if xok && yok {
		return cmp.Compare(xi, yi), true
	}
	xf, xok := toFloat64(a)
	yf, yok := toFloat64(b)
	if xok && yok {
		return cmp.Compare(xf, yf), true
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func cloneData(data map[string][]bson.M) map[string][]bson.M {
	out := make(map[string][]bson.M, len(data))
	for coll, docs := range data {
		copied := make([]bson.M, len(docs))
		for i, doc := range docs {
			d := make(bson.M, len(doc))
			for k, v := range doc {
				d[k] = v
			}
			copied[i] = d
		}
		out[coll] = copied
	}
	return out
}
