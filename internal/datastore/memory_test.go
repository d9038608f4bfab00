package datastore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID        string    `bson:"id"`
	Owner     string    `bson:"owner"`
	Hits      int64     `bson:"hits"`
	CreatedAt time.Time `bson:"created_at"`
}

func seed(t *testing.T, m *Memory, rows ...row) {
	t.Helper()
	for i := range rows {
		require.NoError(t, m.Insert(context.Background(), "rows", &rows[i]))
	}
}

func TestMemory_SelectFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	seed(t, m,
		row{ID: "a", Owner: "u1", CreatedAt: base},
		row{ID: "b", Owner: "u2", CreatedAt: base.Add(time.Minute)},
		row{ID: "c", Owner: "u1", CreatedAt: base.Add(2 * time.Minute)},
	)

	var got []row
	err := m.Select(ctx, "rows", Where(Eq("owner", "u1")).OrderBy(Desc("created_at")), &got)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
	assert.True(t, got[0].CreatedAt.Equal(base.Add(2*time.Minute)))

	got = nil
	err = m.Select(ctx, "rows", Where(In("id", []string{"a", "b"})).OrderBy(Asc("id")), &got)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[1].ID)

	got = nil
	err = m.Select(ctx, "rows", Where(Gt("created_at", base)).OrderBy(Asc("created_at")).Page(nil, 1), &got)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

func TestMemory_KeysetBreaksTiesByID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seed(t, m,
		row{ID: "x1", CreatedAt: ts},
		row{ID: "x2", CreatedAt: ts},
		row{ID: "x3", CreatedAt: ts},
		row{ID: "old", CreatedAt: ts.Add(-time.Hour)},
	)

	after := &Keyset{TimeField: "created_at", IDField: "id", Time: ts, ID: "x2", Desc: true}
	var got []row
	q := Query{}.OrderBy(Desc("created_at"), Desc("id")).Page(after, 10)
	require.NoError(t, m.Select(ctx, "rows", q, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "x1", got[0].ID)
	assert.Equal(t, "old", got[1].ID)
}

func TestMemory_UniqueKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory().WithUnique("rows", "id", "owner")
	seed(t, m, row{ID: "a", Owner: "u1"})

	err := m.Insert(ctx, "rows", &row{ID: "a", Owner: "u1"})
	assert.ErrorIs(t, err, ErrDuplicate)

	assert.NoError(t, m.Insert(ctx, "rows", &row{ID: "a", Owner: "u2"}))
}

func TestMemory_DeleteCountIncrementUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seed(t, m, row{ID: "a", Owner: "u1"}, row{ID: "b", Owner: "u1"}, row{ID: "c", Owner: "u2"})

	n, err := m.Increment(ctx, "rows", Where(Eq("owner", "u1")), "hits", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = m.Update(ctx, "rows", Where(Eq("id", "c")), map[string]any{"owner": "u3"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var got []row
	require.NoError(t, m.Select(ctx, "rows", Where(Eq("id", "a")), &got))
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].Hits)

	n, err = m.Delete(ctx, "rows", Where(Eq("owner", "u1")))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := m.Count(ctx, "rows", Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = m.Count(ctx, "rows", Where(Eq("owner", "u3")))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemory_TxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seed(t, m, row{ID: "a", Owner: "u1"})

	boom := errors.New("boom")
	err := m.Tx(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.Insert(ctx, "rows", &row{ID: "b"}); err != nil {
			return err
		}
		if _, err := tx.Delete(ctx, "rows", Where(Eq("id", "a"))); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var got []row
	require.NoError(t, m.Select(ctx, "rows", Query{}, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	err = m.Tx(ctx, func(ctx context.Context, tx Store) error {
		return tx.Insert(ctx, "rows", &row{ID: "b"})
	})
	require.NoError(t, err)
	count, err := m.Count(ctx, "rows", Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestQuery_RejectsBadIdentifiers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var got []row
	err := m.Select(ctx, "rows; drop table", Query{}, &got)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	err = m.Select(ctx, "rows", Where(Eq("id = 1 OR 1", "x")), &got)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	err = m.Select(ctx, "rows", Query{}, got)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}
