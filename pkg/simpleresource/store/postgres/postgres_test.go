package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-resource/pkg/simpleresource"
)

// fakeDB records executed statements and answers with a fixed tag.
type fakeDB struct {
	sql  []string
	args [][]interface{}
	tag  pgconn.CommandTag
	err  error
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return f.tag, f.err
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return nil
}

func testRecord() *simpleresource.Resource {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return &simpleresource.Resource{
		ID:        "r1",
		Category:  simpleresource.CategoryProduct,
		Data:      map[string]interface{}{"name": "widget"},
		Owner:     "user-1",
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
		ExpiresAt: now.Add(30 * 24 * time.Hour),
	}
}

func TestPutIfNotExists(t *testing.T) {
	t.Run("insert displaces an expired conflicting row", func(t *testing.T) {
		db := &fakeDB{tag: pgconn.NewCommandTag("INSERT 0 1")}
		store := New(db)

		err := store.PutIfNotExists(context.Background(), testRecord())
		require.NoError(t, err)

		require.Len(t, db.sql, 1)
		assert.Contains(t, db.sql[0], "ON CONFLICT (id) DO UPDATE")
		assert.Contains(t, db.sql[0], "resource.expires_at <= now()")
	})

	t.Run("conflict with a live row reports already exists", func(t *testing.T) {
		db := &fakeDB{tag: pgconn.NewCommandTag("INSERT 0 0")}
		store := New(db)

		err := store.PutIfNotExists(context.Background(), testRecord())
		assert.ErrorIs(t, err, simpleresource.ErrAlreadyExists)
	})
}

func TestDeleteIfExists(t *testing.T) {
	t.Run("removed", func(t *testing.T) {
		db := &fakeDB{tag: pgconn.NewCommandTag("DELETE 1")}
		store := New(db)

		removed, err := store.DeleteIfExists(context.Background(), "r1")
		require.NoError(t, err)
		assert.True(t, removed)
	})

	t.Run("already gone", func(t *testing.T) {
		db := &fakeDB{tag: pgconn.NewCommandTag("DELETE 0")}
		store := New(db)

		removed, err := store.DeleteIfExists(context.Background(), "r1")
		require.NoError(t, err)
		assert.False(t, removed)
	})
}
