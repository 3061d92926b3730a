package resumer

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/umputun/workdb/app/enums"
)

func prepDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	db.MustExec(`CREATE TABLE items (id TEXT PRIMARY KEY, status TEXT NOT NULL, updated_at INTEGER NOT NULL)`)
	rows := []struct {
		id     string
		status enums.WorkStatus
	}{
		{"a", enums.WorkStatusEnqueued},
		{"b", enums.WorkStatusRunning},
		{"c", enums.WorkStatusSucceeded},
		{"d", enums.WorkStatusRunning},
		{"e", enums.WorkStatusCancelled},
	}
	for _, r := range rows {
		db.MustExec(`INSERT INTO items (id, status, updated_at) VALUES (?, ?, ?)`, r.id, r.status.String(), 1)
	}
	return db
}

func TestResumer_List(t *testing.T) {
	db := prepDB(t)
	r := New("items")

	ids, err := r.List(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d"}, ids)
}

func TestResumer_Reset(t *testing.T) {
	db := prepDB(t)
	r := New("items")
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r.now = func() time.Time { return ts }
	ctx := context.Background()

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	n, err := r.Reset(ctx, tx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Equal(t, int64(2), n)

	var statuses []struct {
		ID        string           `db:"id"`
		Status    enums.WorkStatus `db:"status"`
		UpdatedAt int64            `db:"updated_at"`
	}
	require.NoError(t, db.Select(&statuses, `SELECT id, status, updated_at FROM items ORDER BY id`))
	require.Len(t, statuses, 5)
	assert.Equal(t, enums.WorkStatusEnqueued, statuses[0].Status)
	assert.Equal(t, int64(1), statuses[0].UpdatedAt, "untouched")
	assert.Equal(t, enums.WorkStatusEnqueued, statuses[1].Status)
	assert.Equal(t, ts.UnixMilli(), statuses[1].UpdatedAt)
	assert.Equal(t, enums.WorkStatusSucceeded, statuses[2].Status)
	assert.Equal(t, enums.WorkStatusEnqueued, statuses[3].Status)
	assert.Equal(t, enums.WorkStatusCancelled, statuses[4].Status)

	// second pass has nothing to do
	tx, err = db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	n, err = r.Reset(ctx, tx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Equal(t, int64(0), n)
}

func TestResumer_ResetRollback(t *testing.T) {
	db := prepDB(t)
	r := New("items")
	ctx := context.Background()

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	n, err := r.Reset(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, tx.Rollback())

	ids, err := r.List(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d"}, ids, "rolled back reset leaves claims in place")
}

func TestResumer_MissingTable(t *testing.T) {
	db := prepDB(t)
	r := New("no_such_table")

	_, err := r.List(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can't list interrupted work items")
	assert.Equal(t, "table:no_such_table", r.String())
}
