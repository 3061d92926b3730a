package persistence

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/workdb/app/enums"
)

func TestSQLiteStore_AddEdge(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			ctx := context.Background()
			for _, id := range []string{"a", "b", "c"} {
				_, err := store.Insert(ctx, WorkItem{ID: id})
				require.NoError(t, err)
			}

			require.NoError(t, store.AddEdge(ctx, "c", "a"))
			require.NoError(t, store.AddEdge(ctx, "c", "a"), "idempotent")
			require.NoError(t, store.AddEdge(ctx, "c", "b"))
			require.NoError(t, store.AddEdge(ctx, "b", "a"))

			prereqs, err := store.PrerequisitesOf(ctx, "c")
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, prereqs)

			deps, err := store.DependentsOf(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "c"}, deps)

			none, err := store.PrerequisitesOf(ctx, "a")
			require.NoError(t, err)
			assert.Empty(t, none)
			none, err = store.DependentsOf(ctx, "unknown")
			require.NoError(t, err)
			assert.Empty(t, none)

			var edges int
			require.NoError(t, store.db.Get(&edges, "SELECT COUNT(*) FROM dependencies"))
			assert.Equal(t, 3, edges)

			err = store.AddEdge(ctx, "c", "missing")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrReferentialIntegrity))
			assert.Contains(t, err.Error(), "[missing]")

			err = store.AddEdge(ctx, "missing", "a")
			assert.True(t, errors.Is(err, ErrReferentialIntegrity))

			err = store.AddEdge(ctx, "a", "a")
			assert.True(t, errors.Is(err, ErrReferentialIntegrity))
		})
	}
}

func TestSQLiteStore_ForeignKeysEnforced(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			ctx := context.Background()
			_, err := store.Insert(ctx, WorkItem{ID: "a"})
			require.NoError(t, err)

			// bypass the existence check, schema still rejects dangling edges
			tx, err := store.db.BeginTxx(ctx, nil)
			require.NoError(t, err)
			defer tx.Rollback() // nolint errcheck
			err = addEdge(ctx, tx, "a", "ghost")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrReferentialIntegrity))
		})
	}
}

func TestSQLiteStore_QueryReadyWork(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			ctx := context.Background()

			ready, err := store.QueryReadyWork(ctx)
			require.NoError(t, err)
			assert.Empty(t, ready)

			// insert A (no deps), B depends on A
			a, err := store.Insert(ctx, WorkItem{ID: "A"})
			require.NoError(t, err)
			assert.Equal(t, enums.WorkStatusEnqueued, a.Status)
			_, err = store.Insert(ctx, WorkItem{ID: "B"}, "A")
			require.NoError(t, err)

			ready, err = store.QueryReadyWork(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"A"}, ready)

			require.NoError(t, store.Claim(ctx, "A"))
			ready, err = store.QueryReadyWork(ctx)
			require.NoError(t, err)
			assert.Empty(t, ready, "running prerequisite blocks dependent")

			require.NoError(t, store.Complete(ctx, "A", enums.WorkStatusSucceeded))
			ready, err = store.QueryReadyWork(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"B"}, ready)
		})
	}
}

func TestSQLiteStore_QueryReadyWorkUnfinishedPrerequisites(t *testing.T) {
	store := openEphemeralTest(t)
	ctx := context.Background()

	for _, id := range []string{"ok", "bad", "cancelled", "pending"} {
		_, err := store.Insert(ctx, WorkItem{ID: id})
		require.NoError(t, err)
	}
	require.NoError(t, store.Claim(ctx, "ok"))
	require.NoError(t, store.Complete(ctx, "ok", enums.WorkStatusSucceeded))
	require.NoError(t, store.Claim(ctx, "bad"))
	require.NoError(t, store.Complete(ctx, "bad", enums.WorkStatusFailed))
	require.NoError(t, store.Cancel(ctx, "cancelled"))

	_, err := store.Insert(ctx, WorkItem{ID: "after-ok"}, "ok")
	require.NoError(t, err)
	_, err = store.Insert(ctx, WorkItem{ID: "after-bad"}, "ok", "bad")
	require.NoError(t, err)
	_, err = store.Insert(ctx, WorkItem{ID: "after-cancelled"}, "cancelled")
	require.NoError(t, err)
	_, err = store.Insert(ctx, WorkItem{ID: "after-pending"}, "ok", "pending")
	require.NoError(t, err)
	_, err = store.Insert(ctx, WorkItem{ID: "chain"}, "after-ok")
	require.NoError(t, err)

	ready, err := store.QueryReadyWork(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pending", "after-ok"}, ready)

	// every returned id has only succeeded prerequisites
	for _, id := range ready {
		prereqs, err := store.PrerequisitesOf(ctx, id)
		require.NoError(t, err)
		for _, p := range prereqs {
			item, err := store.GetByID(ctx, p)
			require.NoError(t, err)
			assert.Equal(t, enums.WorkStatusSucceeded, item.Status, "%s -> %s", id, p)
		}
	}
}
