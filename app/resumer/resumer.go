// Package resumer voids work claims left behind by a terminated process.
// A running item is only valid while a live worker holds its claim, so on every
// store open all running items go back to the ready pool.
package resumer

import (
	"context"
	"fmt"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/umputun/workdb/app/enums"
)

// Resumer resets interrupted work items inside the transaction opening the store
type Resumer struct {
	table string
	now   func() time.Time
}

// New makes resumer for the given work items table
func New(table string) *Resumer {
	return &Resumer{table: table, now: time.Now}
}

// List returns ids of work items currently marked as running
func (r *Resumer) List(ctx context.Context, q sqlx.QueryerContext) ([]string, error) {
	ids := []string{}
	query := fmt.Sprintf("SELECT id FROM %s WHERE status = ? ORDER BY id", r.table) // nolint gosec
	if err := sqlx.SelectContext(ctx, q, &ids, query, enums.WorkStatusRunning.String()); err != nil {
		return nil, errors.Wrap(err, "can't list interrupted work items")
	}
	return ids, nil
}

// Reset moves all running items back to enqueued and returns the number of recovered items.
// Running it again in the same store lifetime is a no-op.
func (r *Resumer) Reset(ctx context.Context, tx sqlx.ExtContext) (int64, error) {
	ids, err := r.List(ctx, tx)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	log.Printf("[INFO] interrupted work items detected in %s - %v", r, ids)

	query := fmt.Sprintf("UPDATE %s SET status = ?, updated_at = ? WHERE status = ?", r.table) // nolint gosec
	res, err := tx.ExecContext(ctx, query, enums.WorkStatusEnqueued.String(), r.now().UnixMilli(), enums.WorkStatusRunning.String())
	if err != nil {
		return 0, errors.Wrap(err, "can't reset interrupted work items")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "can't get number of reset work items")
	}
	log.Printf("[DEBUG] reset %d interrupted work items in %s to %s", n, r, enums.WorkStatusEnqueued)
	return n, nil
}

// String describes the resumer target for logs
func (r *Resumer) String() string {
	return fmt.Sprintf("table:%s", r.table)
}
