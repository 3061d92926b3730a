package persistence

import (
	"context"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/umputun/workdb/app/enums"
)

// readyQuery selects enqueued items without any prerequisite in a status other than succeeded
const readyQuery = `SELECT w.id FROM work_items w
	WHERE w.status = ?
	AND NOT EXISTS (
		SELECT 1 FROM dependencies d
		JOIN work_items p ON p.id = d.prerequisite_id
		WHERE d.dependent_id = w.id AND p.status != ?
	)
	ORDER BY w.created_at, w.id`

// AddEdge records that dependentID can't run before prerequisiteID succeeded.
// Both items must exist, adding an existing edge is a no-op. Cycles are not detected.
func (s *SQLiteStore) AddEdge(ctx context.Context, dependentID, prerequisiteID string) error {
	if dependentID == prerequisiteID {
		return errors.Wrapf(ErrReferentialIntegrity, "work item %s can't depend on itself", dependentID)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr(err, "begin add edge")
	}
	defer tx.Rollback() // nolint errcheck

	if err := checkExist(ctx, tx, []string{dependentID, prerequisiteID}); err != nil {
		return errors.WithMessagef(err, "edge %s -> %s", dependentID, prerequisiteID)
	}
	if err := addEdge(ctx, tx, dependentID, prerequisiteID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr(err, "commit add edge")
	}
	return nil
}

// PrerequisitesOf returns sorted ids the given item depends on
func (s *SQLiteStore) PrerequisitesOf(ctx context.Context, id string) ([]string, error) {
	ids := []string{}
	err := s.db.SelectContext(ctx, &ids,
		"SELECT prerequisite_id FROM dependencies WHERE dependent_id = ? ORDER BY prerequisite_id", id)
	if err != nil {
		return nil, storageErr(err, "prerequisites of "+id)
	}
	return ids, nil
}

// DependentsOf returns sorted ids depending on the given item
func (s *SQLiteStore) DependentsOf(ctx context.Context, id string) ([]string, error) {
	ids := []string{}
	err := s.db.SelectContext(ctx, &ids,
		"SELECT dependent_id FROM dependencies WHERE prerequisite_id = ? ORDER BY dependent_id", id)
	if err != nil {
		return nil, storageErr(err, "dependents of "+id)
	}
	return ids, nil
}

// QueryReadyWork returns ids of enqueued items with all prerequisites succeeded, oldest first
func (s *SQLiteStore) QueryReadyWork(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := s.db.SelectContext(ctx, &ids, readyQuery, enums.WorkStatusEnqueued.String(), enums.WorkStatusSucceeded.String())
	if err != nil {
		return nil, storageErr(err, "query ready work")
	}
	return ids, nil
}

func addEdge(ctx context.Context, tx *sqlx.Tx, dependentID, prerequisiteID string) error {
	_, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO dependencies (dependent_id, prerequisite_id) VALUES (?, ?)",
		dependentID, prerequisiteID)
	if err != nil {
		return constraintErr(err, "add edge "+dependentID+" -> "+prerequisiteID)
	}
	return nil
}

// checkExist fails with ErrReferentialIntegrity listing ids missing from work_items
func checkExist(ctx context.Context, tx *sqlx.Tx, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("SELECT id FROM work_items WHERE id IN (?)", ids)
	if err != nil {
		return storageErr(err, "build existence query")
	}
	found := []string{}
	if err := tx.SelectContext(ctx, &found, tx.Rebind(query), args...); err != nil {
		return storageErr(err, "check existence")
	}
	if len(found) == len(uniqueIDs(ids)) {
		return nil
	}

	known := make(map[string]bool, len(found))
	for _, id := range found {
		known[id] = true
	}
	missing := []string{}
	for _, id := range uniqueIDs(ids) {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return errors.Wrapf(ErrReferentialIntegrity, "unknown work items %v", missing)
}
