package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	log "github.com/go-pkgz/lgr"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/umputun/workdb/app/enums"
	"github.com/umputun/workdb/app/resumer"
)

const defaultBusyTimeout = 5 * time.Second

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db        *sqlx.DB
	name      string
	lock      *flock.Flock // nil for ephemeral store
	recovered int64
	now       func() time.Time

	listenersMu sync.RWMutex
	listeners   []Listener
	commitMu    sync.Mutex // keeps notifications in commit order

	closeOnce sync.Once
	closeErr  error
}

// OpenDurable opens (or creates) the file-backed store at the given location.
// The database file is locked for the lifetime of the store, interrupted claims
// are recovered before the store is returned.
func OpenDurable(ctx context.Context, loc Location) (*SQLiteStore, error) {
	if loc.Path == "" {
		return nil, errors.Wrap(ErrInvalidLocation, "empty path")
	}
	path := filepath.Clean(loc.Path)
	busyTimeout := loc.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, storageErr(err, "lock "+path)
	}
	if !locked {
		return nil, errors.Wrap(ErrLocked, path)
	}

	// pragmas set per connection, immediate transactions take the write lock upfront
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate",
		path, busyTimeout.Milliseconds())
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		_ = lock.Unlock()
		return nil, storageErr(err, "open "+path)
	}

	s, err := newSQLiteStore(ctx, db, path)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	s.lock = lock
	return s, nil
}

// OpenEphemeral makes a new in-memory store, nothing survives Close
func OpenEphemeral(ctx context.Context) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", ":memory:?_pragma=foreign_keys(1)&_txlock=immediate")
	if err != nil {
		return nil, storageErr(err, "open in-memory db")
	}
	// each connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	return newSQLiteStore(ctx, db, ":memory:")
}

// newSQLiteStore makes store for opened db, closes db on failure
func newSQLiteStore(ctx context.Context, db *sqlx.DB, name string) (*SQLiteStore, error) {
	recovered, err := initialize(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Printf("[INFO] store %s opened, recovered %d interrupted work items", name, recovered)
	return &SQLiteStore{db: db, name: name, now: time.Now, recovered: recovered}, nil
}

// initialize creates or verifies the schema and recovers interrupted claims in a single transaction
func initialize(ctx context.Context, db *sqlx.DB) (int64, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, storageErr(err, "begin open transaction")
	}
	defer tx.Rollback() // nolint errcheck

	if err := initSchema(ctx, tx); err != nil {
		return 0, err
	}

	recovered, err := resumer.New("work_items").Reset(ctx, tx)
	if err != nil {
		return 0, storageErr(err, "recover interrupted work")
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr(err, "commit open transaction")
	}
	return recovered, nil
}

// Recovered returns the number of running items reset to enqueued when the store was opened
func (s *SQLiteStore) Recovered() int64 { return s.recovered }

// Location returns database path or ":memory:" for ephemeral store
func (s *SQLiteStore) Location() string { return s.name }

// AddListener registers a listener for committed status changes
func (s *SQLiteStore) AddListener(l Listener) {
	if l == nil {
		return
	}
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// commitAndNotify commits tx and reports the change to listeners
func (s *SQLiteStore) commitAndNotify(tx *sqlx.Tx, ev StatusChange) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	if err := tx.Commit(); err != nil {
		return storageErr(err, "commit "+ev.ID)
	}

	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	for _, l := range s.listeners {
		l.OnStatusChange(ev)
	}
	return nil
}

// Insert creates a new enqueued work item with edges to all prerequisites in one transaction.
// Empty item id gets a random uuid. Prerequisites must exist already.
func (s *SQLiteStore) Insert(ctx context.Context, item WorkItem, prerequisites ...string) (WorkItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	prereqs := uniqueIDs(prerequisites)
	for _, p := range prereqs {
		if p == item.ID {
			return WorkItem{}, errors.Wrapf(ErrReferentialIntegrity, "work item %s can't depend on itself", item.ID)
		}
	}

	now := time.UnixMilli(s.now().UnixMilli())
	item.Status = enums.WorkStatusEnqueued
	item.CreatedAt, item.UpdatedAt = now, now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return WorkItem{}, storageErr(err, "begin insert")
	}
	defer tx.Rollback() // nolint errcheck

	var count int
	if err := tx.GetContext(ctx, &count, "SELECT COUNT(1) FROM work_items WHERE id = ?", item.ID); err != nil {
		return WorkItem{}, storageErr(err, "check work item "+item.ID)
	}
	if count > 0 {
		return WorkItem{}, errors.Wrapf(ErrDuplicateID, "work item %s", item.ID)
	}

	if err := checkExist(ctx, tx, prereqs); err != nil {
		return WorkItem{}, errors.WithMessagef(err, "insert %s", item.ID)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO work_items (id, status, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`, item.ID, item.Status.String(), item.Payload, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return WorkItem{}, constraintErr(err, "insert work item "+item.ID)
	}

	for _, p := range prereqs {
		if err := addEdge(ctx, tx, item.ID, p); err != nil {
			return WorkItem{}, err
		}
	}

	if err := s.commitAndNotify(tx, StatusChange{ID: item.ID, To: item.Status, At: now}); err != nil {
		return WorkItem{}, err
	}
	return item, nil
}

// GetByID returns the current state of a work item or ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (WorkItem, error) {
	var row workRow
	err := s.db.GetContext(ctx, &row, "SELECT "+itemColumns+" FROM work_items WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return WorkItem{}, errors.Wrapf(ErrNotFound, "work item %s", id)
	}
	if err != nil {
		return WorkItem{}, storageErr(err, "get work item "+id)
	}
	return row.item(), nil
}

// UpdateStatus sets status to next only if the stored status equals expected.
// Only caller-initiated transitions of the state machine are accepted.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, expected, next enums.WorkStatus) error {
	if !enums.CanTransition(expected, next) {
		return errors.Wrapf(ErrIllegalTransition, "%s -> %s", expected, next)
	}
	return s.compareAndSet(ctx, id, []enums.WorkStatus{expected}, next)
}

// Claim marks an enqueued item as running, exactly one of concurrent claimers wins
func (s *SQLiteStore) Claim(ctx context.Context, id string) error {
	return s.UpdateStatus(ctx, id, enums.WorkStatusEnqueued, enums.WorkStatusRunning)
}

// Complete moves a running item to succeeded or failed
func (s *SQLiteStore) Complete(ctx context.Context, id string, outcome enums.WorkStatus) error {
	if outcome != enums.WorkStatusSucceeded && outcome != enums.WorkStatusFailed {
		return errors.Wrapf(ErrIllegalTransition, "completion outcome %q", outcome)
	}
	return s.UpdateStatus(ctx, id, enums.WorkStatusRunning, outcome)
}

// Cancel moves an enqueued or running item to cancelled
func (s *SQLiteStore) Cancel(ctx context.Context, id string) error {
	return s.compareAndSet(ctx, id, []enums.WorkStatus{enums.WorkStatusEnqueued, enums.WorkStatusRunning}, enums.WorkStatusCancelled)
}

// compareAndSet reads the current status and updates it conditionally in one transaction
func (s *SQLiteStore) compareAndSet(ctx context.Context, id string, expected []enums.WorkStatus, next enums.WorkStatus) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr(err, "begin status update")
	}
	defer tx.Rollback() // nolint errcheck

	var current enums.WorkStatus
	err = tx.GetContext(ctx, &current, "SELECT status FROM work_items WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(ErrNotFound, "work item %s", id)
	}
	if err != nil {
		return storageErr(err, "read status of "+id)
	}

	matched := false
	for _, st := range expected {
		if st == current {
			matched = true
			break
		}
	}
	if !matched {
		return errors.Wrapf(ErrStatusConflict, "work item %s is %s, expected %v", id, current, expected)
	}

	now := time.UnixMilli(s.now().UnixMilli())
	res, err := tx.ExecContext(ctx, "UPDATE work_items SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		next.String(), now.UnixMilli(), id, current.String())
	if err != nil {
		return storageErr(err, "update status of "+id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(err, "update status of "+id)
	}
	if n != 1 {
		return errors.Wrapf(ErrStatusConflict, "work item %s changed concurrently", id)
	}

	if err := s.commitAndNotify(tx, StatusChange{ID: id, From: current, To: next, At: now}); err != nil {
		return err
	}
	log.Printf("[DEBUG] work item %s: %s -> %s", id, current, next)
	return nil
}

// ListByStatus returns items with the given status, oldest first
func (s *SQLiteStore) ListByStatus(ctx context.Context, status enums.WorkStatus) ([]WorkItem, error) {
	rows := []workRow{}
	err := s.db.SelectContext(ctx, &rows, "SELECT "+itemColumns+" FROM work_items WHERE status = ? ORDER BY created_at, id",
		status.String())
	if err != nil {
		return nil, storageErr(err, "list "+status.String())
	}
	res := make([]WorkItem, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.item())
	}
	return res, nil
}

// Stats returns number of work items per status, all statuses included
func (s *SQLiteStore) Stats(ctx context.Context) (map[enums.WorkStatus]int, error) {
	var rows []struct {
		Status enums.WorkStatus `db:"status"`
		Count  int              `db:"cnt"`
	}
	if err := s.db.SelectContext(ctx, &rows, "SELECT status, COUNT(1) AS cnt FROM work_items GROUP BY status"); err != nil {
		return nil, storageErr(err, "stats")
	}
	res := make(map[enums.WorkStatus]int, len(enums.WorkStatusValues))
	for _, st := range enums.WorkStatusValues {
		res[st] = 0
	}
	for _, r := range rows {
		res[r.Status] = r.Count
	}
	return res, nil
}

// Close closes the database and releases the file lock. Safe to call multiple times
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() {
		if err := s.db.Close(); err != nil {
			s.closeErr = storageErr(err, "close "+s.name)
		}
		if s.lock != nil {
			if err := s.lock.Unlock(); err != nil && s.closeErr == nil {
				s.closeErr = storageErr(err, "unlock "+s.name)
			}
		}
		log.Printf("[DEBUG] store %s closed", s.name)
	})
	return s.closeErr
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	res := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		res = append(res, id)
	}
	return res
}
