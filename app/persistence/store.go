package persistence

import (
	"context"
	"time"

	"github.com/umputun/workdb/app/enums"
)

// Store is the access surface the scheduler drives all work item state through.
// Durable and ephemeral stores implement it identically.
type Store interface {
	Insert(ctx context.Context, item WorkItem, prerequisites ...string) (WorkItem, error)
	GetByID(ctx context.Context, id string) (WorkItem, error)
	UpdateStatus(ctx context.Context, id string, expected, next enums.WorkStatus) error

	AddEdge(ctx context.Context, dependentID, prerequisiteID string) error
	PrerequisitesOf(ctx context.Context, id string) ([]string, error)
	DependentsOf(ctx context.Context, id string) ([]string, error)

	QueryReadyWork(ctx context.Context) ([]string, error)
	Claim(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, outcome enums.WorkStatus) error
	Cancel(ctx context.Context, id string) error

	ListByStatus(ctx context.Context, status enums.WorkStatus) ([]WorkItem, error)
	Stats(ctx context.Context) (map[enums.WorkStatus]int, error)
	Close() error
}

// WorkItem is a snapshot of a stored unit of work. Changing it doesn't affect the store
type WorkItem struct {
	ID        string
	Status    enums.WorkStatus
	Payload   []byte
	CreatedAt time.Time
	UpdatedAt time.Time // last status change
}

// StatusChange describes a committed status transition.
// From is zero for newly inserted items.
type StatusChange struct {
	ID   string
	From enums.WorkStatus
	To   enums.WorkStatus
	At   time.Time
}

// Listener gets status changes right after they are committed, in commit order. Delivery is at-least-once,
// implementations must not block and must not call back into the store synchronously.
type Listener interface {
	OnStatusChange(ev StatusChange)
}

// Location defines where the durable store lives
type Location struct {
	Path        string
	BusyTimeout time.Duration // how long writers wait for the database lock, 5s if not set
}

// workRow is the persisted form of WorkItem
type workRow struct {
	ID        string           `db:"id"`
	Status    enums.WorkStatus `db:"status"`
	Payload   []byte           `db:"payload"`
	CreatedAt int64            `db:"created_at"`
	UpdatedAt int64            `db:"updated_at"`
}

func (r workRow) item() WorkItem {
	return WorkItem{
		ID:        r.ID,
		Status:    r.Status,
		Payload:   r.Payload,
		CreatedAt: time.UnixMilli(r.CreatedAt),
		UpdatedAt: time.UnixMilli(r.UpdatedAt),
	}
}
