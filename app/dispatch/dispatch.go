// Package dispatch runs ready work items. It polls the store for items whose prerequisites
// succeeded, claims them and runs them through Runner with bounded concurrency.
package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/syncs"

	"github.com/umputun/workdb/app/enums"
	"github.com/umputun/workdb/app/persistence"
)

// Dispatcher is the blocking loop taking ready work from the store
type Dispatcher struct {
	Store        Store
	Runner       Runner
	Wakeups      <-chan struct{} // optional, signals new ready work without waiting for PollInterval
	PollInterval time.Duration
	Concurrency  int
	Drain        bool // return once nothing is ready and nothing is running

	inFlight atomic.Int32
}

// Store is the part of persistence.Store used by dispatcher
type Store interface {
	QueryReadyWork(ctx context.Context) ([]string, error)
	Claim(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (persistence.WorkItem, error)
	Complete(ctx context.Context, id string, outcome enums.WorkStatus) error
}

// Runner executes a claimed work item
type Runner interface {
	Run(ctx context.Context, item persistence.WorkItem) error
}

// Do runs dispatching loop until ctx canceled, or until all reachable work is done in Drain mode.
// Items interrupted by cancellation are left running and get re-enqueued by recovery on the next open.
func (d *Dispatcher) Do(ctx context.Context) error {
	if d.Concurrency <= 0 {
		d.Concurrency = 1
	}
	if d.PollInterval <= 0 {
		d.PollInterval = time.Second
	}

	gr := syncs.NewSizedGroup(d.Concurrency, syncs.Context(ctx), syncs.Preemptive)
	defer gr.Wait()

	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()

	log.Printf("[INFO] dispatcher started, concurrency %d, poll %v", d.Concurrency, d.PollInterval)
	for {
		// taken before the query, a run finishing after it may have made more work ready
		busy := d.inFlight.Load()
		n, err := d.dispatch(ctx, gr)
		if err != nil {
			log.Printf("[WARN] can't dispatch ready work, %v", err)
		}
		if d.Drain && err == nil && n == 0 && busy == 0 {
			log.Printf("[INFO] no more ready work, dispatcher completed")
			return nil
		}

		select {
		case <-ctx.Done():
			log.Printf("[DEBUG] dispatcher terminated, %v", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
		case <-d.Wakeups:
		}
	}
}

// dispatch schedules every ready item and returns their number
func (d *Dispatcher) dispatch(ctx context.Context, gr *syncs.SizedGroup) (int, error) {
	ids, err := d.Store.QueryReadyWork(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		log.Printf("[DEBUG] ready work %v", ids)
	}
	for _, id := range ids {
		d.inFlight.Add(1)
		gr.Go(func(ctx context.Context) {
			defer d.inFlight.Add(-1)
			d.execute(ctx, id)
		})
	}
	return len(ids), nil
}

// execute claims and runs a single item, recording the outcome
func (d *Dispatcher) execute(ctx context.Context, id string) {
	if err := d.Store.Claim(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrStatusConflict) {
			log.Printf("[DEBUG] %s already claimed or cancelled", id)
			return
		}
		log.Printf("[WARN] can't claim %s, %v", id, err)
		return
	}

	item, err := d.Store.GetByID(ctx, id)
	if err != nil {
		log.Printf("[WARN] can't load claimed %s, %v", id, err)
		return
	}

	st := time.Now()
	log.Printf("[INFO] executing %s", id)
	runErr := d.Runner.Run(ctx, item)
	if ctx.Err() != nil {
		log.Printf("[WARN] %s interrupted after %v, will be resumed on restart", id, time.Since(st))
		return
	}

	outcome := enums.WorkStatusSucceeded
	if runErr != nil {
		outcome = enums.WorkStatusFailed
		log.Printf("[WARN] %s failed, %v", id, runErr)
	}
	if err := d.Store.Complete(ctx, id, outcome); err != nil {
		log.Printf("[WARN] can't complete %s as %s, %v", id, outcome, err)
		return
	}
	log.Printf("[INFO] completed %s as %s in %v", id, outcome, time.Since(st))
}
