package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/estatebot/internal/session"
)

// ErrNotStarted is returned by Export before Start or after Stop.
var ErrNotStarted = errors.New("export workers not running")

// Detacher runs exports in the background so a presentation can return to
// its event loop immediately. A semaphore limits how many exports talk to
// the analytics service at once.
type Detacher struct {
	semaphore *semaphore.Weighted
	active    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// NewDetacher creates a Detacher that allows up to maxConcurrent exports to
// run simultaneously.
func NewDetacher(maxConcurrent int64) *Detacher {
	return &Detacher{
		semaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// Start initialises the detacher's context. Must be called before Export.
func (d *Detacher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ctx, d.cancel = context.WithCancel(ctx)
}

// Stop cancels in-flight exports and waits for their goroutines to return.
func (d *Detacher) Stop() {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.ctx = nil
	d.mu.Unlock()
	d.wg.Wait()
}

// Export starts ctrl.Export in a new goroutine and returns immediately.
// done, when non-nil, receives the outcome; the session itself is never
// told about it.
func (d *Detacher) Export(ctrl *session.Controller, locations []string, sink session.ExportSink, done func(error)) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.ctx == nil {
		return ErrNotStarted
	}

	ctx := d.ctx
	d.wg.Add(1)
	d.active.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.active.Add(-1)
		err := d.run(ctx, ctrl, locations, sink)
		if err != nil {
			slog.Debug("detached export finished with error", "session_id", string(ctrl.ID()), "error", err)
		}
		if done != nil {
			done(err)
		}
	}()
	return nil
}

func (d *Detacher) run(ctx context.Context, ctrl *session.Controller, locations []string, sink session.ExportSink) error {
	if err := d.semaphore.Acquire(ctx, 1); err != nil {
		return err
	}
	defer d.semaphore.Release(1)
	return ctrl.Export(ctx, locations, sink)
}

// WaitIdle blocks until no exports are queued or running, or the timeout expires.
// Returns true if idle, false if timed out.
func (d *Detacher) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if d.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(20 * time.Millisecond):
		}
	}
}
