package gateway

import (
	"context"
	"log/slog"
	"time"
)

const defaultExportDrain = 5 * time.Second

// Gateway holds the live sessions and the detached export workers shared by
// every presentation.
type Gateway struct {
	Sessions *Registry
	Exports  *Detacher

	drain time.Duration
}

// Options configures a Gateway.
type Options struct {
	// MaxSessions caps the number of live sessions. Zero means no cap.
	MaxSessions int
	// MaxConcurrentExports bounds detached exports. Defaults to 2.
	MaxConcurrentExports int64
	// ExportDrain is how long Stop lets running exports finish before
	// cancelling them. Defaults to 5s.
	ExportDrain time.Duration
}

// New creates a Gateway whose sessions are built by factory.
func New(factory Factory, opts Options) *Gateway {
	concurrency := opts.MaxConcurrentExports
	if concurrency <= 0 {
		concurrency = 2
	}
	drain := opts.ExportDrain
	if drain <= 0 {
		drain = defaultExportDrain
	}
	return &Gateway{
		Sessions: NewRegistry(factory, opts.MaxSessions),
		Exports:  NewDetacher(concurrency),
		drain:    drain,
	}
}

// Start initialises the gateway's context and starts the export workers.
func (g *Gateway) Start(ctx context.Context) {
	g.Exports.Start(ctx)
}

// Stop waits up to the drain period for running exports, then cancels
// whatever is left and waits for the workers to exit.
func (g *Gateway) Stop() {
	if !g.Exports.WaitIdle(g.drain) {
		slog.Warn("cancelling exports still running at shutdown", "drain", g.drain)
	}
	g.Exports.Stop()
}
