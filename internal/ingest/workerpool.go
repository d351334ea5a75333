package ingest

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sari-dev/sari/internal/config"
	"github.com/sari-dev/sari/internal/logging"
)

// workerConcurrencyDefault mirrors config's min(cpu-2, 8) default so a
// caller that skips config.ValidateAndSetDefaults still gets a sane
// worker count.
func workerConcurrencyDefault() int {
	n := runtime.NumCPU() - 2
	if n < 1 {
		n = 1
	}
	if n > 8 {
		n = 8
	}
	return n
}

// WorkerPool drains an Orchestrator's WorkQueue with bounded
// parallelism via errgroup, pausing the Collector side of ingestion
// once queue depth crosses QueueHighWatermark and resuming once it
// falls back below QueueLowWatermark, per §4.4 "Backpressure".
type WorkerPool struct {
	cfg  *config.Config
	orch *Orchestrator
}

// NewWorkerPool builds a pool bound to orch's queue.
func NewWorkerPool(cfg *config.Config, orch *Orchestrator) *WorkerPool {
	return &WorkerPool{cfg: cfg, orch: orch}
}

// Run drains the queue until ctx is cancelled, honoring the configured
// concurrency and backpressure watermarks.
func (p *WorkerPool) Run(ctx context.Context) error {
	concurrency := p.cfg.Ingest.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = workerConcurrencyDefault()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for {
		select {
		case <-gctx.Done():
			return waitIgnoreCanceled(g)
		default:
		}

		if p.overHighWatermark() {
			if !p.waitForDrain(gctx) {
				return waitIgnoreCanceled(g)
			}
		}

		item, ok := p.orch.Queue().Pop()
		if !ok {
			select {
			case <-p.orch.Queue().Wait():
				continue
			case <-time.After(250 * time.Millisecond):
				continue
			case <-gctx.Done():
				return waitIgnoreCanceled(g)
			}
		}

		g.Go(func() error {
			if err := p.orch.ProcessOne(gctx, item.Item); err != nil {
				logging.LogIngest("worker: %s: %v", item.Item.RelPath, err)
			}
			return nil
		})
	}
}

// overHighWatermark reports whether queue depth has crossed the high
// watermark, signaling the Collector/watcher side to pause producing.
func (p *WorkerPool) overHighWatermark() bool {
	return p.orch.Queue().Depth() >= p.cfg.Ingest.QueueHighWatermark
}

// waitForDrain blocks until depth falls to the low watermark or ctx is
// done, returning false in the latter case.
func (p *WorkerPool) waitForDrain(ctx context.Context) bool {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if p.orch.Queue().Depth() <= p.cfg.Ingest.QueueLowWatermark {
			return true
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return false
		}
	}
}

func waitIgnoreCanceled(g *errgroup.Group) error {
	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
