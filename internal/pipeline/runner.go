package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/clerkops/formbench/internal/types"
)

// RunStore is the persistence surface the runner drives: batch lookup,
// run-status bookkeeping, and per-document result writes.
type RunStore interface {
	GetBatch(ctx context.Context, id string) (*types.Batch, error)
	UpdateRunStatus(ctx context.Context, id string, status types.RunStatus, processed int, errMsg string) error
	CreateResult(ctx context.Context, result *types.PipelineRunResult) error
}

// Runner executes test runs in the background. Each run moves from
// pending to running when its goroutine picks it up, then to completed or
// failed. A server restart leaves in-flight runs stuck in running; the
// cancel endpoint exists to reset those by marking them failed.
type Runner struct {
	store    RunStore
	pipeline *Pipeline
	logger   *slog.Logger

	// baseCtx bounds all run goroutines so server shutdown stops them.
	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewRunner creates a background run executor. baseCtx should be the
// server's lifetime context.
func NewRunner(baseCtx context.Context, store RunStore, p *Pipeline, logger *slog.Logger) *Runner {
	return &Runner{
		store:    store,
		pipeline: p,
		logger:   logger.With("component", "runner"),
		baseCtx:  baseCtx,
	}
}

// Start launches the run in a goroutine and returns immediately. The run
// record must already be persisted with status pending.
func (r *Runner) Start(run types.TestRun) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(run)
	}()
}

// Wait blocks until all in-flight runs have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) execute(run types.TestRun) {
	ctx := r.baseCtx
	logger := r.logger.With("test_run_id", run.ID)

	if err := r.store.UpdateRunStatus(ctx, run.ID, types.RunRunning, 0, ""); err != nil {
		logger.Error("failed to mark run running", "error", err)
		return
	}

	totalProcessed := 0
	for _, batchID := range run.BatchIDs {
		batch, err := r.store.GetBatch(ctx, batchID)
		if err != nil {
			// A batch deleted after the run started is skipped, not fatal.
			logger.Warn("skipping missing batch", "batch_id", batchID, "error", err)
			continue
		}

		// lastReported tracks the latest progress value written, so the
		// terminal failure update never rewinds processed_documents below
		// the results already persisted.
		base := totalProcessed
		lastReported := totalProcessed
		_, err = r.pipeline.ProcessBatch(ctx, batch, run.LayoutLibrary, run.OCRLibrary, run.ID, r.store,
			func(processed, total int) {
				lastReported = base + processed
				if err := r.store.UpdateRunStatus(ctx, run.ID, types.RunRunning, lastReported, ""); err != nil {
					logger.Warn("failed to update run progress", "error", err)
				}
			})
		if err != nil {
			logger.Error("run failed", "batch_id", batchID, "error", err)
			if uerr := r.store.UpdateRunStatus(ctx, run.ID, types.RunFailed, lastReported, err.Error()); uerr != nil {
				logger.Error("failed to mark run failed", "error", uerr)
			}
			return
		}

		totalProcessed += len(batch.Documents)
	}

	if err := r.store.UpdateRunStatus(ctx, run.ID, types.RunCompleted, totalProcessed, ""); err != nil {
		logger.Error("failed to mark run completed", "error", err)
		return
	}
	logger.Info("run completed", "processed_documents", totalProcessed)
}
