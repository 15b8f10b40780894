package pipeline

import (
	"context"

	"github.com/verifactura/verifactura/internal/document"
	"golang.org/x/sync/errgroup"
)

// BatchItem pairs one handle's outcome with its input position. Exactly one
// of Result/Err is meaningful.
type BatchItem struct {
	Index  int
	Name   string
	Result Result
	Err    error
}

// RunBatch processes handles concurrently under the configured ceiling.
// Documents are isolated: one failing never aborts its siblings, and the
// returned slice keeps input order. Cancelling ctx stops the whole batch.
func (o *Orchestrator) RunBatch(ctx context.Context, handles []document.Handle) []BatchItem {
	items := make([]BatchItem, len(handles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.BatchConcurrency)
	for i, h := range handles {
		g.Go(func() error {
			res, err := o.Run(gctx, h)
			items[i] = BatchItem{Index: i, Name: h.Name, Result: res, Err: err}
			// per-item errors stay in the item; returning them would cancel
			// the group's siblings
			return nil
		})
	}
	_ = g.Wait()

	o.logger.Info("pipeline.batch.done",
		"documents", len(handles),
		"failed", countFailed(items),
	)
	return items
}

func countFailed(items []BatchItem) int {
	n := 0
	for _, it := range items {
		if it.Err != nil {
			n++
		}
	}
	return n
}
