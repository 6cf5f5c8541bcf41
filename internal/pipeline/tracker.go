package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/store"
)

var (
	// ErrBatchNotFound is returned when the tracked batch record is gone.
	ErrBatchNotFound = eris.New("pipeline: batch not found")
	// ErrBatchClosed is returned when a transition out of the batch's current
	// status is not allowed.
	ErrBatchClosed = eris.New("pipeline: batch is closed")
)

// Tracker reports orchestrator progress onto one batch record. Each call is
// a read-modify-write; the tracker is the only writer of its batch.
type Tracker struct {
	store store.BatchStore
	id    string
}

// NewTracker creates a Tracker for batch id.
func NewTracker(st store.BatchStore, id string) *Tracker {
	return &Tracker{store: st, id: id}
}

// ID returns the tracked batch id.
func (t *Tracker) ID() string { return t.id }

// Start moves the batch to processing with zeroed progress.
func (t *Tracker) Start(ctx context.Context, totalChunks int) error {
	return t.transition(ctx, model.BatchStatusProcessing, func(*model.Batch) model.BatchUpdate {
		zero := 0
		return model.BatchUpdate{TotalChunks: &totalChunks, ProcessedChunks: &zero}
	})
}

// Advance records processed chunks. The counter never decreases and never
// exceeds total_chunks.
func (t *Tracker) Advance(ctx context.Context, processedChunks int) error {
	return t.transition(ctx, model.BatchStatusProcessing, func(b *model.Batch) model.BatchUpdate {
		n := max(b.ProcessedChunks, min(processedChunks, b.TotalChunks))
		return model.BatchUpdate{ProcessedChunks: &n}
	})
}

// Complete stores the final leads and marks the batch completed.
func (t *Tracker) Complete(ctx context.Context, leads []model.Lead) error {
	if leads == nil {
		leads = []model.Lead{}
	}
	return t.transition(ctx, model.BatchStatusCompleted, func(b *model.Batch) model.BatchUpdate {
		n := len(leads)
		processed := b.TotalChunks
		return model.BatchUpdate{TotalLeads: &n, LeadsData: leads, ProcessedChunks: &processed}
	})
}

// Fail marks the batch failed with message.
func (t *Tracker) Fail(ctx context.Context, message string) error {
	return t.transition(ctx, model.BatchStatusFailed, func(*model.Batch) model.BatchUpdate {
		return model.BatchUpdate{ErrorMessage: &message}
	})
}

func (t *Tracker) transition(ctx context.Context, next model.BatchStatus, build func(*model.Batch) model.BatchUpdate) error {
	b, err := t.store.GetBatch(ctx, t.id)
	if err != nil {
		return eris.Wrapf(err, "pipeline: load batch %s", t.id)
	}
	if b == nil {
		return eris.Wrapf(ErrBatchNotFound, "pipeline: batch %s", t.id)
	}
	if !b.Status.CanTransition(next) {
		return eris.Wrapf(ErrBatchClosed, "pipeline: batch %s is %s, cannot move to %s", t.id, b.Status, next)
	}

	update := build(b)
	update.Status = &next
	if err := t.store.UpdateBatch(ctx, t.id, update); err != nil {
		return eris.Wrapf(err, "pipeline: update batch %s", t.id)
	}

	zap.L().Debug("pipeline: batch updated",
		zap.String("batch_id", t.id),
		zap.String("status", string(next)),
	)
	return nil
}
