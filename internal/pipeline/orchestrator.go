// Package pipeline runs lead extraction over a whole conversation: chunking,
// wave-based concurrent extraction, progress reporting and deduplication.
package pipeline

import (
	"context"
	"runtime/debug"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leads-cli/internal/chunk"
	"github.com/sells-group/leads-cli/internal/model"
)

const (
	// DefaultWaveSize is the number of chunks extracted concurrently.
	DefaultWaveSize = 3
	// SyncWaveSize processes chunks one at a time.
	SyncWaveSize = 1
)

// ChunkExtractor extracts leads from a single chunk. Implementations absorb
// their own failures and return an empty slice instead.
type ChunkExtractor interface {
	ExtractLeadsFromChunk(ctx context.Context, text string, chunkIndex, totalChunks int) []model.Lead
}

// Progress receives the lifecycle of one run. A nil Progress disables
// reporting.
type Progress interface {
	Start(ctx context.Context, totalChunks int) error
	Advance(ctx context.Context, processedChunks int) error
	Complete(ctx context.Context, leads []model.Lead) error
	Fail(ctx context.Context, message string) error
}

// Orchestrator splits a conversation into chunks and extracts them in waves.
type Orchestrator struct {
	extractor ChunkExtractor
	waveSize  int
	maxTokens int
	dedupe    DedupeKey
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWaveSize sets how many chunks are extracted concurrently.
func WithWaveSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.waveSize = n
		}
	}
}

// WithMaxChunkTokens sets the per-chunk token budget.
func WithMaxChunkTokens(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithDedupeKey selects the deduplication key.
func WithDedupeKey(k DedupeKey) Option {
	return func(o *Orchestrator) {
		if k != "" {
			o.dedupe = k
		}
	}
}

// NewOrchestrator creates an Orchestrator backed by ex.
func NewOrchestrator(ex ChunkExtractor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		extractor: ex,
		waveSize:  DefaultWaveSize,
		maxTokens: chunk.DefaultMaxTokens,
		dedupe:    DedupeByPhone,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run extracts and deduplicates the leads of text. Waves run strictly in
// order and results keep chunk order regardless of completion order. Any
// error, including a panic, is reported through progress.Fail before it is
// returned.
func (o *Orchestrator) Run(ctx context.Context, text string, progress Progress) (leads []model.Lead, err error) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("pipeline: panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			leads, err = nil, o.fail(ctx, progress, eris.Errorf("pipeline: panic: %v", r))
		}
	}()

	chunks := chunk.Split(text, o.maxTokens)
	total := len(chunks)
	log := zap.L().With(zap.Int("total_chunks", total), zap.Int("wave_size", o.waveSize))
	log.Info("pipeline: starting extraction", zap.Int("estimated_tokens", chunk.EstimateTokens(text)))

	if progress != nil {
		if err := progress.Start(ctx, total); err != nil {
			return nil, o.fail(ctx, progress, eris.Wrap(err, "pipeline: start batch"))
		}
	}

	var all []model.Lead
	processed := 0
	for start := 0; start < total; start += o.waveSize {
		if err := ctx.Err(); err != nil {
			return nil, o.fail(ctx, progress, eris.Wrap(err, "pipeline: cancelled"))
		}

		end := min(start+o.waveSize, total)
		results, err := o.runWave(ctx, chunks, start, end)
		if err != nil {
			return nil, o.fail(ctx, progress, err)
		}
		for _, r := range results {
			all = append(all, r...)
		}

		processed += end - start
		log.Debug("pipeline: wave done",
			zap.Int("wave", start/o.waveSize+1),
			zap.Int("processed_chunks", processed),
			zap.Int("leads", len(all)),
		)

		if progress != nil {
			if err := progress.Advance(ctx, min(processed, total)); err != nil {
				return nil, o.fail(ctx, progress, eris.Wrap(err, "pipeline: record progress"))
			}
		}
	}

	leads = Dedupe(all, o.dedupe)
	if progress != nil {
		if err := progress.Complete(ctx, leads); err != nil {
			return nil, o.fail(ctx, progress, eris.Wrap(err, "pipeline: complete batch"))
		}
	}

	log.Info("pipeline: extraction complete",
		zap.Int("raw_leads", len(all)),
		zap.Int("leads", len(leads)),
	)
	return leads, nil
}

// runWave extracts chunks[start:end] concurrently. Results are addressed by
// chunk index so they come back in input order.
func (o *Orchestrator) runWave(ctx context.Context, chunks []string, start, end int) ([][]model.Lead, error) {
	results := make([][]model.Lead, end-start)

	var g errgroup.Group
	for i := start; i < end; i++ {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = eris.Errorf("pipeline: chunk %d panicked: %v", i+1, r)
				}
			}()
			results[i-start] = o.extractor.ExtractLeadsFromChunk(ctx, chunks[i], i, len(chunks))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// fail reports err through progress and returns it. The failure is written
// even when ctx is already cancelled.
func (o *Orchestrator) fail(ctx context.Context, progress Progress, err error) error {
	zap.L().Error("pipeline: extraction failed", zap.Error(err))
	if progress == nil {
		return err
	}
	if ferr := progress.Fail(context.WithoutCancel(ctx), err.Error()); ferr != nil {
		zap.L().Warn("pipeline: could not record failure", zap.Error(ferr))
	}
	return err
}
