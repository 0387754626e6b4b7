// Package pipeline wires manifest parsing, sample building, and collation
// into the train and validation batch producers a training loop consumes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/example/go-textmel/internal/batch"
	"github.com/example/go-textmel/internal/codec"
	"github.com/example/go-textmel/internal/config"
	"github.com/example/go-textmel/internal/dataset"
)

// Pipeline owns the two dataset splits and the collator. Construct with New,
// call Setup once (further calls are no-ops), then draw batches per epoch
// with TrainBatches and ValidBatches.
type Pipeline struct {
	cfg config.Config

	mu       sync.Mutex
	setup    bool
	train    *dataset.Split
	valid    *dataset.Split
	collator *batch.Collator
	codec    codec.Codec
	rng      *rand.Rand
}

// New returns an unconfigured pipeline. No files are touched until Setup.
func New(cfg config.Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Setup parses both filelists, builds the splits, and, when enabled, loads
// the codec session. Idempotent: after the first success, later calls return
// nil immediately.
func (p *Pipeline) Setup() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.setup {
		return nil
	}

	train, err := dataset.NewSplit(p.cfg.Data.TrainFilelist, p.cfg)
	if err != nil {
		return fmt.Errorf("train split: %w", err)
	}
	valid, err := dataset.NewSplit(p.cfg.Data.ValidFilelist, p.cfg)
	if err != nil {
		return fmt.Errorf("valid split: %w", err)
	}

	var enc codec.Codec
	if p.cfg.Codec.Enabled {
		c, err := codec.NewONNX(p.cfg.Codec)
		if err != nil {
			return fmt.Errorf("codec: %w", err)
		}
		enc = c
	}

	collator, err := batch.NewCollator(batch.CollatorOptions{
		NumMels:        p.cfg.Mel.NumMels,
		HopLength:      p.cfg.Mel.HopLength,
		NumSpeakers:    p.cfg.Data.NumSpeakers,
		Codec:          enc,
		CodecHopFactor: p.cfg.Codec.HopFactor,
	})
	if err != nil {
		if enc != nil {
			_ = enc.Close()
		}
		return err
	}

	p.train = train
	p.valid = valid
	p.codec = enc
	p.collator = collator
	p.rng = rand.New(rand.NewSource(p.cfg.Data.Seed))
	p.setup = true

	slog.Info("pipeline ready",
		"train_records", train.Len(),
		"valid_records", valid.Len(),
		"batch_size", p.cfg.Data.BatchSize,
		"codec", p.cfg.Codec.Enabled)

	return nil
}

// Train returns the train split. Nil before Setup.
func (p *Pipeline) Train() *dataset.Split {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.train
}

// Valid returns the validation split. Nil before Setup.
func (p *Pipeline) Valid() *dataset.Split {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.valid
}

// TrainBatches starts one epoch over the train split in a freshly shuffled
// order.
func (p *Pipeline) TrainBatches() (*BatchIter, error) {
	return p.batches(true)
}

// ValidBatches starts one epoch over the validation split in record order.
func (p *Pipeline) ValidBatches() (*BatchIter, error) {
	return p.batches(false)
}

// batches reads the split under the lock so it cannot race a concurrent
// Setup. The train epoch is shuffled, the validation epoch is sequential.
func (p *Pipeline) batches(train bool) (*BatchIter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.setup {
		return nil, errors.New("pipeline is not set up")
	}

	split := p.valid
	if train {
		split = p.train
	}

	order := make([]int, split.Len())
	for i := range order {
		order[i] = i
	}
	if train {
		p.rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	workers := p.cfg.Data.NumWorkers
	if workers < 1 {
		workers = 1
	}
	batchSize := p.cfg.Data.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	return &BatchIter{
		split:     split,
		collator:  p.collator,
		order:     order,
		batchSize: batchSize,
		workers:   workers,
	}, nil
}

// StateSnapshot returns the pipeline's persistable state. The pipeline
// carries none, so the snapshot is always empty.
func (p *Pipeline) StateSnapshot() map[string]any {
	return map[string]any{}
}

// RestoreState accepts a snapshot produced by StateSnapshot. Nothing is
// restored.
func (p *Pipeline) RestoreState(map[string]any) error {
	return nil
}

// Close releases the codec session, if any. Safe to call multiple times.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.codec == nil {
		return nil
	}
	err := p.codec.Close()
	p.codec = nil

	return err
}

// BatchIter walks one split in chunks of the batch size, keeping a partial
// final chunk. Use it scanner-style:
//
//	it, err := p.TrainBatches()
//	...
//	for it.Next(ctx) {
//	    b := it.Batch()
//	    ...
//	}
//	if err := it.Err(); err != nil { ... }
type BatchIter struct {
	split     *dataset.Split
	collator  *batch.Collator
	order     []int
	batchSize int
	workers   int

	pos int
	cur *batch.Batch
	err error
}

// Next materializes the next batch. It returns false when the epoch is
// exhausted or an error occurred; check Err afterwards.
func (it *BatchIter) Next(ctx context.Context) bool {
	if it.err != nil || it.pos >= len(it.order) {
		return false
	}

	end := it.pos + it.batchSize
	if end > len(it.order) {
		end = len(it.order)
	}
	indices := it.order[it.pos:end]
	it.pos = end

	samples := make([]dataset.Sample, len(indices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(it.workers)
	for slot, idx := range indices {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			smp, err := it.split.Sample(idx)
			if err != nil {
				return err
			}
			samples[slot] = smp

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		it.err = err
		return false
	}

	b, err := it.collator.Collate(ctx, samples)
	if err != nil {
		it.err = err
		return false
	}
	it.cur = b

	return true
}

// Batch returns the batch produced by the last successful Next.
func (it *BatchIter) Batch() *batch.Batch {
	return it.cur
}

// Err reports the first error encountered during iteration, if any.
func (it *BatchIter) Err() error {
	return it.err
}
