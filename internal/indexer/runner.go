package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tokenSync/internal/ledger"
	"tokenSync/internal/model"
	"tokenSync/internal/storage"
	"tokenSync/internal/token"
)

// BlockSource is the ledger collaborator supplying blocks.
type BlockSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockWithReceipts(ctx context.Context, number uint64) (model.Block, error)
}

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	// ToBlock is the last block to sync (inclusive); 0 means the chain head.
	ToBlock      uint64
	BatchSize    uint64
	Follow       bool
	PollInterval time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Pipeline bundles the per-event stages: classify, probe, decode, reconcile.
type Pipeline struct {
	Classifier *token.EventClassifier
	Decoder    *token.TransferDecoder
	Contracts  *token.ContractClassifier
	Reconciler *ledger.Reconciler
}

// Runner streams blocks from the ledger and applies their transfers to the store.
type Runner struct {
	cfg      RunConfig
	chain    BlockSource
	store    storage.Store
	cursor   *SyncCursor
	pipeline Pipeline
	journal  *storage.Journal
	metrics  *Metrics
	retry    retryPolicy
	logger   *zap.Logger
}

// NewRunner builds a Runner with its dependencies. journal and metrics may be nil.
func NewRunner(cfg RunConfig, chainSource BlockSource, store storage.Store, pipeline Pipeline, journal *storage.Journal, metrics *Metrics, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Runner{
		cfg:      cfg,
		chain:    chainSource,
		store:    store,
		cursor:   NewSyncCursor(store),
		pipeline: pipeline,
		journal:  journal,
		metrics:  metrics,
		retry:    newRetryPolicy(cfg.MaxRetries, cfg.RetryBackoff),
		logger:   logger,
	}
}

type plannedTransfer struct {
	event  model.RawEvent
	record model.TransferRecord
}

// Run syncs from the block after the cursor up to the target block, one unit
// of work per block. It stops on the first error.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.store == nil {
		return fmt.Errorf("store is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if r.pipeline.Classifier == nil || r.pipeline.Decoder == nil || r.pipeline.Contracts == nil || r.pipeline.Reconciler == nil {
		return fmt.Errorf("pipeline is incomplete")
	}

	for {
		last, err := r.cursor.Read(ctx)
		if err != nil {
			if errors.Is(err, model.ErrSyncNotInitialized) {
				return fmt.Errorf("%w: seed it with init-cursor", err)
			}
			return err
		}

		target, err := r.targetBlock(ctx)
		if err != nil {
			return err
		}

		if last < target {
			if err := r.syncRange(ctx, last+1, target); err != nil {
				return err
			}
		} else if !r.following() {
			r.logger.Info("nothing to sync", zap.Uint64("last_synced", last), zap.Uint64("target", target))
		}

		if !r.following() {
			return nil
		}

		timer := time.NewTimer(r.pollInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *Runner) following() bool {
	return r.cfg.Follow && r.cfg.ToBlock == 0
}

func (r *Runner) pollInterval() time.Duration {
	if r.cfg.PollInterval <= 0 {
		return 5 * time.Second
	}
	return r.cfg.PollInterval
}

func (r *Runner) targetBlock(ctx context.Context) (uint64, error) {
	if r.cfg.ToBlock != 0 {
		return r.cfg.ToBlock, nil
	}
	var latest uint64
	err := r.retry.do(ctx, func(ctx context.Context) error {
		var err error
		latest, err = r.chain.LatestBlockNumber(ctx)
		if err != nil {
			r.logger.Warn("latest block fetch failed", zap.Error(err))
		}
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("get latest block: %w", err)
	}
	return latest, nil
}

func (r *Runner) syncRange(ctx context.Context, from, to uint64) error {
	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		started := time.Now()
		for number := blockRange.From; number <= blockRange.To; number++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			block, err := r.fetchBlockWithRetry(ctx, number)
			if err != nil {
				return fmt.Errorf("fetch block %d: %w", number, err)
			}
			if err := r.ProcessBlock(ctx, block); err != nil {
				return err
			}
		}
		r.logger.Info("batch complete",
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
			zap.Uint64("blocks", blockRange.Len()),
			zap.Duration("elapsed", time.Since(started)),
		)
	}
	return nil
}

func (r *Runner) fetchBlockWithRetry(ctx context.Context, number uint64) (model.Block, error) {
	var block model.Block
	err := r.retry.do(ctx, func(ctx context.Context) error {
		var err error
		block, err = r.chain.BlockWithReceipts(ctx, number)
		if err != nil {
			r.logger.Warn("block fetch failed", zap.Error(err), zap.Uint64("block", number))
		}
		return err
	})
	return block, err
}

// ProcessBlock decodes every event of the block, then applies the transfers
// and advances the cursor in a single unit of work. On any error nothing from
// the block is persisted.
func (r *Runner) ProcessBlock(ctx context.Context, block model.Block) (err error) {
	started := time.Now()
	defer func() {
		status := "committed"
		if err != nil {
			status = "aborted"
		}
		r.metrics.blocksTotal.WithLabelValues(status).Inc()
		r.metrics.blockDuration.Observe(time.Since(started).Seconds())
	}()

	planned, err := r.plan(ctx, block)
	if err != nil {
		return fmt.Errorf("block %d: %w", block.Number, err)
	}

	uow, err := r.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("block %d: begin: %w", block.Number, err)
	}
	defer func() {
		if rbErr := uow.Rollback(ctx); rbErr != nil {
			r.logger.Error("rollback failed", zap.Error(rbErr), zap.Uint64("block", block.Number))
		}
	}()

	for _, p := range planned {
		if err := r.pipeline.Reconciler.Apply(ctx, uow, p.record); err != nil {
			r.metrics.eventsTotal.WithLabelValues(p.record.Kind().String(), "rejected").Inc()
			return fmt.Errorf("block %d tx %s event %d: %w", block.Number, p.event.TxHash.Hex(), p.event.EventIndex, err)
		}
	}
	if err := r.cursor.Advance(ctx, uow, block.Number); err != nil {
		return fmt.Errorf("block %d: %w", block.Number, err)
	}
	if err := uow.Commit(ctx); err != nil {
		return fmt.Errorf("block %d: commit: %w", block.Number, err)
	}

	r.metrics.lastSynced.Set(float64(block.Number))
	committedAt := time.Now()
	var entries []model.JournalEntry
	for _, p := range planned {
		r.metrics.eventsTotal.WithLabelValues(p.record.Kind().String(), "applied").Inc()
		if r.journal != nil {
			entries = append(entries, buildJournalEntries(block, p.event, p.record, committedAt)...)
		}
	}
	if err := r.journal.Append(entries); err != nil {
		r.logger.Warn("journal append failed", zap.Error(err), zap.Uint64("block", block.Number))
	}

	r.logger.Debug("block committed",
		zap.Uint64("block", block.Number),
		zap.Int("transfers", len(planned)),
	)
	return nil
}

// plan classifies, probes and decodes the block's events in emission order.
func (r *Runner) plan(ctx context.Context, block model.Block) ([]plannedTransfer, error) {
	var planned []plannedTransfer
	for _, event := range block.Events() {
		kind := r.pipeline.Classifier.Classify(event.Keys)
		if kind == model.KindUnrecognized {
			continue
		}

		var matches bool
		err := r.retry.do(ctx, func(ctx context.Context) error {
			var err error
			matches, err = r.pipeline.Contracts.Matches(ctx, kind, event.FromAddress, block.Number)
			return err
		})
		if err != nil {
			return nil, err
		}
		if !matches {
			r.metrics.eventsTotal.WithLabelValues(kind.String(), "not_a_match").Inc()
			continue
		}

		record, err := r.pipeline.Decoder.Decode(kind, event)
		if err != nil {
			r.metrics.eventsTotal.WithLabelValues(kind.String(), "malformed").Inc()
			return nil, err
		}
		planned = append(planned, plannedTransfer{event: event, record: record})
	}
	return planned, nil
}
