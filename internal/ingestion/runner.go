package ingestion

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"volatility-radar/internal/domain"
	"volatility-radar/internal/feed"
	"volatility-radar/internal/observability"
	"volatility-radar/internal/pipeline"
	"volatility-radar/internal/publish"
	"volatility-radar/internal/ranking"
)

// ErrSourceClosed is returned by Run when the batch source closes its channel.
var ErrSourceClosed = errors.New("batch source closed")

// BatchSource yields raw ticker batches and connection lifecycle events.
// *feed.Client satisfies it.
type BatchSource interface {
	Batches() <-chan []domain.RawTickerEvent
	Events() <-chan feed.Event
}

// Stats is a point-in-time view of the runner.
type Stats struct {
	BatchesProcessed uint64    `json:"batches_processed"`
	TickersReceived  uint64    `json:"tickers_received"`
	TickersRejected  uint64    `json:"tickers_rejected"`
	LastSequence     uint64    `json:"last_sequence"`
	LastBatchAt      time.Time `json:"last_batch_at"`
	FeedConnected    bool      `json:"feed_connected"`
	FeedDisconnects  uint64    `json:"feed_disconnects"`
	PublishErrors    uint64    `json:"publish_errors"`
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source BatchSource
	// Sink receives every snapshot. Optional.
	Sink publish.Sink
	// Lookup resolves circulating supply. Nil yields empty market-cap tables.
	Lookup ranking.SupplyLookup
	Config pipeline.Config
	Logger *zap.Logger
	// Clock defaults to time.Now().UTC().
	Clock func() time.Time
	// NewID defaults to uuid.NewString.
	NewID func() string
}

// Runner owns the batch loop: one batch is normalized, scored, ranked and
// published before the next one is received.
type Runner struct {
	source BatchSource
	sink   publish.Sink
	lookup ranking.SupplyLookup
	config pipeline.Config
	logger *zap.Logger
	clock  func() time.Time
	newID  func() string

	mu    sync.RWMutex
	stats Stats
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Runner{
		source: opts.Source,
		sink:   opts.Sink,
		lookup: opts.Lookup,
		config: opts.Config,
		logger: logger.Named("ingestion"),
		clock:  clock,
		newID:  newID,
	}
}

// Run processes batches until ctx is cancelled or the source closes.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return errors.New("runner has no batch source")
	}

	r.logger.Info("runner started",
		zap.String("quote_suffix", r.config.QuoteSuffix),
		zap.Float64("volatility_threshold", r.config.VolatilityThreshold),
		zap.Int("volatility_top_n", r.config.VolatilityTopN),
		zap.Int("market_cap_top_n", r.config.MarketCapTopN))

	batches := r.source.Batches()
	events := r.source.Events()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopping")
			return ctx.Err()

		case batch, ok := <-batches:
			if !ok {
				r.logger.Warn("batch source closed")
				return ErrSourceClosed
			}
			if _, err := r.ProcessBatch(ctx, batch); err != nil {
				r.logger.Warn("batch published with errors", zap.Error(err))
			}

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			r.handleEvent(ev)
		}
	}
}

// ProcessBatch computes a snapshot for batch and hands it to the sink.
// The snapshot is returned even when publishing fails.
func (r *Runner) ProcessBatch(ctx context.Context, batch []domain.RawTickerEvent) (*domain.Snapshot, error) {
	start := time.Now()
	res := pipeline.Run(r.config, batch, r.lookup)
	took := time.Since(start)

	for _, rej := range res.Rejections {
		observability.RecordRejection(rej.Field())
		r.logger.Debug("ticker rejected",
			zap.Int("index", rej.Index),
			zap.String("symbol", rej.Symbol),
			zap.Error(rej.Err))
	}
	if len(res.Rejections) > 0 {
		r.logger.Info("batch had rejected tickers",
			zap.Int("rejected", len(res.Rejections)),
			zap.Int("batch_size", res.BatchSize))
	}

	now := r.clock()

	r.mu.Lock()
	r.stats.BatchesProcessed++
	r.stats.TickersReceived += uint64(res.BatchSize)
	r.stats.TickersRejected += uint64(len(res.Rejections))
	r.stats.LastSequence++
	r.stats.LastBatchAt = now
	seq := r.stats.LastSequence
	r.mu.Unlock()

	snap := &domain.Snapshot{
		ID:         r.newID(),
		Sequence:   seq,
		ComputedAt: now,
		BatchSize:  res.BatchSize,
		Eligible:   res.Eligible,
		Rejected:   len(res.Rejections),
		Volatility: res.Volatility,
		MarketCap:  res.MarketCap,
	}

	observability.RecordBatch(res.BatchSize, res.Eligible, len(res.Volatility), len(res.MarketCap), took)

	if r.sink == nil {
		return snap, nil
	}
	if err := r.sink.Publish(ctx, snap); err != nil {
		r.mu.Lock()
		r.stats.PublishErrors++
		r.mu.Unlock()
		return snap, err
	}
	return snap, nil
}

// Stats returns a copy of the runner counters.
func (r *Runner) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

func (r *Runner) handleEvent(ev feed.Event) {
	switch ev.Type {
	case feed.EventConnected:
		observability.SetFeedConnected(true)
		r.setConnected(true)
		r.logger.Info("feed connected")
	case feed.EventDisconnected:
		observability.RecordFeedDisconnect()
		r.mu.Lock()
		r.stats.FeedConnected = false
		r.stats.FeedDisconnects++
		r.mu.Unlock()
		r.logger.Warn("feed disconnected", zap.Error(ev.Err))
	case feed.EventError:
		observability.RecordFeedError()
		r.logger.Warn("feed error", zap.Error(ev.Err))
	case feed.EventClosed:
		observability.SetFeedConnected(false)
		r.setConnected(false)
		r.logger.Info("feed closed")
	}
}

func (r *Runner) setConnected(up bool) {
	r.mu.Lock()
	r.stats.FeedConnected = up
	r.mu.Unlock()
}
