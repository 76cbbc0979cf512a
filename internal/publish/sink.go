// Package publish delivers computed snapshots to downstream consumers.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"volatility-radar/internal/domain"
	"volatility-radar/internal/observability"
)

// Sink receives every computed snapshot.
type Sink interface {
	// Name labels the sink in logs and metrics.
	Name() string
	// Publish delivers one snapshot. The snapshot must not be modified.
	Publish(ctx context.Context, snap *domain.Snapshot) error
	// Close releases the sink's resources.
	Close() error
}

// Fanout publishes to several sinks in order. A failing sink does not stop the others.
type Fanout struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewFanout creates a Fanout over sinks. A nil logger discards logs.
func NewFanout(logger *zap.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{sinks: sinks, logger: logger.Named("publish")}
}

// Name implements Sink.
func (f *Fanout) Name() string { return "fanout" }

// Publish delivers snap to every sink and joins their errors.
func (f *Fanout) Publish(ctx context.Context, snap *domain.Snapshot) error {
	var errs []error
	for _, s := range f.sinks {
		start := time.Now()
		err := s.Publish(ctx, snap)
		observability.RecordPublish(s.Name(), time.Since(start), err)
		if err != nil {
			f.logger.Warn("publish failed",
				zap.String("sink", s.Name()),
				zap.Uint64("sequence", snap.Sequence),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

var _ Sink = (*Fanout)(nil)
