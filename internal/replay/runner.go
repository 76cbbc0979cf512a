package replay

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"volatility-radar/internal/feed"
)

// MaxLineSize bounds one capture line. A full-market ticker array is well below it.
const MaxLineSize = 16 << 20

// Options configures a Runner.
type Options struct {
	// SkipInvalid logs and skips undecodable lines instead of failing.
	SkipInvalid bool
	Logger      *zap.Logger
}

// Stats summarizes a replay.
type Stats struct {
	Lines   int `json:"lines"`
	Frames  int `json:"frames"`
	Tickers int `json:"tickers"`
	Skipped int `json:"skipped"`
}

// Runner reads a capture and replays its frames in order.
// A capture holds one feed message per line, in any shape feed.DecodeBatch accepts.
// Blank lines are ignored.
type Runner struct {
	skipInvalid bool
	logger      *zap.Logger
}

// NewRunner creates a new replay runner.
func NewRunner(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		skipInvalid: opts.SkipInvalid,
		logger:      logger.Named("replay"),
	}
}

// Run replays every frame of r through engine.
// It stops at the first engine error, the first invalid line unless
// SkipInvalid is set, or when ctx is cancelled.
func (rn *Runner) Run(ctx context.Context, r io.Reader, engine ReplayEngine) (Stats, error) {
	var stats Stats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Lines++

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		batch, err := feed.DecodeBatch(line)
		if err != nil {
			if rn.skipInvalid {
				stats.Skipped++
				rn.logger.Warn("skipping invalid line", zap.Int("line", stats.Lines), zap.Error(err))
				continue
			}
			return stats, fmt.Errorf("%w: line %d: %v", ErrInvalidFrame, stats.Lines, err)
		}

		stats.Frames++
		stats.Tickers += len(batch)
		if err := engine.OnFrame(ctx, Frame{Line: stats.Lines, Batch: batch}); err != nil {
			return stats, fmt.Errorf("line %d: %w", stats.Lines, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read capture: %w", err)
	}

	return stats, nil
}
