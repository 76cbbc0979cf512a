package replay

import (
	"context"

	"volatility-radar/internal/domain"
)

// Frame is one captured feed message.
type Frame struct {
	// Line is the 1-based line number in the capture.
	Line  int
	Batch []domain.RawTickerEvent
}

// ReplayEngine processes frames in capture order.
type ReplayEngine interface {
	OnFrame(ctx context.Context, frame Frame) error
}

// EngineFunc adapts a function to ReplayEngine.
type EngineFunc func(ctx context.Context, frame Frame) error

// OnFrame calls f.
func (f EngineFunc) OnFrame(ctx context.Context, frame Frame) error {
	return f(ctx, frame)
}
