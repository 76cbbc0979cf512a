package replay

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectingEngine collects frames for verification.
type collectingEngine struct {
	frames []Frame
}

func (e *collectingEngine) OnFrame(_ context.Context, frame Frame) error {
	e.frames = append(e.frames, frame)
	return nil
}

const capture = `[{"s":"AUSDT","P":"2","c":"100"},{"s":"BUSDT","P":"-1","c":"5"}]

{"stream":"!ticker@arr","data":[{"s":"CUSDT","P":"4"}]}
{"s":"DUSDT","P":"1.5"}
`

func TestRunner_ReplaysFramesInOrder(t *testing.T) {
	engine := &collectingEngine{}

	stats, err := NewRunner(Options{}).Run(context.Background(), strings.NewReader(capture), engine)
	require.NoError(t, err)

	assert.Equal(t, Stats{Lines: 4, Frames: 3, Tickers: 4}, stats)
	require.Len(t, engine.frames, 3)

	assert.Equal(t, 1, engine.frames[0].Line)
	require.Len(t, engine.frames[0].Batch, 2)
	assert.Equal(t, "AUSDT", engine.frames[0].Batch[0].Symbol)
	assert.Equal(t, "BUSDT", engine.frames[0].Batch[1].Symbol)

	assert.Equal(t, 3, engine.frames[1].Line)
	assert.Equal(t, "CUSDT", engine.frames[1].Batch[0].Symbol)

	assert.Equal(t, 4, engine.frames[2].Line)
	assert.Equal(t, "DUSDT", engine.frames[2].Batch[0].Symbol)
}

func TestRunner_InvalidLineFails(t *testing.T) {
	input := "[{\"s\":\"AUSDT\"}]\nnot json\n[{\"s\":\"BUSDT\"}]\n"
	engine := &collectingEngine{}

	stats, err := NewRunner(Options{}).Run(context.Background(), strings.NewReader(input), engine)

	require.ErrorIs(t, err, ErrInvalidFrame)
	assert.Contains(t, err.Error(), "line 2")
	assert.Equal(t, 1, stats.Frames)
	assert.Len(t, engine.frames, 1)
}

func TestRunner_SkipInvalid(t *testing.T) {
	input := "[{\"s\":\"AUSDT\"}]\nnot json\n[{\"s\":\"BUSDT\"}]\n"
	engine := &collectingEngine{}

	stats, err := NewRunner(Options{SkipInvalid: true}).Run(context.Background(), strings.NewReader(input), engine)

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Frames)
	assert.Equal(t, 1, stats.Skipped)
	require.Len(t, engine.frames, 2)
	assert.Equal(t, 3, engine.frames[1].Line)
}

func TestRunner_EngineErrorStops(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	engine := EngineFunc(func(context.Context, Frame) error {
		calls++
		return boom
	})

	_, err := NewRunner(Options{}).Run(context.Background(), strings.NewReader(capture), engine)

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRunner_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(Options{}).Run(ctx, strings.NewReader(capture), &collectingEngine{})

	require.ErrorIs(t, err, context.Canceled)
}

func TestRunner_EmptyCapture(t *testing.T) {
	engine := &collectingEngine{}

	stats, err := NewRunner(Options{}).Run(context.Background(), &bytes.Buffer{}, engine)

	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
	assert.Empty(t, engine.frames)
}

func TestRunner_EmptyArrayIsAFrame(t *testing.T) {
	engine := &collectingEngine{}

	stats, err := NewRunner(Options{}).Run(context.Background(), strings.NewReader("[]\n"), engine)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Frames)
	require.Len(t, engine.frames, 1)
	assert.NotNil(t, engine.frames[0].Batch)
	assert.Empty(t, engine.frames[0].Batch)
}
