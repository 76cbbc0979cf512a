package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"volatility-radar/internal/domain"
	"volatility-radar/internal/feed"
)

// Recorder writes batches as capture lines that Runner can replay.
type Recorder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewRecorder creates a recorder writing to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: json.NewEncoder(w)}
}

// Record appends batch as one JSON array line.
func (r *Recorder) Record(batch []domain.RawTickerEvent) error {
	if batch == nil {
		batch = []domain.RawTickerEvent{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(batch); err != nil {
		return fmt.Errorf("record batch: %w", err)
	}
	return nil
}

// batchSource matches the feed client's read side.
type batchSource interface {
	Batches() <-chan []domain.RawTickerEvent
	Events() <-chan feed.Event
}

// RecordingSource forwards batches from a source after recording them.
// Recording failures are reported as feed error events and never drop a batch.
type RecordingSource struct {
	src      batchSource
	recorder *Recorder
	batches  chan []domain.RawTickerEvent
	events   chan feed.Event
}

// NewRecordingSource starts forwarding src. Output channels close when src's
// channels close or ctx is cancelled.
func NewRecordingSource(ctx context.Context, src batchSource, recorder *Recorder) *RecordingSource {
	s := &RecordingSource{
		src:      src,
		recorder: recorder,
		batches:  make(chan []domain.RawTickerEvent),
		events:   make(chan feed.Event, 16),
	}
	go s.forward(ctx)
	return s
}

// Batches returns the recorded batch stream.
func (s *RecordingSource) Batches() <-chan []domain.RawTickerEvent { return s.batches }

// Events returns the source's events plus recording errors.
func (s *RecordingSource) Events() <-chan feed.Event { return s.events }

func (s *RecordingSource) forward(ctx context.Context) {
	defer close(s.events)
	defer close(s.batches)

	batches := s.src.Batches()
	events := s.src.Events()

	for batches != nil || events != nil {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				batches = nil
				continue
			}
			if err := s.recorder.Record(batch); err != nil {
				s.emit(feed.Event{Type: feed.EventError, Err: err, At: time.Now()})
			}
			select {
			case s.batches <- batch:
			case <-ctx.Done():
				return
			}
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.emit(ev)
		}
	}
}

func (s *RecordingSource) emit(ev feed.Event) {
	select {
	case s.events <- ev:
	default:
	}
}
