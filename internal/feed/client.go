// Package feed streams ticker batches from a Binance-compatible WebSocket endpoint.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"volatility-radar/internal/domain"
)

// DefaultURL is the all-market rolling ticker stream.
const DefaultURL = "wss://stream.binance.com:9443/ws/!ticker@arr"

// ErrClosed is returned when using a client after Close.
var ErrClosed = errors.New("feed client closed")

// Config configures WebSocket client behavior.
type Config struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential backoff.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages. The feed pushes every second.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing control frames.
	WriteTimeout time.Duration
	// BatchBuffer is the capacity of the Batches channel.
	BatchBuffer int
}

// DefaultConfig returns default WebSocket configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		BatchBuffer:       64,
	}
}

// EventType is a connection lifecycle transition.
type EventType string

const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventError        EventType = "error"
	EventClosed       EventType = "closed"
)

// Event reports a lifecycle transition. Err is set for disconnected and error events.
type Event struct {
	Type EventType
	Err  error
	At   time.Time
}

// Client reads ticker batches from one stream URL, reconnecting with
// exponential backoff until Close.
type Client struct {
	url    string
	config Config
	logger *zap.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	batches chan []domain.RawTickerEvent
	events  chan Event

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup
}

// NewClient dials url and starts the read and ping loops.
// A nil config uses DefaultConfig, a nil logger discards logs.
func NewClient(ctx context.Context, url string, config *Config, logger *zap.Logger) (*Client, error) {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.BatchBuffer < 0 {
		cfg.BatchBuffer = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		url:     url,
		config:  cfg,
		logger:  logger.Named("feed"),
		batches: make(chan []domain.RawTickerEvent, cfg.BatchBuffer),
		events:  make(chan Event, 16),
		done:    make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// Batches delivers one decoded message per receive. Closed after Close.
func (c *Client) Batches() <-chan []domain.RawTickerEvent {
	return c.batches
}

// Events delivers lifecycle transitions. Slow readers miss events rather than
// stalling the read loop. Closed after Close.
func (c *Client) Events() <-chan Event {
	return c.events
}

// connect establishes WebSocket connection.
func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.closed.Load() {
		return ErrClosed
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	})

	c.conn = conn
	c.logger.Info("connected", zap.String("url", c.url))
	c.emit(EventConnected, nil)
	return nil
}

// Close stops the loops, closes the connection and both channels.
// Safe to call more than once.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	c.wg.Wait()

	c.emit(EventClosed, nil)
	close(c.batches)
	close(c.events)
	c.logger.Info("closed")
	return nil
}

// readLoop reads messages and forwards decoded batches.
func (c *Client) readLoop() {
	defer c.wg.Done()

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.reconnect() {
				return
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.Warn("read failed", zap.Error(err))
			c.emit(EventDisconnected, err)

			c.connMu.Lock()
			if c.conn == conn {
				c.conn.Close()
				c.conn = nil
			}
			c.connMu.Unlock()
			continue
		}

		batch, err := DecodeBatch(message)
		if err != nil {
			c.logger.Warn("skipping message", zap.Error(err), zap.Int("bytes", len(message)))
			c.emit(EventError, err)
			continue
		}

		// Block until the consumer takes the batch; never drop data.
		select {
		case c.batches <- batch:
		case <-c.done:
			return
		}
	}
}

// reconnect dials until it succeeds or the client closes.
// Delay doubles after each failure up to MaxReconnectDelay.
func (c *Client) reconnect() bool {
	delay := c.config.ReconnectDelay

	for attempt := 1; ; attempt++ {
		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.connect(ctx)
		cancel()

		if err == nil {
			return true
		}
		if errors.Is(err, ErrClosed) {
			return false
		}

		c.logger.Warn("reconnect failed",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		c.emit(EventError, err)

		delay *= 2
		if delay > c.config.MaxReconnectDelay {
			delay = c.config.MaxReconnectDelay
		}
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Reader notices the dead connection and reconnects.
					c.logger.Debug("ping failed", zap.Error(err))
				}
			}
			c.connMu.Unlock()
		}
	}
}

func (c *Client) emit(t EventType, err error) {
	select {
	case c.events <- Event{Type: t, Err: err, At: time.Now().UTC()}:
	default:
	}
}
