package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"otc-swaps/internal/domain"
)

// ClientConfig configures watch client behavior.
type ClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the capacity of the events channel.
	Buffer int
}

// DefaultClientConfig returns default watch client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
		Buffer:            1024,
	}
}

// Client follows a hub's event stream, reconnecting with exponential backoff.
type Client struct {
	endpoint string
	config   ClientConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	events chan *domain.Event
	errs   chan error

	done chan struct{}
	wg   sync.WaitGroup
}

// Dial connects to endpoint (ws:// or wss://), narrowed by filter.
func Dial(ctx context.Context, endpoint string, filter Filter, config *ClientConfig) (*Client, error) {
	cfg := DefaultClientConfig()
	if config != nil {
		cfg = *config
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	if !filter.SwapID.IsZero() {
		q.Set("swap_id", filter.SwapID.String())
	}
	if !filter.Seller.IsZero() {
		q.Set("seller", filter.Seller.String())
	}
	u.RawQuery = q.Encode()

	c := &Client{
		endpoint: u.String(),
		config:   cfg,
		events:   make(chan *domain.Event, cfg.Buffer),
		errs:     make(chan error, 16),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// Events returns the stream of received events. Closed after Close.
func (c *Client) Events() <-chan *domain.Event {
	return c.events
}

// Errors reports decode and connection errors. Never blocks the reader; excess errors are discarded.
func (c *Client) Errors() <-chan error {
	return c.errs
}

func (c *Client) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

func (c *Client) reportErr(err error) {
	select {
	case c.errs <- err:
	default:
	}
}

// readLoop decodes events and reconnects on connection loss.
func (c *Client) readLoop() {
	defer c.wg.Done()
	defer close(c.events)

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.reconnect(reconnectDelay) {
				return
			}
			reconnectDelay = min(reconnectDelay*2, c.config.MaxReconnectDelay)
			continue
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		conn.SetPingHandler(func(data string) error {
			conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
			c.connMu.Lock()
			defer c.connMu.Unlock()
			return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(c.config.WriteTimeout))
		})

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.reportErr(fmt.Errorf("read: %w", err))

			c.connMu.Lock()
			if c.conn == conn {
				c.conn.Close()
				c.conn = nil
			}
			c.connMu.Unlock()
			continue
		}

		// Reset delay on successful read
		reconnectDelay = c.config.ReconnectDelay

		var e domain.Event
		if err := json.Unmarshal(message, &e); err != nil {
			c.reportErr(fmt.Errorf("decode event: %w", err))
			continue
		}

		select {
		case c.events <- &e:
		case <-c.done:
			return
		}
	}
}

// reconnect waits delay then dials once. Returns false when the client is closing.
func (c *Client) reconnect(delay time.Duration) bool {
	select {
	case <-c.done:
		return false
	case <-time.After(delay):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.reportErr(err)
	}
	return !c.closed.Load()
}

// pingLoop keeps the connection alive through idle proxies.
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
				c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout))
			}
			c.connMu.Unlock()
		}
	}
}

// Close closes the connection and the events channel.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	return nil
}
