// Package feed streams committed audit events to websocket observers.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"otc-swaps/internal/domain"
	"otc-swaps/internal/observability"
)

// HubConfig configures the server side of the feed.
type HubConfig struct {
	// SendBuffer is the per-subscriber queue length. A subscriber whose queue is full is dropped.
	SendBuffer int
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// ReadTimeout is timeout for reading pong frames.
	ReadTimeout time.Duration
}

// DefaultHubConfig returns default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SendBuffer:   256,
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  60 * time.Second,
	}
}

// Filter selects events for one subscriber. Zero fields match everything.
type Filter struct {
	SwapID domain.Identity
	Seller domain.Identity
}

// Match reports whether e passes the filter.
func (f Filter) Match(e *domain.Event) bool {
	if !f.SwapID.IsZero() && e.SwapID != f.SwapID {
		return false
	}
	if !f.Seller.IsZero() && e.Seller != f.Seller {
		return false
	}
	return true
}

// ErrHubClosed is returned by Notify after Close.
var ErrHubClosed = errors.New("feed: hub closed")

type subscriber struct {
	conn   *websocket.Conn
	remote string
	filter Filter
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// Hub fans events out to websocket subscribers. It implements the engine's Notifier.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool

	wg sync.WaitGroup
}

// NewHub creates a hub. A nil config uses DefaultHubConfig.
func NewHub(config *HubConfig, logger *log.Logger) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[feed] ", log.LstdFlags)
	}

	return &Hub{
		config: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
		subs:   make(map[*subscriber]struct{}),
	}
}

// Subscribers returns the current number of subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// ServeHTTP upgrades the request and streams matching events until the peer goes away.
// Query parameters swap_id and seller narrow the stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}

	sub := &subscriber{
		conn:   conn,
		remote: r.RemoteAddr,
		filter: filter,
		send:   make(chan []byte, h.config.SendBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	h.subs[sub] = struct{}{}
	count := len(h.subs)
	h.mu.Unlock()
	observability.UpdateFeedSubscribers(count)

	h.wg.Add(2)
	go h.writeLoop(sub)
	go h.readLoop(sub)
}

func parseFilter(r *http.Request) (Filter, error) {
	var f Filter
	var err error
	q := r.URL.Query()
	if v := q.Get("swap_id"); v != "" {
		if f.SwapID, err = domain.ParseIdentity(v); err != nil {
			return f, err
		}
	}
	if v := q.Get("seller"); v != "" {
		if f.Seller, err = domain.ParseIdentity(v); err != nil {
			return f, err
		}
	}
	return f, nil
}

// Notify queues e for every matching subscriber. Never blocks on a slow peer.
func (h *Hub) Notify(_ context.Context, e *domain.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrHubClosed
	}
	var slow []*subscriber
	for sub := range h.subs {
		if !sub.filter.Match(e) {
			continue
		}
		select {
		case sub.send <- payload:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		observability.RecordFeedDrop()
		h.logger.Printf("dropping slow subscriber %s", sub.remote)
		h.remove(sub)
	}
	return nil
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	_, ok := h.subs[sub]
	delete(h.subs, sub)
	count := len(h.subs)
	h.mu.Unlock()

	if ok {
		observability.UpdateFeedSubscribers(count)
	}
	sub.stop()
}

// writeLoop owns all writes to the connection.
func (h *Hub) writeLoop(sub *subscriber) {
	defer h.wg.Done()
	defer sub.conn.Close()

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sub.done:
			sub.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			sub.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.remove(sub)
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(sub)
				return
			}
		}
	}
}

// readLoop drains control frames and notices when the peer disconnects.
func (h *Hub) readLoop(sub *subscriber) {
	defer h.wg.Done()

	sub.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			h.remove(sub)
			return
		}
	}
}

// Close disconnects every subscriber and rejects further events.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	subs := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.subs = make(map[*subscriber]struct{})
	h.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	h.wg.Wait()
	observability.UpdateFeedSubscribers(0)
	return nil
}
