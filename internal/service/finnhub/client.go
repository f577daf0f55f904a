package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"StockWatch/internal/domain/models"
	drepo "StockWatch/internal/domain/repository"
	"StockWatch/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements a QuoteStream backed by the Finnhub WebSocket.
// Subscriptions are remembered so Reconnect restores them.
type Client struct {
	apiKey         string
	websocketURL   string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	logger         *logger.Logger

	mu        sync.Mutex // guards conn, connected, symbols and writes
	conn      *websocket.Conn
	connected bool
	symbols   map[string]struct{}
}

// New creates a new Finnhub QuoteStream.
func New(lgr *logger.Logger, apiKey, websocketURL string, reconnectDelay, pingInterval time.Duration) *Client {
	if lgr == nil {
		lgr = logger.Nop()
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		logger:         lgr,
		symbols:        make(map[string]struct{}),
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.websocketURL)
	if err != nil {
		return fmt.Errorf("finnhub url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.apiKey)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("finnhub connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.logger.Info("finnhub connected", logger.String("url", c.websocketURL))
	return nil
}

// Subscribe adds symbols to the live feed. Symbols are remembered even while disconnected.
func (c *Client) Subscribe(_ context.Context, symbols ...string) error {
	return c.send("subscribe", symbols, func(s string) { c.symbols[s] = struct{}{} })
}

// Unsubscribe removes symbols from the live feed.
func (c *Client) Unsubscribe(_ context.Context, symbols ...string) error {
	return c.send("unsubscribe", symbols, func(s string) { delete(c.symbols, s) })
}

func (c *Client) send(kind string, symbols []string, track func(string)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range symbols {
		track(s)
	}
	if c.conn == nil || !c.connected {
		return nil
	}
	for _, s := range symbols {
		if err := c.conn.WriteJSON(map[string]string{"type": kind, "symbol": s}); err != nil {
			return fmt.Errorf("%s %s: %w", kind, s, err)
		}
		c.logger.Debug("finnhub "+kind, logger.String("symbol", s))
	}
	return nil
}

// Symbols returns the currently subscribed symbols.
func (c *Client) Symbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.symbols))
	for s := range c.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

type fhTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type fhMessage struct {
	Type string    `json:"type"`
	Data []fhTrade `json:"data"`
}

// Read streams Trade events and errors. Both channels close when the read loop ends.
func (c *Client) Read(ctx context.Context) (<-chan *models.Trade, <-chan error) {
	trades := make(chan *models.Trade, 1024)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	done := make(chan struct{})
	go c.pingLoop(ctx, done)

	go func() {
		defer close(done)
		defer close(trades)
		defer close(errs)
		if conn == nil {
			errs <- fmt.Errorf("finnhub not connected")
			return
		}
		for {
			if ctx.Err() != nil {
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				errs <- fmt.Errorf("finnhub read: %w", err)
				return
			}
			var m fhMessage
			if err := json.Unmarshal(b, &m); err != nil || m.Type != "trade" {
				continue
			}
			for _, d := range m.Data {
				trade := &models.Trade{Symbol: d.S, Timestamp: d.T / 1000, Price: d.P, Volume: d.V}
				select {
				case trades <- trade:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return trades, errs
}

func (c *Client) pingLoop(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.conn != nil {
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.mu.Unlock()
		}
	}
}

// Reconnect closes, waits reconnectDelay, reconnects and restores subscriptions.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-time.After(c.reconnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx, c.Symbols()...)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

var _ drepo.QuoteStream = (*Client)(nil)
