// Package trackclient follows one order: it pulls the current status over HTTP and layers
// live STATUS_UPDATE frames on top, reconnecting with backoff when the socket drops.
package trackclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"grocery-delivery/internal/common/logger"
	"grocery-delivery/internal/domain"
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// closeAuthFailed mirrors the server's handshake rejection code; it is not retried.
const closeAuthFailed = 4401

var ErrAuthRejected = errors.New("tracking socket rejected the token")

type Options struct {
	BaseURL    string // e.g. http://localhost:3000
	Token      string
	OrderID    int64
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Logger     *logger.Logger
}

// Update is one applied status change; Source is "pull" or "push".
type Update struct {
	Status domain.Status
	Source string
	At     time.Time
}

type Session struct {
	opts Options
	lg   *logger.Logger

	mu        sync.RWMutex
	state     State
	status    domain.Status
	timeline  []Update
	observers []func(domain.Status)
	conn      *websocket.Conn
	err       error

	cancel context.CancelFunc
	done   chan struct{}
}

func New(opts Options) (*Session, error) {
	if opts.BaseURL == "" || opts.Token == "" || opts.OrderID <= 0 {
		return nil, errors.New("trackclient: base url, token and order id are required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 30 * time.Second
	}
	lg := opts.Logger
	if lg == nil {
		lg = logger.Nop()
	}
	return &Session{opts: opts, lg: lg, done: make(chan struct{})}, nil
}

// OnStatus registers fn for every applied status, including the initial pull.
func (s *Session) OnStatus(fn func(domain.Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *Session) Status() domain.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Timeline() []Update {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Update(nil), s.timeline...)
}

// Err reports why the session stopped on its own, if it did.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Done is closed when the session has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start seeds the status with a pull, then keeps a live connection open in the background.
// A failed initial pull is returned and nothing is started.
func (s *Session) Start(ctx context.Context) error {
	if err := s.pull(ctx); err != nil {
		return err
	}
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
	return nil
}

// Close stops reconnecting, closes the socket and waits for the loop to exit.
func (s *Session) Close() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}
	<-s.done
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.setState(Disconnected)

	delay := s.opts.MinBackoff
	// Start pulled right before the first dial; any later dial may have missed changes
	resync := false
	for {
		s.setState(Connecting)
		conn, stop, err := s.connect(ctx)
		if err == nil {
			if resync {
				if err := s.pull(ctx); err != nil {
					s.lg.Warn("resync_failed", map[string]any{"order_id": s.opts.OrderID, "error": err.Error()})
				}
			}
			err = s.readLoop(conn, func() { delay = s.opts.MinBackoff })
			stop()
			s.setConn(nil)
			_ = conn.Close()
		}
		resync = true
		s.setState(Disconnected)

		if ctx.Err() != nil {
			return
		}
		var ce *websocket.CloseError
		if errors.As(err, &ce) && ce.Code == closeAuthFailed {
			s.fail(ErrAuthRejected)
			return
		}
		s.lg.Info("reconnect_scheduled", map[string]any{"order_id": s.opts.OrderID, "in": delay.String()})
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, s.opts.MaxBackoff)
	}
}

func (s *Session) readLoop(conn *websocket.Conn, onConnected func()) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg struct {
			Type    string             `json:"type"`
			Payload domain.LivePayload `json:"payload"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case domain.EventConnected:
			s.setState(Connected)
			onConnected()
		case domain.EventStatusUpdate:
			if msg.Payload.OrderID != s.opts.OrderID {
				continue
			}
			s.apply(msg.Payload.NewStatus, "push")
		}
	}
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(s.opts.BaseURL)
	if err != nil {
		return nil, err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{
		"token":    {s.opts.Token},
		"pedidoId": {strconv.FormatInt(s.opts.OrderID, 10)},
	}.Encode()

	conn, _, err := s.opts.Dialer.DialContext(ctx, u.String(), nil)
	return conn, err
}

// connect dials and ties the socket to ctx, so a Close racing the dial still unblocks readLoop.
func (s *Session) connect(ctx context.Context) (*websocket.Conn, func() bool, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	s.setConn(conn)
	return conn, stop, nil
}

func (s *Session) pull(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(s.opts.BaseURL, "/")+"/pedidos/"+strconv.FormatInt(s.opts.OrderID, 10), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.opts.Token)
	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("pull order %d: %w", s.opts.OrderID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pull order %d: unexpected status %s", s.opts.OrderID, resp.Status)
	}
	var o domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&o); err != nil {
		return fmt.Errorf("pull order %d: %w", s.opts.OrderID, err)
	}
	s.apply(o.Status, "pull")
	return nil
}

// apply only moves forward (or to Cancelado); a stale push or pull is dropped.
func (s *Session) apply(st domain.Status, source string) {
	s.mu.Lock()
	if st == s.status || !domain.Advances(s.status, st) {
		s.mu.Unlock()
		s.lg.Debug("status_ignored", map[string]any{"order_id": s.opts.OrderID, "status": string(st), "source": source})
		return
	}
	s.status = st
	s.timeline = append(s.timeline, Update{Status: st, Source: source, At: time.Now()})
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(st)
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *Session) setConn(c *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = c
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
