package handler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var errSocketClosed = errors.New("socket closed")

// wsSocket serialises writes on one gorilla connection; gorilla allows a single concurrent writer.
type wsSocket struct {
	id          string
	conn        *websocket.Conn
	orderID     int64
	sendTimeout time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newSocket(conn *websocket.Conn, orderID int64, sendTimeout time.Duration) *wsSocket {
	return &wsSocket{
		id:          uuid.NewString(),
		conn:        conn,
		orderID:     orderID,
		sendTimeout: sendTimeout,
		done:        make(chan struct{}),
	}
}

func (s *wsSocket) ID() string { return s.id }

func (s *wsSocket) Tracks(orderID int64) bool { return s.orderID == 0 || s.orderID == orderID }

func (s *wsSocket) Send(ctx context.Context, msg []byte) error {
	select {
	case <-s.done:
		return errSocketClosed
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(s.deadline(ctx))
	return s.conn.WriteMessage(websocket.TextMessage, msg)
}

func (s *wsSocket) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, s.deadline(context.Background()))
}

func (s *wsSocket) Close(code int, reason string) error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
		s.mu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *wsSocket) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(s.sendTimeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}
