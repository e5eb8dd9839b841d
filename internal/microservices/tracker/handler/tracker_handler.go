package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"grocery-delivery/internal/common/logger"
	"grocery-delivery/internal/domain"
	"grocery-delivery/internal/microservices/tracker/service"
)

// CloseAuthFailed is the close code sent when the handshake token is missing or invalid.
const CloseAuthFailed = 4401

type Options struct {
	AuthTimeout    time.Duration
	SendTimeout    time.Duration
	PingInterval   time.Duration
	AllowedOrigins []string
}

type TrackerHandler struct {
	service  service.TrackerServiceInterface
	opts     Options
	upgrader websocket.Upgrader
	lg       *logger.Logger
}

func NewTrackerHandler(svc service.TrackerServiceInterface, opts Options, lg *logger.Logger) *TrackerHandler {
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = 5 * time.Second
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 2 * time.Second
	}
	if lg == nil {
		lg = logger.Nop()
	}
	h := &TrackerHandler{service: svc, opts: opts, lg: lg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// ServeWS upgrades, authenticates, registers and then blocks in the read loop until the
// peer goes away.
func (h *TrackerHandler) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.lg.Debug("ws_upgrade_failed", map[string]any{"error": err.Error()})
		return
	}

	orderID, _ := strconv.ParseInt(c.Query("pedidoId"), 10, 64)
	token := c.Query("token")
	if token == "" {
		token, err = h.awaitAuthFrame(conn)
		if err != nil {
			h.reject(conn, err)
			return
		}
	}
	id, err := h.service.Authenticate(token)
	if err != nil {
		h.reject(conn, err)
		return
	}

	sock := newSocket(conn, max(orderID, 0), h.opts.SendTimeout)
	h.service.Attach(id.UserID, sock)
	defer func() {
		h.service.Detach(id.UserID, sock)
		_ = sock.Close(websocket.CloseNormalClosure, "")
	}()

	ack, _ := json.Marshal(domain.ControlMessage{Type: domain.EventConnected})
	if err := sock.Send(c.Request.Context(), ack); err != nil {
		return
	}
	h.lg.Info("socket_connected", map[string]any{"user_id": id.UserID, "conn_id": sock.ID(), "pedido_id": orderID})

	if h.opts.PingInterval > 0 {
		go h.pingLoop(sock)
	}
	h.readLoop(conn)
	h.lg.Info("socket_disconnected", map[string]any{"user_id": id.UserID, "conn_id": sock.ID()})
}

func (h *TrackerHandler) awaitAuthFrame(conn *websocket.Conn) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.AuthTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", domain.AuthenticationError("no AUTH frame before timeout")
	}
	_ = conn.SetReadDeadline(time.Time{})

	var msg domain.ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != domain.EventAuth {
		return "", domain.AuthenticationError("first frame must be AUTH")
	}
	return msg.Token, nil
}

func (h *TrackerHandler) reject(conn *websocket.Conn, err error) {
	var aerr domain.AuthenticationError
	if !errors.As(err, &aerr) {
		err = domain.AuthenticationError(err.Error())
	}
	h.lg.Info("socket_rejected", map[string]any{"reason": err.Error()})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(CloseAuthFailed, "authentication failed"),
		time.Now().Add(time.Second))
	_ = conn.Close()
}

// readLoop discards client frames; it exists to process pong and close frames.
func (h *TrackerHandler) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(4096)
	if h.opts.PingInterval > 0 {
		wait := 2 * h.opts.PingInterval
		_ = conn.SetReadDeadline(time.Now().Add(wait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wait))
		})
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *TrackerHandler) pingLoop(sock *wsSocket) {
	t := time.NewTicker(h.opts.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-sock.done:
			return
		case <-t.C:
			if err := sock.ping(); err != nil {
				return
			}
		}
	}
}

func (h *TrackerHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range h.opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
