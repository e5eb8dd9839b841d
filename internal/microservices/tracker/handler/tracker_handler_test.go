package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grocery-delivery/internal/auth"
	"grocery-delivery/internal/domain"
	"grocery-delivery/internal/microservices/tracker/registry"
	"grocery-delivery/internal/microservices/tracker/service"
)

type wsFixture struct {
	srv *httptest.Server
	reg *registry.Registry
	jwt *auth.JWTService
}

func newWSFixture(t *testing.T, opts Options) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := registry.New()
	jwt := auth.NewJWTService("ws-secret")
	r := gin.New()
	New(service.NewTrackerService(reg, jwt, nil), opts, nil).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &wsFixture{srv: srv, reg: reg, jwt: jwt}
}

func (f *wsFixture) url(query string) string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws" + query
}

func (f *wsFixture) token(t *testing.T, user string) string {
	tok, err := f.jwt.Issue(user, "customer")
	require.NoError(t, err)
	return tok
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readControl(t *testing.T, conn *websocket.Conn) domain.ControlMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg domain.ControlMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func requireAuthClose(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	require.True(t, errors.As(err, &ce), "expected close error, got %v", err)
	assert.Equal(t, CloseAuthFailed, ce.Code)
	assert.Equal(t, "authentication failed", ce.Text)
}

func TestQueryTokenRegistersSocket(t *testing.T) {
	f := newWSFixture(t, Options{})
	conn := dial(t, f.url("?token="+f.token(t, "U1")))

	assert.Equal(t, domain.EventConnected, readControl(t, conn).Type)
	require.Len(t, f.reg.LiveSocketsFor("U1"), 1)

	// the registered socket delivers to this client
	msg, _ := json.Marshal(domain.NewStatusUpdate(42, domain.StatusPreparing))
	require.NoError(t, f.reg.LiveSocketsFor("U1")[0].Send(context.Background(), msg))
	var got domain.LiveMessage
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, domain.NewStatusUpdate(42, domain.StatusPreparing), got)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return f.reg.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestAuthFrame(t *testing.T) {
	f := newWSFixture(t, Options{AuthTimeout: time.Second})
	conn := dial(t, f.url(""))
	require.NoError(t, conn.WriteJSON(domain.ControlMessage{Type: domain.EventAuth, Token: f.token(t, "U7")}))

	assert.Equal(t, domain.EventConnected, readControl(t, conn).Type)
	assert.Equal(t, []string{"U7"}, f.reg.Users())
}

func TestInvalidTokenIsRefused(t *testing.T) {
	f := newWSFixture(t, Options{})
	conn := dial(t, f.url("?token=not-a-jwt"))
	requireAuthClose(t, conn)
	assert.Zero(t, f.reg.Count())
}

func TestWrongFirstFrameIsRefused(t *testing.T) {
	f := newWSFixture(t, Options{AuthTimeout: time.Second})
	conn := dial(t, f.url(""))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"HELLO"}`)))
	requireAuthClose(t, conn)
	assert.Zero(t, f.reg.Count())
}

func TestAuthTimeout(t *testing.T) {
	f := newWSFixture(t, Options{AuthTimeout: 100 * time.Millisecond})
	conn := dial(t, f.url(""))
	requireAuthClose(t, conn)
	assert.Zero(t, f.reg.Count())
}

func TestOrderFilter(t *testing.T) {
	f := newWSFixture(t, Options{})
	conn := dial(t, f.url("?pedidoId=42&token="+f.token(t, "U1")))
	readControl(t, conn)

	socks := f.reg.LiveSocketsFor("U1")
	require.Len(t, socks, 1)
	assert.True(t, socks[0].Tracks(42))
	assert.False(t, socks[0].Tracks(43))
}
