package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grocery-delivery/internal/auth"
	"grocery-delivery/internal/config"
	"grocery-delivery/internal/domain"
	notirepo "grocery-delivery/internal/microservices/notificator/repository"
	orderrepo "grocery-delivery/internal/microservices/order/repository"
	"grocery-delivery/internal/trackclient"
)

type capturePush struct {
	mu   sync.Mutex
	sent []string
}

func (p *capturePush) Send(_ context.Context, sub domain.PushSubscription, _ []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sub.Endpoint)
	return http.StatusCreated, nil
}

func (p *capturePush) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

type env struct {
	srv    *httptest.Server
	app    *App
	orders *orderrepo.MemoryOrderRepository
	push   *capturePush
	jwt    *auth.JWTService
}

func newEnv(t *testing.T, checks map[string]HealthCheck) *env {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "e2e-secret"
	cfg.Server.Store = "memory"

	repo := orderrepo.NewMemory(domain.Product{ID: 1, Name: "Banana prata kg", Price: 699})
	jwt := auth.NewJWTService(cfg.Auth.JWTSecret)
	push := &capturePush{}
	a := New(cfg, Deps{
		Orders:        repo,
		Subscriptions: notirepo.NewMemorySubscriptionStore(),
		Push:          push,
		Verifier:      jwt,
		Checks:        checks,
	})

	ctx, cancel := context.WithCancel(context.Background())
	wait := a.StartWorker(ctx)
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		wait()
	})
	return &env{srv: srv, app: a, orders: repo.OrderRepo.(*orderrepo.MemoryOrderRepository), push: push, jwt: jwt}
}

func (e *env) token(t *testing.T, user, role string) string {
	t.Helper()
	tok, err := e.jwt.Issue(user, role)
	require.NoError(t, err)
	return tok
}

func (e *env) request(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *env) track(t *testing.T, token string, orderID int64) *trackclient.Session {
	t.Helper()
	s, err := trackclient.New(trackclient.Options{BaseURL: e.srv.URL, Token: token, OrderID: orderID, MinBackoff: 20 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Close)
	require.Eventually(t, func() bool { return s.State() == trackclient.Connected }, 2*time.Second, 5*time.Millisecond)
	return s
}

func (e *env) rawSocket(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	var ack domain.ControlMessage
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, domain.EventConnected, ack.Type)
	return conn
}

func noMessage(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, data, err := conn.ReadMessage()
	var ne interface{ Timeout() bool }
	require.True(t, errors.As(err, &ne) && ne.Timeout(), "unexpected frame %s (err %v)", data, err)
}

func TestStatusUpdateReachesOnlyTheTrackingConnection(t *testing.T) {
	e := newEnv(t, nil)
	e.orders.Seed(domain.Order{ID: 42, OwnerUserID: "U1", Status: domain.StatusReceived})
	e.orders.Seed(domain.Order{ID: 43, OwnerUserID: "U1", Status: domain.StatusReceived})
	u1 := e.token(t, "U1", "customer")

	on42 := e.track(t, u1, 42)
	on43 := e.track(t, u1, 43)
	unfiltered := e.rawSocket(t, u1)
	stranger := e.rawSocket(t, e.token(t, "U2", "customer"))

	resp := e.request(t, http.MethodPut, "/pedidos/42/status", e.token(t, "admin", auth.RoleAdmin), `{"status":"Em Preparo"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := e.orders.GetOrder(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPreparing, got.Status)

	require.Eventually(t, func() bool { return on42.Status() == domain.StatusPreparing }, 2*time.Second, 5*time.Millisecond)

	_ = unfiltered.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := unfiltered.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"STATUS_UPDATE","payload":{"pedidoId":42,"novoStatus":"Em Preparo"}}`, string(frame))

	noMessage(t, stranger)
	assert.Equal(t, domain.StatusReceived, on43.Status())
	assert.Zero(t, e.push.count())
}

func TestOfflineCustomerGetsPush(t *testing.T) {
	e := newEnv(t, nil)
	e.orders.Seed(domain.Order{ID: 7, OwnerUserID: "U9", Status: domain.StatusPreparing})

	resp := e.request(t, http.MethodPost, "/subscribe", e.token(t, "U9", "customer"),
		`{"endpoint":"https://push.example/u9","keys":{"p256dh":"p","auth":"a"}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = e.request(t, http.MethodPut, "/pedidos/7/status", e.token(t, "admin", auth.RoleAdmin), `{"status":"Saiu para Entrega"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Eventually(t, func() bool { return e.push.count() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestRejectedTransitionNotifiesNobody(t *testing.T) {
	e := newEnv(t, nil)
	e.orders.Seed(domain.Order{ID: 5, OwnerUserID: "U1", Status: domain.StatusDelivered})
	conn := e.rawSocket(t, e.token(t, "U1", "customer"))

	resp := e.request(t, http.MethodPut, "/pedidos/5/status", e.token(t, "admin", auth.RoleAdmin), `{"status":"Em Preparo"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	noMessage(t, conn)
}

func TestBadTokenNeverRegisters(t *testing.T) {
	e := newEnv(t, nil)
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws?token=garbage"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	var ce *websocket.CloseError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 4401, ce.Code)
	assert.Zero(t, e.app.Registry().Count())
}

func TestHealth(t *testing.T) {
	e := newEnv(t, map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
	})
	resp := e.request(t, http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])

	e = newEnv(t, map[string]HealthCheck{
		"rabbitmq": func(context.Context) error { return errors.New("connection closed") },
	})
	resp = e.request(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
