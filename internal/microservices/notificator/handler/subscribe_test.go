package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grocery-delivery/internal/auth"
	"grocery-delivery/internal/microservices/notificator/repository"
)

func newRouter(t *testing.T, key string) (*gin.Engine, *repository.MemorySubscriptionStore, *auth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := repository.NewMemorySubscriptionStore()
	jwt := auth.NewJWTService("sub-secret")
	r := gin.New()
	NewSubscriptionHandler(store, key, nil).Register(r, jwt)
	return r, store, jwt
}

func post(r http.Handler, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/subscribe", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubscribeStoresForCaller(t *testing.T) {
	r, store, jwt := newRouter(t, "pub")
	tok, err := jwt.Issue("U1", "customer")
	require.NoError(t, err)

	w := post(r, tok, `{"endpoint":"https://fcm.googleapis.com/fcm/send/abc","keys":{"p256dh":"BNc","auth":"tBH"}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	subs, err := store.ForUser(context.Background(), "U1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "BNc", subs[0].Keys.P256dh)
	assert.Equal(t, "U1", subs[0].UserID)
}

func TestSubscribeRejects(t *testing.T) {
	r, _, jwt := newRouter(t, "pub")
	tok, _ := jwt.Issue("U1", "customer")

	assert.Equal(t, http.StatusUnauthorized, post(r, "", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, tok, `{`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, tok, `{"endpoint":"http://insecure","keys":{"p256dh":"a","auth":"b"}}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, tok, `{"endpoint":"https://push.example/x","keys":{}}`).Code)
}

func TestVAPIDPublicKey(t *testing.T) {
	r, _, _ := newRouter(t, "BPub")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/vapid-public-key", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"publicKey":"BPub"}`, w.Body.String())

	r, _, _ = newRouter(t, "")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/vapid-public-key", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
