package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"grocery-delivery/internal/auth"
	"grocery-delivery/internal/common/httpx"
	"grocery-delivery/internal/common/logger"
	"grocery-delivery/internal/domain"
	"grocery-delivery/internal/microservices/notificator/repository"
)

type SubscriptionHandler struct {
	store          repository.SubscriptionStore
	vapidPublicKey string
	lg             *logger.Logger
}

func NewSubscriptionHandler(store repository.SubscriptionStore, vapidPublicKey string, lg *logger.Logger) *SubscriptionHandler {
	if lg == nil {
		lg = logger.Nop()
	}
	return &SubscriptionHandler{store: store, vapidPublicKey: vapidPublicKey, lg: lg}
}

func (h *SubscriptionHandler) Register(r gin.IRouter, v auth.Verifier) {
	r.GET("/vapid-public-key", h.PublicKey)
	r.POST("/subscribe", auth.RequireUser(v), h.Subscribe)
}

// Subscribe stores the browser PushSubscription JSON for the caller.
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	id, _ := auth.FromContext(c)

	var sub domain.PushSubscription
	if err := c.ShouldBindJSON(&sub); err != nil {
		httpx.WriteProblem(c, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}
	if u, err := url.Parse(sub.Endpoint); err != nil || u.Scheme != "https" || u.Host == "" {
		httpx.WriteError(c, domain.ValidationError("endpoint must be an https URL"))
		return
	}
	if sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		httpx.WriteError(c, domain.ValidationError("keys.p256dh and keys.auth are required"))
		return
	}
	sub.UserID = id.UserID

	if err := h.store.Save(c.Request.Context(), sub); err != nil {
		httpx.WriteError(c, err)
		return
	}
	h.lg.Info("push_subscription_saved", map[string]any{"user_id": id.UserID})
	c.JSON(http.StatusCreated, gin.H{"message": "subscribed"})
}

func (h *SubscriptionHandler) PublicKey(c *gin.Context) {
	if h.vapidPublicKey == "" {
		httpx.WriteProblem(c, http.StatusServiceUnavailable, "push_disabled", "web push is not configured")
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": h.vapidPublicKey})
}
