package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"grocery-delivery/internal/common/logger"
	"grocery-delivery/internal/microservices/tracker/service"
)

type Handler struct {
	TrackerHandler *TrackerHandler
}

func New(svc service.TrackerServiceInterface, opts Options, lg *logger.Logger) *Handler {
	return &Handler{
		TrackerHandler: NewTrackerHandler(svc, opts, lg),
	}
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/ws", h.TrackerHandler.ServeWS)
	r.GET("/ws/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"live_connections": h.TrackerHandler.service.LiveCount()})
	})
}
