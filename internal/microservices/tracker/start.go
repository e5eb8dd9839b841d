package tracker

import (
	"github.com/gin-gonic/gin"

	"grocery-delivery/internal/auth"
	"grocery-delivery/internal/common/logger"
	"grocery-delivery/internal/microservices/tracker/handler"
	"grocery-delivery/internal/microservices/tracker/registry"
	"grocery-delivery/internal/microservices/tracker/service"
)

// Run mounts the live tracking endpoint. The registry is shared with the notificator.
func Run(r gin.IRouter, reg *registry.Registry, v auth.Verifier, opts handler.Options) {
	lg := logger.New("tracking-service")
	svc := service.NewTrackerService(reg, v, lg)
	h := handler.New(svc, opts, lg)
	h.Register(r)
	lg.Info("service_started", map[string]any{"route": "/ws"})
}
