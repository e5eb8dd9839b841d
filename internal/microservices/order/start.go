package order

import (
	"github.com/gin-gonic/gin"

	"grocery-delivery/internal/auth"
	"grocery-delivery/internal/common/logger"
	"grocery-delivery/internal/microservices/order/handlers"
	"grocery-delivery/internal/microservices/order/repository"
	"grocery-delivery/internal/microservices/order/service"
)

// Run wires the order service onto r and returns it so other services can read orders.
func Run(r gin.IRouter, repo *repository.Repository, notifier service.Notifier, v auth.Verifier) *service.Service {
	lg := logger.New("order-service")
	// Initialize service
	svc := service.New(*repo, notifier, lg)
	handler := handlers.New(svc)
	handler.Register(r, v)
	lg.Info("service_started", map[string]any{"routes": "/pedidos,/admin/pedidos"})
	return svc
}
