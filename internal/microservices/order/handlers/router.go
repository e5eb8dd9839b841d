package handlers

import (
	"github.com/gin-gonic/gin"

	"grocery-delivery/internal/auth"
)

func (h *Handler) Register(r gin.IRouter, v auth.Verifier) {
	pedidos := r.Group("/pedidos")
	pedidos.Use(auth.RequireUser(v))
	{
		pedidos.POST("", h.OrderHandler.CreateOrder)
		pedidos.GET("", h.OrderHandler.ListMyOrders)
		pedidos.GET("/:id", h.OrderHandler.GetOrder)
		pedidos.GET("/:id/timeline", h.OrderHandler.GetTimeline)
		pedidos.PUT("/:id/status", auth.RequireAdmin(), h.OrderHandler.UpdateStatus)
	}

	admin := r.Group("/admin")
	admin.Use(auth.RequireUser(v), auth.RequireAdmin())
	{
		admin.GET("/pedidos", h.OrderHandler.ListAllOrders)
	}
}
