package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"grocery-delivery/internal/auth"
	"grocery-delivery/internal/common/httpx"
	"grocery-delivery/internal/domain"
	dto "grocery-delivery/internal/microservices/order/domain/dto"
	"grocery-delivery/internal/microservices/order/service"
)

type OrderHandler struct {
	service service.OrderServiceInterface
}

func NewOrderHandler(s service.OrderServiceInterface) *OrderHandler {
	return &OrderHandler{service: s}
}

func (oh *OrderHandler) CreateOrder(c *gin.Context) {
	id, _ := auth.FromContext(c)

	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WriteProblem(c, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}

	o, err := oh.service.CreateOrder(c.Request.Context(), id.UserID, req)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (oh *OrderHandler) ListMyOrders(c *gin.Context) {
	id, _ := auth.FromContext(c)
	orders, err := oh.service.ListOrdersForUser(c.Request.Context(), id.UserID)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OrderListResponse{Orders: nonNil(orders)})
}

func (oh *OrderHandler) GetOrder(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	id, _ := auth.FromContext(c)
	o, err := oh.service.GetOrderFor(c.Request.Context(), orderID, id)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (oh *OrderHandler) GetTimeline(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	id, _ := auth.FromContext(c)
	events, err := oh.service.Timeline(c.Request.Context(), orderID, id)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	if events == nil {
		events = []domain.StatusEntry{}
	}
	c.JSON(http.StatusOK, dto.TimelineResponse{OrderID: orderID, Events: events})
}

// UpdateStatus is mounted behind RequireAdmin; the service checks the role again.
func (oh *OrderHandler) UpdateStatus(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WriteProblem(c, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return
	}
	id, _ := auth.FromContext(c)
	o, err := oh.service.UpdateStatus(c.Request.Context(), orderID, req.Status, id)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (oh *OrderHandler) ListAllOrders(c *gin.Context) {
	limit := atoiDefault(c.Query("limit"), 50)
	offset := atoiDefault(c.Query("offset"), 0)
	orders, err := oh.service.ListOrders(c.Request.Context(), limit, offset)
	if err != nil {
		httpx.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.OrderListResponse{Orders: nonNil(orders)})
}

func orderIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteProblem(c, http.StatusBadRequest, "validation_error", "invalid order id")
		return 0, false
	}
	return id, true
}

func atoiDefault(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}

func nonNil(orders []domain.Order) []domain.Order {
	if orders == nil {
		return []domain.Order{}
	}
	return orders
}
