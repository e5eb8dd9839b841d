package dto

import "grocery-delivery/internal/domain"

type CreateOrderRequest struct {
	Items    []OrderItemInput `json:"itens"`
	Delivery domain.Delivery  `json:"entrega"`
	Payment  domain.Payment   `json:"pagamento"`
}

// OrderItemInput carries no price: the price is read from the catalog at creation time.
type OrderItemInput struct {
	ProductID int64 `json:"produtoId"`
	Quantity  int   `json:"quantidade"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type OrderListResponse struct {
	Orders []domain.Order `json:"pedidos"`
}

type TimelineResponse struct {
	OrderID int64                `json:"pedidoId"`
	Events  []domain.StatusEntry `json:"eventos"`
}
