package repository

import (
	"context"

	"grocery-delivery/internal/domain"
)

// OrderRepositoryInterface is the Order Store. UpdateStatusTx is the only status writer.
type OrderRepositoryInterface interface {
	CreateOrder(ctx context.Context, o domain.Order) (domain.Order, error)
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
	ListOrdersForUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListOrders(ctx context.Context, limit, offset int) ([]domain.Order, error)

	// UpdateStatusTx checks domain.CanTransition against the current row under a lock and
	// returns the previous status with the updated order.
	UpdateStatusTx(ctx context.Context, id int64, to domain.Status, changedBy string) (domain.Status, domain.Order, error)
	GetTimeline(ctx context.Context, id int64) ([]domain.StatusEntry, error)
}

type CatalogInterface interface {
	Product(ctx context.Context, id int64) (domain.Product, error)
}

type Repository struct {
	OrderRepo OrderRepositoryInterface
	Catalog   CatalogInterface
}
