package service

import (
	"grocery-delivery/internal/common/logger"
	"grocery-delivery/internal/microservices/order/repository"
)

type Service struct {
	OrderService OrderServiceInterface
}

func New(repo repository.Repository, notifier Notifier, lg *logger.Logger) *Service {
	return &Service{
		OrderService: NewOrderService(repo.OrderRepo, repo.Catalog, notifier, lg),
	}
}
