package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"grocery-delivery/internal/auth"
	"grocery-delivery/internal/common/logger"
	"grocery-delivery/internal/domain"
	"grocery-delivery/internal/metrics"
	dto "grocery-delivery/internal/microservices/order/domain/dto"
	"grocery-delivery/internal/microservices/order/repository"
)

// Notifier receives every committed status change. Emit must not block for long.
type Notifier interface {
	Emit(change domain.StatusChange) error
}

type OrderServiceInterface interface {
	CreateOrder(ctx context.Context, userID string, req dto.CreateOrderRequest) (domain.Order, error)
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
	GetOrderFor(ctx context.Context, id int64, viewer auth.Identity) (domain.Order, error)
	ListOrdersForUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListOrders(ctx context.Context, limit, offset int) ([]domain.Order, error)
	Timeline(ctx context.Context, id int64, viewer auth.Identity) ([]domain.StatusEntry, error)
	UpdateStatus(ctx context.Context, orderID int64, newStatus string, actor auth.Identity) (domain.Order, error)
}

type OrderService struct {
	db       repository.OrderRepositoryInterface
	catalog  repository.CatalogInterface
	notifier Notifier
	lg       *logger.Logger
}

func NewOrderService(db repository.OrderRepositoryInterface, catalog repository.CatalogInterface, notifier Notifier, lg *logger.Logger) *OrderService {
	if lg == nil {
		lg = logger.Nop()
	}
	return &OrderService{db: db, catalog: catalog, notifier: notifier, lg: lg}
}

const maxItemQuantity = 999

func (s *OrderService) CreateOrder(ctx context.Context, userID string, req dto.CreateOrderRequest) (domain.Order, error) {
	// 1. Basic validation
	if userID == "" {
		return domain.Order{}, domain.AuthenticationError("missing user")
	}
	if len(req.Items) == 0 {
		return domain.Order{}, domain.ValidationError("at least one item is required")
	}
	if !req.Payment.Method.Valid() {
		return domain.Order{}, domain.ValidationError("invalid payment method")
	}
	delivery := req.Delivery
	delivery.Address = strings.TrimSpace(delivery.Address)
	if delivery.Pickup {
		delivery.Address = ""
	} else if delivery.Address == "" {
		return domain.Order{}, domain.ValidationError("delivery address is required unless picking up in store")
	}

	// 2. Snapshot current catalog prices
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, in := range req.Items {
		if in.Quantity <= 0 || in.Quantity > maxItemQuantity {
			return domain.Order{}, domain.ValidationError(fmt.Sprintf("invalid quantity for product %d", in.ProductID))
		}
		p, err := s.catalog.Product(ctx, in.ProductID)
		if err != nil {
			var nf domain.NotFoundError
			if errors.As(err, &nf) {
				return domain.Order{}, domain.ValidationError(nf.Error())
			}
			return domain.Order{}, err
		}
		items = append(items, domain.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    in.Quantity,
			UnitPrice:   p.Price,
		})
	}
	total := domain.SumItems(items)

	// 3. Change is only meaningful for cash
	payment := req.Payment
	if payment.ChangeFor != nil {
		if payment.Method != domain.PaymentCash {
			return domain.Order{}, domain.ValidationError("change is only allowed for cash payments")
		}
		if *payment.ChangeFor < total {
			return domain.Order{}, domain.ValidationError("change amount is lower than the order total")
		}
	}

	// 4. Save
	o, err := s.db.CreateOrder(ctx, domain.Order{
		OwnerUserID: userID,
		Status:      domain.StatusReceived,
		Items:       items,
		TotalValue:  total,
		Delivery:    delivery,
		Payment:     payment,
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to save order: %w", err)
	}
	s.lg.Info("order_created", map[string]any{"order_id": o.ID, "user_id": userID, "total": total, "items": len(items)})
	return o, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	return s.db.GetOrder(ctx, id)
}

// GetOrderFor returns the order only to its owner or an admin.
func (s *OrderService) GetOrderFor(ctx context.Context, id int64, viewer auth.Identity) (domain.Order, error) {
	o, err := s.db.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if !viewer.IsAdmin() && o.OwnerUserID != viewer.UserID {
		return domain.Order{}, domain.ForbiddenError("order belongs to another customer")
	}
	return o, nil
}

func (s *OrderService) ListOrdersForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.db.ListOrdersForUser(ctx, userID)
}

func (s *OrderService) ListOrders(ctx context.Context, limit, offset int) ([]domain.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.db.ListOrders(ctx, limit, offset)
}

func (s *OrderService) Timeline(ctx context.Context, id int64, viewer auth.Identity) ([]domain.StatusEntry, error) {
	if _, err := s.GetOrderFor(ctx, id, viewer); err != nil {
		return nil, err
	}
	return s.db.GetTimeline(ctx, id)
}

// UpdateStatus is the only code path that mutates an order's status. The admin gate is
// enforced upstream; actor.IsAdmin is re-checked here. Notification runs after the commit
// and its outcome never changes the result.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, newStatus string, actor auth.Identity) (domain.Order, error) {
	if !actor.IsAdmin() {
		return domain.Order{}, domain.ForbiddenError("only admins may change order status")
	}
	to, err := domain.ParseStatus(newStatus)
	if err != nil {
		return domain.Order{}, err
	}

	from, o, err := s.db.UpdateStatusTx(ctx, orderID, to, actor.UserID)
	if err != nil {
		var terr *domain.InvalidTransitionError
		if errors.As(err, &terr) {
			s.lg.Info("status_transition_rejected", map[string]any{"order_id": orderID, "from": string(terr.From), "to": string(to)})
		}
		return domain.Order{}, err
	}
	metrics.StatusUpdates.WithLabelValues(string(to)).Inc()
	s.lg.Info("status_updated", map[string]any{"order_id": orderID, "from": string(from), "to": string(to), "changed_by": actor.UserID})

	s.emit(domain.StatusChange{
		OrderID:     o.ID,
		OwnerUserID: o.OwnerUserID,
		OldStatus:   from,
		NewStatus:   o.Status,
		ChangedBy:   actor.UserID,
		ChangedAt:   o.UpdatedAt,
	})
	return o, nil
}

func (s *OrderService) emit(change domain.StatusChange) {
	if s.notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.lg.Error("notify_panic", fmt.Errorf("%v", r), map[string]any{"order_id": change.OrderID})
		}
	}()
	if change.ChangedAt.IsZero() {
		change.ChangedAt = time.Now().UTC()
	}
	if err := s.notifier.Emit(change); err != nil {
		s.lg.Error("notify_failed", err, map[string]any{"order_id": change.OrderID, "status": string(change.NewStatus)})
	}
}
