package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"grocery-delivery/internal/domain"
)

type OrderRepository struct {
	db *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db}
}

func New(db *pgxpool.Pool) *Repository {
	return &Repository{
		OrderRepo: NewOrderRepository(db),
		Catalog:   NewCatalogRepository(db),
	}
}

const orderColumns = `id, usuario_id, status, total, retirada, endereco, metodo_pagamento, troco_para, created_at, updated_at`

func (or *OrderRepository) CreateOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	tx, err := or.db.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// 1. Insert order
	err = tx.QueryRow(ctx, `
		INSERT INTO pedidos
		    (usuario_id, status, total, retirada, endereco, metodo_pagamento, troco_para, created_at, updated_at)
		VALUES
		    ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`,
		o.OwnerUserID,
		string(o.Status),
		o.TotalValue,
		o.Delivery.Pickup,
		o.Delivery.Address,
		string(o.Payment.Method),
		o.Payment.ChangeFor,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}

	// 2. Insert order items, keeping their order
	for i, item := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO pedido_itens (pedido_id, posicao, produto_id, nome, quantidade, preco_unitario)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, o.ID, i, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice)
		if err != nil {
			return domain.Order{}, fmt.Errorf("failed to insert order item %d: %w", item.ProductID, err)
		}
	}

	// 3. Initial status log row
	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, $3, $4)
	`, o.ID, string(o.Status), o.OwnerUserID, o.CreatedAt)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to insert order status log: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return o, nil
}

func (or *OrderRepository) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	o, err := scanOrder(or.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM pedidos WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.NotFoundError("order " + strconv.FormatInt(id, 10))
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to get order: %w", err)
	}
	if o.Items, err = or.items(ctx, id); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (or *OrderRepository) ListOrdersForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := or.db.Query(ctx, `
		SELECT `+orderColumns+` FROM pedidos
		WHERE usuario_id=$1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return or.collect(ctx, rows)
}

func (or *OrderRepository) ListOrders(ctx context.Context, limit, offset int) ([]domain.Order, error) {
	rows, err := or.db.Query(ctx, `
		SELECT `+orderColumns+` FROM pedidos
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return or.collect(ctx, rows)
}

func (or *OrderRepository) UpdateStatusTx(ctx context.Context, id int64, to domain.Status, changedBy string) (domain.Status, domain.Order, error) {
	tx, err := or.db.Begin(ctx)
	if err != nil {
		return "", domain.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var old string
	err = tx.QueryRow(ctx, `SELECT status FROM pedidos WHERE id=$1 FOR UPDATE`, id).Scan(&old)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.Order{}, domain.NotFoundError("order " + strconv.FormatInt(id, 10))
	}
	if err != nil {
		return "", domain.Order{}, fmt.Errorf("failed to lock order: %w", err)
	}
	from := domain.Status(old)
	if !domain.CanTransition(from, to) {
		return from, domain.Order{}, &domain.InvalidTransitionError{From: from, To: to}
	}

	o, err := scanOrder(tx.QueryRow(ctx, `
		UPDATE pedidos SET status=$2, updated_at=NOW()
		WHERE id=$1
		RETURNING `+orderColumns, id, string(to)))
	if err != nil {
		return "", domain.Order{}, fmt.Errorf("failed to update status: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, $3, $4)
	`, id, string(to), changedBy, o.UpdatedAt); err != nil {
		return "", domain.Order{}, fmt.Errorf("failed to insert order status log: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", domain.Order{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if o.Items, err = or.items(ctx, id); err != nil {
		return "", domain.Order{}, err
	}
	return from, o, nil
}

func (or *OrderRepository) GetTimeline(ctx context.Context, id int64) ([]domain.StatusEntry, error) {
	var exists bool
	if err := or.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pedidos WHERE id=$1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check order: %w", err)
	}
	if !exists {
		return nil, domain.NotFoundError("order " + strconv.FormatInt(id, 10))
	}

	rows, err := or.db.Query(ctx, `
		SELECT status, changed_by, changed_at
		FROM order_status_log WHERE order_id=$1
		ORDER BY changed_at ASC, id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get timeline: %w", err)
	}
	defer rows.Close()

	var out []domain.StatusEntry
	for rows.Next() {
		var e domain.StatusEntry
		var st string
		if err := rows.Scan(&st, &e.ChangedBy, &e.ChangedAt); err != nil {
			return nil, err
		}
		e.Status = domain.Status(st)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (or *OrderRepository) items(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := or.db.Query(ctx, `
		SELECT produto_id, nome, quantidade, preco_unitario
		FROM pedido_itens WHERE pedido_id=$1
		ORDER BY posicao ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (or *OrderRepository) collect(ctx context.Context, rows pgx.Rows) ([]domain.Order, error) {
	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// items are loaded after the cursor is closed, the pool connection is free again
	for i := range out {
		items, err := or.items(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o      domain.Order
		status string
		method string
	)
	err := row.Scan(&o.ID, &o.OwnerUserID, &status, &o.TotalValue, &o.Delivery.Pickup, &o.Delivery.Address,
		&method, &o.Payment.ChangeFor, &o.CreatedAt, &o.UpdatedAt)
	o.Status = domain.Status(status)
	o.Payment.Method = domain.PaymentMethod(method)
	return o, err
}
