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

// CatalogRepository reads current product prices; the catalog CRUD lives elsewhere.
type CatalogRepository struct {
	db *pgxpool.Pool
}

func NewCatalogRepository(db *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) Product(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRow(ctx, `SELECT id, nome, preco FROM produtos WHERE id=$1 AND ativo`, id).
		Scan(&p.ID, &p.Name, &p.Price)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.NotFoundError("product " + strconv.FormatInt(id, 10))
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}
