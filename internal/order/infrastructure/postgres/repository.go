package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/msashop/order-service/internal/order/application"
	"github.com/msashop/order-service/internal/order/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Create(ctx context.Context, o domain.Order) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO orders (id, buyer_id, product_id, quantity, total_amount, status, payment_ref, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		o.ID, o.BuyerID, o.ProductID, o.Quantity, o.TotalAmount, o.Status, o.PaymentRef, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting order %s: %w", o.ID, err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx, `
		SELECT id, buyer_id, product_id, quantity, total_amount, status, payment_ref, created_at
		FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.BuyerID, &o.ProductID, &o.Quantity, &o.TotalAmount, &o.Status, &o.PaymentRef, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, application.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("loading order %s: %w", id, err)
	}
	return o, nil
}

func (r *Repository) ListByBuyer(ctx context.Context, buyerID int64) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, buyer_id, product_id, quantity, total_amount, status, payment_ref, created_at
		FROM orders WHERE buyer_id=$1 ORDER BY created_at DESC`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for buyer %d: %w", buyerID, err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.BuyerID, &o.ProductID, &o.Quantity, &o.TotalAmount, &o.Status, &o.PaymentRef, &o.CreatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	ct, err := r.pool.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1`, id, status)
	if err != nil {
		return fmt.Errorf("updating order %s status: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return application.ErrOrderNotFound
	}
	return nil
}
