package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrdersStore keeps order lines, the shipping address and the payment result as jsonb.
type OrdersStore struct {
	pool *pgxpool.Pool
}

func NewOrdersStore(pool *pgxpool.Pool) *OrdersStore {
	return &OrdersStore{pool: pool}
}

const orderSelect = `
	SELECT o.id, o.user_id, u.name, o.items, o.shipping_address, o.payment_method,
	       o.items_price, o.tax_price, o.shipping_price, o.total_price,
	       o.is_paid, o.paid_at, o.payment_result, o.is_delivered, o.delivered_at,
	       o.created_at, o.updated_at
	FROM orders o
	JOIN users u ON u.id = o.user_id`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o           domain.Order
		idUUID      pgtype.UUID
		userUUID    pgtype.UUID
		paidTS      pgtype.Timestamptz
		deliveredTS pgtype.Timestamptz
	)
	err := row.Scan(
		&idUUID, &userUUID, &o.UserName, &o.Items, &o.ShippingAddress, &o.PaymentMethod,
		&o.ItemsPrice, &o.TaxPrice, &o.ShippingPrice, &o.TotalPrice,
		&o.IsPaid, &paidTS, &o.PaymentResult, &o.IsDelivered, &deliveredTS,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	o.ID = uuidOrEmpty(idUUID)
	o.UserID = uuidOrEmpty(userUUID)
	o.PaidAt = timestamptzPtr(paidTS)
	o.DeliveredAt = timestamptzPtr(deliveredTS)
	return o, nil
}

func (s *OrdersStore) CreateOrder(ctx context.Context, userID string, in domain.OrderInput) (domain.Order, error) {
	const q = `
		INSERT INTO orders (user_id, items, shipping_address, payment_method,
		                    items_price, tax_price, shipping_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var idUUID pgtype.UUID
	err := s.pool.QueryRow(ctx, q,
		userID, in.Items, in.ShippingAddress, in.PaymentMethod,
		in.ItemsPrice, in.TaxPrice, in.ShippingPrice, in.TotalPrice,
	).Scan(&idUUID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	return s.GetOrder(ctx, uuidOrEmpty(idUUID))
}

func (s *OrdersStore) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, orderSelect+` WHERE o.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// ListOrders returns orders newest first. An empty userID lists every order.
func (s *OrdersStore) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	q := orderSelect + ` WHERE ($1::uuid IS NULL OR o.user_id = $1) ORDER BY o.created_at DESC`
	rows, err := s.pool.Query(ctx, q, nullIfEmpty(userID))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders rows: %w", err)
	}
	return out, nil
}

func (s *OrdersStore) MarkPaid(ctx context.Context, id string, when time.Time, result domain.PaymentResult) (domain.Order, error) {
	const q = `
		UPDATE orders
		SET is_paid = true, paid_at = $2, payment_result = $3, updated_at = now()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, q, id, when, result)
	if err != nil {
		return domain.Order{}, fmt.Errorf("mark order paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Order{}, domain.ErrNotFound
	}
	return s.GetOrder(ctx, id)
}

func (s *OrdersStore) MarkDelivered(ctx context.Context, id string, when time.Time) (domain.Order, error) {
	const q = `
		UPDATE orders
		SET is_delivered = true, delivered_at = $2, updated_at = now()
		WHERE id = $1
	`
	tag, err := s.pool.Exec(ctx, q, id, when)
	if err != nil {
		return domain.Order{}, fmt.Errorf("mark order delivered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Order{}, domain.ErrNotFound
	}
	return s.GetOrder(ctx, id)
}
