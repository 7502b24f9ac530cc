package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

type OrdersStore interface {
	CreateOrder(ctx context.Context, userID string, in domain.OrderInput) (domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)
	MarkPaid(ctx context.Context, id string, when time.Time, result domain.PaymentResult) (domain.Order, error)
	MarkDelivered(ctx context.Context, id string, when time.Time) (domain.Order, error)
}

type OrderService struct {
	Orders OrdersStore
	Now    func() time.Time

	// Notifier, when set, is called in the background after an order is stored.
	Notifier OrderNotifier
	Logger   *slog.Logger
}

const notifyTimeout = 30 * time.Second

func (s *OrderService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *OrderService) Place(ctx context.Context, buyer domain.User, in domain.OrderInput) (domain.Order, error) {
	if len(in.Items) == 0 {
		return domain.Order{}, domain.Invalid("No order items")
	}
	if !in.ShippingAddress.Complete() {
		return domain.Order{}, domain.Invalid("Please provide complete shipping address")
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return domain.Order{}, domain.Invalid("Payment method is required")
	}
	for _, it := range in.Items {
		if _, err := uuid.Parse(it.ProductID); err != nil {
			return domain.Order{}, domain.Invalid(fmt.Sprintf("Invalid product ID: %s", it.ProductID))
		}
		if it.Qty <= 0 {
			return domain.Order{}, domain.Invalid(fmt.Sprintf("Invalid quantity for product %s", it.ProductID))
		}
	}

	o, err := s.Orders.CreateOrder(ctx, buyer.ID, in)
	if err != nil {
		return domain.Order{}, err
	}
	s.notifyPlaced(ctx, buyer, o)
	return o, nil
}

func (s *OrderService) notifyPlaced(ctx context.Context, buyer domain.User, o domain.Order) {
	if s.Notifier == nil {
		return
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	go func() {
		defer cancel()
		if err := s.Notifier.NotifyOrderPlaced(ctx, buyer, o); err != nil {
			logger.Warn("order notification failed", "order_id", o.ID, "err", err)
		}
	}()
}

// Get returns the order when viewer owns it or is an admin.
func (s *OrderService) Get(ctx context.Context, viewer domain.User, id string) (domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Order{}, domain.Invalid("Invalid order ID")
	}
	o, err := s.Orders.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if o.UserID != viewer.ID && !viewer.IsAdmin {
		return domain.Order{}, domain.ErrForbidden
	}
	return o, nil
}

func (s *OrderService) Mine(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.Orders.ListOrders(ctx, userID)
}

func (s *OrderService) All(ctx context.Context) ([]domain.Order, error) {
	return s.Orders.ListOrders(ctx, "")
}

func (s *OrderService) Pay(ctx context.Context, viewer domain.User, id string, result domain.PaymentResult) (domain.Order, error) {
	if _, err := s.Get(ctx, viewer, id); err != nil {
		return domain.Order{}, err
	}
	return s.Orders.MarkPaid(ctx, id, s.now(), result)
}

func (s *OrderService) Deliver(ctx context.Context, id string) (domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Order{}, domain.Invalid("Invalid order ID")
	}
	return s.Orders.MarkDelivered(ctx, id, s.now())
}
