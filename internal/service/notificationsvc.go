package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"storefront/internal/domain"
)

type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// OrderNotifier is told about every accepted order.
type OrderNotifier interface {
	NotifyOrderPlaced(ctx context.Context, buyer domain.User, o domain.Order) error
}

// NotificationService emails order receipts to buyers.
type NotificationService struct {
	Mailer    MailSender
	StoreName string
	Logger    *slog.Logger
}

func (s *NotificationService) NotifyOrderPlaced(ctx context.Context, buyer domain.User, o domain.Order) error {
	if s.Mailer == nil {
		return nil
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(buyer.Email) == "" {
		logger.Warn("notifications: buyer has no email", "user_id", buyer.ID, "order_id", o.ID)
		return nil
	}

	store := s.StoreName
	if store == "" {
		store = "Storefront"
	}
	subject := fmt.Sprintf("%s order %s received", store, shortID(o.ID))
	if err := s.Mailer.Send(ctx, buyer.Email, subject, orderReceipt(buyer, o)); err != nil {
		logger.Error("notifications: send receipt failed", "err", err, "user_id", buyer.ID, "order_id", o.ID)
		return err
	}
	return nil
}

func orderReceipt(buyer domain.User, o domain.Order) string {
	var b strings.Builder

	name := strings.TrimSpace(buyer.Name)
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\nThanks for your order. Here is your receipt.\n\n", name)
	fmt.Fprintf(&b, "Order: %s\n\n", o.ID)
	for _, it := range o.Items {
		fmt.Fprintf(&b, "  %d x %s @ %.2f = %.2f\n", it.Qty, it.Name, it.Price, it.Price*float64(it.Qty))
	}
	fmt.Fprintf(&b, "\nItems:    %8.2f\n", o.ItemsPrice)
	fmt.Fprintf(&b, "Shipping: %8.2f\n", o.ShippingPrice)
	fmt.Fprintf(&b, "Tax:      %8.2f\n", o.TaxPrice)
	fmt.Fprintf(&b, "Total:    %8.2f\n\n", o.TotalPrice)

	a := o.ShippingAddress
	fmt.Fprintf(&b, "Shipping to:\n  %s\n  %s %s\n  %s\n\n", a.Address, a.City, a.PostalCode, a.Country)
	fmt.Fprintf(&b, "Payment method: %s\n", o.PaymentMethod)
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
