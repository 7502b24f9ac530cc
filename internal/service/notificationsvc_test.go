package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"storefront/internal/domain"
)

type stubMailer struct {
	t *testing.T

	sendFunc func(ctx context.Context, to, subject, body string) error
}

func (s *stubMailer) Send(ctx context.Context, to, subject, body string) error {
	if s.sendFunc != nil {
		return s.sendFunc(ctx, to, subject, body)
	}
	s.t.Fatalf("Send called unexpectedly")
	return errors.New("unexpected call")
}

func sampleOrder() domain.Order {
	return domain.Order{
		ID:              "4f6c1b0e-9a7d-4c2e-8b1f-3d5e7a9c0b2d",
		Items:           []domain.OrderItem{{Name: "Desk lamp", Price: 20, Qty: 2}},
		ShippingAddress: domain.ShippingAddress{Address: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"},
		PaymentMethod:   "PayPal",
		ItemsPrice:      40,
		ShippingPrice:   10,
		TaxPrice:        6,
		TotalPrice:      56,
	}
}

func TestNotifyOrderPlacedSendsReceipt(t *testing.T) {
	var gotTo, gotSubject, gotBody string
	svc := &NotificationService{Mailer: &stubMailer{
		t: t,
		sendFunc: func(_ context.Context, to, subject, body string) error {
			gotTo, gotSubject, gotBody = to, subject, body
			return nil
		},
	}}

	err := svc.NotifyOrderPlaced(context.Background(), domain.User{ID: "u1", Name: "Ann", Email: "ann@example.com"}, sampleOrder())
	if err != nil {
		t.Fatalf("NotifyOrderPlaced: %v", err)
	}
	if gotTo != "ann@example.com" || gotSubject != "Storefront order 4f6c1b0e received" {
		t.Fatalf("unexpected envelope %q %q", gotTo, gotSubject)
	}
	for _, want := range []string{"Hi Ann,", "2 x Desk lamp @ 20.00 = 40.00", "Springfield 12345", "Payment method: PayPal", fmt.Sprintf("Total:    %8.2f", 56.0)} {
		if !strings.Contains(gotBody, want) {
			t.Fatalf("expected %q in receipt:\n%s", want, gotBody)
		}
	}
}

func TestNotifyOrderPlacedSkipsBuyerWithoutEmail(t *testing.T) {
	svc := &NotificationService{Mailer: &stubMailer{t: t}}
	if err := svc.NotifyOrderPlaced(context.Background(), domain.User{ID: "u1"}, sampleOrder()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

type chanNotifier chan domain.Order

func (c chanNotifier) NotifyOrderPlaced(_ context.Context, _ domain.User, o domain.Order) error {
	c <- o
	return nil
}

func TestPlaceNotifiesInBackground(t *testing.T) {
	notified := make(chanNotifier, 1)
	svc := &OrderService{
		Orders: &stubOrdersStore{
			t: t,
			createOrderFunc: func(_ context.Context, userID string, in domain.OrderInput) (domain.Order, error) {
				return domain.Order{ID: "order-1", UserID: userID}, nil
			},
		},
		Notifier: notified,
	}

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := svc.Place(ctx, domain.User{ID: "user-1", Email: "a@example.com"}, validOrderInput()); err != nil {
		t.Fatalf("Place: %v", err)
	}
	cancel()

	select {
	case o := <-notified:
		if o.ID != "order-1" {
			t.Fatalf("unexpected order %+v", o)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("notifier not called")
	}
}
