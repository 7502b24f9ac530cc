package appstate

import (
	"testing"

	"storefront/internal/domain"
)

type unknownIntent struct{}

func (unknownIntent) isIntent() {}

func TestAddToCartReplacesExistingLine(t *testing.T) {
	s := Reduce(State{}, AddToCart{Line: CartLine{ProductID: "p1", Quantity: 2, Price: 5}})
	s = Reduce(s, AddToCart{Line: CartLine{ProductID: "p2", Quantity: 1, Price: 3}})
	s = Reduce(s, AddToCart{Line: CartLine{ProductID: "p1", Quantity: 5, Price: 5}})

	if len(s.Cart.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(s.Cart.Items))
	}
	if s.Cart.Items[0].ProductID != "p1" || s.Cart.Items[0].Quantity != 5 {
		t.Fatalf("expected p1 replaced in place with qty 5, got %+v", s.Cart.Items[0])
	}
	if got := s.Cart.ItemsPrice(); got != 28 {
		t.Fatalf("unexpected items price %v", got)
	}
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	before := State{Cart: Cart{Items: []CartLine{{ProductID: "p1", Quantity: 1}}}}
	_ = Reduce(before, AddToCart{Line: CartLine{ProductID: "p1", Quantity: 9}})
	_ = Reduce(before, RemoveFromCart{ProductID: "p1"})

	if before.Cart.Items[0].Quantity != 1 || len(before.Cart.Items) != 1 {
		t.Fatalf("input state mutated: %+v", before.Cart.Items)
	}
}

func TestRemoveFromCartAbsentIsNoop(t *testing.T) {
	s := Reduce(State{}, AddToCart{Line: CartLine{ProductID: "p1", Quantity: 1}})
	s = Reduce(s, RemoveFromCart{ProductID: "nope"})
	if len(s.Cart.Items) != 1 {
		t.Fatalf("expected line kept, got %+v", s.Cart.Items)
	}
	s = Reduce(s, RemoveFromCart{ProductID: "p1"})
	if len(s.Cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", s.Cart.Items)
	}
}

func TestClearCartKeepsAddressAndPayment(t *testing.T) {
	addr := domain.ShippingAddress{Address: "1 Main", City: "X", PostalCode: "1", Country: "Y"}
	s := State{Cart: Cart{
		Items:           []CartLine{{ProductID: "p1", Quantity: 1}},
		ShippingAddress: addr,
		PaymentMethod:   "PayPal",
	}}
	s = Reduce(s, ClearCart{})
	if len(s.Cart.Items) != 0 || s.Cart.ShippingAddress != addr || s.Cart.PaymentMethod != "PayPal" {
		t.Fatalf("unexpected cart after clear: %+v", s.Cart)
	}
}

func TestLogoutEmptiesSessionAndCart(t *testing.T) {
	s := Reduce(State{}, UserLogin{Session: Session{ID: "u1", Token: "t"}})
	s = Reduce(s, AddToCart{Line: CartLine{ProductID: "p1", Quantity: 1}})
	s = Reduce(s, SavePaymentMethod{Method: "PayPal"})
	s = Reduce(s, UserLogout{})
	if s.Session != nil {
		t.Fatalf("expected no session")
	}
	if len(s.Cart.Items) != 0 || s.Cart.PaymentMethod != "" || s.Cart.ShippingAddress != (domain.ShippingAddress{}) {
		t.Fatalf("expected empty cart, got %+v", s.Cart)
	}
}

func TestRequestLifecycle(t *testing.T) {
	s := Reduce(State{Error: "old"}, RequestStart{})
	if !s.Loading || s.Error != "" {
		t.Fatalf("unexpected start state %+v", s)
	}
	s = Reduce(s, RequestFail{Message: "boom"})
	if s.Loading || s.Error != "boom" {
		t.Fatalf("unexpected fail state %+v", s)
	}
	s = Reduce(s, UserLogin{Session: Session{ID: "u1"}})
	if s.Error != "" {
		t.Fatalf("login should clear error")
	}
	s = Reduce(s, RequestFail{Message: "again"})
	s = Reduce(s, ResetError{})
	if s.Error != "" {
		t.Fatalf("reset should clear error")
	}
}

func TestUpdateUserProfileShallowMerges(t *testing.T) {
	s := Reduce(State{Error: "x"}, UserLogin{Session: Session{ID: "u1", Name: "Old", Email: "a@example.com", Token: "t1"}})
	name := "New"
	s = Reduce(s, UpdateUserProfile{Patch: ProfilePatch{Name: &name}})
	if s.Session.Name != "New" || s.Session.Email != "a@example.com" || s.Session.Token != "t1" {
		t.Fatalf("unexpected merged session %+v", *s.Session)
	}
}

func TestUnknownIntentReturnsStateUnchanged(t *testing.T) {
	s := Reduce(State{}, UserLogin{Session: Session{ID: "u1"}})
	got := Reduce(s, unknownIntent{})
	if got.Session != s.Session || got.Error != s.Error || got.Loading != s.Loading {
		t.Fatalf("unknown intent changed state")
	}
}
