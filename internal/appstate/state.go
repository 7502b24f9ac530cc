// Package appstate is the client's single source of truth for the signed-in
// session and the shopping cart. Every change goes through Reduce.
package appstate

import (
	"time"

	"storefront/internal/domain"
)

// Session is what the server hands back on login or register.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CartLine snapshots a product at the moment it was added.
type CartLine struct {
	ProductID    string  `json:"product_id"`
	Name         string  `json:"name"`
	Image        string  `json:"image"`
	Price        float64 `json:"price"`
	Quantity     int     `json:"qty"`
	CountInStock int     `json:"count_in_stock"`
}

type Cart struct {
	Items           []CartLine
	ShippingAddress domain.ShippingAddress
	PaymentMethod   string
}

type State struct {
	Session *Session
	Cart    Cart
	Loading bool
	Error   string
}

// ItemsPrice sums price times quantity over the cart lines.
func (c Cart) ItemsPrice() float64 {
	var total float64
	for _, l := range c.Items {
		total += l.Price * float64(l.Quantity)
	}
	return total
}

func (c Cart) Count() int {
	n := 0
	for _, l := range c.Items {
		n += l.Quantity
	}
	return n
}

// Clone returns a copy that shares no memory with s.
func (s State) Clone() State {
	out := s
	if s.Session != nil {
		sess := *s.Session
		out.Session = &sess
	}
	out.Cart.Items = cloneLines(s.Cart.Items)
	return out
}

func cloneLines(in []CartLine) []CartLine {
	if in == nil {
		return nil
	}
	out := make([]CartLine, len(in))
	copy(out, in)
	return out
}
