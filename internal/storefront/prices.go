package storefront

import (
	"math"

	"storefront/internal/appstate"
)

const (
	freeShippingOver = 100
	flatShipping     = 10
	taxRate          = 0.15
)

// Prices is the checkout breakdown for a cart.
type Prices struct {
	Items    float64
	Shipping float64
	Tax      float64
	Total    float64
}

// PricesFor computes the breakdown shown at checkout: free shipping above
// 100, otherwise 10; 15% tax; tax and total rounded to cents.
func PricesFor(c appstate.Cart) Prices {
	items := c.ItemsPrice()
	p := Prices{Items: items, Shipping: flatShipping}
	if items > freeShippingOver {
		p.Shipping = 0
	}
	p.Tax = roundCents(items * taxRate)
	p.Total = roundCents(items + p.Shipping + p.Tax)
	return p
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
