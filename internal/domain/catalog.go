package domain

import "time"

type Product struct {
	ID          string
	UserID      string
	Name        string
	Description string
	Image       string
	Price       float64
	Stock       int
	IsFeatured  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProductInput carries the writable product fields. On update, zero values
// and a nil IsFeatured keep the stored value.
type ProductInput struct {
	Name        string
	Description string
	Image       string
	Price       float64
	Stock       int
	IsFeatured  *bool
}

// Apply overlays the non-zero fields of in onto p.
func (p Product) Apply(in ProductInput) Product {
	if in.Name != "" {
		p.Name = in.Name
	}
	if in.Description != "" {
		p.Description = in.Description
	}
	if in.Image != "" {
		p.Image = in.Image
	}
	if in.Price != 0 {
		p.Price = in.Price
	}
	if in.Stock != 0 {
		p.Stock = in.Stock
	}
	if in.IsFeatured != nil {
		p.IsFeatured = *in.IsFeatured
	}
	return p
}

type ProductPage struct {
	Products []Product
	Page     int
	Pages    int
}
