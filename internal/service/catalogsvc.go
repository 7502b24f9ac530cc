package service

import (
	"context"
	"strings"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

const (
	ProductsPageSize = 10
	FeaturedLimit    = 8
)

type ProductsStore interface {
	ListProducts(ctx context.Context, keyword string, page, perPage int) (domain.ProductPage, error)
	ListFeatured(ctx context.Context, limit int) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	CreateProduct(ctx context.Context, userID string, p domain.Product) (domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

type CatalogService struct {
	Products ProductsStore
}

func (s *CatalogService) List(ctx context.Context, keyword string, page int) (domain.ProductPage, error) {
	if page < 1 {
		page = 1
	}
	return s.Products.ListProducts(ctx, strings.TrimSpace(keyword), page, ProductsPageSize)
}

func (s *CatalogService) Featured(ctx context.Context) ([]domain.Product, error) {
	return s.Products.ListFeatured(ctx, FeaturedLimit)
}

func (s *CatalogService) Get(ctx context.Context, id string) (domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Product{}, domain.ErrNotFound
	}
	return s.Products.GetProduct(ctx, id)
}

func (s *CatalogService) Create(ctx context.Context, userID string, in domain.ProductInput) (domain.Product, error) {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "required"
	}
	if in.Price < 0 {
		fields["price"] = "must not be negative"
	}
	if in.Stock < 0 {
		fields["count_in_stock"] = "must not be negative"
	}
	if len(fields) > 0 {
		return domain.Product{}, domain.NewValidationError(fields)
	}

	p := domain.Product{}.Apply(in)
	p.Name = strings.TrimSpace(p.Name)
	return s.Products.CreateProduct(ctx, userID, p)
}

// Update overlays the non-zero fields of in onto the stored product.
func (s *CatalogService) Update(ctx context.Context, id string, in domain.ProductInput) (domain.Product, error) {
	if in.Price < 0 || in.Stock < 0 {
		return domain.Product{}, domain.Invalid("Price and stock must not be negative")
	}
	cur, err := s.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return s.Products.UpdateProduct(ctx, cur.Apply(in))
}

func (s *CatalogService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	return s.Products.DeleteProduct(ctx, id)
}
