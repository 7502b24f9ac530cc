package service

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/domain"
)

type stubProductsStore struct {
	t *testing.T

	listProductsFunc  func(context.Context, string, int, int) (domain.ProductPage, error)
	listFeaturedFunc  func(context.Context, int) ([]domain.Product, error)
	getProductFunc    func(context.Context, string) (domain.Product, error)
	createProductFunc func(context.Context, string, domain.Product) (domain.Product, error)
	updateProductFunc func(context.Context, domain.Product) (domain.Product, error)
	deleteProductFunc func(context.Context, string) error
}

func (s *stubProductsStore) ListProducts(ctx context.Context, keyword string, page, perPage int) (domain.ProductPage, error) {
	if s.listProductsFunc != nil {
		return s.listProductsFunc(ctx, keyword, page, perPage)
	}
	s.t.Fatalf("ListProducts called unexpectedly")
	return domain.ProductPage{}, errors.New("unexpected call")
}

func (s *stubProductsStore) ListFeatured(ctx context.Context, limit int) ([]domain.Product, error) {
	if s.listFeaturedFunc != nil {
		return s.listFeaturedFunc(ctx, limit)
	}
	s.t.Fatalf("ListFeatured called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubProductsStore) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if s.getProductFunc != nil {
		return s.getProductFunc(ctx, id)
	}
	s.t.Fatalf("GetProduct called unexpectedly")
	return domain.Product{}, errors.New("unexpected call")
}

func (s *stubProductsStore) CreateProduct(ctx context.Context, userID string, p domain.Product) (domain.Product, error) {
	if s.createProductFunc != nil {
		return s.createProductFunc(ctx, userID, p)
	}
	s.t.Fatalf("CreateProduct called unexpectedly")
	return domain.Product{}, errors.New("unexpected call")
}

func (s *stubProductsStore) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	if s.updateProductFunc != nil {
		return s.updateProductFunc(ctx, p)
	}
	s.t.Fatalf("UpdateProduct called unexpectedly")
	return domain.Product{}, errors.New("unexpected call")
}

func (s *stubProductsStore) DeleteProduct(ctx context.Context, id string) error {
	if s.deleteProductFunc != nil {
		return s.deleteProductFunc(ctx, id)
	}
	s.t.Fatalf("DeleteProduct called unexpectedly")
	return errors.New("unexpected call")
}

func TestCatalogServiceListClampsPage(t *testing.T) {
	store := &stubProductsStore{
		t: t,
		listProductsFunc: func(_ context.Context, keyword string, page, perPage int) (domain.ProductPage, error) {
			if keyword != "mug" || page != 1 || perPage != ProductsPageSize {
				t.Fatalf("unexpected list args: %q %d %d", keyword, page, perPage)
			}
			return domain.ProductPage{Page: page, Pages: 1}, nil
		},
	}
	svc := &CatalogService{Products: store}

	if _, err := svc.List(context.Background(), "  mug ", -3); err != nil {
		t.Fatalf("List: %v", err)
	}
}

func TestCatalogServiceUpdateKeepsUnsetFields(t *testing.T) {
	const id = "6f1c2a9e-2b1d-4c55-8d0e-0a1b2c3d4e5f"
	store := &stubProductsStore{
		t: t,
		getProductFunc: func(context.Context, string) (domain.Product, error) {
			return domain.Product{ID: id, Name: "Mug", Price: 9, Stock: 4, IsFeatured: true}, nil
		},
		updateProductFunc: func(_ context.Context, p domain.Product) (domain.Product, error) {
			if p.Name != "Mug" || p.Price != 12 || p.Stock != 4 || !p.IsFeatured {
				t.Fatalf("unexpected merged product: %+v", p)
			}
			return p, nil
		},
	}
	svc := &CatalogService{Products: store}

	if _, err := svc.Update(context.Background(), id, domain.ProductInput{Price: 12}); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestCatalogServiceGetRejectsMalformedID(t *testing.T) {
	svc := &CatalogService{Products: &stubProductsStore{t: t}}
	if _, err := svc.Get(context.Background(), "123"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
