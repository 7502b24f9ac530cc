package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/service"
)

type stubProductsStore struct {
	service.ProductsStore
	list func(context.Context, string, int, int) (domain.ProductPage, error)
}

func (s *stubProductsStore) ListProducts(ctx context.Context, keyword string, page, perPage int) (domain.ProductPage, error) {
	return s.list(ctx, keyword, page, perPage)
}

func (s *stubProductsStore) GetProduct(context.Context, string) (domain.Product, error) {
	return domain.Product{}, domain.ErrNotFound
}

func TestUnknownAPIPathReturnsJSON404(t *testing.T) {
	h := NewRouter(RouterOpts{})

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	var eb errorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &eb); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if eb.Message != "Not Found - /api/nope" {
		t.Fatalf("unexpected message %q", eb.Message)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected security headers")
	}
}

func TestHealthReportsDatabase(t *testing.T) {
	h := NewRouter(RouterOpts{DBPing: func(context.Context) error { return errors.New("down") }})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Database != "disconnected" {
		t.Fatalf("unexpected database status %q", resp.Database)
	}
}

func TestAPIRateLimitSkipsProductsAndHealth(t *testing.T) {
	catalog := &service.CatalogService{Products: &stubProductsStore{
		list: func(_ context.Context, _ string, page, _ int) (domain.ProductPage, error) {
			return domain.ProductPage{Page: page}, nil
		},
	}}
	h := NewRouter(RouterOpts{
		Catalog:    catalog,
		RateLimits: RateLimits{API: 2, Window: time.Hour},
	})

	get := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "198.51.100.1:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	for i := 0; i < 5; i++ {
		if code := get("/api/products?pageNumber=2"); code != http.StatusOK {
			t.Fatalf("products request %d: %d", i, code)
		}
		if code := get("/api/health"); code != http.StatusOK {
			t.Fatalf("health request %d: %d", i, code)
		}
	}

	if code := get("/api/orders/myorders"); code == http.StatusTooManyRequests {
		t.Fatalf("first limited request should pass the limiter")
	}
	get("/api/orders/myorders")
	if code := get("/api/orders/myorders"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on third limited request, got %d", code)
	}
}

func TestProductListPassesQuery(t *testing.T) {
	catalog := &service.CatalogService{Products: &stubProductsStore{
		list: func(_ context.Context, keyword string, page, perPage int) (domain.ProductPage, error) {
			if keyword != "lamp" || page != 3 || perPage != service.ProductsPageSize {
				t.Fatalf("unexpected query: %q %d %d", keyword, page, perPage)
			}
			return domain.ProductPage{
				Products: []domain.Product{{ID: "p1", Name: "Desk lamp", Stock: 7}},
				Page:     3,
				Pages:    4,
			}, nil
		},
	}}
	h := NewRouter(RouterOpts{Catalog: catalog})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/products?keyword=lamp&pageNumber=3", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	var resp productPageResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Products) != 1 || resp.Products[0].CountInStock != 7 || resp.Pages != 4 {
		t.Fatalf("unexpected page: %+v", resp)
	}
}

func TestProductGetNotFound(t *testing.T) {
	h := NewRouter(RouterOpts{Catalog: &service.CatalogService{Products: &stubProductsStore{}}})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/products/6f1c2a9e-2b1d-4c55-8d0e-0a1b2c3d4e5f", nil))
	if rr.Code != http.StatusNotFound || !strings.Contains(rr.Body.String(), "Product not found") {
		t.Fatalf("unexpected response %d %s", rr.Code, rr.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	h := NewRouter(RouterOpts{CORSOrigins: []string{"https://shop.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/users/login", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
		t.Fatalf("unexpected allow origin %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/users/login", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unexpected CORS grant for unknown origin")
	}
}

func TestOversizedBodyRejected(t *testing.T) {
	h := NewRouter(RouterOpts{Auth: newTestAuthService(&stubUsersStore{t: t}, newMemSessions())})

	big := `{"name":"` + strings.Repeat("a", maxBodyBytes) + `","email":"a@example.com","password":"longenough"}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(big)))

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}

func TestMetricsEndpointCountsLogins(t *testing.T) {
	m := NewMetrics()
	h := NewRouter(RouterOpts{Metrics: m})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "storefront_http_requests_total") {
		t.Fatalf("expected request counter in metrics output")
	}
}
