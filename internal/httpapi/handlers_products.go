package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"storefront/internal/domain"
)

type productResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Image        string    `json:"image"`
	Price        float64   `json:"price"`
	CountInStock int       `json:"count_in_stock"`
	IsFeatured   bool      `json:"is_featured"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Image:        p.Image,
		Price:        p.Price,
		CountInStock: p.Stock,
		IsFeatured:   p.IsFeatured,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func toProductResponses(ps []domain.Product) []productResponse {
	out := make([]productResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProductResponse(p))
	}
	return out
}

type productPageResponse struct {
	Products []productResponse `json:"products"`
	Page     int               `json:"page"`
	Pages    int               `json:"pages"`
}

func (a *api) handleProductsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("pageNumber"))

	res, err := a.catalogSvc.List(r.Context(), q.Get("keyword"), page)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, productPageResponse{
		Products: toProductResponses(res.Products),
		Page:     res.Page,
		Pages:    res.Pages,
	})
}

func (a *api) handleProductsFeatured(w http.ResponseWriter, r *http.Request) {
	ps, err := a.catalogSvc.Featured(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toProductResponses(ps))
}

func (a *api) handleProductGet(w http.ResponseWriter, r *http.Request) {
	p, err := a.catalogSvc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeProductError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toProductResponse(p))
}

type productRequest struct {
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Image        string  `json:"image"`
	Price        float64 `json:"price"`
	CountInStock int     `json:"count_in_stock"`
	IsFeatured   *bool   `json:"is_featured"`
}

func (req productRequest) input() domain.ProductInput {
	return domain.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
		Price:       req.Price,
		Stock:       req.CountInStock,
		IsFeatured:  req.IsFeatured,
	}
}

func (a *api) handleProductCreate(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w, err)
		return
	}

	p, err := a.catalogSvc.Create(r.Context(), u.ID, req.input())
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toProductResponse(p))
}

func (a *api) handleProductUpdate(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w, err)
		return
	}

	p, err := a.catalogSvc.Update(r.Context(), r.PathValue("id"), req.input())
	if err != nil {
		writeProductError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toProductResponse(p))
}

func (a *api) handleProductDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.catalogSvc.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeProductError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"message": "Product removed"})
}

func writeProductError(w http.ResponseWriter, err error) {
	if isNotFound(err) {
		WriteError(w, http.StatusNotFound, "not_found", "Product not found")
		return
	}
	WriteDomainError(w, err)
}
