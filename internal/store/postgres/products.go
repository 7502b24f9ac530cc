package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProductsStore struct {
	pool *pgxpool.Pool
}

func NewProductsStore(pool *pgxpool.Pool) *ProductsStore {
	return &ProductsStore{pool: pool}
}

const productColumns = `id, user_id, name, description, image, price, stock, is_featured, created_at, updated_at`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p        domain.Product
		idUUID   pgtype.UUID
		userUUID pgtype.UUID
		desc     pgtype.Text
		image    pgtype.Text
	)
	err := row.Scan(&idUUID, &userUUID, &p.Name, &desc, &image, &p.Price, &p.Stock, &p.IsFeatured, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	p.ID = uuidOrEmpty(idUUID)
	p.UserID = uuidOrEmpty(userUUID)
	p.Description = textOrEmpty(desc)
	p.Image = textOrEmpty(image)
	return p, nil
}

// likePattern turns a free-text keyword into a case-insensitive substring pattern.
func likePattern(keyword string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(keyword) + "%"
}

// ListProducts returns one page of products whose name contains keyword.
func (s *ProductsStore) ListProducts(ctx context.Context, keyword string, page, perPage int) (domain.ProductPage, error) {
	if page < 1 {
		page = 1
	}
	pattern := likePattern(strings.TrimSpace(keyword))

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM products WHERE name ILIKE $1`, pattern).Scan(&total); err != nil {
		return domain.ProductPage{}, fmt.Errorf("count products: %w", err)
	}

	q := `SELECT ` + productColumns + `
		FROM products
		WHERE name ILIKE $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`
	rows, err := s.pool.Query(ctx, q, pattern, perPage, perPage*(page-1))
	if err != nil {
		return domain.ProductPage{}, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := domain.ProductPage{Products: []domain.Product{}, Page: page, Pages: pageCount(total, perPage)}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return domain.ProductPage{}, fmt.Errorf("scan product: %w", err)
		}
		out.Products = append(out.Products, p)
	}
	if err := rows.Err(); err != nil {
		return domain.ProductPage{}, fmt.Errorf("list products rows: %w", err)
	}
	return out, nil
}

func (s *ProductsStore) ListFeatured(ctx context.Context, limit int) ([]domain.Product, error) {
	q := `SELECT ` + productColumns + `
		FROM products
		WHERE is_featured
		ORDER BY created_at DESC
		LIMIT $1`
	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list featured: %w", err)
	}
	defer rows.Close()

	out := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list featured rows: %w", err)
	}
	return out, nil
}

func (s *ProductsStore) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *ProductsStore) CreateProduct(ctx context.Context, userID string, p domain.Product) (domain.Product, error) {
	q := `
		INSERT INTO products (user_id, name, description, image, price, stock, is_featured)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + productColumns
	out, err := scanProduct(s.pool.QueryRow(ctx, q,
		userID, p.Name, nullIfEmpty(p.Description), nullIfEmpty(p.Image), p.Price, p.Stock, p.IsFeatured,
	))
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	return out, nil
}

func (s *ProductsStore) UpdateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	q := `
		UPDATE products
		SET name = $2, description = $3, image = $4, price = $5, stock = $6, is_featured = $7, updated_at = now()
		WHERE id = $1
		RETURNING ` + productColumns
	out, err := scanProduct(s.pool.QueryRow(ctx, q,
		p.ID, p.Name, nullIfEmpty(p.Description), nullIfEmpty(p.Image), p.Price, p.Stock, p.IsFeatured,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}
	return out, nil
}

func (s *ProductsStore) DeleteProduct(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
