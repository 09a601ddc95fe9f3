// Package catalog reads the product listing, product detail and search
// results. It never writes.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/01moynul/storefront-go/internal/apperr"
	"github.com/01moynul/storefront-go/internal/gateway"
	"github.com/01moynul/storefront-go/internal/models"
	"github.com/gosimple/slug"
)

// DefaultFrom and DefaultTo are the inclusive page used when the caller
// gives no range.
const (
	DefaultFrom = 0
	DefaultTo   = 20
)

var searchColumns = []string{"name", "brand", "type", "description"}

type Reader struct {
	gw gateway.Gateway
}

func NewReader(gw gateway.Gateway) *Reader {
	return &Reader{gw: gw}
}

// List returns active products ordered by id, optionally limited to brands.
func (r *Reader) List(ctx context.Context, brands []string, from, to int) ([]models.Product, error) {
	q := gateway.From(models.TableProducts).
		Where(gateway.Eq("is_active", true)).
		OrderBy("id", false).
		Range(from, to)
	if len(brands) > 0 {
		q = q.Where(gateway.In("brand", brands))
	}
	return r.products(ctx, "catalog.list", q)
}

// Search matches query case-insensitively against name, brand, type and
// description. An empty query matches nothing.
func (r *Reader) Search(ctx context.Context, query string, from, to int) ([]models.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Product{}, nil
	}

	clauses := make([]gateway.Filter, len(searchColumns))
	for i, col := range searchColumns {
		clauses[i] = gateway.Contains(col, query)
	}
	q := gateway.From(models.TableProducts).
		Where(gateway.Or(clauses...), gateway.Eq("is_active", true)).
		OrderBy("id", false).
		Range(from, to)
	return r.products(ctx, "catalog.search", q)
}

// Detail returns one product with its images. A missing product is an error.
func (r *Reader) Detail(ctx context.Context, id int64) (*models.ProductDetail, error) {
	row, err := gateway.Single(ctx, r.gw, gateway.From(models.TableProducts).
		Where(gateway.Eq("id", id)).
		With(gateway.EmbedMany(models.TableProductImages, "product_id", "id", "image_url", "product_id")))
	if errors.Is(err, gateway.ErrNoRows) {
		return nil, apperr.Wrap(apperr.KindNotFound, "catalog.detail", "Product not found", err)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "catalog.detail", "Failed to load product", err)
	}

	detail := &models.ProductDetail{}
	if err := gateway.Decode(row, detail); err != nil {
		return nil, err
	}
	if detail.Images == nil {
		detail.Images = []models.ProductImage{}
	}
	detail.Slug = slug.Make(detail.Name)
	return detail, nil
}

func (r *Reader) products(ctx context.Context, op string, q gateway.Query) ([]models.Product, error) {
	rows, err := r.gw.Select(ctx, q)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, op, "Failed to load products", err)
	}

	products := []models.Product{}
	if err := gateway.Decode(rows, &products); err != nil {
		return nil, err
	}
	for i := range products {
		products[i].Slug = slug.Make(products[i].Name)
	}
	return products, nil
}
