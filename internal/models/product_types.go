package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the model for the 'products' table.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Type        string          `json:"type"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Rating      float64         `json:"rating"`
	Amount      decimal.Decimal `json:"amount"`
	BannerURL   string          `json:"banner_url"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`

	// Slug is derived from Name when the product is read.
	Slug string `json:"slug"`
}

type ProductImage struct {
	ID        int64  `json:"id"`
	ImageURL  string `json:"image_url"`
	ProductID int64  `json:"product_id"`
}

// ProductDetail is a product with its gallery. Images is never nil.
type ProductDetail struct {
	Product
	Images []ProductImage `json:"product_images"`
}
