package models

import "github.com/shopspring/decimal"

// CartLine is a row of the 'cart' table. Amount is the unit price captured
// when the line was created.
type CartLine struct {
	ID        int64           `json:"id"`
	UserID    string          `json:"user_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`

	Product *CartProduct `json:"products,omitempty"`
}

// CartProduct is the product projection embedded in a cart listing.
type CartProduct struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	BannerURL   string          `json:"banner_url"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Rating      float64         `json:"rating"`
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.Amount.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
